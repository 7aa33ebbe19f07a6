// Package validate compares a classification response with the service a record expects.
package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/loykin/intentrun/internal/records"
	"github.com/loykin/intentrun/internal/result"
	"github.com/tidwall/gjson"
)

// Messages recorded in outcomes. They are part of the saved report.
const (
	MsgUnknownAPIError    = "Erro desconhecido"
	MsgNoData             = "Resposta não contém dados (data é null)"
	MsgServiceIDMissing   = "service_id não encontrado na resposta"
	MsgServiceNameMissing = "service_name não encontrado na resposta"
)

// Verdict is the validator's conclusion for one response body.
type Verdict struct {
	Kind       result.ErrorKind
	Error      string
	Validation result.Validation
}

// OK reports whether the API succeeded and both fields matched.
func (v Verdict) OK() bool { return v.Kind == result.KindNone }

// Check inspects a decoded-as-JSON body. The caller guarantees body is valid JSON.
func Check(rec records.ExpectedRecord, body []byte) Verdict {
	parsed := gjson.ParseBytes(body)

	if s := parsed.Get("success"); !s.Exists() || !s.Bool() {
		msg := MsgUnknownAPIError
		if e := parsed.Get("error"); e.Exists() && e.Type != gjson.Null {
			msg = e.String()
		}
		return Verdict{Kind: result.KindAPIFailure, Error: msg}
	}

	data := parsed.Get("data")
	if !data.Exists() || data.Type == gjson.Null {
		return invalid(result.Validation{}, MsgNoData)
	}

	expectedID, err := strconv.Atoi(strings.TrimSpace(rec.ServiceID))
	if err != nil {
		return Verdict{
			Kind:  result.KindUnexpected,
			Error: fmt.Sprintf("Erro inesperado: service_id esperado inválido: %q", rec.ServiceID),
		}
	}

	rawID := data.Get("service_id")
	if !rawID.Exists() || rawID.Type == gjson.Null {
		return invalid(result.Validation{}, MsgServiceIDMissing)
	}
	actualID, ok := coerceInt(rawID)
	if !ok {
		return invalid(result.Validation{}, fmt.Sprintf("service_id inválido na resposta: %s", display(rawID)))
	}

	var v result.Validation
	v.ServiceIDMatch = expectedID == actualID

	rawName := data.Get("service_name")
	if !rawName.Exists() || rawName.Type == gjson.Null {
		return invalid(v, MsgServiceNameMissing)
	}
	v.ServiceNameMatch = rawName.Type == gjson.String && rawName.Str == rec.ServiceName

	if v.ServiceIDMatch && v.ServiceNameMatch {
		return Verdict{Kind: result.KindNone, Validation: v}
	}

	var diffs []string
	if !v.ServiceIDMatch {
		diffs = append(diffs, fmt.Sprintf("service_id: esperado %d, recebido %d", expectedID, actualID))
	}
	if !v.ServiceNameMatch {
		diffs = append(diffs, fmt.Sprintf("service_name: esperado '%s', recebido '%s'", rec.ServiceName, display(rawName)))
	}
	return invalid(v, strings.Join(diffs, "; "))
}

func invalid(v result.Validation, msg string) Verdict {
	v.ValidationError = result.StringPtr(msg)
	return Verdict{Kind: result.KindValidation, Error: msg, Validation: v}
}

// coerceInt accepts JSON integers and strings holding an integer. Fractional numbers,
// booleans and objects are rejected.
func coerceInt(r gjson.Result) (int, bool) {
	switch r.Type {
	case gjson.Number:
		f := r.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, false
		}
		if n, err := strconv.Atoi(r.Raw); err == nil {
			return n, true
		}
		return int(f), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(r.Str))
		return n, err == nil
	default:
		return 0, false
	}
}

func display(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	return r.Raw
}
