package result

import (
	"encoding/json"

	"github.com/loykin/intentrun/internal/records"
)

// ErrorKind tags why an outcome failed. It is produced where the failure happens
// (runner or validator) instead of being guessed back from the message text.
type ErrorKind string

const (
	KindNone       ErrorKind = "none"
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindHTTPStatus ErrorKind = "http_status"
	KindBodyDecode ErrorKind = "body_decode"
	KindAPIFailure ErrorKind = "api_failure"
	KindValidation ErrorKind = "validation"
	KindUnexpected ErrorKind = "unexpected"
)

// Bucket is the summary category an outcome is counted in.
type Bucket int

const (
	BucketSuccess Bucket = iota
	BucketError
	BucketTimeout
	BucketValidation
)

func (b Bucket) String() string {
	switch b {
	case BucketSuccess:
		return "success"
	case BucketTimeout:
		return "timeout"
	case BucketValidation:
		return "validation_failure"
	default:
		return "error"
	}
}

// Bucket maps a failure kind onto its summary bucket.
func (k ErrorKind) Bucket() Bucket {
	switch k {
	case KindNone, "":
		return BucketSuccess
	case KindTimeout:
		return BucketTimeout
	case KindValidation:
		return BucketValidation
	default:
		return BucketError
	}
}

// Validation is the per-field comparison of the returned service against the expected one.
type Validation struct {
	ServiceIDMatch   bool    `json:"service_id_match"`
	ServiceNameMatch bool    `json:"service_name_match"`
	ValidationError  *string `json:"validation_error"`
}

// Outcome is the recorded result of replaying one record. It is not modified after creation.
type Outcome struct {
	ServiceID    string          `json:"service_id"`
	ServiceName  string          `json:"service_name"`
	Intent       string          `json:"intent"`
	StatusCode   *int            `json:"status_code"`
	Success      bool            `json:"success"`
	Error        *string         `json:"error"`
	Kind         ErrorKind       `json:"error_kind"`
	ResponseBody json.RawMessage `json:"response_body"`
	Validation   Validation      `json:"validation"`
	DurationMS   int64           `json:"duration_ms"`
}

// NewOutcome starts an outcome for rec with every verdict field at its failing zero value.
func NewOutcome(rec records.ExpectedRecord) Outcome {
	return Outcome{
		ServiceID:   rec.ServiceID,
		ServiceName: rec.ServiceName,
		Intent:      rec.Intent,
		Kind:        KindNone,
	}
}

// Failed returns a copy of o marked as failed with the given kind and message.
func (o Outcome) Failed(kind ErrorKind, msg string) Outcome {
	o.Success = false
	o.Kind = kind
	o.Error = &msg
	return o
}

// ErrorText returns the failure message or "" for successful outcomes.
func (o Outcome) ErrorText() string {
	if o.Error == nil {
		return ""
	}
	return *o.Error
}

// Bucket returns the summary bucket of o.
func (o Outcome) Bucket() Bucket {
	if o.Success {
		return BucketSuccess
	}
	b := o.Kind.Bucket()
	if b == BucketSuccess {
		// not successful but untagged: count it as a generic error
		return BucketError
	}
	return b
}

// StringPtr is a small helper for the optional text fields.
func StringPtr(s string) *string { return &s }

// IntPtr is a small helper for the optional status code.
func IntPtr(i int) *int { return &i }
