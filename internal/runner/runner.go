// Package runner sends one classification request per record and turns the reply into an outcome.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/intentrun/internal/common"
	"github.com/loykin/intentrun/internal/httpc"
	"github.com/loykin/intentrun/internal/records"
	"github.com/loykin/intentrun/internal/result"
	"github.com/loykin/intentrun/internal/validate"
)

// Messages recorded in outcomes for transport and decoding failures.
const (
	MsgTimeout    = "Timeout da requisição"
	MsgConnection = "Erro de conexão com a API"
	MsgNotJSON    = "Resposta não é um JSON válido"
	msgUnexpected = "Erro inesperado: %v"
	msgHTTPStatus = "HTTP %d: %s"
)

// IntentRequest is the payload posted for each record.
type IntentRequest struct {
	Intent string `json:"intent"`
}

// Runner posts intents to a single endpoint. It holds no per-run state.
type Runner struct {
	client *resty.Client
	url    string
	logger *common.Logger
}

// New creates a Runner posting to url with the given per-request timeout.
func New(hc *httpc.Httpc, url string, timeout time.Duration) *Runner {
	c := *hc
	c.Timeout = timeout
	return &Runner{
		client: c.New(),
		url:    url,
		logger: common.GetLogger().WithComponent("runner"),
	}
}

// URL returns the endpoint the runner posts to.
func (r *Runner) URL() string { return r.url }

// Run sends rec and classifies the attempt. It never returns an error: every failure is
// recorded in the outcome. No retry is attempted.
func (r *Runner) Run(ctx context.Context, rec records.ExpectedRecord) result.Outcome {
	out := result.NewOutcome(rec)
	start := time.Now()

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(IntentRequest{Intent: rec.Intent}).
		Post(r.url)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		kind, msg := classifyTransport(err)
		r.logger.Debug("intent request failed", "error", err, "kind", string(kind), "service_id", rec.ServiceID)
		out = out.Failed(kind, msg)
		out.DurationMS = elapsed
		return out
	}

	status := resp.StatusCode()
	body := resp.Body()
	out.StatusCode = result.IntPtr(status)
	out.DurationMS = elapsed
	r.logger.Debug("intent response received", "status_code", status, "response_size", len(body), "duration_ms", elapsed)

	if status != http.StatusOK {
		return out.Failed(result.KindHTTPStatus, fmt.Sprintf(msgHTTPStatus, status, string(body)))
	}
	if !json.Valid(body) {
		return out.Failed(result.KindBodyDecode, MsgNotJSON)
	}
	out.ResponseBody = json.RawMessage(append([]byte(nil), body...))

	v := validate.Check(rec, body)
	out.Validation = v.Validation
	if !v.OK() {
		return out.Failed(v.Kind, v.Error)
	}
	out.Success = true
	return out
}

// classifyTransport maps a transport error onto timeout, connection or unexpected.
func classifyTransport(err error) (result.ErrorKind, string) {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return result.KindTimeout, MsgTimeout
	case isConnectionError(err):
		return result.KindConnection, MsgConnection
	default:
		return result.KindUnexpected, fmt.Sprintf(msgUnexpected, err)
	}
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) ||
		errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
