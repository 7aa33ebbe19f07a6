// Package usage reads the spend of an OpenRouter API key.
package usage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/loykin/intentrun/internal/common"
	"github.com/loykin/intentrun/internal/constants"
	"github.com/loykin/intentrun/internal/httpc"
)

var (
	// ErrMissingKey is returned when no API key was configured.
	ErrMissingKey = errors.New("usage: api key is not set")
	// ErrBadResponse is returned for non-200 replies or bodies without data.usage.
	ErrBadResponse = errors.New("usage: unexpected response")
)

// Usage is the subset of the key endpoint reply that gets reported.
type Usage struct {
	Label          string
	Usage          float64
	Limit          *float64
	LimitRemaining *float64
}

// Client queries the key endpoint with a bearer key.
type Client struct {
	client *resty.Client
	url    string
	logger *common.Logger
}

// New creates a Client. An empty url uses the OpenRouter default.
func New(hc *httpc.Httpc, url, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingKey
	}
	if strings.TrimSpace(url) == "" {
		url = constants.DefaultUsageURL
	}
	if timeout <= 0 {
		timeout = constants.DefaultUsageTimeout
	}
	c := httpc.Httpc{}
	if hc != nil {
		c = *hc
	}
	c.BearerToken = apiKey
	c.Timeout = timeout
	return &Client{
		client: c.New(),
		url:    url,
		logger: common.GetLogger().WithComponent("usage"),
	}, nil
}

// Query fetches the key information.
func (c *Client) Query(ctx context.Context) (Usage, error) {
	resp, err := c.client.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return Usage{}, fmt.Errorf("usage: request %s: %w", c.url, err)
	}
	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		c.logger.Debug("usage endpoint returned error", "status_code", resp.StatusCode(), "body", string(body))
		return Usage{}, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode())
	}
	return Parse(body)
}

// Parse extracts the usage fields from a key endpoint body.
func Parse(body []byte) (Usage, error) {
	if !gjson.ValidBytes(body) {
		return Usage{}, fmt.Errorf("%w: body is not JSON", ErrBadResponse)
	}
	data := gjson.GetBytes(body, "data")
	used := data.Get("usage")
	if used.Type != gjson.Number {
		return Usage{}, fmt.Errorf("%w: data.usage missing", ErrBadResponse)
	}
	u := Usage{Label: data.Get("label").String(), Usage: used.Float()}
	if l := data.Get("limit"); l.Type == gjson.Number {
		v := l.Float()
		u.Limit = &v
	}
	if r := data.Get("limit_remaining"); r.Type == gjson.Number {
		v := r.Float()
		u.LimitRemaining = &v
	}
	return u, nil
}

// Print writes the usage line and, when the key has a limit, the limit lines.
func (u Usage) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "$%.2f used today.\n", u.Usage)
	if u.Limit != nil {
		_, _ = fmt.Fprintf(w, "Limit: $%.2f\n", *u.Limit)
	}
	if u.LimitRemaining != nil {
		_, _ = fmt.Fprintf(w, "Remaining: $%.2f\n", *u.LimitRemaining)
	}
}
