// Package probe performs the one-shot liveness check that gates a run.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/loykin/intentrun/internal/common"
	"github.com/loykin/intentrun/internal/constants"
	"github.com/loykin/intentrun/internal/httpc"
)

// ErrHealthCheckFailed is returned when the service is unreachable or not healthy.
var ErrHealthCheckFailed = errors.New("health check failed")

// Check issues a single GET to url. Anything but a 200 response is a failure; there is no retry.
func Check(ctx context.Context, hc *httpc.Httpc, url string, timeout time.Duration) error {
	logger := common.GetLogger().WithComponent("probe").WithRequest(http.MethodGet, url)

	c := *hc
	c.Timeout = timeout
	client := c.New()

	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		logger.Debug("health probe transport error", "error", err)
		return fmt.Errorf("%w: %s unreachable: %v", ErrHealthCheckFailed, url, err)
	}
	if resp.StatusCode() != constants.DefaultHealthStatus {
		logger.Debug("health probe unexpected status", "status_code", resp.StatusCode())
		return fmt.Errorf("%w: %s returned status %d", ErrHealthCheckFailed, url, resp.StatusCode())
	}
	logger.Debug("health probe ok")
	return nil
}
