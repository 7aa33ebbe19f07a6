// Package intentrun replays sample intents against a classification API, checks the service
// each one is routed to and reports the outcome.
package intentrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/intentrun/internal/common"
	"github.com/loykin/intentrun/internal/constants"
	"github.com/loykin/intentrun/internal/httpc"
	"github.com/loykin/intentrun/internal/probe"
	"github.com/loykin/intentrun/internal/records"
	"github.com/loykin/intentrun/internal/report"
	"github.com/loykin/intentrun/internal/result"
	"github.com/loykin/intentrun/internal/runner"
	"github.com/loykin/intentrun/internal/store"
	"github.com/loykin/intentrun/internal/util"
)

// Re-export commonly used types for public API

// ExpectedRecord is one sample row of the intents file.
type ExpectedRecord = records.ExpectedRecord

// Outcome is the recorded result of one classification request.
type Outcome = result.Outcome

// ErrorKind tags why an outcome failed.
type ErrorKind = result.ErrorKind

// Stats are the run counters.
type Stats = report.Stats

// Report is the JSON document written after a run.
type Report = report.Report

// ClientOptions configures the HTTP clients used by the harness.
type ClientOptions = httpc.Httpc

// StoreConfig selects the optional run history database.
type StoreConfig = store.Config

// Store is the run history database.
type Store = store.Store

// StoredRun is one row of the run history.
type StoredRun = store.Run

const (
	DriverSQLite     = store.DriverSQLite
	DriverPostgresql = store.DriverPostgresql
)

// Errors that abort a run before any classification request is sent.
var (
	ErrFileNotFound      = records.ErrFileNotFound
	ErrParse             = records.ErrParse
	ErrHealthCheckFailed = probe.ErrHealthCheckFailed
)

// OpenStore opens the run history database and creates its tables.
func OpenStore(ctx context.Context, cfg StoreConfig) (*Store, error) { return store.Open(ctx, cfg) }

// ReadRecords reads an intents file.
func ReadRecords(path string) ([]ExpectedRecord, error) { return records.ReadFile(path) }

// Harness runs one pass over an intents file. Zero values fall back to the defaults.
type Harness struct {
	BaseURL    string
	IntentPath string
	HealthPath string
	CSVFile    string
	ReportDir  string

	// Delay is the pause between consecutive requests. Zero uses the default; a negative
	// value disables it.
	Delay          time.Duration
	RequestTimeout time.Duration
	HealthTimeout  time.Duration
	// Limit replays only the first Limit records when positive.
	Limit int

	Client *ClientOptions
	// Out receives the live log and summary. Nil discards them.
	Out io.Writer
	// StoreConfig, when set, saves the run in the history database.
	StoreConfig *StoreConfig

	// now is overridable in tests
	now func() time.Time
}

// Result is what a run produced.
type Result struct {
	RunID      string
	Stats      Stats
	Outcomes   []Outcome
	ReportPath string
	Stored     bool
}

func (h *Harness) defaults() {
	h.BaseURL = util.TrimWithDefault(h.BaseURL, constants.DefaultBaseURL)
	h.IntentPath = util.TrimWithDefault(h.IntentPath, constants.DefaultIntentPath)
	h.HealthPath = util.TrimWithDefault(h.HealthPath, constants.DefaultHealthPath)
	h.CSVFile = util.TrimWithDefault(h.CSVFile, constants.DefaultCSVFile)
	h.ReportDir = util.TrimWithDefault(h.ReportDir, constants.DefaultReportDir)
	if h.Delay == 0 {
		h.Delay = constants.DefaultRequestDelay
	}
	if h.RequestTimeout <= 0 {
		h.RequestTimeout = constants.DefaultRequestTimeout
	}
	if h.HealthTimeout <= 0 {
		h.HealthTimeout = constants.DefaultHealthTimeout
	}
	if h.Client == nil {
		h.Client = &ClientOptions{}
	}
	if h.Out == nil {
		h.Out = io.Discard
	}
	if h.now == nil {
		h.now = time.Now
	}
}

// IntentURL returns the classification endpoint.
func (h Harness) IntentURL() string {
	h.defaults()
	return util.JoinURL(h.BaseURL, h.IntentPath)
}

// HealthURL returns the health endpoint.
func (h Harness) HealthURL() string {
	h.defaults()
	return util.JoinURL(h.BaseURL, h.HealthPath)
}

// Run probes the service, replays every record in file order and writes the report.
// Errors from the probe or the intents file abort the run before any request is sent.
// Cancelling ctx stops the loop between records; the processed part is still reported
// and the context error is returned with the result.
func (h *Harness) Run(ctx context.Context) (*Result, error) {
	h.defaults()
	runID := uuid.NewString()
	logger := common.GetLogger().WithComponent("harness").WithRun(runID)
	healthURL := util.JoinURL(h.BaseURL, h.HealthPath)
	intentURL := util.JoinURL(h.BaseURL, h.IntentPath)
	w := h.Out

	if err := probe.Check(ctx, h.Client, healthURL, h.HealthTimeout); err != nil {
		logger.Error("service is not reachable", "url", healthURL, "error", err)
		return nil, err
	}
	_, _ = fmt.Fprintln(w, "API is up and reachable")
	_, _ = fmt.Fprintln(w)

	recs, err := records.ReadFile(h.CSVFile)
	if err != nil {
		logger.Error("failed to read intents", "file", h.CSVFile, "error", err)
		return nil, err
	}
	if h.Limit > 0 && len(recs) > h.Limit {
		recs = recs[:h.Limit]
	}

	_, _ = fmt.Fprintln(w, "Starting intent tests...")
	_, _ = fmt.Fprintf(w, "API URL: %s\n", intentURL)
	_, _ = fmt.Fprintf(w, "CSV file: %s\n", h.CSVFile)
	_, _ = fmt.Fprintln(w, "------------------------------------------------------------")
	_, _ = fmt.Fprintf(w, "Total intents found: %d\n", len(recs))
	_, _ = fmt.Fprintln(w)

	started := h.now()
	logger.Info("run started", "records", len(recs), "url", intentURL)

	r := runner.New(h.Client, intentURL, h.RequestTimeout)
	agg := report.NewAggregator(w, len(recs))
	runErr := h.loop(ctx, r, agg, recs)

	_, _ = fmt.Fprintln(w)
	agg.PrintSummary()

	finished := h.now()
	res := &Result{RunID: runID, Stats: agg.Stats(), Outcomes: agg.Outcomes()}
	path, err := report.Write(h.ReportDir, report.Report{
		RunID:   runID,
		Summary: res.Stats,
		APIURL:  intentURL,
		CSVFile: h.CSVFile,
		Results: res.Outcomes,
	}, started)
	if err != nil {
		logger.Error("failed to write report", "error", err)
		return res, errors.Join(runErr, err)
	}
	res.ReportPath = path
	_, _ = fmt.Fprintf(w, "Detailed report saved to: %s\n", path)
	logger.Info("run finished", "total", res.Stats.Total, "success", res.Stats.Success,
		"report", path, "duration", finished.Sub(started))

	if h.StoreConfig != nil {
		res.Stored = h.save(ctx, logger, store.Run{
			ID:         runID,
			StartedAt:  started,
			FinishedAt: finished,
			APIURL:     intentURL,
			CSVFile:    h.CSVFile,
			ReportPath: path,
			Stats:      res.Stats,
		}, res.Outcomes)
	}
	return res, runErr
}

func (h *Harness) loop(ctx context.Context, r *runner.Runner, agg *report.Aggregator, recs []ExpectedRecord) error {
	n := len(recs)
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		agg.Begin(i+1, n, rec.Intent)
		o := r.Run(ctx, rec)
		if ctx.Err() != nil && o.StatusCode == nil && !o.Success {
			// the request was cut short by cancellation, not by the service
			return ctx.Err()
		}
		agg.Add(o)
		common.GetLogger().WithRecord(i+1, rec.ServiceID).Debug("record processed",
			"bucket", o.Bucket().String(), "duration_ms", o.DurationMS)

		if i < n-1 && h.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.Delay):
			}
		}
	}
	return nil
}

// save stores the run. A failing history database does not fail the run.
func (h *Harness) save(ctx context.Context, logger *common.Logger, run store.Run, outcomes []Outcome) bool {
	// the run context may already be cancelled; history is still worth keeping
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	st, err := store.Open(saveCtx, *h.StoreConfig)
	if err != nil {
		logger.Warn("history store unavailable, run not saved", "error", err)
		return false
	}
	defer func() { _ = st.Close() }()
	if err := st.SaveRun(saveCtx, run, outcomes); err != nil {
		logger.Warn("run not saved to history", "error", err)
		return false
	}
	return true
}
