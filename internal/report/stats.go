package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/loykin/intentrun/internal/constants"
	"github.com/loykin/intentrun/internal/result"
	"github.com/loykin/intentrun/internal/util"
)

// Stats holds the run counters. After a run Total == Success+Error+Timeout+ValidationFailures.
type Stats struct {
	Total              int `json:"total"`
	Success            int `json:"success"`
	Error              int `json:"error"`
	Timeout            int `json:"timeout"`
	ValidationFailures int `json:"validation_failures"`
}

// Count returns the counter for bucket b.
func (s Stats) Count(b result.Bucket) int {
	switch b {
	case result.BucketSuccess:
		return s.Success
	case result.BucketTimeout:
		return s.Timeout
	case result.BucketValidation:
		return s.ValidationFailures
	default:
		return s.Error
	}
}

// Percent returns the share of bucket b in Total, in percent.
func (s Stats) Percent(b result.Bucket) float64 {
	return util.Percent(s.Count(b), s.Total)
}

// Consistent reports whether the bucket counters add up to Total.
func (s Stats) Consistent() bool {
	return s.Total == s.Success+s.Error+s.Timeout+s.ValidationFailures
}

// Aggregator owns the counters and the ordered outcomes of one run and prints the live log.
// It is used from a single goroutine.
type Aggregator struct {
	w        io.Writer
	stats    Stats
	outcomes []result.Outcome
}

// NewAggregator creates an aggregator printing to w. A nil w discards output.
func NewAggregator(w io.Writer, expected int) *Aggregator {
	if w == nil {
		w = io.Discard
	}
	return &Aggregator{w: w, outcomes: make([]result.Outcome, 0, expected)}
}

// Begin prints the live line announcing record i (1-based) of n.
func (a *Aggregator) Begin(i, n int, intent string) {
	_, _ = fmt.Fprintf(a.w, "[%3d/%d] Testing: '%s'\n", i, n, intent)
}

// Add records o in arrival order, bumps exactly one counter and prints the verdict line.
func (a *Aggregator) Add(o result.Outcome) result.Bucket {
	a.outcomes = append(a.outcomes, o)
	a.stats.Total++

	b := o.Bucket()
	switch b {
	case result.BucketSuccess:
		a.stats.Success++
		_, _ = fmt.Fprintln(a.w, "    OK")
		return b
	case result.BucketTimeout:
		a.stats.Timeout++
	case result.BucketValidation:
		a.stats.ValidationFailures++
	default:
		a.stats.Error++
	}
	_, _ = fmt.Fprintf(a.w, "    FAIL: %s\n", o.ErrorText())
	return b
}

// Stats returns a copy of the counters.
func (a *Aggregator) Stats() Stats { return a.stats }

// Outcomes returns the outcomes in request order.
func (a *Aggregator) Outcomes() []result.Outcome { return a.outcomes }

// FailuresByService counts non-successful outcomes per expected service name.
func FailuresByService(outcomes []result.Outcome) map[string]int {
	m := map[string]int{}
	for _, o := range outcomes {
		if !o.Success {
			m[o.ServiceName]++
		}
	}
	return m
}

// ValidationFailures returns up to limit validation failures in request order.
func ValidationFailures(outcomes []result.Outcome, limit int) []result.Outcome {
	var out []result.Outcome
	for _, o := range outcomes {
		if len(out) >= limit {
			break
		}
		if o.Bucket() == result.BucketValidation {
			out = append(out, o)
		}
	}
	return out
}

// PrintSummary writes the final report: bucket shares, failures per service and the first
// validation failures.
func (a *Aggregator) PrintSummary() {
	s := a.stats
	line := strings.Repeat("=", 60)
	w := a.w

	_, _ = fmt.Fprintln(w, line)
	_, _ = fmt.Fprintln(w, "TEST SUMMARY")
	_, _ = fmt.Fprintln(w, line)
	_, _ = fmt.Fprintf(w, "Total intents tested: %d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Success: %d (%.1f%%)\n", s.Success, s.Percent(result.BucketSuccess))
	_, _ = fmt.Fprintf(w, "General errors: %d (%.1f%%)\n", s.Error, s.Percent(result.BucketError))
	_, _ = fmt.Fprintf(w, "Validation failures: %d (%.1f%%)\n", s.ValidationFailures, s.Percent(result.BucketValidation))
	_, _ = fmt.Fprintf(w, "Timeouts: %d (%.1f%%)\n", s.Timeout, s.Percent(result.BucketTimeout))
	_, _ = fmt.Fprintln(w)

	byService := FailuresByService(a.outcomes)
	if len(byService) > 0 {
		names := make([]string, 0, len(byService))
		for n := range byService {
			names = append(names, n)
		}
		sort.Strings(names)
		_, _ = fmt.Fprintln(w, "Failures by service:")
		for _, n := range names {
			_, _ = fmt.Fprintf(w, "   %s: %d\n", n, byService[n])
		}
	}

	vf := ValidationFailures(a.outcomes, constants.MaxValidationFailuresShown)
	if len(vf) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Validation failures:")
		for _, o := range vf {
			_, _ = fmt.Fprintf(w, "   Intent: '%s'\n", o.Intent)
			_, _ = fmt.Fprintf(w, "   Error: %s\n", o.ErrorText())
			_, _ = fmt.Fprintln(w)
		}
	}
}
