package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/intentrun/internal/constants"
	"github.com/loykin/intentrun/internal/result"
)

// Report is the document saved after a run.
type Report struct {
	RunID     string           `json:"run_id"`
	Summary   Stats            `json:"summary"`
	APIURL    string           `json:"api_url"`
	CSVFile   string           `json:"csv_file"`
	Timestamp string           `json:"timestamp"`
	Results   []result.Outcome `json:"results"`
}

// maxNameAttempts bounds the "-n" suffixes tried when a report name is taken.
const maxNameAttempts = 1000

// FileName returns the report file name for a run started at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("%s%d.json", constants.ReportFilePrefix, t.Unix())
}

// Write stores r as pretty-printed JSON in dir. The name carries the Unix seconds of now;
// when that file already exists a "-n" counter is appended instead of overwriting it.
// It returns the written path.
func Write(dir string, r Report, now time.Time) (string, error) {
	if dir == "" {
		dir = constants.DefaultReportDir
	}
	if r.Results == nil {
		r.Results = []result.Outcome{}
	}
	if r.Timestamp == "" {
		r.Timestamp = now.Local().Format(constants.ReportTimestampFmt)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("report: create dir: %w", err)
	}

	base := strings.TrimSuffix(FileName(now), ".json")
	for i := 0; i < maxNameAttempts; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.json", base, i)
		}
		path := filepath.Join(dir, name)
		// #nosec G304 -- report directory is chosen by the operator
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("report: create %s: %w", path, err)
		}
		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("report: encode: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("report: close %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("report: no free file name for %s", base)
}
