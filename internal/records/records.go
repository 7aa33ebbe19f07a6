// Package records reads the semicolon-delimited intent samples replayed against the
// classification API.
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrFileNotFound is returned when the input file does not exist.
	ErrFileNotFound = errors.New("records: file not found")
	// ErrParse is returned when the file is not valid delimited text or lacks a required column.
	ErrParse = errors.New("records: parse error")
)

const (
	ColumnServiceID   = "service_id"
	ColumnServiceName = "service_name"
	ColumnIntent      = "intent"

	Delimiter = ';'
)

// ExpectedRecord is one sample row: the intent text and the service it should classify to.
type ExpectedRecord struct {
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	Intent      string `json:"intent"`
}

// ReadFile opens path and returns its records in file order.
func ReadFile(path string) ([]ExpectedRecord, error) {
	clean := filepath.Clean(path)
	// #nosec G304 -- the sample file path is chosen by the operator
	f, err := os.Open(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, clean)
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Read parses records from r. Rows with a blank intent are skipped.
func Read(r io.Reader) ([]ExpectedRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file, missing header", ErrParse)
		}
		return nil, fmt.Errorf("%w: header: %v", ErrParse, err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var out []ExpectedRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		intent := strings.TrimSpace(field(row, idx[ColumnIntent]))
		if intent == "" {
			continue
		}
		out = append(out, ExpectedRecord{
			ServiceID:   strings.TrimSpace(field(row, idx[ColumnServiceID])),
			ServiceName: field(row, idx[ColumnServiceName]),
			Intent:      intent,
		})
	}
	return out, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		idx[name] = i
	}
	var missing []string
	for _, c := range []string{ColumnServiceID, ColumnServiceName, ColumnIntent} {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrParse, strings.Join(missing, ", "))
	}
	return idx, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
