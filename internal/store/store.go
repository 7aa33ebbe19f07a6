// Package store keeps a history of intent runs and their outcomes in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/loykin/intentrun/internal/common"
	"github.com/loykin/intentrun/internal/constants"
	"github.com/loykin/intentrun/internal/report"
	"github.com/loykin/intentrun/internal/result"
	"github.com/loykin/intentrun/internal/retry"
)

// TableNames represents database table names
type TableNames struct {
	Runs     string
	Outcomes string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// DeriveTableNames applies the prefix convention: "<prefix>_runs" and "<prefix>_outcomes".
// Invalid identifiers fall back to the defaults.
func DeriveTableNames(prefix string) TableNames {
	th := TableNames{Runs: constants.DefaultRunsTable, Outcomes: constants.DefaultOutcomesTable}
	p := strings.TrimSpace(prefix)
	if p == "" {
		return th
	}
	if runs := p + constants.RunsSuffix; identRe.MatchString(runs) {
		th.Runs = runs
	}
	if outs := p + constants.OutcomesSuffix; identRe.MatchString(outs) {
		th.Outcomes = outs
	}
	return th
}

// Config selects and configures the backing database.
type Config struct {
	Driver string
	// SQLitePath is the database file for the sqlite driver. ":memory:" is accepted.
	SQLitePath string
	// PostgresDSN is a pgx connection string for the postgresql driver.
	PostgresDSN string
	TablePrefix string
	// SaveResponseBody keeps raw API responses in the outcomes table.
	SaveResponseBody bool
}

// DSN returns the connection string for the configured driver.
func (c Config) DSN() string {
	d, _ := dialectFor(c.Driver)
	if d != nil && d.name() == DriverPostgresql {
		return strings.TrimSpace(c.PostgresDSN)
	}
	path := strings.TrimSpace(c.SQLitePath)
	if path == "" {
		path = constants.DefaultSQLitePath
	}
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
}

// Run is one row of the runs table.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	APIURL     string
	CSVFile    string
	ReportPath string
	Stats      report.Stats
}

// Store persists runs. It is safe for use by one goroutine at a time.
type Store struct {
	db       *sql.DB
	dialect  dialect
	tables   TableNames
	saveBody bool
	retry    *retry.Config
	logger   *common.Logger
}

// Open connects to the configured database and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("store: empty DSN for driver %s", d.name())
	}
	db, err := d.open(dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:       db,
		dialect:  d,
		tables:   DeriveTableNames(cfg.TablePrefix),
		saveBody: cfg.SaveResponseBody,
		retry:    retry.DefaultRetryConfig(),
		logger:   common.GetLogger().WithStore(d.name()),
	}
	if err := s.Ensure(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug("history store ready", "runs_table", s.tables.Runs, "outcomes_table", s.tables.Outcomes)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the active driver name.
func (s *Store) Driver() string { return s.dialect.name() }

// Tables returns the table names in use.
func (s *Store) Tables() TableNames { return s.tables }

// Ensure creates the tables if they do not exist.
func (s *Store) Ensure(ctx context.Context) error {
	for i, q := range s.dialect.ensureStatements(s.tables) {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create table %d in schema setup: %w", i+1, err)
		}
	}
	return nil
}

// SaveRun stores the run and all its outcomes in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, outcomes []result.Outcome) error {
	err := retry.WithRetry(ctx, s.retry, func() error {
		return s.saveRunTx(ctx, run, outcomes)
	})
	if err != nil {
		s.logger.Error("failed to save run", "error", err, "run_id", run.ID)
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	s.logger.Info("run saved", "run_id", run.ID, "outcomes", len(outcomes))
	return nil
}

func (s *Store) saveRunTx(ctx context.Context, run Run, outcomes []result.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// #nosec G201 -- table names are validated identifiers; values are bind parameters
	runQ := fmt.Sprintf(`INSERT INTO %s (run_id, started_at, finished_at, api_url, csv_file, report_path,
		total, success, error_count, timeout_count, validation_failures) VALUES (%s)`,
		s.tables.Runs, placeholders(s.dialect, 11))
	st := run.Stats
	if _, err := tx.ExecContext(ctx, runQ, run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.APIURL, run.CSVFile, run.ReportPath,
		st.Total, st.Success, st.Error, st.Timeout, st.ValidationFailures); err != nil {
		return err
	}

	// #nosec G201 -- table names are validated identifiers; values are bind parameters
	outQ := fmt.Sprintf(`INSERT INTO %s (run_id, seq, service_id, service_name, intent, status_code, success,
		error, error_kind, response_body, service_id_match, service_name_match, validation_error, duration_ms)
		VALUES (%s)`, s.tables.Outcomes, placeholders(s.dialect, 14))
	stmt, err := tx.PrepareContext(ctx, outQ)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, o := range outcomes {
		var body sql.NullString
		if s.saveBody && len(o.ResponseBody) > 0 {
			body = sql.NullString{String: string(o.ResponseBody), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i+1, o.ServiceID, o.ServiceName, o.Intent,
			nullInt(o.StatusCode), o.Success, nullString(o.Error), string(o.Kind), body,
			o.Validation.ServiceIDMatch, o.Validation.ServiceNameMatch,
			nullString(o.Validation.ValidationError), o.DurationMS); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs first. limit <= 0 uses the default.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	// #nosec G201 -- validated table name only
	q := fmt.Sprintf(`SELECT run_id, started_at, finished_at, api_url, csv_file, report_path,
		total, success, error_count, timeout_count, validation_failures
		FROM %s ORDER BY started_at DESC, run_id DESC LIMIT %s`, s.tables.Runs, s.dialect.placeholder(1))

	var runs []Run
	err := retry.WithRetry(ctx, s.retry, func() error {
		runs = nil
		rows, err := s.db.QueryContext(ctx, q, limit)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var r Run
			var started, finished string
			if err := rows.Scan(&r.ID, &started, &finished, &r.APIURL, &r.CSVFile, &r.ReportPath,
				&r.Stats.Total, &r.Stats.Success, &r.Stats.Error, &r.Stats.Timeout, &r.Stats.ValidationFailures); err != nil {
				return fmt.Errorf("failed to scan run: %w", err)
			}
			r.StartedAt = parseTime(started)
			r.FinishedAt = parseTime(finished)
			runs = append(runs, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Outcomes returns the outcomes of a run in request order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]result.Outcome, error) {
	// #nosec G201 -- validated table name only
	q := fmt.Sprintf(`SELECT service_id, service_name, intent, status_code, success, error, error_kind,
		response_body, service_id_match, service_name_match, validation_error, duration_ms
		FROM %s WHERE run_id = %s ORDER BY seq ASC`, s.tables.Outcomes, s.dialect.placeholder(1))

	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []result.Outcome
	for rows.Next() {
		var o result.Outcome
		var status sql.NullInt64
		var errText, body, vErr sql.NullString
		var kind string
		if err := rows.Scan(&o.ServiceID, &o.ServiceName, &o.Intent, &status, &o.Success, &errText, &kind,
			&body, &o.Validation.ServiceIDMatch, &o.Validation.ServiceNameMatch, &vErr, &o.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Kind = result.ErrorKind(kind)
		if status.Valid {
			o.StatusCode = result.IntPtr(int(status.Int64))
		}
		if errText.Valid {
			o.Error = result.StringPtr(errText.String)
		}
		if body.Valid {
			o.ResponseBody = []byte(body.String)
		}
		if vErr.Valid {
			o.Validation.ValidationError = result.StringPtr(vErr.String)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// timeLayout is fixed-width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
