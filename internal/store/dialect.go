package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/loykin/intentrun/internal/constants"
)

const (
	DriverSQLite     = "sqlite"
	DriverPostgresql = "postgresql"
)

// dialect isolates the SQL differences between the supported databases.
type dialect interface {
	name() string
	open(dsn string) (*sql.DB, error)
	placeholder(n int) string
	ensureStatements(th TableNames) []string
}

const runsColumns = `run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			api_url TEXT NOT NULL,
			csv_file TEXT NOT NULL,
			report_path TEXT NOT NULL DEFAULT '',
			total INTEGER NOT NULL,
			success INTEGER NOT NULL,
			error_count INTEGER NOT NULL,
			timeout_count INTEGER NOT NULL,
			validation_failures INTEGER NOT NULL`

// outcomesDDL takes the boolean column type, which differs per database.
func outcomesDDL(th TableNames, boolType, bigintType string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
			run_id TEXT NOT NULL REFERENCES %[2]s(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			service_id TEXT NOT NULL,
			service_name TEXT NOT NULL,
			intent TEXT NOT NULL,
			status_code INTEGER NULL,
			success %[3]s NOT NULL,
			error TEXT NULL,
			error_kind TEXT NOT NULL,
			response_body TEXT NULL,
			service_id_match %[3]s NOT NULL,
			service_name_match %[3]s NOT NULL,
			validation_error TEXT NULL,
			duration_ms %[4]s NOT NULL,
			PRIMARY KEY(run_id, seq)
		)`, th.Outcomes, th.Runs, boolType, bigintType)
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return DriverSQLite }

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	db.SetMaxOpenConns(constants.DefaultSQLiteMaxOpenConns)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func (sqliteDialect) ensureStatements(th TableNames) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", th.Runs, runsColumns),
		outcomesDDL(th, "INTEGER", "INTEGER"),
	}
}

type postgresDialect struct{}

func (postgresDialect) name() string { return DriverPostgresql }

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func (postgresDialect) ensureStatements(th TableNames) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", th.Runs, runsColumns),
		outcomesDDL(th, "BOOLEAN", "BIGINT"),
	}
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite3", "":
		return sqliteDialect{}, nil
	case DriverPostgresql, "postgres", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

// placeholders returns "p1, p2, ..., pn" for the dialect.
func placeholders(d dialect, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}
