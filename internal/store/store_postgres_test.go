package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/intentrun/internal/report"
)

// waitForPostgresDSN pings the DSN until it responds or timeout elapses.
func waitForPostgresDSN(dsn string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		db, err := sql.Open("pgx", dsn)
		if err == nil {
			pingErr := db.Ping()
			_ = db.Close()
			if pingErr == nil {
				return nil
			}
			lastErr = pingErr
		} else {
			lastErr = err
		}
		time.Sleep(500 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for postgres")
	}
	return lastErr
}

// Integration test with PostgreSQL via testcontainers
func TestPostgresStore_SaveAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req := tc.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "intentrun_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		),
	}
	pg, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("skipping Postgres container test: %v", err)
		return
	}
	defer func() { _ = pg.Terminate(ctx) }()

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/intentrun_test?sslmode=disable", host, port.Port())
	if err := waitForPostgresDSN(dsn, 30*time.Second); err != nil {
		t.Fatalf("postgres not ready: %v", err)
	}

	st, err := Open(ctx, Config{Driver: DriverPostgresql, PostgresDSN: dsn, SaveResponseBody: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	now := time.Now().UTC()
	run := Run{ID: "pg-1", StartedAt: now, FinishedAt: now.Add(time.Second), APIURL: "http://x/api/intent",
		CSVFile: "intents.csv", Stats: report.Stats{Total: 3, Success: 1, Timeout: 1, ValidationFailures: 1}}
	if err := st.SaveRun(ctx, run, sampleOutcomes()); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	runs, err := st.ListRuns(ctx, 5)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "pg-1" || runs[0].Stats.Total != 3 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	outs, err := st.Outcomes(ctx, "pg-1")
	if err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	if len(outs) != 3 || !outs[0].Success || outs[1].Validation.ServiceIDMatch {
		t.Fatalf("unexpected outcomes: %+v", outs)
	}
}
