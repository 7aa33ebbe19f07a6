package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/intentrun/cmd/intentrun/config"
	"github.com/loykin/intentrun/internal/mockapi"
	"github.com/loykin/intentrun/internal/records"
)

type recordingExitHandler struct {
	code   int
	called bool
}

func (h *recordingExitHandler) Exit(code int) { h.code, h.called = code, true }

func (h *recordingExitHandler) LogFatalError(err error, msg string, keyvals ...any) { h.Exit(1) }

func TestExitHandlerReplaceable(t *testing.T) {
	prev := exitHandler
	t.Cleanup(func() { exitHandler = prev })
	rec := &recordingExitHandler{}
	exitHandler = rec
	exitHandler.LogFatalError(errors.New("boom"), "failed")
	assert.True(t, rec.called)
	assert.Equal(t, 1, rec.code)
}

func TestLoadEnvFile(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, loadEnvFile(""), "missing default .env is fine")
	require.Error(t, loadEnvFile("missing.env"))

	require.NoError(t, os.WriteFile("custom.env", []byte("INTENTRUN_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("INTENTRUN_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("INTENTRUN_TEST_DOTENV"))
	require.NoError(t, loadEnvFile("custom.env"))
	assert.Equal(t, "loaded", os.Getenv("INTENTRUN_TEST_DOTENV"))
}

func testDoc(t *testing.T, baseURL string) *config.ConfigDoc {
	t.Helper()
	dir := t.TempDir()
	csv := filepath.Join(dir, "intents.csv")
	require.NoError(t, os.WriteFile(csv, []byte("service_id;service_name;intent\n1;Billing;pay my invoice\n"), 0o600))
	return &config.ConfigDoc{
		API:     config.APIConfig{BaseURL: baseURL, IntentPath: "/api/intent", HealthPath: "/healthz"},
		Run:     config.RunConfig{CSVFile: csv},
		Report:  config.ReportConfig{Dir: dir},
		Logging: config.LoggingConfig{Level: "info"},
		Store:   config.StoreConfig{Type: "sqlite", SQLite: config.SQLiteStoreConfig{Path: filepath.Join(dir, "h.db")}},
	}
}

func TestRunThenHistory(t *testing.T) {
	srv := httptest.NewServer(mockapi.New([]records.ExpectedRecord{
		{ServiceID: "1", ServiceName: "Billing", Intent: "pay my invoice"},
	}, mockapi.Options{}).Handler())
	defer srv.Close()

	doc := testDoc(t, srv.URL)
	var out bytes.Buffer
	res, err := executeRun(context.Background(), doc, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Success)
	assert.True(t, res.Stored)
	assert.Contains(t, out.String(), "TEST SUMMARY")

	var hist bytes.Buffer
	require.NoError(t, executeHistory(context.Background(), doc, &hist, 0, ""))
	assert.Contains(t, hist.String(), res.RunID)
	assert.Contains(t, hist.String(), "100.0")

	hist.Reset()
	require.NoError(t, executeHistory(context.Background(), doc, &hist, 0, res.RunID))
	assert.True(t, strings.Contains(hist.String(), "pay my invoice"))
}

func TestHistoryRequiresStore(t *testing.T) {
	doc := testDoc(t, "http://unused")
	doc.Store.Type = ""
	err := executeHistory(context.Background(), doc, &bytes.Buffer{}, 0, "")
	assert.ErrorIs(t, err, errStoreDisabled)
}

func TestUsageCommandMissingKey(t *testing.T) {
	doc := testDoc(t, "http://unused")
	doc.Usage = config.UsageConfig{KeyEnv: "INTENTRUN_TEST_NO_SUCH_KEY"}
	err := executeUsage(context.Background(), doc, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestServeMockMissingCSV(t *testing.T) {
	doc := testDoc(t, "http://unused")
	doc.Run.CSVFile = filepath.Join(t.TempDir(), "none.csv")
	err := executeServeMock(context.Background(), doc)
	assert.ErrorIs(t, err, records.ErrFileNotFound)
}

// chdir changes the working directory for the duration of the test (testing.T.Chdir needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
