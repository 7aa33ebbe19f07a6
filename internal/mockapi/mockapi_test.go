package mockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/loykin/intentrun/internal/records"
)

var sample = []records.ExpectedRecord{
	{ServiceID: "1", ServiceName: "Consulta Limite / Vencimento do cartão / Melhor dia de compra", Intent: "Quanto tem disponível para usar"},
	{ServiceID: "2", ServiceName: "Segunda via de boleto de acordo", Intent: "segunda via boleto de acordo"},
	{ServiceID: "9", ServiceName: "Duplicate", Intent: "quanto tem disponivel para usar"},
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/intent", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "quanto tem disponivel", Normalize("  Quanto  tem DISPONÍVEL "))
	assert.Equal(t, "acao", Normalize("Ação"))
	assert.Equal(t, "", Normalize("   "))
}

func TestHealth(t *testing.T) {
	s := New(sample, Options{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClassifyKnownIntent(t *testing.T) {
	s := New(sample, Options{})
	assert.Equal(t, 2, s.Len())

	w := post(t, s.Handler(), `{"intent":"QUANTO tem disponivel para usar"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.Bytes()
	assert.True(t, gjson.GetBytes(body, "success").Bool())
	id := gjson.GetBytes(body, "data.service_id")
	assert.Equal(t, gjson.Number, id.Type)
	assert.Equal(t, int64(1), id.Int())
	assert.Equal(t, sample[0].ServiceName, gjson.GetBytes(body, "data.service_name").String())
}

func TestClassifyUnknownIntent(t *testing.T) {
	s := New(sample, Options{})
	w := post(t, s.Handler(), `{"intent":"something else"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gjson.GetBytes(w.Body.Bytes(), "success").Bool())
	assert.Equal(t, ErrNotFound, gjson.GetBytes(w.Body.Bytes(), "error").String())
}

func TestClassifyBadRequest(t *testing.T) {
	s := New(sample, Options{})
	assert.Equal(t, http.StatusBadRequest, post(t, s.Handler(), `{"intent":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, s.Handler(), `not json`).Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := New(sample, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
