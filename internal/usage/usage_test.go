package usage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/intentrun/internal/httpc"
)

func TestNewRequiresKey(t *testing.T) {
	_, err := New(&httpc.Httpc{}, "", "  ", 0)
	require.ErrorIs(t, err, ErrMissingKey)
}

func TestQuerySendsBearerAndParses(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"label":"sk-or-v1-abc","usage":1.234,"limit":10,"limit_remaining":8.766}}`))
	}))
	defer srv.Close()

	c, err := New(nil, srv.URL, "sk-or-v1-secret", 0)
	require.NoError(t, err)
	u, err := c.Query(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-or-v1-secret", gotAuth)
	assert.InDelta(t, 1.234, u.Usage, 1e-9)
	require.NotNil(t, u.Limit)
	assert.InDelta(t, 10.0, *u.Limit, 1e-9)
	require.NotNil(t, u.LimitRemaining)

	var buf bytes.Buffer
	u.Print(&buf)
	assert.Equal(t, "$1.23 used today.\nLimit: $10.00\nRemaining: $8.77\n", buf.String())
}

func TestQueryNullLimit(t *testing.T) {
	u, err := Parse([]byte(`{"data":{"usage":0,"limit":null}}`))
	require.NoError(t, err)
	assert.Nil(t, u.Limit)
	assert.Nil(t, u.LimitRemaining)

	var buf bytes.Buffer
	u.Print(&buf)
	assert.Equal(t, "$0.00 used today.\n", buf.String())
}

func TestQueryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"No auth credentials found"}}`))
	}))
	defer srv.Close()

	c, err := New(&httpc.Httpc{}, srv.URL, "bad", 0)
	require.NoError(t, err)
	_, err = c.Query(context.Background())
	assert.True(t, errors.Is(err, ErrBadResponse))

	_, err = Parse([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadResponse)
	_, err = Parse([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, ErrBadResponse)
}
