package httpc

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClient_Insecure_AllowsSelfSigned(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	// default should fail due to unknown authority
	h := &Httpc{}
	if _, err := h.New().R().Get(srv.URL); err == nil {
		t.Fatalf("expected error without insecure TLS, got nil")
	}

	h = &Httpc{TlsConfig: TLSConfig(true, "", "")}
	resp, err := h.New().R().Get(srv.URL)
	if err != nil || resp.StatusCode() != 200 {
		t.Fatalf("expected 200 with insecure, got err=%v", err)
	}
}

func TestHTTPClient_BearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(204)
	}))
	defer srv.Close()

	h := &Httpc{BearerToken: "sk-or-test"}
	resp, err := h.New().R().Get(srv.URL)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode() != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode())
	}
	if got != "Bearer sk-or-test" {
		t.Fatalf("expected bearer header, got %q", got)
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	h := &Httpc{Timeout: 50 * time.Millisecond}
	_, err := h.New().R().Get(srv.URL)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("expected net.Error timeout, got %T %v", err, err)
	}
}

func TestTLSConfig(t *testing.T) {
	if cfg := TLSConfig(false, "", ""); cfg != nil {
		t.Fatalf("expected nil config when nothing is set")
	}
	cfg := TLSConfig(false, "1.2", "tls13")
	if cfg == nil || cfg.MinVersion != tls.VersionTLS12 || cfg.MaxVersion != tls.VersionTLS13 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestHTTPClient_TLSConfigAppliedToClient(t *testing.T) {
	h := &Httpc{TlsConfig: &tls.Config{}}
	c := h.New()
	tr, _ := c.GetClient().Transport.(*http.Transport)
	if tr == nil || tr.TLSClientConfig == nil {
		t.Fatalf("expected TLSClientConfig to be set")
	}
	if tr.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Fatalf("expected default MinVersion TLS1.2, got %v", tr.TLSClientConfig.MinVersion)
	}
}
