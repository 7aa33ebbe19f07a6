package common

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestMasker_MaskString(t *testing.T) {
	m := NewMasker()
	tests := []struct {
		name   string
		input  string
		secret string
	}{
		{"bearer header", "Authorization: Bearer abc.def.ghi", "abc.def.ghi"},
		{"json api key", `{"api_key":"k-123"}`, "k-123"},
		{"openrouter key", "using sk-or-v1-0a1b2c for usage", "sk-or-v1-0a1b2c"},
		{"token query", "token=xyz987", "xyz987"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := m.MaskString(tt.input)
			if strings.Contains(out, tt.secret) {
				t.Fatalf("secret %q not masked: %s", tt.secret, out)
			}
		})
	}
}

func TestMasker_LeavesPlainTextAlone(t *testing.T) {
	m := NewMasker()
	in := "service_id: esperado 9, recebido 7"
	if out := m.MaskString(in); out != in {
		t.Fatalf("expected unchanged, got %q", out)
	}
}

func TestMasker_MaskValueByKey(t *testing.T) {
	m := NewMasker()
	if v := m.MaskValue("API_KEY", "anything"); v != MaskedValue {
		t.Fatalf("expected masked by key, got %v", v)
	}
	if v := m.MaskValue("intent", 42); v != 42 {
		t.Fatalf("non-string values without sensitive key must pass through, got %v", v)
	}
	if v := m.MaskValue("error", errors.New("bad token=abc")); strings.Contains(v.(string), "abc") {
		t.Fatalf("error text not masked: %v", v)
	}
}

func TestMasker_Disabled(t *testing.T) {
	m := NewMasker()
	m.SetEnabled(false)
	if m.IsEnabled() {
		t.Fatalf("expected disabled")
	}
	in := "Bearer secret"
	if m.MaskString(in) != in {
		t.Fatalf("disabled masker must not alter input")
	}
	a := slog.String("authorization", in)
	if got := m.ReplaceAttr(nil, a); got.Value.String() != in {
		t.Fatalf("disabled masker must not alter attrs")
	}
}
