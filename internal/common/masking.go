package common

import (
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
)

// MaskedValue replaces any value considered sensitive.
const MaskedValue = "***MASKED***"

// SensitivePattern detects sensitive information either by attribute key or inside a value.
type SensitivePattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Keys        []string
}

// DefaultSensitivePatterns covers the credentials intentrun handles: bearer keys for the
// usage endpoint and whatever Authorization headers end up in request logs.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "api_key",
		Regex:       regexp.MustCompile(`(?i)(api[_-]?key|apikey)(["'\s]*[:=]["'\s]*)([^"',}\]\s]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"api_key", "apikey", "api-key", "key"},
	},
	{
		Name:        "token",
		Regex:       regexp.MustCompile(`(?i)(access[_-]?token|auth[_-]?token|token)(["'\s]*[:=]["'\s]*)([^"',}\]\s]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"token", "access_token", "auth_token"},
	},
	{
		Name:        "authorization",
		Regex:       regexp.MustCompile(`(?i)(authorization)(["'\s]*[:=]["'\s]*)(bearer\s+|basic\s+)?([^"',}\]\s]+)`),
		Replacement: "${1}${2}${3}" + MaskedValue,
		Keys:        []string{"authorization"},
	},
	{
		Name:        "bearer_token",
		Regex:       regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "Bearer " + MaskedValue,
	},
	{
		Name:        "openrouter_key",
		Regex:       regexp.MustCompile(`sk-or-[A-Za-z0-9\-]+`),
		Replacement: MaskedValue,
	},
}

// Masker hides sensitive information in log output
type Masker struct {
	patterns []SensitivePattern
	enabled  atomic.Bool
}

// NewMasker creates a new masker with default patterns
func NewMasker() *Masker {
	return NewMaskerWithPatterns(DefaultSensitivePatterns)
}

// NewMaskerWithPatterns creates a new masker with custom patterns
func NewMaskerWithPatterns(patterns []SensitivePattern) *Masker {
	m := &Masker{patterns: patterns}
	m.enabled.Store(true)
	return m
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool {
	return m.enabled.Load()
}

// MaskString masks sensitive substrings of input
func (m *Masker) MaskString(input string) string {
	if !m.IsEnabled() {
		return input
	}
	out := input
	for _, p := range m.patterns {
		if p.Regex != nil {
			out = p.Regex.ReplaceAllString(out, p.Replacement)
		}
	}
	return out
}

// IsSensitiveKey reports whether an attribute key names a secret.
func (m *Masker) IsSensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, p := range m.patterns {
		for _, sk := range p.Keys {
			if k == sk {
				return true
			}
		}
	}
	return false
}

// MaskValue masks a value based on its key first, then on its content.
func (m *Masker) MaskValue(key string, value any) any {
	if !m.IsEnabled() {
		return value
	}
	if m.IsSensitiveKey(key) {
		return MaskedValue
	}
	switch v := value.(type) {
	case string:
		return m.MaskString(v)
	case error:
		return m.MaskString(v.Error())
	default:
		return value
	}
}

// ReplaceAttr is an slog.HandlerOptions.ReplaceAttr hook applying MaskValue.
func (m *Masker) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if !m.IsEnabled() {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindString, slog.KindAny:
		masked := m.MaskValue(a.Key, a.Value.Any())
		if s, ok := masked.(string); ok {
			return slog.String(a.Key, s)
		}
	}
	return a
}
