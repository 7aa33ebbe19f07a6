package httpc

import (
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

// Httpc describes how intentrun builds its HTTP clients.
type Httpc struct {
	TlsConfig *tls.Config
	// Timeout bounds a whole request, including reading the body. Zero means no limit.
	Timeout time.Duration
	// BearerToken, when set, is attached as "Authorization: Bearer <token>" through an
	// oauth2 static token source.
	BearerToken string
	UserAgent   string
}

// New returns a resty.Client configured according to the receiver.
// Defaults: MinVersion TLS1.2 when a TLS config is given without MinVersion.
func (h *Httpc) New() *resty.Client {
	cfg := h.TlsConfig
	if cfg != nil && cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}

	var c *resty.Client
	if tok := strings.TrimSpace(h.BearerToken); tok != "" {
		// The oauth2 transport wraps our own base transport, so TLS has to be set there.
		base := http.DefaultTransport.(*http.Transport).Clone()
		if cfg != nil {
			base.TLSClientConfig = cfg
		}
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"})
		c = resty.NewWithClient(&http.Client{Transport: &oauth2.Transport{Source: src, Base: base}})
	} else {
		c = resty.New()
		if cfg != nil {
			c.SetTLSClientConfig(cfg)
		}
	}
	if h.Timeout > 0 {
		c.SetTimeout(h.Timeout)
	}
	if ua := strings.TrimSpace(h.UserAgent); ua != "" {
		c.SetHeader("User-Agent", ua)
	}
	return c
}

// ParseTLSVersion converts a TLS version string to the corresponding crypto/tls constant.
// Supports "1.2", "12", "tls1.2", "tls12" and the same forms for 1.0, 1.1 and 1.3.
// Returns 0 if the version string is not recognized.
func ParseTLSVersion(version string) uint16 {
	switch strings.ToLower(strings.TrimSpace(version)) {
	case "1.0", "10", "tls1.0", "tls10":
		return tls.VersionTLS10
	case "1.1", "11", "tls1.1", "tls11":
		return tls.VersionTLS11
	case "1.2", "12", "tls1.2", "tls12":
		return tls.VersionTLS12
	case "1.3", "13", "tls1.3", "tls13":
		return tls.VersionTLS13
	default:
		return 0
	}
}

// TLSConfig builds a tls.Config from client options. It returns nil when nothing is set so
// resty keeps its default transport.
func TLSConfig(insecure bool, minVersion, maxVersion string) *tls.Config {
	minV := ParseTLSVersion(minVersion)
	maxV := ParseTLSVersion(maxVersion)
	if !insecure && minV == 0 && maxV == 0 {
		return nil
	}
	cfg := &tls.Config{MinVersion: minV, MaxVersion: maxV}
	if insecure {
		// #nosec G402 -- self-signed dev servers, only when explicitly configured
		cfg.InsecureSkipVerify = true
	}
	return cfg
}
