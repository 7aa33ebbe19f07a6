// Package mockapi serves a deterministic classification API built from an intents file.
// It answers the same routes as the real service so runs can be tried locally.
package mockapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/loykin/intentrun/internal/common"
	"github.com/loykin/intentrun/internal/constants"
	"github.com/loykin/intentrun/internal/records"
)

// ErrNotFound is the error text returned for intents the mock does not know.
const ErrNotFound = "intent not found"

// Options tune the mock behaviour.
type Options struct {
	// Latency is added before every classification reply.
	Latency time.Duration
}

type service struct {
	id   string
	name string
}

// Server maps normalized intents to their expected service.
type Server struct {
	index  map[string]service
	opts   Options
	engine *gin.Engine
	logger *common.Logger
}

// New builds a Server from recs. When an intent appears more than once the first row wins.
func New(recs []records.ExpectedRecord, opts Options) *Server {
	s := &Server{
		index:  make(map[string]service, len(recs)),
		opts:   opts,
		logger: common.GetLogger().WithComponent("mockapi"),
	}
	for _, r := range recs {
		k := Normalize(r.Intent)
		if _, dup := s.index[k]; dup {
			continue
		}
		s.index[k] = service{id: r.ServiceID, name: r.ServiceName}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET(constants.DefaultHealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.POST(constants.DefaultIntentPath, s.classify)
	s.engine = engine
	return s
}

// Len returns the number of distinct intents served.
func (s *Server) Len() int { return len(s.index) }

// Handler returns the HTTP handler of the mock.
func (s *Server) Handler() http.Handler { return s.engine.Handler() }

type intentRequest struct {
	Intent string `json:"intent"`
}

func (s *Server) classify(c *gin.Context) {
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Intent) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if s.opts.Latency > 0 {
		select {
		case <-time.After(s.opts.Latency):
		case <-c.Request.Context().Done():
			return
		}
	}
	svc, ok := s.index[Normalize(req.Intent)]
	if !ok {
		s.logger.Debug("unknown intent", "intent", req.Intent)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": ErrNotFound})
		return
	}
	var id any = svc.id
	if n, err := strconv.Atoi(svc.id); err == nil {
		id = n
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"service_id": id, "service_name": svc.name},
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = constants.DefaultMockAddr
	}
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mock classification API listening", "addr", addr, "intents", s.Len())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down mock classification API")
		return srv.Shutdown(shutdownCtx)
	}
}

// Normalize lowercases s, strips accents and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
