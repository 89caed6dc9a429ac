// Package http serves the report API. Handlers are thin: parameters are
// parsed, the engine computes, the envelope is cached and written as JSON.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/log"
	"tally/internal/reports"
)

// ReportGenerator is the engine surface the server depends on.
type ReportGenerator interface {
	Generate(ctx context.Context, kind reports.Kind, p reports.Params) (reports.Output, error)
}

const (
	reportCacheSize = 200
	reportCacheTTL  = 5 * time.Minute
	generateTimeout = 15 * time.Second
)

type Server struct {
	http.Server

	engine      ReportGenerator
	logger      *log.StructuredLogger
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	reportCache  *cache.LRUCache[reports.Output]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, engine ReportGenerator, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		engine:       engine,
		logger:       log.NewStructuredLogger(logger.WithComponent(log.ComponentHTTP)),
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		reportCache:  cache.NewLRUCache[reports.Output](reportCacheSize, reportCacheTTL),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.reportCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("GET /api/reports", s.withMiddleware(s.handleListKinds))
	mux.HandleFunc("GET /api/reports/{kind}", s.withMiddleware(s.handleReport))

	return s
}

// InvalidateReports drops every cached envelope. Called when the ledger
// changes; per-kind tracking is not worth the bookkeeping at this cache size.
func (s *Server) InvalidateReports() {
	s.reportCache.Purge()
}

// Shutdown stops the server and its background routines once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware applies security headers, rate limiting and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), log.ContextKey(log.FieldRequestID), requestID)
		r = r.WithContext(ctx)

		s.logger.LogHTTPStart(ctx, r, clientIP)

		if detectSuspiciousRequest(r, s.metrics) {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
		if !s.rateLimiter.allow(clientIP, s.metrics) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request id for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	kinds := reports.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	writeJSON(w, http.StatusOK, map[string]any{"kinds": names})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	kindTag := r.PathValue("kind")
	kind, ok := reports.ParseKind(kindTag)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown report kind: "+kindTag)
		return
	}

	params, err := parseReportParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := reportCacheKey(kind, params)
	if out, hit := s.reportCache.Get(key); hit {
		s.logger.LogReportServed(r.Context(), string(kind), len(out.Data), true)
		writeJSON(w, http.StatusOK, out)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()

	out, err := s.engine.Generate(ctx, kind, params)
	if err != nil {
		s.logger.LogError(r.Context(), "Report generation failed", err,
			log.ComponentReports, log.OpGenerate,
			log.NewFields().WithReport(string(kind), 0, false))
		writeError(w, http.StatusInternalServerError, "report generation failed")
		return
	}

	s.reportCache.Set(key, out)
	s.logger.LogReportServed(r.Context(), string(kind), len(out.Data), false)
	writeJSON(w, http.StatusOK, out)
}
