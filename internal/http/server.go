// Package http exposes the expense API over JSON. Routing stays on the
// standard mux; cross-cutting concerns (request IDs, security headers,
// rate limiting, access logs) live in one middleware wrapper.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"kharcha/internal/cache"
	"kharcha/internal/log"
	"kharcha/internal/services"
)

// Server wraps http.Server with the expense service and its supporting
// pieces.
type Server struct {
	http.Server

	expenses    *services.ExpenseService
	categories  *cache.TTL[[]string]
	rateLimiter *rateLimiter
	logger      *log.Logger
}

// NewServer configures routes and middleware, returning a server ready
// for ListenAndServe.
func NewServer(addr string, expenses *services.ExpenseService, ratePerMinute int, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		expenses:    expenses,
		categories:  cache.New[[]string](5 * time.Minute),
		rateLimiter: newRateLimiter(ratePerMinute),
		logger:      logger.WithComponent(log.ComponentHTTP),
	}

	mux.HandleFunc("/api/expenses", s.withMiddleware(s.handleExpenses))
	mux.HandleFunc("/api/expenses/summary", s.withMiddleware(s.handleSummary))
	mux.HandleFunc("/api/categories", s.withMiddleware(s.handleCategories))
	mux.HandleFunc("/api/health", s.withMiddleware(s.handleHealth))

	return s
}

// Shutdown stops the limiter's cleanup goroutine and drains in-flight
// requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.stop()
	return s.Server.Shutdown(ctx)
}

// withMiddleware adds request IDs, access logging, security headers and
// POST rate limiting around a handler.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		reqLogger := s.logger.With(log.FieldRequestID, requestID)

		// Writes are the only thing worth throttling; reads are cheap.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			reqLogger.Warn("rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests,
				errorResponse{Error: "Rate limit exceeded. Please try again later."})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		reqLogger.Info("request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// responseWriter captures the status code for access logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
