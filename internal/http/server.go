// Package http exposes the finny JSON API: dashboard snapshot, expense
// logging, onboarding, coach chat and operational endpoints.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"finny/internal/coach"
	"finny/internal/log"
	"finny/internal/services"
)

type Server struct {
	http.Server
	ledger        *services.LedgerService
	coach         *coach.Coach
	defaultUserID string
	logger        *log.Logger

	rateLimiter  *rateLimiter
	metrics      *metrics
	shutdownOnce sync.Once
}

// metrics holds the plain-text counters served on /metrics.
type metrics struct {
	requestsTotal   atomic.Int64
	requestErrors   atomic.Int64
	expensesLogged  atomic.Int64
	usersOnboarded  atomic.Int64
	chatRequests    atomic.Int64
	rateLimited     atomic.Int64
}

// Simple in-memory rate limiter, per client IP.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, ledger *services.LedgerService, chatCoach *coach.Coach, defaultUserID string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:        ledger,
		coach:         chatCoach,
		defaultUserID: defaultUserID,
		logger:        logger,
		rateLimiter:   newRateLimiter(),
		metrics:       &metrics{},
	}

	mux.HandleFunc("/api/user/data", s.withMiddleware(s.handleUserData))
	mux.HandleFunc("/api/log/expense", s.withMiddleware(s.handleLogExpense))
	// Legacy alias kept for clients predating the /api prefix.
	mux.HandleFunc("/log_expense", s.withMiddleware(s.handleLogExpense))
	mux.HandleFunc("/onboard", s.withMiddleware(s.handleOnboard))
	mux.HandleFunc("/chat", s.withMiddleware(s.handleChat))

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	return s
}

// Shutdown stops the server and the rate limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type requestIDKey struct{}

// withMiddleware adds security headers, rate limiting and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.requestsTotal.Add(1)

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limit mutations only; reads stay cheap.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			s.metrics.rateLimited.Add(1)
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		if rw.statusCode >= 500 {
			s.metrics.requestErrors.Add(1)
		}

		duration := time.Since(start)
		s.logger.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports store connectivity and whether a real coach upstream
// is wired. A failing store ping makes the whole service not-ready; a
// missing coach does not, chat degrades to canned replies.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Readiness check failed",
			log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready": false,
			"store": "unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ready": true,
		"store": "ok",
		"coach": s.coach.Ready(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "finny_http_requests_total %d\n", s.metrics.requestsTotal.Load())
	fmt.Fprintf(w, "finny_http_request_errors_total %d\n", s.metrics.requestErrors.Load())
	fmt.Fprintf(w, "finny_http_rate_limited_total %d\n", s.metrics.rateLimited.Load())
	fmt.Fprintf(w, "finny_expenses_logged_total %d\n", s.metrics.expensesLogged.Load())
	fmt.Fprintf(w, "finny_users_onboarded_total %d\n", s.metrics.usersOnboarded.Load())
	fmt.Fprintf(w, "finny_chat_requests_total %d\n", s.metrics.chatRequests.Load())
}
