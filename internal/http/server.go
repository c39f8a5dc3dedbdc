package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"budgetdigest/internal/amqp"
	"budgetdigest/internal/core"
	"budgetdigest/internal/log"
	"budgetdigest/internal/render"
	"budgetdigest/internal/service"
)

// runRateLimit bounds manual run triggers per client IP per minute.
const runRateLimit = 10

// Runner is the slice of the pipeline service the API needs.
type Runner interface {
	Run(ctx context.Context, opts service.RunOptions) (service.RunResult, error)
	Preview(ctx context.Context, userID string) (render.Email, error)
	PromptPreview(ctx context.Context, userID string) (string, error)
	Runs(ctx context.Context, userID string, limit int) ([]core.RunLog, error)
}

// RunPublisher hands a run request to the queue instead of executing it
// inline.
type RunPublisher interface {
	PublishRunRequest(ctx context.Context, msg *amqp.RunRequestMessage) error
}

// Options carries the static API configuration.
type Options struct {
	CronSecret    string
	DefaultUserID string
}

type Server struct {
	http.Server
	runner       Runner
	publisher    RunPublisher // nil means runs execute inline
	opts         Options
	rateLimiter  *rateLimiter
	logger       *log.Logger
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, runner Runner, publisher RunPublisher, opts Options, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		runner:      runner,
		publisher:   publisher,
		opts:        opts,
		rateLimiter: newRateLimiter(runRateLimit),
		logger:      logger.WithComponent(log.ComponentHTTP),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/api/run", s.withMiddleware(s.withAuth(s.handleRun)))
	mux.HandleFunc("/api/preview", s.withMiddleware(s.withAuth(s.handlePreview)))
	mux.HandleFunc("/api/preview/prompt", s.withMiddleware(s.withAuth(s.handlePromptPreview)))
	mux.HandleFunc("/api/runs", s.withMiddleware(s.withAuth(s.handleRuns)))

	return s
}

// Shutdown stops the background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type contextKey string

const requestIDKey contextKey = "request_id"

// withMiddleware adds a request ID, security headers, rate limiting for
// POSTs, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		logger := s.logger.With(
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "rate limit exceeded")
			setSecurityHeaders(w)
			w.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
			return
		}

		setSecurityHeaders(w)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.InfoContext(ctx, "request completed",
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

// withAuth requires the cron secret as a bearer token. An unset secret
// locks the API down entirely rather than leaving it open.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !secretMatches(bearerToken(r), s.opts.CronSecret) {
			UnauthorizedError("invalid or missing bearer token").Write(w)
			return
		}
		next(w, r)
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

// generateRequestID creates a unique request ID for tracing.
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

type runRequest struct {
	UserID    string `json:"userId"`
	SkipAI    bool   `json:"skipAi"`
	SkipEmail bool   `json:"skipEmail"`
	Force     bool   `json:"force"`
}

type queuedResponse struct {
	Queued bool   `json:"queued"`
	UserID string `json:"userId"`
}

// handleRun triggers a pipeline run. With a queue configured the request
// is published and a 202 returned; without one the run executes inline
// and the full result comes back.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}

	var req runRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequestError("malformed request body").Write(w)
		return
	}
	if req.UserID == "" {
		req.UserID = s.opts.DefaultUserID
	}

	ctx := r.Context()
	if s.publisher != nil {
		msg := amqp.NewRunRequestMessage(req.UserID, req.SkipAI, req.SkipEmail, req.Force)
		if err := s.publisher.PublishRunRequest(ctx, msg); err != nil {
			s.logger.ErrorContext(ctx, "run request publish failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "queue unavailable").Write(w)
			return
		}
		NewResponse().Status(http.StatusAccepted).JSON(queuedResponse{Queued: true, UserID: req.UserID}).Write(w)
		return
	}

	result, err := s.runner.Run(ctx, service.RunOptions{
		UserID:    req.UserID,
		SkipAI:    req.SkipAI,
		SkipEmail: req.SkipEmail,
		Force:     req.Force,
	})
	status := http.StatusOK
	if err != nil || result.Status == core.RunFailed {
		s.logger.ErrorContext(ctx, "run failed", log.FieldRunID, result.RunID, log.FieldError, err)
		status = http.StatusInternalServerError
	}
	NewResponse().Status(status).JSON(result).Write(w)
}

// handlePreview renders the newsletter HTML without side effects.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}

	email, err := s.runner.Preview(r.Context(), s.userID(r))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "preview failed", log.FieldError, err)
		InternalServerError("preview failed").Write(w)
		return
	}
	NewResponse().HTML(email.HTML).Write(w)
}

type promptResponse struct {
	Prompt          string `json:"prompt"`
	EstimatedTokens int    `json:"estimatedTokens"`
}

// handlePromptPreview returns the exact prompt the AI stage would see.
func (s *Server) handlePromptPreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}

	prompt, err := s.runner.PromptPreview(r.Context(), s.userID(r))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "prompt preview failed", log.FieldError, err)
		InternalServerError("prompt preview failed").Write(w)
		return
	}
	NewResponse().JSON(promptResponse{
		Prompt:          prompt,
		EstimatedTokens: render.EstimateTokens(prompt),
	}).Write(w)
}

// handleRuns lists recent run logs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			BadRequestError("limit must be between 1 and 100").Write(w)
			return
		}
		limit = n
	}

	runs, err := s.runner.Runs(r.Context(), s.userID(r), limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "run listing failed", log.FieldError, err)
		InternalServerError("run listing failed").Write(w)
		return
	}
	if runs == nil {
		runs = []core.RunLog{}
	}
	NewResponse().JSON(runs).Write(w)
}

func (s *Server) userID(r *http.Request) string {
	if v := r.URL.Query().Get("userId"); v != "" {
		return v
	}
	return s.opts.DefaultUserID
}
