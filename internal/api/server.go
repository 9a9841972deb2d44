package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/studysync/internal/notify"
	"github.com/JakeFAU/studysync/internal/progress"
	"github.com/JakeFAU/studysync/internal/store"
)

// Core is the subset of the sync core the API needs.
type Core interface {
	User() store.User
	State() progress.State
	Hydrate(ctx context.Context, forceRefresh bool) (progress.Tree, error)
	Toggle(identifier string, level store.Level, goalIndex int, completed bool) error
	Flush(ctx context.Context) error
	Statistics(ctx context.Context) progress.Statistics
	PercentageFor(identifier string) progress.Percentage
	LevelPercentages(identifier string) []progress.LevelPercentage
	Pending() []store.Update
	TimerArmed() bool
	FlushInFlight() bool
}

// NoticeSource serves recent notices.
type NoticeSource interface {
	Recent(n int) []notify.Notice
}

// Middleware wraps handlers, e.g. metrics collection.
type Middleware func(http.Handler) http.Handler

// Options wires a Server.
type Options struct {
	Core           Core
	Notices        NoticeSource
	Metrics        http.Handler
	Instrument     Middleware
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

const defaultRequestTimeout = 15 * time.Second

// Server wires HTTP handlers to the sync core.
type Server struct {
	router   chi.Router
	core     Core
	notices  NoticeSource
	metricsH http.Handler
	logger   *zap.Logger
	progress *ProgressHandler
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		core:     opts.Core,
		notices:  opts.Notices,
		metricsH: opts.Metrics,
		logger:   logger.Named("api"),
		progress: NewProgressHandler(opts.Core, logger),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	if opts.Instrument != nil {
		r.Use(opts.Instrument)
	}
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/metrics", s.metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/me", s.me)
		r.Get("/stats", s.progress.Stats)
		r.Get("/notifications", s.notifications)
		r.Route("/progress", func(r chi.Router) {
			r.Get("/", s.progress.Overview)
			r.Post("/toggle", s.progress.Toggle)
			r.Post("/refresh", s.progress.Refresh)
			r.Post("/flush", s.progress.Flush)
			r.Get("/{identifier}", s.progress.Item)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	state := progress.StateUninitialized
	if s.core != nil {
		state = s.core.State()
	}
	if state != progress.StateReady {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": state.String()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	if s.metricsH == nil {
		writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	s.metricsH.ServeHTTP(w, r)
}

type meResponse struct {
	ID             store.UserID `json:"id"`
	Email          string       `json:"email"`
	FreeUsageCount int          `json:"free_usage_count"`
	UsageLimit     int          `json:"usage_limit"`
	IsPremium      bool         `json:"is_premium"`
	CanUseAI       bool         `json:"can_use_ai"`
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request) {
	if s.core == nil {
		writeError(w, http.StatusServiceUnavailable, "sync core unavailable")
		return
	}
	user := s.core.User()
	if user.ID == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:             user.ID,
		Email:          user.Email,
		FreeUsageCount: user.FreeUsageCount,
		UsageLimit:     user.Limit(),
		IsPremium:      user.IsPremium,
		CanUseAI:       user.CanUseAI(),
	})
}

const (
	defaultNoticeLimit = 20
	maxNoticeLimit     = 200
)

func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	if s.notices == nil {
		writeJSON(w, http.StatusOK, map[string]any{"notifications": []notify.Notice{}})
		return
	}
	limit, err := parseLimit(r, defaultNoticeLimit, maxNoticeLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": s.notices.Recent(limit)})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("dur", time.Since(start)),
				zap.String("request_id", requestID(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
