package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coursekit/meetingd/internal/instrumentation"
	"github.com/coursekit/meetingd/internal/logging"
	"github.com/coursekit/meetingd/internal/meeting"
	"github.com/coursekit/meetingd/internal/token"
)

// DefaultAddr is the default bind address for the API server.
const DefaultAddr = ":8080"

// TokenManager is the slice of the credential lifecycle manager the HTTP
// layer needs. Satisfied by token.Manager.
type TokenManager interface {
	AuthURL() string
	Exchange(ctx context.Context, code string) (*token.Record, error)
	Refresh(ctx context.Context) (*token.Record, error)
	Status(ctx context.Context) token.StatusReport
}

// MeetingService is the meeting orchestration surface. Satisfied by
// meeting.Service.
type MeetingService interface {
	Create(ctx context.Context, input meeting.CreateInput) (*meeting.Meeting, error)
	List(ctx context.Context, courseID string) ([]*meeting.Meeting, error)
	Get(ctx context.Context, id string) (*meeting.Meeting, error)
	Update(ctx context.Context, id string, in meeting.UpdateInput) (*meeting.Meeting, error)
	Delete(ctx context.Context, id string) error
}

// Config holds the API server dependencies.
type Config struct {
	// Addr is the bind address (e.g. ":8080").
	Addr string

	// Tokens manages the OAuth credential lifecycle.
	Tokens TokenManager

	// Meetings serves the meeting CRUD operations.
	Meetings MeetingService

	// TokenStore backs the credential admin endpoints.
	TokenStore token.Store

	// Metrics records per-request metrics when set.
	Metrics *instrumentation.Metrics

	// Logger is the request logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the meetingd API server.
type Server struct {
	addr       string
	tokens     TokenManager
	meetings   MeetingService
	tokenStore token.Store
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
	health     *HealthChecker
	httpServer *http.Server
}

// New creates the API server and registers all routes.
func New(cfg Config) *Server {
	s := &Server{
		addr:       cfg.Addr,
		tokens:     cfg.Tokens,
		meetings:   cfg.Meetings,
		tokenStore: cfg.TokenStore,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		health:     NewHealthChecker(),
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Health returns the server's health checker so the lifecycle code can flip
// readiness during startup and shutdown.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/oauth2callback", s.handleOAuthCallback)
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)

	mux.HandleFunc("POST /api/meetings", s.handleMeetingCreate)
	mux.HandleFunc("GET /api/meetings", s.handleMeetingList)
	mux.HandleFunc("GET /api/meetings/{id}", s.handleMeetingGet)
	mux.HandleFunc("PATCH /api/meetings/{id}", s.handleMeetingUpdate)
	mux.HandleFunc("DELETE /api/meetings/{id}", s.handleMeetingDelete)

	mux.HandleFunc("GET /api/tokens", s.handleTokenList)
	mux.HandleFunc("POST /api/tokens/refresh", s.handleTokenRefresh)
	mux.HandleFunc("DELETE /api/tokens", s.handleTokenDeleteAll)
	mux.HandleFunc("DELETE /api/tokens/{id}", s.handleTokenDelete)

	s.health.RegisterHealthEndpoints(mux)

	return s.instrument(mux)
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("starting API server", slog.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	if s.httpServer != nil {
		s.logger.Info("shutting down API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records per-request metrics and logs. The route pattern, not
// the raw path, is used as the metric label to keep cardinality bounded.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Context(), r.Method, pattern, rec.status, duration)
		}
		s.logger.Debug("request handled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			logging.Duration(duration))
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Missing any    `json:"missing,omitempty"`
	AuthURL string `json:"authUrl,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes. Authentication
// failures carry the authorization URL so the caller can restart consent.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *meeting.ValidationError
	var merr *token.MalformedCredentialError
	var xerr *token.ExchangeError

	switch {
	case errors.Is(err, token.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:   "not authenticated",
			AuthURL: s.tokens.AuthURL(),
		})
	case errors.Is(err, meeting.ErrNotFound), errors.Is(err, token.ErrNoToken):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, meeting.ErrDuplicate):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "invalid request",
			Missing: verr.Missing,
		})
	case errors.As(err, &merr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &xerr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
