// Package http exposes the ledger, statement import and guard demo as a JSON API.
package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"smartfinance/internal/core"
	"smartfinance/internal/guard"
	"smartfinance/internal/insights"
	"smartfinance/internal/ledger"
	applog "smartfinance/internal/log"
	"smartfinance/internal/middleware/ratelimit"
	"smartfinance/internal/middleware/security"
	"smartfinance/internal/middleware/trace"
	"smartfinance/internal/services"
)

const (
	SessionCookie = "sf_session"
	sessionMaxAge = 30 * 24 * time.Hour
)

// Ledger is the part of services.TransactionService the handlers call.
type Ledger interface {
	Dashboard(ctx context.Context, sessionID string) services.Dashboard
	AddTransaction(ctx context.Context, sessionID string, in core.FormInput) (services.AddResult, error)
	DeleteTransaction(ctx context.Context, sessionID, id string) (bool, error)
	SubmitFeedback(ctx context.Context, sessionID, id string, necessary bool, reason string) error
	ImportStatement(ctx context.Context, sessionID, filename string, r io.Reader) (insights.Result, error)
	SelectCategory(ctx context.Context, sessionID, name string) ledger.State
}

// Pinger reports backend readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server. Ready and Limiter may be nil.
type Deps struct {
	Ledger  Ledger
	Guard   *guard.Monitor
	Ready   Pinger
	Limiter *ratelimit.Limiter
	Logger  *applog.Logger
}

type Server struct {
	http.Server
	ledger   Ledger
	guard    *guard.Monitor
	ready    Pinger
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *applog.Logger
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	monitor := deps.Guard
	if monitor == nil {
		monitor = guard.NewMonitor(nil, 0)
	}

	s := &Server{
		ledger:   deps.Ledger,
		guard:    monitor,
		ready:    deps.Ready,
		detector: security.NewDetector(),
		logger:   logger,
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/transactions/{id}/feedback", s.handleFeedback).Methods(http.MethodPost)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)
	api.HandleFunc("/categories/select", s.handleSelectCategory).Methods(http.MethodPost)
	api.HandleFunc("/guard", s.handleGuardStatus).Methods(http.MethodGet)
	api.HandleFunc("/guard/arm", s.handleGuardArm).Methods(http.MethodPost)
	api.HandleFunc("/guard/frames", s.handleGuardFrame).Methods(http.MethodPost)

	limited := limiter.Middleware(s.detector.ExtractClientIP, ratelimit.IsMutating, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		s.writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
	})

	var h http.Handler = r
	h = limited(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	h = applog.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			s.writeError(w, r, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// sessionID returns the caller's session, issuing a cookie when the request
// carries none or an unparsable one.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorView{Error: msg, RequestID: trace.GetRequestID(r.Context())})
}
