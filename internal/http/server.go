package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	applog "tripledger/internal/log"
	"tripledger/internal/middleware/ratelimit"
	"tripledger/internal/middleware/security"
	"tripledger/internal/middleware/trace"
	"tripledger/internal/services"
)

// ServerConfig wires a Server. Trips, Expenses and Auth are required.
type ServerConfig struct {
	Addr     string
	Trips    *services.TripService
	Expenses *services.ExpenseService
	Auth     *Authenticator
	// Ready reports whether dependencies (the store) are reachable.
	Ready func(context.Context) error

	RateLimitPerMinute int

	Logger *applog.Logger
}

type Server struct {
	http.Server
	trips    *services.TripService
	expenses *services.ExpenseService
	auth     *Authenticator
	ready    func(context.Context) error
	logger   *applog.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Trips == nil || cfg.Expenses == nil {
		return nil, errors.New("trip and expense services are required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.FromContext(context.Background())
	}

	s := &Server{
		trips:     cfg.Trips,
		expenses:  cfg.Expenses,
		auth:      cfg.Auth,
		ready:     cfg.Ready,
		logger:    cfg.Logger.WithComponent(applog.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:  security.NewDetector(),
		startedAt: time.Now(),
	}
	s.tracer = trace.NewMiddleware(cfg.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.Handle("/healthz", methods{http.MethodGet: s.handleHealth})
	mux.Handle("/readyz", methods{http.MethodGet: s.handleReady})
	mux.Handle("/api/categories", methods{http.MethodGet: s.handleCategories})

	mux.Handle("/api/trips", s.api(methods{
		http.MethodGet:  s.handleListTrips,
		http.MethodPost: s.handleCreateTrip,
	}))
	mux.Handle("/api/trips/{id}", s.api(methods{
		http.MethodGet:    s.handleGetTrip,
		http.MethodPut:    s.handleUpdateTrip,
		http.MethodDelete: s.handleDeleteTrip,
	}))
	mux.Handle("/api/trips/{id}/expenses", s.api(methods{
		http.MethodGet:  s.handleListExpenses,
		http.MethodPost: s.handleCreateExpense,
	}))
	mux.Handle("/api/trips/{id}/analytics", s.api(methods{http.MethodGet: s.handleAnalytics}))
	mux.Handle("/api/trips/{id}/map", s.api(methods{http.MethodGet: s.handleMap}))
	mux.Handle("/api/expenses/{id}", s.api(methods{
		http.MethodGet:    s.handleGetExpense,
		http.MethodPut:    s.handleUpdateExpense,
		http.MethodDelete: s.handleDeleteExpense,
	}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = headers.Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// api wraps authenticated routes: bearer auth, then per-user rate limiting
// of mutating requests.
func (s *Server) api(h http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.rateLimitKey, ratelimit.MutatingOnly, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})(h)
	return s.auth.Middleware(limited)
}

func (s *Server) rateLimitKey(r *http.Request) string {
	if id, err := UserID(r.Context()); err == nil {
		return "user:" + id
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
	})
	return s.Server.Shutdown(ctx)
}

// methods dispatches on the request method and answers anything else with
// a JSON 405.
type methods map[string]http.HandlerFunc

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	if r.Method == http.MethodHead {
		if h, ok := m[http.MethodGet]; ok {
			h(w, r)
			return
		}
	}
	allowed := make([]string, 0, len(m))
	for method := range m {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	MethodNotAllowedError(strings.Join(allowed, ", ")).Write(w)
}
