// Package http serves the back-office JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"backoffice/internal/core"
	"backoffice/internal/ledger"
	"backoffice/internal/log"
	"backoffice/internal/middleware/metrics"
	"backoffice/internal/middleware/ratelimit"
	"backoffice/internal/middleware/recovery"
	"backoffice/internal/middleware/security"
	"backoffice/internal/middleware/trace"
	"backoffice/internal/registry"
	"backoffice/internal/report"
)

const defaultMaxBodyBytes = 1 << 20

type ClientService interface {
	List(ctx context.Context) ([]core.Client, error)
	ListWithTasks(ctx context.Context) ([]registry.ClientWithTasks, error)
	Get(ctx context.Context, id core.ID) (core.Client, error)
	Create(ctx context.Context, in registry.ClientInput, strict bool) (core.Client, error)
	Update(ctx context.Context, id core.ID, patch registry.ClientPatch) (core.Client, error)
	Delete(ctx context.Context, id core.ID) (registry.DeleteResult, error)
}

type TaskService interface {
	Get(ctx context.Context, id core.ID) (core.Task, error)
	Create(ctx context.Context, in ledger.TaskInput) (core.Task, error)
	Update(ctx context.Context, id core.ID, patch ledger.TaskPatch) (core.Task, error)
	Delete(ctx context.Context, id core.ID) error
	RecordPayment(ctx context.Context, id core.ID, amount core.Money) (core.Task, error)
}

type ReportService interface {
	Now() time.Time
	Tasks(ctx context.Context, f report.TaskFilter, mode report.SortMode) ([]core.Task, error)
	Dashboard(ctx context.Context, q report.Query) (report.Dashboard, error)
	ClientRollups(ctx context.Context) ([]report.ClientRollup, error)
	Calendar(ctx context.Context, from, to time.Time) ([]report.CalendarEvent, error)
	Digest(ctx context.Context) (report.OverdueDigest, error)
}

// HealthChecker reports whether storage is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Clients ClientService
	Tasks   TaskService
	Reports ReportService
	Health  HealthChecker
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	MaxBodyBytes       int64
	// Registry backs /metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
	Logger   *log.Logger
}

type Server struct {
	http.Server
	clients ClientService
	tasks   TaskService
	reports ReportService
	health  HealthChecker
	logger  *log.Logger

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithComponent(log.ComponentHTTP)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		clients: deps.Clients,
		tasks:   deps.Tasks,
		reports: deps.Reports,
		health:  deps.Health,
		logger:  cfg.Logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Registerer:        cfg.Registry,
		}),
	}

	mux := http.NewServeMux()
	s.routes(mux, cfg.Registry)

	detector := security.NewDetector(cfg.Registry)
	httpMetrics := metrics.NewHTTPMetrics(cfg.Registry)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var h http.Handler = mux
	h = limitBody(cfg.MaxBodyBytes)(h)
	h = httpMetrics.Middleware(h)
	h = s.limiter.Middleware(detector.ClientIP, writeRateLimited)(h)
	h = detector.Middleware(h)
	h = headers.Middleware(h)
	h = recovery.Middleware(writeInternal)(h)
	h = trace.NewMiddleware(cfg.Logger, detector.ClientIP).Middleware(h)
	s.Handler = h
	return s
}

func (s *Server) routes(mux *http.ServeMux, reg *prometheus.Registry) {
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /healthz", handleLive)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// /api/pelates is the legacy name of the client collection.
	for _, base := range []string{"/api/clients", "/api/pelates"} {
		mux.HandleFunc("GET "+base, s.handleListClients)
		mux.HandleFunc("POST "+base, s.handleCreateClient)
		mux.HandleFunc("GET "+base+"/{id}", s.handleGetClient)
		mux.HandleFunc("PUT "+base+"/{id}", s.handleUpdateClient)
		mux.HandleFunc("DELETE "+base+"/{id}", s.handleDeleteClient)
	}

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/payments", s.handleRecordPayment)

	mux.HandleFunc("GET /api/reports/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/reports/clients", s.handleClientRollups)
	mux.HandleFunc("GET /api/reports/calendar", s.handleCalendar)
	mux.HandleFunc("GET /api/reports/overdue", s.handleOverdue)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, messageBody{Message: "Not found"})
	})
}

// Shutdown stops the limiter and drains the server. Later calls are no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// limitBody caps request bodies. It swaps the body in place so the mux
// pattern set on r stays visible to outer middleware.
func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "storage": "down"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "storage": "up"})
}
