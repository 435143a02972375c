package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"turnover/internal/config"
	"turnover/internal/domain"
	"turnover/internal/export"
	"turnover/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Services is what the HTTP layer delegates to. Sync, Reports and Cache are optional.
type Services struct {
	Tasks    *service.TaskService
	Overview *service.OverviewService
	Sync     *service.SyncService
	Reports  *export.Reporter
	Cache    domain.Cache
	Health   func(ctx context.Context) error
}

// HTTPServer exposes the JSON API, health probe and metrics.
type HTTPServer struct {
	svc      Services
	identity *Identity
	limiter  *rateLimiter
	server   *http.Server
	log      zerolog.Logger

	manualSyncLimit  int
	manualSyncWindow time.Duration
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		svc:              svc,
		identity:         NewIdentity(cfg.Auth),
		limiter:          newRateLimiter(cfg.RateLimit),
		log:              zerolog.Nop(),
		manualSyncLimit:  1,
		manualSyncWindow: time.Minute,
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("GET /api/v1/tasks", s.authenticate(s.handleListTasks))
	mux.Handle("GET /api/v1/tasks/{id}", s.authenticate(s.handleGetTask))
	mux.Handle("PUT /api/v1/tasks/{id}/assign", s.authenticate(adminOnly(s.handleAssign)))
	mux.Handle("PUT /api/v1/tasks/{id}/start", s.authenticate(s.handleStart))
	mux.Handle("PUT /api/v1/tasks/{id}/complete", s.authenticate(s.handleComplete))
	mux.Handle("PUT /api/v1/tasks/{id}/cancel", s.authenticate(adminOnly(s.handleCancel)))
	mux.Handle("PUT /api/v1/tasks/{id}/checklist/{itemId}", s.authenticate(s.handleChecklist))
	mux.Handle("GET /api/v1/tasks/{id}/history", s.authenticate(s.handleHistory))

	mux.Handle("GET /api/v1/bookings", s.authenticate(adminOnly(s.handleBookings)))
	mux.Handle("GET /api/v1/accounts", s.authenticate(adminOnly(s.handleAccounts)))
	mux.Handle("POST /api/v1/accounts/sync", s.authenticate(adminOnly(s.handleSync)))
	mux.Handle("GET /api/v1/accounts/sync/runs", s.authenticate(adminOnly(s.handleSyncRuns)))

	mux.Handle("GET /api/v1/workers", s.authenticate(adminOnly(s.handleWorkers)))
	mux.Handle("GET /api/v1/workers/me", s.authenticate(s.handleMe))

	mux.Handle("GET /api/v1/notifications", s.authenticate(s.handleNotifications))
	mux.Handle("PUT /api/v1/notifications/{id}/read", s.authenticate(s.handleNotificationRead))

	mux.Handle("GET /api/v1/analytics/summary", s.authenticate(adminOnly(s.handleAnalytics)))
	mux.Handle("GET /api/v1/reports/tasks.xlsx", s.authenticate(adminOnly(s.handleTaskReport)))

	return s.observe(mux)
}

// Handler returns the full middleware chain; used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
