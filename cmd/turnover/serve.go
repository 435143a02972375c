package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"turnover/internal/api"
	"turnover/internal/logging"
	"turnover/internal/metrics"
	"turnover/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	syncJobTimeout     = 20 * time.Minute
	reminderJobTimeout = 5 * time.Minute
	sheetsJobTimeout   = 2 * time.Minute
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, scheduler and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	logger := logging.Component(a.logger, "main")
	metrics.Register()

	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	goRun(func() { a.outbox.Start(ctx) })
	goRun(func() { a.backup.Start(ctx) })

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}
	if a.cfg.Scheduler.Enabled {
		sched.Start(ctx)
		defer sched.Stop()
	}

	if a.cfg.Monitoring.PrometheusEnabled {
		goRun(func() { startMetricsServer(ctx, a.cfg.Monitoring.PrometheusPort, logger) })
	}

	var grpcServer *api.GRPCServer
	if a.cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(a.cfg.API.GRPC, a.health, a.logger)
		if err != nil {
			return err
		}
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	var httpServer *api.HTTPServer
	if a.cfg.API.HTTP.Enabled {
		httpServer = api.NewHTTPServer(a.cfg.API, api.Services{
			Tasks:    a.tasks,
			Overview: a.overview,
			Sync:     a.sync,
			Reports:  a.reports,
			Cache:    a.cache,
			Health:   a.health,
		}, a.logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	logger.Info().
		Int("accounts", len(a.cfg.Accounts)).
		Bool("scheduler", a.cfg.Scheduler.Enabled).
		Bool("sheets", a.publisher != nil).
		Msg("turnover started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	wg.Wait()

	logger.Info().Msg("turnover stopped")
	return nil
}

func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(logging.Component(a.logger, "scheduler"))

	err := sched.Add("sync", a.cfg.Scheduler.SyncCron, syncJobTimeout, func(ctx context.Context) error {
		_, err := a.sync.SyncAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = sched.Add("reminders", a.cfg.Scheduler.ReminderCron, reminderJobTimeout, func(ctx context.Context) error {
		_, err := a.reminders.SendDue(ctx, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if a.publisher != nil {
		err = sched.Add("sheets", a.cfg.Scheduler.SheetsCron, sheetsJobTimeout, a.publisher.Request)
		if err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
