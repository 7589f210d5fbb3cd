package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aradpay/golang_services/internal/ledger"
	payrollnats "github.com/aradpay/golang_services/internal/payroll_service/adapters/nats"
	"github.com/aradpay/golang_services/internal/platform/config"
	"github.com/aradpay/golang_services/internal/platform/database"
	"github.com/aradpay/golang_services/internal/platform/logger"
	"github.com/aradpay/golang_services/internal/platform/messagebroker"
	txnats "github.com/aradpay/golang_services/internal/transaction_service/adapters/nats"
)

const (
	serviceName     = "ledger_service"
	handlerTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func httpLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.LogAttrs(r.Context(), slog.LevelDebug, "HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", chiMiddleware.GetReqID(r.Context())),
			)
		}
		return http.HandlerFunc(fn)
	}
}

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Ledger service starting...", "metrics_port", cfg.MetricsPort, "log_level", cfg.LogLevel)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, appLogger, serviceName)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	if err := messagebroker.EnsureStream(mainCtx, natsClient, cfg.WorkflowStream, []string{cfg.WorkflowSubjectPrefix + ".>"}); err != nil {
		appLogger.Error("Failed to ensure workflow stream", "stream", cfg.WorkflowStream, "error", err)
		os.Exit(1)
	}

	services, err := ledger.Wire(cfg, dbPool, natsClient, appLogger)
	if err != nil {
		appLogger.Error("Failed to wire ledger services", "error", err)
		os.Exit(1)
	}
	if cfg.SeedLimitsOnStart {
		if _, err := services.LimitSeeder.SeedDefaults(mainCtx); err != nil {
			appLogger.Error("Failed to seed limit configurations", "error", err)
			os.Exit(1)
		}
	}

	intakeConsumer := txnats.NewIntakeConsumer(natsClient, services.Transactions, handlerTimeout, appLogger)
	if err := intakeConsumer.Start(mainCtx, cfg.IntakeSubject, cfg.StatusSubject, cfg.IntakeQueueGroup); err != nil {
		appLogger.Error("Failed to start intake consumer", "error", err)
		os.Exit(1)
	}
	defer intakeConsumer.Stop()

	fundingConsumer := payrollnats.NewFundingConsumer(natsClient, services.Payrolls, handlerTimeout, appLogger)
	if err := fundingConsumer.Start(mainCtx, cfg.FundingSubject, cfg.IntakeQueueGroup); err != nil {
		appLogger.Error("Failed to start funding consumer", "error", err)
		os.Exit(1)
	}
	defer fundingConsumer.Stop()
	appLogger.Info("Consumers started",
		"intake_subject", cfg.IntakeSubject,
		"status_subject", cfg.StatusSubject,
		"funding_subject", cfg.FundingSubject,
	)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(httpLogger(appLogger))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := dbPool.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	if cfg.PayrollResumeInterval > 0 {
		g.Go(func() error {
			return services.Resumer.Run(groupCtx)
		})
	}

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Ledger service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Ledger service shut down successfully.")
}
