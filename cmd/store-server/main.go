package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jcmexdev/orderledger/internal/config"
	"github.com/jcmexdev/orderledger/internal/coordinator"
	placelogsqlite "github.com/jcmexdev/orderledger/internal/coordinator/placelog/sqlite"
	"github.com/jcmexdev/orderledger/internal/httpx"
	"github.com/jcmexdev/orderledger/internal/inventory"
	"github.com/jcmexdev/orderledger/internal/pkg/cache"
	"github.com/jcmexdev/orderledger/internal/pkg/telemetry"
	"github.com/jcmexdev/orderledger/internal/projection"
	"github.com/jcmexdev/orderledger/internal/reporting"
	"github.com/jcmexdev/orderledger/internal/store/sqlite"
)

func main() {
	telemetry.InitLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName)
	if err != nil {
		slog.Error("tracer setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Error("tracer shutdown failed", "error", err)
		}
	}()

	st, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("store open failed", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	audit, err := placelogsqlite.Open(cfg.AuditDBPath)
	if err != nil {
		slog.Error("placement log open failed", "path", cfg.AuditDBPath, "error", err)
		os.Exit(1)
	}
	defer audit.Close()

	ledger := inventory.NewLedger(st, cfg.LockWait)

	projOpts := []projection.ProjectorOption{
		projection.WithBuffer(cfg.ProjectionBuffer),
		projection.WithAttempts(cfg.ProjectionAttempts),
		projection.WithBackoff(cfg.ProjectionBackoff),
	}

	var amqpConn *amqp.Connection
	if cfg.AMQPURL != "" {
		amqpConn, err = amqp.Dial(cfg.AMQPURL)
		if err != nil {
			slog.Error("amqp dial failed", "error", err)
			os.Exit(1)
		}
		defer amqpConn.Close()

		publisher, err := projection.NewAMQPPublisher(amqpConn)
		if err != nil {
			slog.Error("amqp publisher setup failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		projOpts = append(projOpts, projection.WithPublisher(publisher))
	}

	projector := projection.NewProjector(st, projOpts...)
	projector.Start(ctx)
	defer projector.Close()

	reconciler := projection.NewReconciler(st, cfg.SweepInterval, cfg.SweepBatch, cfg.SweepWorkers)
	go reconciler.Run(ctx)

	coord := coordinator.New(st, ledger,
		coordinator.WithProjection(projector),
		coordinator.WithAuditLog(audit),
		coordinator.WithMaxAttempts(cfg.PlaceAttempts),
	)

	var reportCache cache.Cache
	if cfg.RedisAddr != "" {
		reportCache = cache.NewRedisCache(cfg.RedisAddr, cfg.ServiceName)
	}
	reports := reporting.NewService(st, reportCache, cfg.ReportCacheTTL)

	handler := httpx.NewHandler(coord, st, ledger, reports)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpx.NewRouter(handler),
	}

	go func() {
		slog.Info("store server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
}
