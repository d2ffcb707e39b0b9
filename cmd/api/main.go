package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rocketapi/internal/config"
	"rocketapi/internal/database"
	"rocketapi/internal/database/migration"
	handlers "rocketapi/internal/http/handler"
	"rocketapi/internal/http/middleware"
	"rocketapi/internal/logger"
	"rocketapi/internal/otel"
	"rocketapi/internal/repository"
	"rocketapi/internal/repository/postgres"
	"rocketapi/internal/service"
	"rocketapi/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Rocket Telemetry API
// @version 1.0
// @description Ingests out-of-order rocket telemetry and serves the resulting rocket state.
// @BasePath /
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.Location())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log.Named("otel"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rockets := repository.NewRocketRepository(log.Named("rockets"))
	metrics, err := service.NewMetrics(reg, rockets.Count)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Both backends are optional; a nil interface disables them in the service.
	var snapshots repository.SnapshotRepository
	if cfg.Database.Enabled() {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		if err := migration.EnsureMigrated(ctx, db, log); err != nil {
			return err
		}
		snapshots = postgres.NewRocketPostgres(db)
	} else {
		log.Info("snapshot store disabled, rockets are kept in memory only")
	}

	var archive service.Archive
	if cfg.MinIO.Enabled() {
		store, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			return fmt.Errorf("init object storage: %w", err)
		}
		archiver := storage.NewArchiver(store, cfg.ArchiveBufferSize, log.Named("archive"))
		archiver.OnResult = metrics.ArchiveResult
		archiver.Start()
		defer archiver.Stop()
		archive = archiver
	}

	svc := service.NewRocketService(rockets, snapshots, archive, metrics, log.Named("service"))
	if _, err := svc.Restore(ctx); err != nil {
		return fmt.Errorf("restore rockets: %w", err)
	}

	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(log.Named("http")))
	app.Use(promMW.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	handlers.RegisterRoutes(app, svc)

	app.Get("/swagger/*", handlers.Swagger(cfg.AppHost, cfg.AppScheme))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("host", cfg.AppHost))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
