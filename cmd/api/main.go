package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"assetapi/docs"
	"assetapi/internal/config"
	"assetapi/internal/database"
	"assetapi/internal/database/migration"
	"assetapi/internal/events"
	handlers "assetapi/internal/http/handler"
	"assetapi/internal/http/middleware"
	"assetapi/internal/ingest"
	"assetapi/internal/logging"
	"assetapi/internal/metrics"
	"assetapi/internal/otel"
	"assetapi/internal/repository/postgres"
	"assetapi/internal/service"
	"assetapi/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Asset API
// @version 1.0
// @description Design asset upload and ingest service.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.Location(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize tracing")
	}

	db, err := database.NewPostgres(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	store, err := newStorage(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize storage")
	}

	pub := events.New(cfg.Kafka, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register http metrics")
	}

	assetSvc := service.NewAssetService(store, postgres.NewAssetPostgres(db), pub, metrics.NewIngestMetrics(reg), log, service.Options{
		Policy: ingest.Policy{
			MaxFileSize:  cfg.Upload.MaxFileSize,
			SniffContent: cfg.Upload.SniffContent,
		},
		Thumbnail: ingest.ThumbnailOptions{
			Size:    cfg.Upload.ThumbnailSize,
			Quality: cfg.Upload.ThumbnailQuality,
		},
		MaxFiles:       cfg.Upload.MaxFiles,
		PublicPrefix:   cfg.Upload.PublicPrefix,
		DownloadExpiry: cfg.DownloadURLExpiry,
	})

	app := fiber.New(fiber.Config{
		AppName:      "assetapi",
		BodyLimit:    cfg.Upload.BodyLimit(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: handlers.ErrorHandler(log),
	})

	// RequestID first so every later middleware and the error handler can read it
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(log))
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:     db,
		Assets: assetSvc,
		Limits: handlers.UploadLimits{
			MaxFileSize: cfg.Upload.MaxFileSize,
			MaxFiles:    cfg.Upload.MaxFiles,
		},
		PublicPrefix: cfg.Upload.PublicPrefix,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "storage": cfg.StorageBackend}).Info("server starting")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server stopped")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Error("server shutdown")
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := pub.Close(); err != nil {
		log.WithError(err).Error("close event publisher")
	}
	if err := shutdownTracing(flushCtx); err != nil {
		log.WithError(err).Error("flush traces")
	}
}

func newStorage(cfg *config.AppConfig) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageMinIO:
		return storage.NewMinIO(cfg.MinIO)
	default:
		return storage.NewLocal(cfg.Upload)
	}
}
