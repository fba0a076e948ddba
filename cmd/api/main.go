package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"formsapi/internal/attachment"
	"formsapi/internal/auth"
	"formsapi/internal/config"
	"formsapi/internal/database"
	"formsapi/internal/database/migration"
	handlers "formsapi/internal/http/handler"
	"formsapi/internal/http/middleware"
	"formsapi/internal/logger"
	"formsapi/internal/otel"
	"formsapi/internal/policy"
	"formsapi/internal/repository"
	"formsapi/internal/repository/cache"
	"formsapi/internal/repository/postgres"
	"formsapi/internal/service"
	"formsapi/internal/storage"
)

// @title						Forms API
// @version					1.0
// @BasePath					/
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	log := logger.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize tracing")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, cfg.Database.Host); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	// Submissions without files keep working when no bucket is configured.
	objStore, err := storage.New(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		log.WithField("driver", cfg.Storage.Driver).Warn("attachment storage not configured, file uploads are disabled")
		objStore = nil
	case err != nil:
		log.WithError(err).Fatal("failed to initialize object storage")
	}

	var forms repository.FormRepository = postgres.NewFormPostgres(db)
	rdb, err := cache.NewClient(ctx, cfg.Redis)
	switch {
	case errors.Is(err, cache.ErrDisabled):
	case err != nil:
		log.WithError(err).Warn("redis unavailable, form cache disabled")
	default:
		defer rdb.Close()
		forms = cache.NewFormCache(forms, rdb, time.Duration(cfg.Redis.FormTTLSec)*time.Second)
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	if err != nil {
		log.WithError(err).Fatal("failed to initialize token issuer")
	}

	rules := policy.RolePolicy{}
	formSvc := service.NewFormService(
		forms,
		postgres.NewResponsePostgres(db),
		attachment.NewResolver(objStore, cfg.Forms.UploadConcurrency),
		rules,
		service.FormOptions{
			StrictSchema:  cfg.Forms.StrictSchema,
			UploadTimeout: cfg.Forms.UploadTimeout(),
		},
	)
	userSvc := service.NewUserService(postgres.NewUserPostgres(db), issuer, rules)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, database.ApplicationName),
	)
	metrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register metrics")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.Forms.BodyLimit(),
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		switch c.Path() {
		case "/health", "/healthz", "/metrics":
			return true
		}
		return false
	})))
	app.Use(middleware.Logger())
	app.Use(metrics.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:       db,
		Forms:    formSvc,
		Users:    userSvc,
		Issuer:   issuer,
		Gatherer: reg,
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	addr := ":" + cfg.Port
	log.WithField("addr", addr).Info("listening")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}
