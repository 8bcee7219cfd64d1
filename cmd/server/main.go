package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/config"
	"github.com/zapdeck/session-server/internal/database"
	"github.com/zapdeck/session-server/internal/handler"
	"github.com/zapdeck/session-server/internal/jobs"
	"github.com/zapdeck/session-server/internal/middleware"
	"github.com/zapdeck/session-server/internal/redis"
	"github.com/zapdeck/session-server/internal/repository"
	"github.com/zapdeck/session-server/internal/service"
	"github.com/zapdeck/session-server/internal/sse"
	"github.com/zapdeck/session-server/internal/whatsapp"
	"github.com/zapdeck/session-server/migrations"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	ownerRepo := repository.NewOwnerRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	planRepo := repository.NewPlanRepository(db.DB)
	subscriptionRepo := repository.NewSubscriptionRepository(db.DB)
	scheduledRepo := repository.NewScheduledMessageRepository(db.DB)
	templateRepo := repository.NewTemplateRepository(db.DB)

	factory, err := whatsapp.NewMeowFactory(context.Background(), cfg.DatabaseURL, sessionRepo, cfg.WhatsAppLogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open whatsapp device store")
	}

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	registry := service.NewSessionRegistry(sessionRepo, factory, broker, cfg.QRFileDir)
	dispatcher := service.NewMessageDispatcher(registry, service.DispatcherConfigFrom(cfg))
	subscriptionService := service.NewSubscriptionService(planRepo, subscriptionRepo, registry)
	scheduleService := service.NewScheduleService(scheduledRepo, templateRepo, registry)
	templateService := service.NewTemplateService(templateRepo)
	adminService := service.NewAdminService(ownerRepo, registry)

	if err := subscriptionService.SeedPlans(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to seed plans")
	}

	if err := registry.Recover(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to recover sessions")
	}

	scheduler, err := jobs.NewMessageScheduler(scheduledRepo, registry, dispatcher, cfg.SchedulerSpec)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid scheduler spec")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start message scheduler")
	}

	cleanupJob := jobs.NewCleanupJob(subscriptionService, scheduledRepo, cfg.ScheduledRetention(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	authMiddleware := middleware.NewAuthMiddleware(ownerRepo)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(middleware.NewRedisRateLimiter(redisClient.Client))
	adminAuthMiddleware := middleware.NewAdminAuthMiddleware(cfg.AdminUser, cfg.AdminPasswordHash, middleware.NewLoginRateLimiter())
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	sessionHandler := handler.NewSessionHandler(registry, subscriptionService)
	messageHandler := handler.NewMessageHandler(registry, dispatcher)
	scheduledHandler := handler.NewScheduledHandler(scheduleService, scheduler)
	templateHandler := handler.NewTemplateHandler(templateService)
	planHandler := handler.NewPlanHandler(subscriptionService)
	eventsHandler := handler.NewEventsHandler(broker, registry)
	adminHandler := handler.NewAdminHandler(adminService, subscriptionService, registry)
	healthHandler := handler.NewHealthHandler(db)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/plans", planHandler.ListPlans)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(rateLimitMiddleware.Handler)

			// Event streams stay open past the request timeout.
			r.Get("/events", eventsHandler.ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
				r.Mount("/sessions", sessionHandler.Routes())
				r.Mount("/messages", messageHandler.Routes())
				r.Mount("/scheduled-messages", scheduledHandler.Routes())
				r.Mount("/templates", templateHandler.Routes())
				r.Get("/subscription", planHandler.GetSubscription)
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(adminAuthMiddleware.Handler)
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Mount("/", adminHandler.Routes())
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	scheduler.Stop()
	registry.Shutdown(shutdownCtx)

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
