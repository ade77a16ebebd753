package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/ruralhealth/screening-api/internal/handlers"
	"github.com/ruralhealth/screening-api/internal/repository"
	"github.com/ruralhealth/screening-api/internal/service"
	"github.com/ruralhealth/screening-api/internal/vault"
	"github.com/ruralhealth/screening-api/pkg/config"
	"github.com/ruralhealth/screening-api/pkg/database"
	"github.com/ruralhealth/screening-api/pkg/events"
	"github.com/ruralhealth/screening-api/pkg/logger"
	mw "github.com/ruralhealth/screening-api/pkg/middleware"
	"github.com/ruralhealth/screening-api/pkg/redis"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	v, err := vault.New(cfg.Vault.FernetKey)
	if err != nil {
		logger.Error("Failed to load seed vault key", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := redis.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Warn("NATS unavailable, events disabled", "error", err)
	}
	var publisher events.Publisher
	if eventBus != nil {
		publisher = eventBus
		defer eventBus.Close()
	}

	// Repositories
	personRepo := repository.NewPersonRepo(pool)
	workerRepo := repository.NewWorkerRepo(pool)
	verifyRepo := repository.NewVerifyRepo(pool)
	encounterRepo := repository.NewEncounterRepo(pool)
	auditRepo := repository.NewAuditRepo(pool)
	limiter := repository.NewRedisRateLimiter(redisClient)

	// Services
	authSvc := service.NewAuthService(workerRepo, personRepo, cfg)
	totpSvc := service.NewTOTPService(personRepo, encounterRepo, verifyRepo, auditRepo, v, publisher, cfg)
	encounterSvc := service.NewEncounterService(encounterRepo, personRepo, auditRepo, publisher)

	h := handlers.New(authSvc, totpSvc, encounterSvc, limiter, cfg)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("screening-api"))
	r.Use(mw.Logging)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(req.Context(), "Panic recovered", "error", err)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, req)
		})
	})
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)
	r.Mount("/", h.Routes())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down screening API...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting screening API", "port", cfg.Server.Port, "env", cfg.App.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
