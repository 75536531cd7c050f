package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/peakscape/tours-api/internal/handlers"
	"github.com/peakscape/tours-api/internal/mailer"
	"github.com/peakscape/tours-api/internal/repository"
	"github.com/peakscape/tours-api/internal/service"
	"github.com/peakscape/tours-api/pkg/config"
	"github.com/peakscape/tours-api/pkg/database"
	"github.com/peakscape/tours-api/pkg/events"
	"github.com/peakscape/tours-api/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	handlers.SetProduction(cfg.IsProduction())

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Event bus is optional; without NATS events are dropped.
	var eventBus events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		eventBus = bus
	}
	defer eventBus.Close()

	// Rate limiting is optional the same way; a bad Redis URL is fatal but
	// no URL just disables the limiter.
	var limiter repository.RateLimiter
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("Invalid Redis URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		limiter = repository.NewRedisRateLimiter(redisClient)
	}

	reviewRepo := repository.NewReviewRepository(pool)
	tourRepo := repository.NewTourRepository(pool, reviewRepo)
	userRepo := repository.NewUserRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	mail := mailer.New(cfg.Email)

	authService := service.NewAuthService(userRepo, mail, eventBus, cfg)
	reviewService := service.NewReviewService(reviewRepo, eventBus)
	bookingService := service.NewBookingService(
		bookingRepo, tourRepo, service.NewStripeClient(cfg.Stripe.SecretKey), eventBus, cfg)

	r := handlers.NewRouter(handlers.RouterDeps{
		Config:   cfg,
		Guard:    handlers.NewGuard(authService),
		Limiter:  limiter,
		Auth:     handlers.NewAuthHandlers(authService, cfg),
		Users:    handlers.NewUserHandlers(userRepo),
		Tours:    handlers.NewTourHandlers(tourRepo),
		Bookings: handlers.NewBookingHandlers(bookingService),

		UserRepo:    userRepo,
		TourRepo:    tourRepo,
		ReviewSvc:   reviewService,
		BookingRepo: bookingRepo,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting API server", "port", cfg.Server.Port, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
