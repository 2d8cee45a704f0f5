package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jkurui/tutorhive/libs/config"
	"github.com/jkurui/tutorhive/libs/db"
	"github.com/jkurui/tutorhive/libs/httpx"
	"github.com/jkurui/tutorhive/libs/kafkax"
	otelx "github.com/jkurui/tutorhive/libs/otel"
	"github.com/jkurui/tutorhive/libs/runtime"
	"github.com/jkurui/tutorhive/services/booking-service/internal/booking"
	"github.com/jkurui/tutorhive/services/booking-service/internal/handlers"
	"github.com/jkurui/tutorhive/services/booking-service/internal/outbox"
	"github.com/jkurui/tutorhive/services/booking-service/internal/profile"
	"github.com/jkurui/tutorhive/services/booking-service/internal/storage"
	"github.com/jkurui/tutorhive/services/booking-service/internal/sweeper"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	tutorRepo := storage.NewTutorRepository(pool)
	availRepo := storage.NewAvailabilityRepository(pool)
	sessionRepo := storage.NewSessionRepository(pool)
	billingEvents := storage.NewBillingEventRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	directory, err := profile.NewRemoteProvider(config.String("TUTOR_DIRECTORY_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("remote tutor directory init failed; using local directory", "err", err)
		directory = nil
	}
	if directory == nil {
		directory = profile.NewDBProvider(tutorRepo)
	}

	validator := booking.NewValidator(directory, availRepo, sessionRepo)
	holdTTL := config.DurationMinutes("HOLD_TTL_MINUTES", 15*time.Minute)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	holdSweeper := sweeper.New(pool, sessionRepo, outboxRepo, logger, sweeper.Config{
		Interval:  time.Duration(config.Int("SWEEP_INTERVAL_SECONDS", 30)) * time.Second,
		BatchSize: config.Int("SWEEP_BATCH_SIZE", 100),
	})
	go holdSweeper.Run(ctx)

	availHandler := handlers.NewAvailabilityHandler(availRepo, logger)
	tutorHandler := handlers.NewTutorHandler(tutorRepo, logger)
	bookingHandler := handlers.NewBookingHandler(sessionRepo, availRepo, validator, outboxRepo, logger, holdTTL)
	webhookHandler := handlers.NewStripeWebhookHandler(sessionRepo, billingEvents, outboxRepo, logger,
		config.String("STRIPE_WEBHOOK_SECRET", ""),
		config.DurationMinutes("STRIPE_WEBHOOK_TOLERANCE_MINUTES", 5*time.Minute))

	// Public endpoints are rate limited; Redis keeps the counters shared
	// across replicas, with an in-process fallback for dev setups.
	publicLimit := publicRateLimit(logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/api/v1/public/slots", publicLimit(http.HandlerFunc(bookingHandler.Slots)))
	mux.Handle("/api/v1/public/book", publicLimit(http.HandlerFunc(bookingHandler.Book)))
	mux.Handle("/api/v1/public/tutors", publicLimit(http.HandlerFunc(tutorHandler.PublicList)))
	mux.HandleFunc("/api/v1/availability", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			availHandler.Put(w, r)
		default:
			availHandler.Get(w, r)
		}
	})
	mux.HandleFunc("/api/v1/tutors", tutorHandler.Upsert)
	mux.HandleFunc("/api/v1/sessions", bookingHandler.List)
	mux.HandleFunc("/api/v1/sessions/begin-payment", bookingHandler.BeginPayment)
	mux.HandleFunc("/api/v1/sessions/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/sessions/complete", bookingHandler.Complete)
	mux.HandleFunc("/webhooks/stripe", webhookHandler.Handle)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Tutor-Id", "X-Student-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func publicRateLimit(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("PUBLIC_RATE_LIMIT", 60)
	window := config.DurationMinutes("PUBLIC_RATE_WINDOW_MINUTES", time.Minute)

	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		return httpx.NewRedisRateLimiter(rdb, limit, window, "rl:public").Middleware(logger, true)
	}
	return httpx.NewRateLimiter(limit, window).Middleware()
}
