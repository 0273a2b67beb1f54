package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/prodemyx/prodemyx-api/internal/http/handlers"
	"github.com/prodemyx/prodemyx-api/internal/http/middleware"
	"github.com/prodemyx/prodemyx-api/internal/notify"
	"github.com/prodemyx/prodemyx-api/internal/platform/gateway"
	"github.com/prodemyx/prodemyx-api/internal/platform/mailer"
	"github.com/prodemyx/prodemyx-api/internal/repo"
	"github.com/prodemyx/prodemyx-api/internal/repo/memory"
	"github.com/prodemyx/prodemyx-api/internal/repo/postgres"
	"github.com/prodemyx/prodemyx-api/internal/service"
	"github.com/prodemyx/prodemyx-api/pkg/cache"
	"github.com/prodemyx/prodemyx-api/pkg/config"
	"github.com/prodemyx/prodemyx-api/pkg/database"
	"github.com/prodemyx/prodemyx-api/pkg/events"
	"github.com/prodemyx/prodemyx-api/pkg/logger"
	"github.com/prodemyx/prodemyx-api/pkg/metrics"
	mw "github.com/prodemyx/prodemyx-api/pkg/middleware"
)

type stores struct {
	accounts    repo.AccountStore
	courses     repo.CourseStore
	orders      repo.OrderStore
	enrollments repo.EnrollmentStore
	limiter     repo.RateLimiter
	idempotency *postgres.IdempotencyRepo // nil in memory mode
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to load .env", "error", err)
	}
	cfg := config.Load()
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStores, err := openStores(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	publisher := events.Publisher(events.NopPublisher{})
	if cfg.NATS.URL != "" {
		nats, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		publisher = nats
	}
	defer publisher.Close()

	gw, webhook, err := newGateway(cfg)
	if err != nil {
		logger.Error("Failed to configure payment gateway", "error", err)
		os.Exit(1)
	}

	sender, err := newSender(cfg.Email)
	if err != nil {
		logger.Error("Failed to configure mailer", "error", err)
		os.Exit(1)
	}
	queue := notify.NewQueue(sender, cfg.Notify)
	queue.Start()

	// Services
	provisioner := service.NewProvisioner(st.accounts, publisher)
	checkout := service.NewCheckoutService(
		gw,
		st.orders,
		provisioner,
		service.NewEnrollmentGranter(st.enrollments),
		queue,
		publisher,
		service.CheckoutOptions{
			Currency:        cfg.Payment.Currency,
			SignatureSecret: cfg.Razorpay.KeySecret,
			TrustClientCart: cfg.Payment.TrustClientCart,
			LoginURL:        cfg.Email.LoginURL,
		},
	)
	accounts := service.NewAccountService(st.accounts, st.courses, provisioner, queue, cfg.Auth, cfg.Email.LoginURL)

	guestLimit := middleware.NewRateLimiter(st.limiter, middleware.RateLimitConfig{
		Requests: cfg.RateLimit.GuestRequests,
		Window:   cfg.RateLimit.GuestWindow,
		KeyFunc:  middleware.ClientIPKeyFunc("register-guest"),
	}).Middleware()

	// Setup router
	r := chi.NewRouter()
	if cfg.Server.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("prodemyx-api"))
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if store := idempotencyStore(ctx, cfg.Redis.URL, st); store != nil {
				r.Use(mw.IdempotencyMiddleware(store, cfg.Redis.IdempotencyTTL))
			}
			r.Mount("/payment", handlers.NewPaymentHandler(checkout, webhook).Routes())
		})
		r.Mount("/student", handlers.NewStudentHandler(accounts, cfg.Auth.JWTSecret).Routes())
		r.Mount("/", handlers.NewAuthHandler(accounts, cfg.Auth.JWTSecret, guestLimit).Routes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting API", "port", cfg.Server.Port, "gateway", gw.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down API...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
		// Requests are drained first so no email is queued after the workers stop.
		if err := queue.Shutdown(shutdownCtx); err != nil {
			logger.Error("Notification queue shutdown error", "error", err)
		}
		return nil
	})
	if st.idempotency != nil {
		g.Go(func() error {
			cleanupLoop(gctx, st.idempotency, time.Hour)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("API error", "error", err)
		os.Exit(1)
	}
}

func openStores(ctx context.Context, cfg config.DatabaseConfig) (*stores, func(), error) {
	if cfg.InMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		db := memory.NewDB()
		if cfg.SeedCourses == "" {
			logger.Warn("In-memory course catalog is empty, set DB_SEED_COURSES or every verify fails")
		} else {
			n, err := db.SeedCatalog([]byte(cfg.SeedCourses))
			if err != nil {
				return nil, nil, fmt.Errorf("seed courses: %w", err)
			}
			logger.Info("Seeded in-memory course catalog", "courses", n)
		}
		return &stores{
			accounts:    memory.NewAccountRepo(db),
			courses:     memory.NewCourseRepo(db),
			orders:      memory.NewOrderRepo(db),
			enrollments: memory.NewEnrollmentRepo(db),
			limiter:     memory.NewRateLimiter(db),
		}, func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return postgresStores(pool), pool.Close, nil
}

func postgresStores(pool *pgxpool.Pool) *stores {
	return &stores{
		accounts:    postgres.NewAccountRepo(pool),
		courses:     postgres.NewCourseRepo(pool),
		orders:      postgres.NewOrderRepo(pool),
		enrollments: postgres.NewEnrollmentRepo(pool),
		limiter:     postgres.NewRateLimitRepo(pool),
		idempotency: postgres.NewIdempotencyRepo(pool),
	}
}

// idempotencyStore prefers Redis and falls back to Postgres.
func idempotencyStore(ctx context.Context, redisURL string, st *stores) mw.IdempotencyStore {
	if redisURL != "" {
		client, err := cache.Connect(ctx, redisURL)
		if err == nil {
			return cache.NewRedisStore(client, "prodemyx:")
		}
		logger.Error("Failed to connect to Redis", "error", err)
	}
	if st.idempotency != nil {
		return st.idempotency
	}
	logger.Warn("Idempotency-Key support disabled")
	return nil
}

func cleanupLoop(ctx context.Context, store *postgres.IdempotencyRepo, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanupExpired(ctx)
			if err != nil {
				logger.Warn("Expired record cleanup failed", "error", err)
				continue
			}
			logger.Debug("Expired records removed", "count", n)
		}
	}
}

func newGateway(cfg *config.Config) (gateway.Gateway, handlers.StripeWebhook, error) {
	switch cfg.Payment.Gateway {
	case gateway.Stripe:
		gw, err := gateway.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Payment.GatewayTimeout)
		if err != nil {
			return nil, nil, err
		}
		return gw, gw, nil
	default:
		gw, err := gateway.NewRazorpay(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Payment.GatewayTimeout)
		if err != nil {
			return nil, nil, err
		}
		return gw, nil, nil
	}
}

func newSender(cfg config.EmailConfig) (mailer.Sender, error) {
	switch {
	case cfg.DevMode:
		return mailer.NewDevMailer(), nil
	case cfg.MailerSendKey != "":
		return mailer.NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail)
	default:
		return mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.FromName, cfg.FromEmail, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS), nil
	}
}
