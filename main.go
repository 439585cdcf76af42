package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ordersite/internal/cache"
	"ordersite/internal/calendar"
	"ordersite/internal/cart"
	"ordersite/internal/config"
	"ordersite/internal/database"
	"ordersite/internal/events"
	"ordersite/internal/mail"
	"ordersite/internal/metrics"
	"ordersite/internal/middleware"
	"ordersite/internal/ordering"
	"ordersite/internal/postal"
	"ordersite/internal/reports"
	"ordersite/internal/repository"
	"ordersite/internal/storage"
)

func setupLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.StandardLogger()
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stdout)
	return logger
}

func openStorage(ctx context.Context, cfg config.Config) (*storage.Store, string, error) {
	if cfg.StorageDriver == "s3" {
		s3cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		backend, err := storage.NewS3Backend(ctx, s3cfg)
		if err != nil {
			return nil, "", err
		}
		return storage.New(backend, s3cfg.PublicBaseURL()), "", nil
	}

	backend, err := storage.NewLocalBackend(cfg.StorageLocalDir)
	if err != nil {
		return nil, "", err
	}
	return storage.New(backend, cfg.StoragePublicBaseURL), backend.Root(), nil
}

func main() {
	config.Load()
	cfg := config.AppEnv
	logger := setupLogger(cfg)
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()
	loc := cfg.Location()

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	db := client.Database(cfg.DBName)
	logger.WithField("database", db.Name()).Info("MongoDB connected")

	if err := database.EnsureIndexes(db); err != nil {
		logger.WithError(err).Warn("index setup incomplete")
	}
	store := repository.New(db)

	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, using in-process cache only")
	}
	shared := cache.New(redisClient)
	settings := cache.NewSettings(store.Settings, shared)

	publisher, err := events.Connect(cfg.NATSURL)
	if err != nil {
		logger.WithError(err).Fatal("nats connection failed")
	}
	defer publisher.Close()

	images, uploadsDir, err := openStorage(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("image storage setup failed")
	}

	templates, err := mail.LoadTemplates()
	if err != nil {
		logger.WithError(err).Fatal("mail templates failed to load")
	}
	notifier := mail.NewNotifier(mail.Options{
		Settings:         settings,
		Logs:             store.Notifications,
		Users:            store.Users,
		Templates:        templates,
		DefaultAPIKey:    cfg.SendGridAPIKey,
		DefaultFromEmail: cfg.SendGridFromEmail,
		DefaultFromName:  cfg.SendGridFromName,
		Location:         loc,
	})

	cal := calendar.New(loc, cfg.DeliveryLeadDays, cfg.DeliveryHorizonDays)
	checkout := ordering.NewCheckout(ordering.CheckoutDeps{
		Products:  store.Products,
		Addresses: store.Addresses,
		Orders:    store.Orders,
		Numberer:  ordering.NewNumberer(store.Sequences, store.Orders, loc),
		Calendar:  cal,
		Notifier:  notifier,
		Events:    publisher,
	})

	carts, err := cart.NewFilesystemStore(cfg.CartDir, cfg.SessionSecret, cfg.IsProduction())
	if err != nil {
		logger.WithError(err).Fatal("cart store setup failed")
	}
	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	go pruneCarts(pruneCtx, carts, logger)

	app := &application{
		cfg:       cfg,
		client:    client,
		store:     store,
		settings:  settings,
		images:    images,
		mailer:    notifier,
		postal:    postal.NewClient(cfg.PostalAPIURL, 5*time.Second, shared),
		calendar:  cal,
		checkout:  checkout,
		lifecycle: ordering.NewLifecycle(store.Orders, notifier, publisher),
		reports:   reports.NewService(store.Orders, store.Products, store.Users, loc),
		sessions:  carts,
		limiter:   middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Recovery(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(metrics.Middleware())
	if uploadsDir != "" {
		r.Static("/uploads", uploadsDir)
	}
	app.routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect failed")
	}
}

// pruneCarts deletes abandoned cart files once an hour.
func pruneCarts(ctx context.Context, carts *cart.SessionStore, logger *logrus.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := carts.Prune(cart.MaxAge, now)
			if err != nil {
				logger.WithError(err).Warn("cart prune failed")
				continue
			}
			if removed > 0 {
				logger.WithField("removed", removed).Info("stale carts pruned")
			}
		}
	}
}
