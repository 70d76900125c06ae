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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/princinho/jobportal/config"
	"github.com/princinho/jobportal/controllers"
	"github.com/princinho/jobportal/database"
	"github.com/princinho/jobportal/mailer"
	"github.com/princinho/jobportal/middleware"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/repository"
	"github.com/princinho/jobportal/services"
	"github.com/princinho/jobportal/utils"
)

type stores struct {
	users   repository.UserStore
	jobs    repository.ListingStore[models.Job]
	courses repository.ListingStore[models.Course]
	client  *mongo.Client
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.DataStore == config.StoreMemory {
		slog.Warn("using in-memory store, data is lost on restart")
		return &stores{
			users:   repository.NewMemoryUserStore(),
			jobs:    repository.NewMemoryListingStore[models.Job]("job"),
			courses: repository.NewMemoryListingStore[models.Course]("course"),
		}, nil
	}

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.DatabaseName)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &stores{
		users:   repository.NewMongoUserStore(db),
		jobs:    repository.NewMongoListingStore[models.Job](db, database.JobsCollection, "job"),
		courses: repository.NewMongoListingStore[models.Course](db, database.CoursesCollection, "course"),
		client:  client,
	}, nil
}

func newLimiter(cfg *config.Config) (middleware.Limiter, func()) {
	if cfg.Limit.RedisURL == "" {
		return middleware.NewMemoryLimiter(cfg.Limit.Requests, cfg.Limit.Window), func() {}
	}
	opts, err := redis.ParseURL(cfg.Limit.RedisURL)
	if err != nil {
		slog.Warn("invalid REDIS_URL, rate limiting in memory", "error", err)
		return middleware.NewMemoryLimiter(cfg.Limit.Requests, cfg.Limit.Window), func() {}
	}
	client := redis.NewClient(opts)
	return middleware.NewRedisLimiter(client, cfg.Limit.Requests, cfg.Limit.Window), func() { _ = client.Close() }
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowedOrigins := map[string]bool{}
	for _, origin := range origins {
		allowedOrigins[origin] = true
	}
	slog.Info("cors configured", "origins", origins)
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowedOrigins[origin]
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("could not open data store", "error", err)
		os.Exit(1)
	}

	var mail mailer.Mailer = mailer.LogMailer{Logger: slog.Default()}
	if cfg.MailConfigured() {
		mail = mailer.NewSMTPMailer(cfg.Mail)
	} else {
		slog.Warn("EMAIL_SERVER_HOST not set, emails are logged instead of sent")
	}

	storage, closeStorage, err := utils.NewObjectStorage(ctx, cfg)
	if err != nil {
		slog.Error("could not configure image storage", "error", err)
		os.Exit(1)
	}
	defer closeStorage()
	if storage == nil {
		slog.Warn("image storage not configured, uploads are disabled")
	} else {
		slog.Info("image storage configured", "provider", cfg.Storage.Provider)
	}

	limiter, closeLimiter := newLimiter(cfg)
	defer closeLimiter()

	auth := services.NewAuthService(st.users, mail, cfg)
	if err := auth.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		slog.Error("could not seed admin user", "error", err)
		os.Exit(1)
	}

	notifier := services.NewNotifier(st.users, mail, cfg.AppURL, 0)
	maxUpload := int64(cfg.Storage.MaxUploadMB) << 20

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	err = controllers.RegisterRoutes(r, controllers.Deps{
		Auth:      auth,
		Jobs:      services.NewListingService[models.Job](st.jobs, notifier, storage, maxUpload),
		Courses:   services.NewListingService[models.Course](st.courses, notifier, storage, maxUpload),
		Dashboard: services.NewDashboardService(st.users, st.jobs, st.courses),
		Cookies: controllers.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			TTL:    cfg.SessionTTL(),
		},
		Limiter:   limiter,
		MaxUpload: maxUpload,

		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		slog.Error("could not register routes", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}

	// let queued emails go out before the store closes
	notifier.Wait()
	auth.Wait()

	if st.client != nil {
		if err := st.client.Disconnect(shutdownCtx); err != nil {
			slog.Error("mongo disconnect", "error", err)
		}
	}
}
