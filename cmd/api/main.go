//	@title			Samiti Portal API
//	@version		1.0
//	@description	Backend for the community-welfare society portal: admin login, file uploads and the public gallery.
//
//	@host		localhost:5011
//	@BasePath	/api
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/samiti/portal/internal/auth"
	"github.com/samiti/portal/internal/config"
	"github.com/samiti/portal/internal/db"
	"github.com/samiti/portal/internal/gallery"
	"github.com/samiti/portal/internal/health"
	"github.com/samiti/portal/internal/logging"
	appMiddleware "github.com/samiti/portal/internal/middleware"
	"github.com/samiti/portal/internal/storage"
	"github.com/samiti/portal/internal/upload"
	"github.com/samiti/portal/internal/user"

	_ "github.com/samiti/portal/docs/swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(os.Stdout, cfg.AppEnv, cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, logging.Component(log, "db"))
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, logging.Component(log, "db")); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	store, err := newStorage(ctx, cfg, logging.Component(log, "storage"))
	if err != nil {
		return fmt.Errorf("storage init failed: %w", err)
	}

	blacklist, closeBlacklist, err := newBlacklist(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("token blacklist init failed: %w", err)
	}
	defer closeBlacklist()

	// Wire dependencies: repository → service → handler
	userSvc := user.NewService(user.NewRepository(pool))
	userHandler := user.NewHandler(userSvc, logging.Component(log, "user"))

	authLog := logging.Component(log, "auth")
	authSvc := auth.NewService(userSvc, auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL), blacklist, authLog)
	authHandler := auth.NewHandler(authSvc, authLog)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, user.NormalizeEmail(cfg.AdminEmail), cfg.AdminPassword, cfg.AdminName); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	uploadLog := logging.Component(log, "upload")
	uploadHandler := upload.NewHandler(
		upload.NewBroker(upload.NewKeyGenerator()),
		upload.NewWriter(store, uploadLog),
		store,
		upload.Options{MaxBytes: cfg.UploadMaxBytes, Timeout: cfg.UploadTimeout},
		uploadLog,
	)

	galleryLog := logging.Component(log, "gallery")
	galleryHandler := gallery.NewHandler(gallery.NewService(gallery.NewRepository(pool)), galleryLog)

	requireAuth := appMiddleware.RequireAuth(authSvc)
	requireAdmin := appMiddleware.RequireAdmin(authSvc)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logging.Component(log, "http")))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         300,
	}))

	health.NewHandler(pool, logging.Component(log, "health")).Routes(r)

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", userHandler.GetMe)
			r.Post("/logout", authHandler.Logout)
		})
	})

	uploadHandler.Routes(r, requireAdmin)
	galleryHandler.Routes(r, requireAdmin)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func newStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.StorageBackend == config.StorageMinio {
		s, err := storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			UseSSL:    cfg.StorageUseSSL,
		}, log)
		if err != nil {
			return nil, err
		}
		log.Info("using object storage", "endpoint", cfg.StorageEndpoint, "bucket", cfg.StorageBucket)
		return s, nil
	}

	dir, err := storage.ResolveUploadDir(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	s, err := storage.NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}
	log.Info("using local storage", "dir", dir)
	return s, nil
}

func newBlacklist(ctx context.Context, cfg *config.Config, log *slog.Logger) (auth.Blacklist, func(), error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, token revocations are kept in memory")
		return auth.NewMemoryBlacklist(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to redis", "addr", cfg.RedisAddr)
	return auth.NewRedisBlacklist(rdb, "portal:revoked:"), func() { _ = rdb.Close() }, nil
}
