package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"moviecatalog/internal/util"
	"moviecatalog/pkg/queue"
	"moviecatalog/pkg/store"
	"moviecatalog/services/catalog/internal/app"
	"moviecatalog/services/catalog/internal/config"
	"moviecatalog/services/catalog/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer redisClient.Close()

	purgeQueue, err := queue.New(redisClient, queue.Config{
		Stream:      cfg.PurgeStream,
		Group:       cfg.PurgeGroup,
		MaxAttempts: cfg.PurgeMaxAttempts,
	})
	if err != nil {
		log.Fatalf("failed to init purge queue: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:      cfg.DatabaseURL,
		MinioEndpoint:    cfg.MinioEndpoint,
		MinioAccessKey:   cfg.MinioAccessKey,
		MinioSecretKey:   cfg.MinioSecretKey,
		MinioBucket:      cfg.MinioBucket,
		MinioUseSSL:      cfg.MinioUseSSL,
		MediaPublicURL:   cfg.MediaPublicURL,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		AllowedImageExts: cfg.AllowedImageExts,
		JWTSecret:        cfg.JWTSecret,
		JWTIssuer:        cfg.JWTIssuer,
		JWTAudience:      cfg.JWTAudience,
		JWTTTL:           cfg.JWTTTL,
		JWTLeeway:        cfg.JWTLeeway,
		Revoker:          store.NewRedisTokenRevoker(redisClient, "catalog:revoked", cfg.JWTTTL+cfg.JWTLeeway),
		Purger:           purgeQueue,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	if cfg.SeedUsers {
		seeded, err := appCore.SeedUsers(ctx, cfg.SeedPassword)
		if err != nil {
			log.Fatalf("failed to seed users: %v", err)
		}
		if seeded {
			logger.Info("seeded default users")
		}
	}

	go func() {
		if err := purgeQueue.Run(ctx, cfg.PurgeConcurrency, appCore.PurgeImage); err != nil {
			logger.Error("purge queue stopped", "err", err)
		}
	}()

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		Redis:                      redisClient,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		CORSAllowedOrigins:         cfg.CORSAllowedOrigins,
		TrustedProxyCIDRs:          cfg.TrustedProxyCIDRs,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("catalog server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
