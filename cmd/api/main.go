package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reddert/notification-system/internal/app/migrate"
	httpx "github.com/reddert/notification-system/internal/http"
	"github.com/reddert/notification-system/internal/repository/postgres"
	"github.com/reddert/notification-system/internal/service/auth"
	"github.com/reddert/notification-system/internal/service/membership"
	"github.com/reddert/notification-system/internal/service/notification"
	"github.com/reddert/notification-system/internal/service/team"
	"github.com/reddert/notification-system/internal/service/user"
	"github.com/reddert/notification-system/internal/ws"
	"github.com/reddert/notification-system/pkg/config"
	"github.com/reddert/notification-system/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	level := slog.LevelInfo
	if cfg.Environment == "development" {
		level = slog.LevelDebug
	}
	log := logger.New("api", level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub()

	channels := []notification.Channel{notification.NewInAppChannel(hub)}
	if addr := strings.TrimSpace(cfg.SMTPAddr); addr != "" {
		channels = append(channels, notification.NewEmailChannel(addr, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword))
	}
	notifySvc := notification.New(repo, repo, log, channels...)

	authSvc := auth.New(repo, log, cfg)
	userSvc := user.New(repo, log)
	teamSvc := team.New(repo, repo, log)
	memberSvc := membership.New(repo, repo, repo, notifySvc, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, userSvc, teamSvc, memberSvc, notifySvc, hub, limiter, pool.Ping, cfg.WSSendBuffer)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
