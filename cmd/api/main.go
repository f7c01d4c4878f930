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

	"github.com/Shoofai/apimarketplace-sub002/internal/app/migrate"
	httpx "github.com/Shoofai/apimarketplace-sub002/internal/http"
	"github.com/Shoofai/apimarketplace-sub002/internal/repository/postgres"
	"github.com/Shoofai/apimarketplace-sub002/internal/service/notify"
	"github.com/Shoofai/apimarketplace-sub002/internal/service/sla"
	"github.com/Shoofai/apimarketplace-sub002/internal/ws"
	"github.com/Shoofai/apimarketplace-sub002/pkg/config"
	"github.com/Shoofai/apimarketplace-sub002/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

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
	notificationHub := ws.NewHub()
	notifySvc := notify.New(repo, notificationHub, log, cfg)

	computeJob := sla.NewJob(repo, repo, repo, repo, repo, repo, notifySvc, log, sla.JobOptions{
		FetchLimit:  cfg.RequestLogFetchLimit,
		EvalTimeout: cfg.SLAEvalTimeout,
		Interval:    cfg.SLAComputeInterval,
	})
	if cfg.SLAComputeInterval > 0 {
		go computeJob.RunLoop(ctx)
	}

	statusSvc := sla.NewStatusService(repo, repo, repo, log, cfg.RequestLogFetchLimit)
	resourceSvc := sla.NewResourceService(repo, repo, repo)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, computeJob, statusSvc, resourceSvc, repo, notificationHub, limiter, cfg.JWTSecret, cfg.CronSecret, cfg.GatewayIngestToken, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
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
