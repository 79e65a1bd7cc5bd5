package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/dsmovie/internal/auth"
	"github.com/Clark-Hu/dsmovie/internal/cache"
	"github.com/Clark-Hu/dsmovie/internal/catalog"
	"github.com/Clark-Hu/dsmovie/internal/config"
	httpserver "github.com/Clark-Hu/dsmovie/internal/http"
	"github.com/Clark-Hu/dsmovie/internal/logging"
	"github.com/Clark-Hu/dsmovie/internal/repository"
	"github.com/Clark-Hu/dsmovie/internal/scoring"
	"github.com/Clark-Hu/dsmovie/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("config error", zap.Error(err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("init logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", "dsmovie"))

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logging.Component(logger, "store"),
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer st.Close()

	var movieCache catalog.Cache = cache.Nop{}
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(dbCtx, cfg.RedisURL, time.Duration(cfg.CacheTTLSecs)*time.Second)
		if err != nil {
			logger.Warn("redis unavailable, movie cache disabled", zap.Error(err))
		} else {
			defer func() { _ = redisCache.Close() }()
			movieCache = redisCache
		}
	}

	repo := repository.New(st)
	issuer := auth.JWTIssuer{Secret: []byte(cfg.JWTSecret), TTL: time.Duration(cfg.JWTTTLMinutes) * time.Minute}

	server := httpserver.New(cfg, httpserver.Deps{
		Health:  st,
		Catalog: catalog.New(repo.Movies, movieCache, logger),
		Scoring: scoring.New(repo.Users, scoring.NewPostgresUnitOfWork(repo),
			scoring.WithRange(scoring.Range{Min: cfg.ScoreMin, Max: cfg.ScoreMax}),
			scoring.WithLogger(logger),
		),
		Auth:     auth.NewAuthenticator(repo.Users, issuer),
		Verifier: auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)},
		Logger:   logger,
	})

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("graceful shutdown error", zap.Error(err))
	}
	logger.Info("stopped")
}
