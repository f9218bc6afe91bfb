package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/sellerstream/ozon-fbo-client/internal/config"
	"github.com/sellerstream/ozon-fbo-client/internal/server"
	"github.com/sellerstream/ozon-fbo-client/internal/testutil"
	"github.com/sellerstream/ozon-fbo-client/pkg/cache"
	"github.com/sellerstream/ozon-fbo-client/pkg/logging"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	// Optional Redis-backed detail cache.
	var detailCache *cache.Manager
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		detailCache = cache.NewManager(redisClient, cfg.Redis.CachePrefix, cfg.Redis.CacheTTL)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Detail cache enabled")
	}

	// Mock mode serves fixture data instead of the real Seller API.
	if cfg.Ozon.UseMock {
		mock := testutil.NewMockSeller()
		mock.SetPostings(25)
		defer mock.Close()
		cfg.Ozon.BaseURL = mock.URL()
		logger.Warn().Str("base_url", mock.URL()).Msg("Mock Seller API enabled")
	}

	srv := server.New(cfg, detailCache)

	addr := net.JoinHostPort(cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  cfg.App.IdleTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Starting FBO gateway")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")
	if err := httpServer.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
}
