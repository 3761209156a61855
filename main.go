package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/claim-console/internal/auth"
	"github.com/example/claim-console/internal/claimclient"
	"github.com/example/claim-console/internal/config"
	"github.com/example/claim-console/internal/handlers"
	"github.com/example/claim-console/internal/logging"
	"github.com/example/claim-console/internal/session"
)

// writeSlack is added to the upload timeout so a slow claim still gets its response written.
const writeSlack = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Server.ShutdownTimeout < cfg.API.UploadTimeout {
		logger.Warn("SHUTDOWN_TIMEOUT is shorter than UPLOAD_TIMEOUT, claims in flight may be cut off on shutdown",
			zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout),
			zap.Duration("upload_timeout", cfg.API.UploadTimeout),
		)
	}
	if cfg.Session.Secret == "dev-secret" {
		logger.Warn("SESSION_SECRET is the development default")
	}

	cache := initCache(cfg.Redis, logger)

	client := claimclient.New(claimclient.Options{
		HealthTimeout: cfg.API.HealthTimeout,
		UploadTimeout: cfg.API.UploadTimeout,
	}, logger)
	registry := session.NewRegistry(cache, cfg.API.BaseURL, cfg.Session.TTL, logger)
	manager := session.NewManager(client, registry, logger)

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(cfg, manager, logger)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.API.UploadTimeout + writeSlack,
	}

	logger.Info("claim console listening",
		zap.String("addr", server.Addr),
		zap.String("api_url", cfg.API.BaseURL),
		zap.Duration("upload_timeout", cfg.API.UploadTimeout),
	)
	if err := serveHTTPServer(server, cfg.Server.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newRouter(cfg *config.Config, manager *session.Manager, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))
	r.MaxMultipartMemory = cfg.Server.MaxUploadSize

	h := handlers.NewHandler(manager, cfg.Server.MaxUploadSize, logger)
	handlers.RegisterRoutes(r, h, auth.SessionMiddleware(cfg.Session.Secret, cfg.Session.TTL, logger))
	return r
}

func initCache(cfg config.RedisConfig, zapLogger *zap.Logger) session.Cache {
	if cfg.Addr == "" {
		zapLogger.Info("session settings kept in memory")
		return session.NewMemoryCache()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err), zap.String("addr", cfg.Addr))
	}
	zapLogger.Info("session settings stored in redis", zap.String("addr", cfg.Addr))
	return session.NewRedisCache(client)
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(ctx)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			logger.Warn("shutdown deadline reached, closing in-flight claim requests",
				zap.Duration("shutdown_timeout", shutdownTimeout))
			if closeErr := server.Close(); closeErr != nil {
				logger.Warn("failed to close connections", zap.Error(closeErr))
			}
		case err != nil && !errors.Is(err, context.Canceled):
			return err
		}
		return <-errCh
	}
}
