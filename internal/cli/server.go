package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-gateway/internal/app"
	"quiz-gateway/internal/backend"
	"quiz-gateway/internal/config"
	"quiz-gateway/internal/identity"
	"quiz-gateway/internal/infra/memory"
	redisinfra "quiz-gateway/internal/infra/redis"
	transport "quiz-gateway/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the gateway.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend base url not configured")
	}

	logger, err := newLogger(cfg.Server.Mode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	backendTimeout := config.TTLDuration(cfg.Backend.Timeout, 15*time.Second)
	backendClient := backend.NewClient(cfg.Backend.BaseURL, backendTimeout, logger)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)

	var provider app.CatalogProvider
	if redisClient != nil {
		provider = redisinfra.NewCatalogCache(redisClient, backendClient, catalogTTL)
	} else {
		provider = memory.NewCatalogCache(backendClient, catalogTTL)
	}
	catalog := app.NewCatalog(provider, logger)
	// a failed initial load is recoverable; the shell's banner offers a retry
	if err := catalog.Refresh(ctx); err != nil {
		logger.Warn("initial catalog load failed, serving with retry", zap.Error(err))
	}

	var registry app.AttemptRegistry
	if redisClient != nil {
		registry = redisinfra.NewAttemptRegistry(redisClient, redisTTL)
	} else {
		registry = memory.NewAttemptRegistry()
	}

	attempts := app.NewAttemptService(backendClient, catalog, registry, logger)
	attempts.SetIntervals(
		config.TTLDuration(cfg.Attempt.Tick, time.Second),
		config.TTLDuration(cfg.Attempt.CheckInterval, 10*time.Second),
	)

	verifier := identity.NewVerifier(cfg.Identity.JWTSecret, cfg.Identity.Issuer)
	handler := transport.NewHandler(attempts, catalog, verifier, logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Router(cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz gateway", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
