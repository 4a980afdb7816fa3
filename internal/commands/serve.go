package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/logwell-systems/logwell/internal/auth"
	"github.com/logwell-systems/logwell/internal/config"
	"github.com/logwell-systems/logwell/internal/events"
	"github.com/logwell-systems/logwell/internal/handlers"
	"github.com/logwell-systems/logwell/internal/logging"
	"github.com/logwell-systems/logwell/internal/ratelimit"
	"github.com/logwell-systems/logwell/internal/repository"
	"github.com/logwell-systems/logwell/internal/search"
	"github.com/logwell-systems/logwell/internal/server"
	"github.com/logwell-systems/logwell/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingest and incident API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	connString := cfg.Database.Postgres.URL()
	logger.Info("running database migrations")
	if err := repository.Migrate(connString); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repo, err := repository.NewPostgresRepository(ctx, connString, cfg.Incidents.ReopenThreshold)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer repo.Close()

	var limiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
	if cfg.Redis.Enabled {
		limiter, err = ratelimit.NewRedisRateLimiter(cfg.Redis.URL, cfg.Ingest.RateLimit, time.Minute)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("redis rate limiting enabled", "limit_per_minute", cfg.Ingest.RateLimit)
	}
	defer limiter.Close()

	var publisher events.Publisher = events.NoOpPublisher{}
	if cfg.NATS.Enabled {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		publisher = natsPublisher
		logger.Info("nats event publishing enabled", "url", cfg.NATS.URL)
	}
	defer publisher.Close()

	var indexer search.Indexer = search.NoOpIndexer{}
	if cfg.Search.Enabled {
		osIndexer, err := search.NewOpenSearchIndexer(search.Config{
			URL:           cfg.Search.URL,
			Username:      cfg.Search.Username,
			Password:      cfg.Search.Password,
			TLSSkipVerify: cfg.Search.Insecure,
			Index:         cfg.Search.Index,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to opensearch: %w", err)
		}
		indexer = osIndexer
		logger.Info("search mirroring enabled", "index", cfg.Search.Index)
	}
	defer indexer.Close()

	svc := service.New(repo, publisher, indexer, logger, cfg.Incidents.ReopenThreshold)
	handler := handlers.NewHandler(svc, limiter, logger, cfg.Ingest.MaxBodyBytes)

	resolver := auth.NewKeyResolver(cfg.Ingest.APIKeys)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)
	router := server.NewRouter(handler, resolver, verifier)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down", "reason", ctx.Err().Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
