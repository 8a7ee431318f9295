package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leafsii/appconfig/internal/api"
	"github.com/leafsii/appconfig/internal/config"
	"github.com/leafsii/appconfig/internal/log"
	"github.com/leafsii/appconfig/internal/metrics"
	"github.com/leafsii/appconfig/pkg/appconfig"
)

var serveFlags = map[string]string{
	"addr":           "APPCONFIG_HTTP_ADDR",
	"env":            "APPCONFIG_ENV",
	"log-level":      "APPCONFIG_LOG_LEVEL",
	"env-file":       "APPCONFIG_ENV_FILES",
	"remote-backend": "APPCONFIG_REMOTE_BACKEND",
	"redis-url":      "APPCONFIG_REDIS_URL",
	"redis-host":     "APPCONFIG_REDIS_HOST",
	"redis-port":     "APPCONFIG_REDIS_PORT",
	"redis-db":       "APPCONFIG_REDIS_DB",
	"rate-limit-rpm": "APPCONFIG_RATE_LIMIT_RPM",
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin HTTP server",
		Long: `Start the admin HTTP server. Every flag can also be set through the
APPCONFIG_* variable shown in its description; flags win.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			for flag, key := range serveFlags {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.String("addr", ":8080", "listen address (APPCONFIG_HTTP_ADDR)")
	f.String("env", "dev", "environment: dev, staging or prod (APPCONFIG_ENV)")
	f.String("log-level", "", "log level override (APPCONFIG_LOG_LEVEL)")
	f.StringSlice("env-file", nil, "dotenv files loaded into the env namespace (APPCONFIG_ENV_FILES)")
	f.String("remote-backend", "redis", "remote backend: redis, memory or none (APPCONFIG_REMOTE_BACKEND)")
	f.String("redis-url", "", "redis URL, takes precedence over host and port (APPCONFIG_REDIS_URL)")
	f.String("redis-host", "", "redis host (APPCONFIG_REDIS_HOST)")
	f.Int("redis-port", 6379, "redis port (APPCONFIG_REDIS_PORT)")
	f.Int("redis-db", 0, "redis database index (APPCONFIG_REDIS_DB)")
	f.Int("rate-limit-rpm", 600, "requests per minute, 0 disables (APPCONFIG_RATE_LIMIT_RPM)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	logger.Infow("Starting appconfig server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"version", Version,
	)

	metricsObj, metricsHandler, err := metrics.Setup("appconfig")
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}
	defer metricsObj.Shutdown(context.Background())

	store := appconfig.New(
		appconfig.WithLogger(logger),
		appconfig.WithRecorder(metricsObj),
	)
	defer store.Close()

	if cfg.Remote.Enabled() {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Remote.ProbeTimeout+time.Second)
		err := store.ConnectRemote(connectCtx, cfg.Remote.KV())
		cancel()
		if err != nil {
			return fmt.Errorf("connect remote store: %w", err)
		}
	} else {
		logger.Warnw("Remote store disabled; remote items are unavailable", "backend", cfg.Remote.Backend)
	}

	if len(cfg.EnvFiles) > 0 {
		n, err := store.LoadEnvFiles(cfg.EnvFiles...)
		if err != nil {
			return fmt.Errorf("load env files: %w", err)
		}
		logger.Infow("Environment files loaded", "files", cfg.EnvFiles, "variables", n)
	}

	handler := api.NewHandler(store, logger)
	middleware := api.NewMiddleware(logger, metricsObj)
	router := handler.Routes(middleware, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM, metricsHandler)

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server startup failed: %w", err)
	case <-ctx.Done():
		logger.Infow("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
		return nil
	}
}
