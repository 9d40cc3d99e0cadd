package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets/api"
	"github.com/atlas-labs/atlas-assets/pkg/atlasassets/config"
)

// ServerConfig holds the process-level settings. Service configuration
// (database, storage, upload policy) is read through config.WithEnv.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	EnvPrefix   string `env:"ENV_PREFIX" env-default:""`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var serverConfig ServerConfig
	if err := cleanenv.ReadEnv(&serverConfig); err != nil {
		logger.Error("failed to read server configuration", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(config.WithEnv(serverConfig.EnvPrefix))
	if err != nil {
		logger.Error("failed to load asset configuration", "error", err)
		os.Exit(1)
	}

	if cfg.DatabaseType == "postgres" {
		if err := config.PingPostgres(cfg.DatabaseURL, cfg.DBSchema); err != nil {
			logger.Error("database check failed", "error", err)
			os.Exit(1)
		}
	}

	svc, err := cfg.BuildService()
	if err != nil {
		logger.Error("failed to build asset service", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]string{"status": "ok"})
	})

	r.Mount("/api/v1/assets", api.NewAssetsHandler(svc, logger).Routes())

	signer := cfg.BuildStreamSigner()
	r.Mount("/assets", api.NewStreamHandler(svc, signer, logger).Routes())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: r,
	}

	go func() {
		logger.Info("atlas-assets server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"database", cfg.DatabaseType,
			"storage", cfg.StorageBackend)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}
