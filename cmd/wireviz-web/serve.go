package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"wireviz-web/internal/config"
	"wireviz-web/internal/http/server"
	"wireviz-web/internal/infra/logging"
	"wireviz-web/internal/infra/postgres"
	"wireviz-web/internal/infra/wireviz"
	"wireviz-web/internal/tokens"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rendering service",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	// Allow common container env var to override the engine path.
	if v := os.Getenv("WIREVIZ_BIN"); v != "" {
		cfg.Engine.Path = v
	}

	if err := ensureLogDir(cfg.Logger.File); err != nil {
		logging.Error("Failed to create log directory", "file", cfg.Logger.File, "error", err)
	}
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RenderCacheDB,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokenCache := tokens.NewCache()
	if cfg.Auth.Enabled {
		dsn, err := postgres.DSN(cfg.Auth.Postgres)
		if err != nil {
			logging.Error("Invalid postgres configuration", "error", err)
			os.Exit(1)
		}
		repo := postgres.NewTokenRepository(postgres.NewDB(), dsn)
		reloader := tokens.NewReloader(repo, tokenCache, cfg.Auth.TokenReloadInterval.Std())
		if err := reloader.LoadOnce(ctx); err != nil {
			logging.Error("Failed to load API tokens", "error", err)
		}
		reloader.Start(ctx)
	}

	app := server.New(server.Deps{
		Config: cfg,
		Redis:  rdb,
		Runner: wireviz.New(cfg),
		Tokens: tokenCache,
	})

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}

// ensureLogDir creates the parent directory of the log file if needed.
func ensureLogDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
