package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mcoot/rublocks/internal/api"
	"github.com/mcoot/rublocks/internal/factory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

// run serves until ctx is done or the server fails, and returns the process
// exit code. Deferred cleanup runs before main exits.
func run(ctx context.Context) int {
	// A missing .env is fine; real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		return 1
	}

	envCfg, err := factory.LoadEnvConfig()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: envCfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	app, err := factory.New(envCfg.FactoryConfig(logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return 1
	}
	defer func() { _ = app.Close() }()

	logger.Info("storage ready", slog.String("type", envCfg.StorageType))

	router := api.NewRouter(api.RouterConfig{
		Logger:       logger,
		AuthService:  app.AuthService,
		StatsService: app.StatsService,
		AdminService: app.AdminService,
		HubManager:   app.HubManager,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = envCfg.HTTPHost
	serverConfig.Port = envCfg.HTTPPort
	server := api.NewServer(router, serverConfig, logger)

	go app.RunMaintenance(ctx, envCfg.MaintenanceInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// Close streams first so Shutdown is not held open by them
		app.HubManager.Close()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}
