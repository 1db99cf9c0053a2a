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
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/typerace-go/internal/api"
	"github.com/mcoot/typerace-go/internal/config"
	"github.com/mcoot/typerace-go/internal/factory"
)

func main() {
	// A .env file is optional; the real environment always wins
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("could not load .env file", slog.String("error", envErr.Error()))
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create application factory
	app, err := factory.New(ctx, factory.FromConfig(cfg, logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("error closing application", slog.String("error", err.Error()))
		}
	}()

	// Load the prompt catalog
	if _, err := app.PromptService.LoadFromFile(ctx, cfg.PromptsPath); err != nil {
		logger.Warn("could not load prompts",
			slog.String("path", cfg.PromptsPath),
			slog.String("error", err.Error()),
		)
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		App:            app,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	server := api.NewServer(router, api.ServerConfigFrom(cfg), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		return server.Shutdown(context.Background())
	})
	return g.Wait()
}
