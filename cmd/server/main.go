package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/cropscan/internal/config"
	"github.com/iudanet/cropscan/internal/server"
	"github.com/iudanet/cropscan/internal/server/archive"
	"github.com/iudanet/cropscan/internal/server/inference"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file (environment only if empty)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("CropScan server starting",
		slog.String("version", Version),
		slog.String("env", cfg.Env),
		slog.String("addr", cfg.Addr()),
	)

	store, err := server.OpenStorage(ctx, cfg.DB.URL, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	deps := server.Deps{
		Store:    store,
		Analyzer: inference.NewGateway(logger, cfg.ML.URL, cfg.ML.Timeout),
	}

	if cfg.ArchiveEnabled() {
		arch, err := archive.New(ctx, archive.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to init image archive: %w", err)
		}
		deps.Archive = arch
		logger.Info("Image archive enabled", slog.String("bucket", cfg.S3.Bucket))
	}

	return server.New(cfg, logger, Version, deps).Run(ctx)
}

func setupLogger(env string) *slog.Logger {
	var handler slog.Handler

	switch env {
	case config.EnvDev:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	case config.EnvProd:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	return slog.New(handler)
}

func printVersion() {
	fmt.Printf("CropScan Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
