package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/synthtune/internal/api"
	"github.com/dgallion1/synthtune/internal/artifacts"
	"github.com/dgallion1/synthtune/internal/config"
	"github.com/dgallion1/synthtune/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(log); err != nil {
		log.Error("synthtune server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return fmt.Errorf("env file %s: %w", envFile, err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := pipeline.NewClients(cfg)
	if err != nil {
		return fmt.Errorf("llm clients: %w", err)
	}
	defer clients.Close()

	store, err := artifacts.New(ctx, pipeline.ArtifactConfig(cfg))
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}

	orch := pipeline.NewOrchestrator(cfg, clients, store, log)
	orch.Start(context.WithoutCancel(ctx))
	defer orch.Stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewServer(orch, log, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting synthtune",
			"port", cfg.Port,
			"provider", cfg.LLMProvider,
			"model", clients.Generator.Model(),
			"workers", cfg.WorkerCount,
			"artifact_dir", cfg.ArtifactDir,
			"s3_bucket", cfg.S3Bucket,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
