package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/wareact/internal/config"
	"github.com/nextlevelbuilder/wareact/internal/httpapi"
	"github.com/nextlevelbuilder/wareact/internal/reactor"
	"github.com/nextlevelbuilder/wareact/internal/wa"
)

func runAgent() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	logLevel := cfg.SlogLevel()
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if err := os.MkdirAll(cfg.Bridge.SessionDir, 0755); err != nil {
		slog.Error("failed to create session directory", "dir", cfg.Bridge.SessionDir, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The reactor and the bridge client reference each other (handler one
	// way, transport the other), so the transport is wired after both exist.
	r := reactor.New(ctx, cfg, nil)
	client, err := wa.NewClient(cfg.Bridge.URL, cfg.Bridge.SessionDir, r)
	if err != nil {
		slog.Error("failed to create bridge client", "error", err)
		os.Exit(1)
	}
	r.SetTransport(client)

	api := httpapi.NewServer(cfg.HTTP, r, client)
	api.Start()

	if err := client.Start(ctx); err != nil {
		slog.Error("failed to start bridge client", "error", err)
		os.Exit(1)
	}

	slog.Info("wareact starting",
		"version", Version,
		"bridge", cfg.Bridge.URL,
		"groups", cfg.GroupFragments(),
		"emoji", cfg.Reaction.Emoji,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		slog.Info("graceful shutdown initiated", "signal", sig)
	case err := <-r.Fatal():
		slog.Error("unrecoverable error", "error", err)
		exitCode = 1
	case err := <-api.Err():
		slog.Error("control API failed", "error", err)
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		slog.Warn("control API shutdown failed", "error", err)
	}
	if err := client.Stop(shutdownCtx); err != nil {
		slog.Warn("bridge client stop failed", "error", err)
	}
	cancel()
	os.Exit(exitCode)
}
