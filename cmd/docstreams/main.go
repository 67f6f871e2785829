// Package main implements the entry point for the docstreams engine.
// docstreams translates tagged document streams: it extracts values from
// incoming runs, assembles them into derived runs, and persists and
// republishes the result.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/docstreams/config"
	"github.com/c360/docstreams/engine"
	"github.com/c360/docstreams/metric"
	"github.com/c360/docstreams/natsclient"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "docstreams"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cliCfg.LogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	logger := setupLogger(level, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting docstreams (document stream translation)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"pipelines", len(cfg.Pipelines))

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	registry := metric.NewMetricsRegistry()

	client, err := natsclient.New(cfg.NATS,
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry.CoreMetrics()))
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer client.Close()

	eng, err := engine.New(cfg, client,
		engine.WithLogger(logger),
		engine.WithMetrics(registry))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	return runWithSignalHandling(eng, client, cliCfg.ShutdownTimeout)
}

// runWithSignalHandling starts the engine and shuts it down cleanly on
// SIGINT or SIGTERM.
func runWithSignalHandling(eng *engine.Engine, client *natsclient.Client, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := eng.Start(signalCtx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	slog.Info("docstreams started")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := eng.Stop(shutdownCtx); err != nil {
		slog.Error("Error stopping engine", "error", err)
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := client.Drain(); err != nil {
		slog.Warn("NATS drain failed", "error", err)
	}

	slog.Info("docstreams shutdown complete")
	return nil
}
