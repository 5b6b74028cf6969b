package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chorus-im/chorus/internal/banner"
	"github.com/chorus-im/chorus/internal/logger"
	"github.com/chorus-im/chorus/internal/signaling/app"
	"github.com/chorus-im/chorus/internal/signaling/config"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	banner.Print("Chorus Signaling Daemon", []banner.ConfigLine{
		{Label: "JID", Value: cfg.LocalJID},
		{Label: "Listen", Value: cfg.ListenAddr()},
		{Label: "Metrics", Value: cfg.MetricsAddr},
		{Label: "Session timeout", Value: cfg.SessionTimeout.String()},
	})

	engine, err := app.NewServer(cfg)
	if err != nil {
		slog.Error("Failed to create signaling engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	run(engine, cfg)
}

func run(engine *app.Engine, cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := engine.Start(ctx); err != nil {
			slog.Error("Engine error", "error", err)
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Received signal, shutting down", "signal", sig)
	cancel()

	time.Sleep(1 * time.Second)
}
