package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Masterminds/semver/v3"

	"concierge/config"
	"concierge/internal/clientfs"
	"concierge/internal/httpapi"
	"concierge/internal/registry"
	"concierge/internal/ws"
)

// Version is injected at build time with -ldflags.
var Version = "0.2.0-dev"

func main() {
	configPath := flag.String("config", "", "Path to the configuration file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	fsRoot := flag.String("fs-root", "", "Per-user file tree root (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging (auto-enabled for dev builds)")
	flag.Parse()

	// Auto-enable debug logging for dev builds; override with -debug flag.
	level := slog.LevelInfo
	if *debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *fsRoot != "" {
		cfg.FSRoot = *fsRoot
	}

	versionReq, err := semver.NewConstraint(cfg.MinVersion)
	if err != nil {
		slog.Error("parse min_version", "min_version", cfg.MinVersion, "err", err)
		os.Exit(1)
	}

	slog.Info("starting concierge", "version", cfg.Version, "addr", cfg.Addr, "fs_root", cfg.FSRoot)

	reg := registry.New(cfg.Version)

	files, err := clientfs.NewStore(cfg.FSRoot, reg)
	if err != nil {
		slog.Error("initialize file store", "err", err)
		os.Exit(1)
	}

	server := httpapi.New(reg, files, ws.Config{
		VersionReq: versionReq,
		Secret:     cfg.Secret,
		FSRoot:     cfg.FSRoot,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("received shutdown signal")
		cancel()
	}()

	slog.Info("listening", "addr", cfg.Addr)
	if err := server.Run(ctx, cfg.Addr); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
