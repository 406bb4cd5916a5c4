package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jcdickinson/rsdocseek/internal/config"
	"github.com/jcdickinson/rsdocseek/internal/daemon"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background daemon (usually spawned automatically)",
	Run:   runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) {
	logPath := config.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		slog.Error("failed to create log directory", "error", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	srv, err := daemon.NewServer(cfg, config.SocketPath())
	if err != nil {
		slog.Error("failed to create daemon", "error", err)
		os.Exit(1)
	}
	slog.Info("daemon starting", "sources", len(cfg.Sources), "default_mode", cfg.Search.DefaultMode)
	if err := srv.Start(context.Background()); err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}
