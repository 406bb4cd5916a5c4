package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jcdickinson/rsdocseek/internal/config"
	"github.com/jcdickinson/rsdocseek/internal/daemon"
	"github.com/jcdickinson/rsdocseek/internal/source"
	"github.com/spf13/cobra"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Delete cached remote search-index payloads",
	Run:   runClearCache,
}

func runClearCache(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		// No daemon to ask; the cache is plain files.
		if err := source.CacheClear(); err != nil {
			slog.Error("failed to clear cache", "error", err)
			os.Exit(1)
		}
		fmt.Println("payload cache cleared")
		return
	}

	if err := client.ClearCache(context.Background()); err != nil {
		slog.Error("failed to clear cache", "error", err)
		os.Exit(1)
	}
	fmt.Println("payload cache cleared")
}
