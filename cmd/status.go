package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jcdickinson/rsdocseek/internal/config"
	"github.com/jcdickinson/rsdocseek/internal/daemon"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show loaded indexes and daemon state",
	Run:   runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	if len(resp.Indexes) == 0 {
		fmt.Println("no indexes loaded")
	}
	for _, ix := range resp.Indexes {
		cached := ""
		if ix.Cached {
			cached = ", cached"
		}
		fmt.Printf("  %s: %d items, %d names, %d packages (loaded %s from %s%s)\n",
			ix.Name, ix.Items, ix.Keys, ix.Packages, ix.LoadedAt, ix.Source, cached)
	}
	for _, name := range resp.Configured {
		fmt.Printf("  %s: configured, not loaded\n", name)
	}
}

var unloadCmd = &cobra.Command{
	Use:   "unload NAME ...",
	Short: "Drop loaded indexes from the daemon",
	Args:  cobra.MinimumNArgs(1),
	Run:   runUnload,
}

func runUnload(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	resp, err := client.Unload(context.Background(), args)
	if err != nil {
		log.Fatalf("unload failed: %v", err)
	}
	if len(resp.Unloaded) == 0 {
		fmt.Println("nothing unloaded")
		return
	}
	for _, name := range resp.Unloaded {
		fmt.Printf("  %s: unloaded\n", name)
	}
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// A reset connection is expected; the daemon exits right after responding.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}
