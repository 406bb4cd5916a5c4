package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcdickinson/rsdocseek/internal/config"
	"github.com/jcdickinson/rsdocseek/internal/daemon"
	"github.com/jcdickinson/rsdocseek/internal/mcp"
	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "rsdocseek",
	Short: "Rust API name search over rustdoc search indexes (MCP server)",
	Long: `rsdocseek loads rustdoc search-index payloads into a background daemon and
answers name queries against them. Run without a subcommand it serves the
MCP tools load_index, search_items and list_indexes over stdio.`,
	Run: runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "run daemon in-process (visible log output)")

	rootCmd.AddCommand(
		daemonCmd,
		loadCmd,
		searchCmd,
		statusCmd,
		unloadCmd,
		stopCmd,
		logsCmd,
		clearCacheCmd,
	)
}

// connectDaemon returns a client for the background daemon, spawning it if
// needed. With --debug the daemon runs inside this process instead, so its
// log output shows up in the terminal.
func connectDaemon() (*daemon.Client, error) {
	socketPath := config.SocketPath()
	if !debug {
		return daemon.ConnectOrSpawn(socketPath)
	}
	return startInProcess(socketPath)
}

func startInProcess(socketPath string) (*daemon.Client, error) {
	client := daemon.NewClient(socketPath)
	if client.IsAvailable() {
		// Replace the background daemon; it holds the socket.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client.Shutdown(ctx)
		cancel()
		time.Sleep(200 * time.Millisecond)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	srv, err := daemon.NewServer(cfg, socketPath)
	if err != nil {
		return nil, fmt.Errorf("creating daemon: %w", err)
	}

	started := make(chan error, 1)
	go func() { started <- srv.Start(context.Background()) }()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case err := <-started:
			return nil, fmt.Errorf("in-process daemon: %w", err)
		case <-ticker.C:
			if client.IsAvailable() {
				return client, nil
			}
		case <-timeout:
			return nil, fmt.Errorf("in-process daemon did not start within 5 seconds")
		}
	}
}

func runServe(cmd *cobra.Command, args []string) {
	if debug {
		if _, err := connectDaemon(); err != nil {
			log.Fatalf("failed to start daemon: %v", err)
		}
	}

	server, err := mcp.NewServer(config.SocketPath())
	if err != nil {
		log.Fatalf("failed to create MCP server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	if err := waitForSignal(errCh); err != nil {
		log.Fatalf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

func waitForSignal(errCh <-chan error) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		log.Printf("received signal: %s", sig)
		return nil
	case err := <-errCh:
		return err
	}
}
