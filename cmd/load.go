package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jcdickinson/rsdocseek/internal/rpc"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load NAME[=SOURCE] ...",
	Short: "Load rustdoc search indexes into the daemon",
	Long: `Read search-index payloads from URLs or files and make them searchable
under NAME. Without =SOURCE, the location configured under [sources] is used.
Remote payloads are cached on disk; --refresh refetches them.`,
	Example: `  rsdocseek load std=https://doc.rust-lang.org/stable/search-index.js
  rsdocseek load mycrate=./target/doc/search-index.js
  rsdocseek load --skip-invalid tokio`,
	Args: cobra.MinimumNArgs(1),
	Run:  runLoad,
}

var (
	loadSkipInvalid bool
	loadRefresh     bool
)

func init() {
	loadCmd.Flags().BoolVar(&loadSkipInvalid, "skip-invalid", false, "skip malformed packages instead of failing")
	loadCmd.Flags().BoolVar(&loadRefresh, "refresh", false, "refetch remote payloads even if cached")
}

func parseIndexSpecs(args []string) []rpc.IndexSpec {
	specs := make([]rpc.IndexSpec, 0, len(args))
	for _, arg := range args {
		name, src, _ := strings.Cut(arg, "=")
		specs = append(specs, rpc.IndexSpec{
			Name:        name,
			Source:      src,
			SkipInvalid: loadSkipInvalid,
			Refresh:     loadRefresh,
		})
	}
	return specs
}

func runLoad(cmd *cobra.Command, args []string) {
	specs := parseIndexSpecs(args)

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Load(context.Background(), specs, func(msg string) {
		fmt.Printf("  %s\n", msg)
	})
	if err != nil {
		log.Fatalf("failed to load indexes: %v", err)
	}

	failed := false
	for _, r := range resp.Results {
		if r.Error != "" {
			failed = true
			fmt.Printf("  %s: error: %s\n", r.Name, r.Error)
			continue
		}
		fmt.Printf("  %s: %d items under %d names from %d packages\n", r.Name, r.Items, r.Keys, r.Packages)
		if len(r.Skipped) > 0 {
			fmt.Printf("  %s: skipped %s\n", r.Name, strings.Join(r.Skipped, ", "))
		}
	}
	if failed {
		log.Fatalf("some indexes failed to load")
	}
}
