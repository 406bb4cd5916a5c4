package cmd

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/jcdickinson/rsdocseek/internal/config"
	"github.com/jcdickinson/rsdocseek/internal/daemon"
	md "github.com/jcdickinson/rsdocseek/internal/markdown"
	"github.com/jcdickinson/rsdocseek/internal/query"
	"github.com/jcdickinson/rsdocseek/internal/rpc"
	"github.com/jcdickinson/rsdocseek/internal/source"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search item names in loaded indexes",
	Long: `Match item names against a query expression.

Terms default to --mode; prefix a term with one of ` + strings.Join(query.Modes, ", ") + `
and a colon to override it. Combine terms with | (or), & (and), ! (not),
^ (starts with a match) and parentheses.`,
	Example: `  rsdocseek search spawn
  rsdocseek search --index tokio --kind fn 'spawn & !exact:spawn'
  rsdocseek search 'fuzzy2:HashMpa | re:"try_.*"'
  rsdocseek search --source ./target/doc/search-index.js Runtime`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

var (
	searchIndexes []string
	searchMode    string
	searchKinds   []string
	searchLimit   int
	searchSource  string
	searchNoCache bool
)

func init() {
	searchCmd.Flags().StringSliceVar(&searchIndexes, "index", nil, "restrict to named indexes (repeatable)")
	searchCmd.Flags().StringVar(&searchMode, "mode", "", "default term mode (default from config)")
	searchCmd.Flags().StringSliceVar(&searchKinds, "kind", nil, "keep only these item kinds, e.g. fn,struct (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results (default from config)")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "search this payload file or URL directly, without the daemon")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "with --source, neither read nor write the payload cache")
}

func runSearch(cmd *cobra.Command, args []string) {
	var resp *rpc.SearchResponse
	var err error
	if searchSource != "" {
		resp, err = searchLocal(context.Background(), args[0])
	} else {
		resp, err = searchDaemon(context.Background(), args[0])
	}
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	printResults(resp)
}

func searchDaemon(ctx context.Context, q string) (*rpc.SearchResponse, error) {
	client, err := connectDaemon()
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return client.Search(ctx, rpc.SearchRequest{
		Query:   q,
		Indexes: searchIndexes,
		Mode:    searchMode,
		Kinds:   searchKinds,
		Limit:   searchLimit,
	})
}

// searchLocal loads --source in-process and searches it.
func searchLocal(ctx context.Context, q string) (*rpc.SearchResponse, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	mode := searchMode
	if mode == "" {
		mode = cfg.Search.DefaultMode
	}
	limit := searchLimit
	if limit <= 0 {
		limit = cfg.Search.Limit
	}

	a, err := query.Compile(q, mode)
	if err != nil {
		return nil, err
	}
	kinds, err := daemon.KindFilter(searchKinds)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(searchSource), filepath.Ext(searchSource))
	ix, err := daemon.LoadIndex(ctx, name, searchSource, daemon.LoadOptions{
		Source: source.Options{
			Timeout:   cfg.Fetch.Timeout(),
			UserAgent: cfg.Fetch.UserAgent,
			NoCache:   searchNoCache,
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	results, more := daemon.Collect(ix, a, kinds, limit)
	return &rpc.SearchResponse{Results: results, Truncated: more}, nil
}

func printResults(resp *rpc.SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return
	}

	for i, r := range resp.Results {
		name := r.Path + "::" + r.Name
		if r.Parent != "" {
			name = r.Path + "::" + r.Parent + "::" + r.Name
		}
		fmt.Printf("%d. %s %s [%s]\n", i+1, r.Kind, name, r.Index)
		if r.Desc != "" {
			fmt.Printf("   %s\n", md.Truncate(r.Desc, 100))
		}
		fmt.Printf("   %s\n", r.URL)
	}
	if resp.Truncated {
		fmt.Println("(more results available; raise --limit)")
	}
}
