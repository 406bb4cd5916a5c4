package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jcdickinson/rsdocseek/internal/daemon"
	md "github.com/jcdickinson/rsdocseek/internal/markdown"
	"github.com/jcdickinson/rsdocseek/internal/query"
	"github.com/jcdickinson/rsdocseek/internal/rpc"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

// descWidth bounds item descriptions in tool output.
const descWidth = 160

var modePattern = "^(" + strings.Join([]string{query.ModePrefix, query.ModeExact, query.ModeSubsequence, query.ModeRegex}, "|") +
	"|" + query.ModeFuzzy + "[0-9]*)$"

// Backend is the part of the daemon client the tools use.
type Backend interface {
	Load(ctx context.Context, indexes []rpc.IndexSpec, onProgress func(string)) (*rpc.LoadResponse, error)
	Search(ctx context.Context, req rpc.SearchRequest) (*rpc.SearchResponse, error)
	Status(ctx context.Context) (*rpc.StatusResponse, error)
}

type Server struct {
	mcpServer *server.MCPServer
	backend   Backend
}

func NewServer(socketPath string) (*Server, error) {
	client, err := daemon.ConnectOrSpawn(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return newServer(client), nil
}

func newServer(backend Backend) *Server {
	s := &Server{backend: backend}

	mcpServer := server.NewMCPServer(
		"rsdocseek",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("load_index",
			mcp.WithDescription("Load rustdoc search-index payloads (search-index.js or its JSON form) from a URL or file path so their items can be searched. Synchronous; returns when every index is loaded. Omit `source` to load an index configured on the daemon."),
			loadIndexSchema,
		),
		s.handleLoadIndex,
	)

	mcpServer.AddTool(
		mcp.NewTool("search_items",
			mcp.WithDescription("Search item names across loaded indexes. Results are ordered by name and carry the item's path, kind, description and a docs URL relative to the documentation root."),
			mcp.WithString("query",
				mcp.Description("Query expression: terms like `spawn`, `exact:Vec`, `fuzzy2:HashMpa`, `re:\"try_.*\"`, combined with `|`, `&`, `!`, `^` and parentheses"),
				mcp.Required(),
			),
			mcp.WithArray("indexes",
				mcp.Description("Optional list of index names to search; omit to search every loaded index"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithString("mode",
				mcp.Description("Mode for terms without an explicit `mode:` prefix: "+strings.Join(query.Modes, ", ")+
					" (fuzzyN takes an edit distance, e.g. fuzzy2). Default from daemon config, usually prefix"),
				mcp.Pattern(modePattern),
			),
			mcp.WithArray("kinds",
				mcp.Description("Optional item kinds to keep, e.g. fn, struct, trait, method, macro"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default 20)"),
			),
		),
		s.handleSearchItems,
	)

	mcpServer.AddTool(
		mcp.NewTool("list_indexes",
			mcp.WithDescription("List loaded indexes with their item counts, and configured indexes that are not loaded yet."),
		),
		s.handleListIndexes,
	)
}

func loadIndexSchema(t *mcp.Tool) {
	t.InputSchema.Required = append(t.InputSchema.Required, "indexes")
	t.InputSchema.Properties["indexes"] = map[string]any{
		"type":        "array",
		"description": "Indexes to load",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Name to register the index under (e.g., \"std\")",
				},
				"source": map[string]any{
					"type":        "string",
					"description": "URL or file path of the search-index payload",
				},
				"skip_invalid": map[string]any{
					"type":        "boolean",
					"description": "Skip malformed packages instead of failing the load",
				},
				"refresh": map[string]any{
					"type":        "boolean",
					"description": "Refetch a remote payload even if it is cached",
				},
			},
			"required": []string{"name"},
		},
	}
}

func (s *Server) handleLoadIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	raw, ok := args["indexes"]
	if !ok {
		return mcp.NewToolResultError("missing required parameter: indexes"), nil
	}

	specsJSON, err := json.Marshal(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid indexes parameter: %v", err)), nil
	}

	var specs []rpc.IndexSpec
	if err := json.Unmarshal(specsJSON, &specs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid indexes format: %v", err)), nil
	}
	if len(specs) == 0 {
		return mcp.NewToolResultError("indexes must not be empty"), nil
	}

	resp, err := s.backend.Load(ctx, specs, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load indexes: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp.Results, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleSearchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	q, _ := args["query"].(string)
	if q == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	searchReq := rpc.SearchRequest{
		Query:   q,
		Indexes: req.GetStringSlice("indexes", nil),
		Kinds:   req.GetStringSlice("kinds", nil),
	}
	if mode, ok := args["mode"].(string); ok {
		searchReq.Mode = mode
	}
	if limit, ok := args["limit"].(float64); ok {
		searchReq.Limit = int(limit)
	}

	resp, err := s.backend.Search(ctx, searchReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatResults(resp)), nil
}

// formatResults renders one line per item, grouped under index headings.
func formatResults(resp *rpc.SearchResponse) string {
	if len(resp.Results) == 0 {
		return "no results"
	}
	var b strings.Builder
	index := ""
	for _, r := range resp.Results {
		if r.Index != index {
			index = r.Index
			fmt.Fprintf(&b, "## %s\n", index)
		}
		name := r.Path + "::" + r.Name
		if r.Parent != "" {
			name = r.Path + "::" + r.Parent + "::" + r.Name
		}
		fmt.Fprintf(&b, "- %s `%s` (%s)", r.Kind, name, r.URL)
		if r.Desc != "" {
			fmt.Fprintf(&b, ": %s", md.Truncate(r.Desc, descWidth))
		}
		b.WriteByte('\n')
	}
	if resp.Truncated {
		fmt.Fprintf(&b, "\n(more results available; raise `limit` or narrow the query)\n")
	}
	return b.String()
}

func (s *Server) handleListIndexes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.backend.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) Shutdown(_ context.Context) error {
	return nil
}
