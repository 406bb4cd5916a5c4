package rpc

// LoadRequest is the request body for POST /load.
type LoadRequest struct {
	Indexes []IndexSpec `json:"indexes"`
}

// IndexSpec names a search-index payload to load. An empty Source loads the
// location configured for Name.
type IndexSpec struct {
	Name        string `json:"name"`
	Source      string `json:"source,omitempty"`
	SkipInvalid bool   `json:"skip_invalid,omitempty"`
	Refresh     bool   `json:"refresh,omitempty"`
}

// LoadResponse is the response body for POST /load.
type LoadResponse struct {
	Results []LoadResult `json:"results"`
}

type LoadResult struct {
	Name     string   `json:"name"`
	Source   string   `json:"source"`
	Packages int      `json:"packages"`
	Items    int      `json:"items"`
	Keys     int      `json:"keys"`
	Skipped  []string `json:"skipped,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// ProgressLine is a single line of NDJSON streamed from the load endpoint.
type ProgressLine struct {
	Type    string      `json:"type"` // "progress" or "result"
	Message string      `json:"message,omitempty"`
	Result  *LoadResult `json:"result,omitempty"`
}

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query string `json:"query"`
	// Indexes restricts the search to the named indexes. Empty means every
	// loaded index.
	Indexes []string `json:"indexes,omitempty"`
	// Mode is the default term mode for the query; empty uses the configured one.
	Mode  string   `json:"mode,omitempty"`
	Kinds []string `json:"kinds,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

// SearchResponse is the response body for POST /search.
type SearchResponse struct {
	Results   []DocResult `json:"results"`
	Truncated bool        `json:"truncated,omitempty"`
}

type DocResult struct {
	Index      string `json:"index"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Parent     string `json:"parent,omitempty"`
	ParentKind string `json:"parent_kind,omitempty"`
	Path       string `json:"path"`
	Desc       string `json:"desc"`
	URL        string `json:"url"`
}

// UnloadRequest is the request body for POST /unload.
type UnloadRequest struct {
	Names []string `json:"names"`
}

type UnloadResponse struct {
	Unloaded []string `json:"unloaded"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Indexes []IndexStatus `json:"indexes"`
	// Configured lists sources from the config file that are not loaded yet.
	Configured []string `json:"configured,omitempty"`
}

type IndexStatus struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Packages int    `json:"packages"`
	Items    int    `json:"items"`
	Keys     int    `json:"keys"`
	LoadedAt string `json:"loaded_at"`
	// Cached is set for remote sources whose payload is in the disk cache.
	Cached bool `json:"cached,omitempty"`
}
