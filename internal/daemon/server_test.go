package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jcdickinson/rsdocseek/internal/config"
	"github.com/jcdickinson/rsdocseek/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokioIndex = `{"tokio":{"doc":"An async runtime","i":[
	[5,"spawn","tokio::task","Spawns a new ` + "`task`" + `.",null,null],
	[5,"spawn_blocking","","Runs blocking code.",null,null],
	[11,"spawn","tokio::runtime","Spawns on the *runtime*.",0,null],
	[3,"Runtime","tokio::runtime","The runtime.",null,null]
],"p":[[3,"Runtime"]]}}`

const asyncStdIndex = `
var N=null,E="",T="t",U="u",searchIndex={};
var R=["duration","implfuture","result","Output","The type of value produced on completion.","Future","async_std"];
searchIndex["async_std"]={"doc":"Async version of the Rust standard library","i":[[23,"main",R[6],"Enables an async main function.",N,N],[23,"test",E,"Enables an async test function.",N,N],[5,"spawn","async_std::task","Spawns a task.",N,N]],
"p":[[8,R[5]],[8,R[1]],[4,R[2]],[4,"SeekFrom"]]};
addSearchOptions(searchIndex);initSearch(searchIndex);
`

type fixture struct {
	srv   *Server
	http  *httptest.Server
	dir   string
	tokio string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}
	tokio := write("tokio.json", tokioIndex)
	asyncStd := write("async_std.js", asyncStdIndex)

	cfg := config.Default()
	cfg.Sources = map[string]config.SourceConfig{
		"async_std": {Location: asyncStd},
	}
	srv, err := NewServer(cfg, filepath.Join(dir, "d.sock"))
	require.NoError(t, err)
	srv.exit = func(int) {}

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &fixture{srv: srv, http: hs, dir: dir, tokio: tokio}
}

func (f *fixture) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.http.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) load(t *testing.T, specs ...rpc.IndexSpec) ([]string, []rpc.LoadResult) {
	t.Helper()
	resp := f.post(t, "/load", rpc.LoadRequest{Indexes: specs})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var progress []string
	var results []rpc.LoadResult
	dec := json.NewDecoder(resp.Body)
	for dec.More() {
		var line rpc.ProgressLine
		require.NoError(t, dec.Decode(&line))
		switch line.Type {
		case "progress":
			progress = append(progress, line.Message)
		case "result":
			results = append(results, *line.Result)
		}
	}
	return progress, results
}

func (f *fixture) search(t *testing.T, req rpc.SearchRequest) (int, rpc.SearchResponse) {
	t.Helper()
	resp := f.post(t, "/search", req)
	var out rpc.SearchResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestLoad_Streams(t *testing.T) {
	f := newFixture(t)

	progress, results := f.load(t, rpc.IndexSpec{Name: "tokio", Source: f.tokio})
	require.Len(t, results, 1)
	r := results[0]
	assert.Empty(t, r.Error)
	assert.Equal(t, "tokio", r.Name)
	assert.Equal(t, 1, r.Packages)
	assert.Equal(t, 4, r.Items)
	assert.Equal(t, 3, r.Keys)
	assert.NotEmpty(t, progress)
}

func TestLoad_Errors(t *testing.T) {
	f := newFixture(t)

	_, results := f.load(t,
		rpc.IndexSpec{Name: "nope"},
		rpc.IndexSpec{Name: "missing", Source: filepath.Join(f.dir, "missing.js")},
		rpc.IndexSpec{Source: f.tokio},
	)
	require.Len(t, results, 3)
	assert.Contains(t, results[0].Error, "not configured")
	assert.Contains(t, results[1].Error, "missing.js")
	assert.Contains(t, results[2].Error, "missing index name")
}

func TestLoad_SkipInvalid(t *testing.T) {
	f := newFixture(t)
	bad := filepath.Join(f.dir, "mixed.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{
		"good":{"doc":"","i":[[5,"f","good","",null,null]],"p":[]},
		"shape":{"doc":"","i":[[5]],"p":[]},
		"parent":{"doc":"","i":[[5,"g","parent","",3,null]],"p":[]}
	}`), 0644))

	_, results := f.load(t, rpc.IndexSpec{Name: "strict", Source: bad})
	assert.NotEmpty(t, results[0].Error)

	_, results = f.load(t, rpc.IndexSpec{Name: "lenient", Source: bad, SkipInvalid: true})
	r := results[0]
	assert.Empty(t, r.Error)
	assert.Equal(t, []string{"parent", "shape"}, r.Skipped)
	assert.Equal(t, 1, r.Packages)
	assert.Equal(t, 1, r.Items)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	f.load(t, rpc.IndexSpec{Name: "tokio", Source: f.tokio})

	code, resp := f.search(t, rpc.SearchRequest{Query: "spawn", Indexes: []string{"tokio"}})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Results, 3)
	assert.False(t, resp.Truncated)

	first := resp.Results[0]
	assert.Equal(t, rpc.DocResult{
		Index: "tokio",
		Name:  "spawn",
		Kind:  "fn",
		Path:  "tokio::task",
		Desc:  "Spawns a new task.",
		URL:   "tokio/task/fn.spawn.html",
	}, first)
	assert.Equal(t, "Runtime", resp.Results[1].Parent)
	assert.Equal(t, "struct", resp.Results[1].ParentKind)
	assert.Equal(t, "tokio/runtime/struct.Runtime.html#method.spawn", resp.Results[1].URL)
	assert.Equal(t, "spawn_blocking", resp.Results[2].Name)
	// path inherited from the previous item
	assert.Equal(t, "tokio::task", resp.Results[2].Path)
}

func TestSearch_ModesKindsLimit(t *testing.T) {
	f := newFixture(t)
	f.load(t, rpc.IndexSpec{Name: "tokio", Source: f.tokio})

	_, resp := f.search(t, rpc.SearchRequest{Query: "spawn", Mode: "exact"})
	assert.Len(t, resp.Results, 2)

	_, resp = f.search(t, rpc.SearchRequest{Query: "spawn", Kinds: []string{"method"}})
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "method", resp.Results[0].Kind)

	_, resp = f.search(t, rpc.SearchRequest{Query: "spawn", Limit: 2})
	assert.Len(t, resp.Results, 2)
	assert.True(t, resp.Truncated)

	_, resp = f.search(t, rpc.SearchRequest{Query: `re:"[A-Z].*" | fuzzy:spwn_blocking`})
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Runtime", resp.Results[0].Name)
	assert.Equal(t, "spawn_blocking", resp.Results[1].Name)
}

func TestSearch_AcrossIndexes(t *testing.T) {
	f := newFixture(t)
	f.load(t, rpc.IndexSpec{Name: "tokio", Source: f.tokio})

	// async_std is configured, so naming it loads it on demand.
	code, resp := f.search(t, rpc.SearchRequest{Query: "exact:spawn", Indexes: []string{"async_std", "tokio"}})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "async_std", resp.Results[0].Index)
	assert.Equal(t, "tokio", resp.Results[1].Index)

	_, resp = f.search(t, rpc.SearchRequest{Query: "exact:spawn", Limit: 1})
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Truncated)

	_, resp = f.search(t, rpc.SearchRequest{Query: "exact:main", Limit: 1})
	require.Len(t, resp.Results, 1)
	assert.False(t, resp.Truncated)
	assert.Equal(t, "attr", resp.Results[0].Kind)
}

func TestSearch_BadRequests(t *testing.T) {
	f := newFixture(t)
	f.load(t, rpc.IndexSpec{Name: "tokio", Source: f.tokio})

	cases := []struct {
		name string
		req  rpc.SearchRequest
		code int
	}{
		{"empty query", rpc.SearchRequest{}, http.StatusBadRequest},
		{"syntax", rpc.SearchRequest{Query: "(spawn"}, http.StatusBadRequest},
		{"regex", rpc.SearchRequest{Query: `re:"a["`}, http.StatusBadRequest},
		{"distance", rpc.SearchRequest{Query: "fuzzy7:spawn"}, http.StatusBadRequest},
		{"mode", rpc.SearchRequest{Query: "spawn", Mode: "sideways"}, http.StatusBadRequest},
		{"kind", rpc.SearchRequest{Query: "spawn", Kinds: []string{"widget"}}, http.StatusBadRequest},
		{"index", rpc.SearchRequest{Query: "spawn", Indexes: []string{"serde"}}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _ := f.search(t, tc.req)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestStatusAndUnload(t *testing.T) {
	f := newFixture(t)
	f.load(t, rpc.IndexSpec{Name: "tokio", Source: f.tokio})

	getStatus := func() rpc.StatusResponse {
		resp, err := http.Get(f.http.URL + "/status")
		require.NoError(t, err)
		defer resp.Body.Close()
		var st rpc.StatusResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
		return st
	}

	st := getStatus()
	require.Len(t, st.Indexes, 1)
	assert.Equal(t, "tokio", st.Indexes[0].Name)
	assert.Equal(t, 4, st.Indexes[0].Items)
	assert.Equal(t, []string{"async_std"}, st.Configured)

	resp := f.post(t, "/unload", rpc.UnloadRequest{Names: []string{"tokio", "never"}})
	var un rpc.UnloadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&un))
	assert.Equal(t, []string{"tokio"}, un.Unloaded)

	st = getStatus()
	assert.Empty(t, st.Indexes)

	_, sr := f.search(t, rpc.SearchRequest{Query: "spawn"})
	assert.Empty(t, sr.Results)
}

func TestStatus_RemoteCached(t *testing.T) {
	f := newFixture(t)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tokioIndex))
	}))
	t.Cleanup(remote.Close)

	_, results := f.load(t,
		rpc.IndexSpec{Name: "remote", Source: remote.URL + "/search-index.js"},
		rpc.IndexSpec{Name: "local", Source: f.tokio},
	)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Empty(t, r.Error, r.Name)
	}

	resp, err := http.Get(f.http.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var st rpc.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))

	cached := make(map[string]bool)
	for _, ix := range st.Indexes {
		cached[ix.Name] = ix.Cached
	}
	assert.Equal(t, map[string]bool{"remote": true, "local": false}, cached)
}

func TestClient_RoundTrip(t *testing.T) {
	f := newFixture(t)
	exited := make(chan int, 1)
	f.srv.exit = func(code int) { exited <- code }

	go f.srv.Start(context.Background())
	client := NewClient(f.srv.socketPath)
	require.Eventually(t, client.IsAvailable, 5*time.Second, 20*time.Millisecond)

	ctx := context.Background()
	var msgs []string
	lr, err := client.Load(ctx, []rpc.IndexSpec{{Name: "tokio", Source: f.tokio}}, func(m string) { msgs = append(msgs, m) })
	require.NoError(t, err)
	require.Len(t, lr.Results, 1)
	assert.Equal(t, 4, lr.Results[0].Items)
	assert.NotEmpty(t, msgs)

	sr, err := client.Search(ctx, rpc.SearchRequest{Query: "spawn_b"})
	require.NoError(t, err)
	require.Len(t, sr.Results, 1)

	_, err = client.Search(ctx, rpc.SearchRequest{Query: "("})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.Code)
	assert.Contains(t, serr.Message, "syntax error")

	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Indexes, 1)

	un, err := client.Unload(ctx, []string{"tokio"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tokio"}, un.Unloaded)

	require.NoError(t, client.ClearCache(ctx))
	require.NoError(t, client.Shutdown(ctx))
	select {
	case code := <-exited:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit")
	}
	assert.False(t, client.IsAvailable())
}
