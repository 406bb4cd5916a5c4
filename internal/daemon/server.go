package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/jcdickinson/rsdocseek/internal/config"
	"github.com/jcdickinson/rsdocseek/internal/query"
	"github.com/jcdickinson/rsdocseek/internal/rpc"
	"github.com/jcdickinson/rsdocseek/internal/source"
	"golang.org/x/sync/singleflight"
)

type Server struct {
	cfg        *config.Config
	compiler   *query.Compiler
	socketPath string
	httpServer *http.Server
	listener   net.Listener

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration

	indexes   map[string]*Index
	indexesMu sync.RWMutex
	loadGroup singleflight.Group

	// exit is called after the server stops on shutdown or expiry.
	exit func(code int)
}

func NewServer(cfg *config.Config, socketPath string) (*Server, error) {
	if err := query.ValidMode(cfg.Search.DefaultMode); err != nil {
		return nil, fmt.Errorf("search.default_mode: %w", err)
	}
	compiler, err := query.NewCompiler(cfg.Search.CacheSize)
	if err != nil {
		return nil, err
	}

	expSec := cfg.Daemon.ExpirationSeconds
	if expSec <= 0 {
		expSec = 600
	}

	return &Server{
		cfg:        cfg,
		compiler:   compiler,
		socketPath: socketPath,
		expiration: time.Duration(expSec) * time.Second,
		indexes:    make(map[string]*Index),
		exit:       os.Exit,
	}, nil
}

// Handler returns the daemon's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /load", s.withExpReset(s.handleLoad))
	mux.HandleFunc("POST /search", s.withExpReset(s.handleSearch))
	mux.HandleFunc("GET /status", s.withExpReset(s.handleStatus))
	mux.HandleFunc("POST /unload", s.withExpReset(s.handleUnload))
	mux.HandleFunc("POST /clear-cache", s.withExpReset(s.handleClearCache))
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{Handler: s.Handler()}

	s.mu.Lock()
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	log.Printf("daemon: listening on %s (expires after %s of inactivity)", s.socketPath, s.expiration)

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	s.mu.Lock()
	if s.expTimer != nil {
		s.expTimer.Stop()
	}
	s.mu.Unlock()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("daemon: shutdown error: %v", err)
			errs = append(errs, err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("daemon: listener close error: %v", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Printf("daemon: socket remove error: %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	log.Printf("daemon: expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	s.exit(0)
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) withExpReset(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		handler(w, r)
	}
}

func (s *Server) lookup(name string) (*Index, bool) {
	s.indexesMu.RLock()
	defer s.indexesMu.RUnlock()
	ix, ok := s.indexes[name]
	return ix, ok
}

func (s *Server) sourceOptions(refresh bool) source.Options {
	return source.Options{
		Refresh:   refresh,
		Timeout:   s.cfg.Fetch.Timeout(),
		UserAgent: s.cfg.Fetch.UserAgent,
	}
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req rpc.LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	send := func(line rpc.ProgressLine) bool {
		if line.Message != "" {
			log.Printf("daemon: %s", line.Message)
		}
		if err := enc.Encode(line); err != nil {
			log.Printf("daemon: client disconnected: %v", err)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	for _, spec := range req.Indexes {
		progress := func(msg string) {
			send(rpc.ProgressLine{Type: "progress", Message: msg})
		}
		result := s.load(r.Context(), spec, progress)
		if !send(rpc.ProgressLine{Type: "result", Result: &result}) {
			return
		}
	}
}

// load resolves an IndexSpec against the configured sources and loads it,
// replacing any index already registered under the same name. Concurrent
// loads of the same name and source share one read.
func (s *Server) load(ctx context.Context, spec rpc.IndexSpec, progress func(string)) rpc.LoadResult {
	result := rpc.LoadResult{Name: spec.Name, Source: spec.Source}
	if spec.Name == "" {
		result.Error = "missing index name"
		return result
	}

	skipInvalid := spec.SkipInvalid
	if spec.Source == "" {
		src, ok := s.cfg.Sources[spec.Name]
		if !ok {
			result.Error = fmt.Sprintf("no source given and %q is not configured", spec.Name)
			return result
		}
		result.Source = src.Location
		skipInvalid = skipInvalid || src.SkipInvalid
	}

	key := spec.Name + "\x00" + result.Source
	v, _, _ := s.loadGroup.Do(key, func() (interface{}, error) {
		return s.loadWork(context.WithoutCancel(ctx), spec.Name, result.Source, skipInvalid, spec.Refresh, progress), nil
	})
	return v.(rpc.LoadResult)
}

func (s *Server) loadWork(ctx context.Context, name, location string, skipInvalid, refresh bool, progress func(string)) rpc.LoadResult {
	result := rpc.LoadResult{Name: name, Source: location}

	ix, err := LoadIndex(ctx, name, location, LoadOptions{
		SkipInvalid: skipInvalid,
		Source:      s.sourceOptions(refresh),
	}, progress)
	if err != nil {
		log.Printf("daemon: loading %s from %s: %v", name, location, err)
		result.Error = err.Error()
		return result
	}

	s.indexesMu.Lock()
	s.indexes[name] = ix
	s.indexesMu.Unlock()

	result.Packages = ix.Packages
	result.Items = ix.Seeker.Len()
	result.Keys = ix.Seeker.NumKeys()
	result.Skipped = ix.Skipped
	progress(fmt.Sprintf("loaded %s: %d items under %d names from %d packages", name, result.Items, result.Keys, result.Packages))
	return result
}

// resolveIndexes returns the indexes a search should cover. Named indexes
// that are configured but not loaded yet are loaded first.
func (s *Server) resolveIndexes(ctx context.Context, names []string) ([]*Index, error) {
	if len(names) == 0 {
		s.indexesMu.RLock()
		defer s.indexesMu.RUnlock()
		out := make([]*Index, 0, len(s.indexes))
		for _, name := range slices.Sorted(maps.Keys(s.indexes)) {
			out = append(out, s.indexes[name])
		}
		return out, nil
	}

	out := make([]*Index, 0, len(names))
	for _, name := range names {
		ix, ok := s.lookup(name)
		if !ok {
			if _, configured := s.cfg.Sources[name]; !configured {
				return nil, fmt.Errorf("index %q is not loaded", name)
			}
			res := s.load(ctx, rpc.IndexSpec{Name: name}, func(msg string) {
				log.Printf("auto-load: %s", msg)
			})
			if res.Error != "" {
				return nil, fmt.Errorf("loading %s: %s", name, res.Error)
			}
			if ix, ok = s.lookup(name); !ok {
				return nil, fmt.Errorf("index %q vanished after loading", name)
			}
		}
		out = append(out, ix)
	}
	return out, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req rpc.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	if req.Mode == "" {
		req.Mode = s.cfg.Search.DefaultMode
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.Search.Limit
	}

	a, err := s.compiler.Compile(req.Query, req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kinds, err := KindFilter(req.Kinds)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	indexes, err := s.resolveIndexes(r.Context(), req.Indexes)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	resp := rpc.SearchResponse{Results: []rpc.DocResult{}}
	for i, ix := range indexes {
		results, more := Collect(ix, a, kinds, req.Limit-len(resp.Results))
		resp.Results = append(resp.Results, results...)
		if more {
			resp.Truncated = true
			break
		}
		if len(resp.Results) == req.Limit {
			resp.Truncated = slices.ContainsFunc(indexes[i+1:], func(rest *Index) bool {
				return HasMatch(rest, a, kinds)
			})
			break
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.indexesMu.RLock()
	resp := rpc.StatusResponse{Indexes: []rpc.IndexStatus{}}
	for _, name := range slices.Sorted(maps.Keys(s.indexes)) {
		resp.Indexes = append(resp.Indexes, s.indexes[name].status())
	}
	for _, name := range slices.Sorted(maps.Keys(s.cfg.Sources)) {
		if _, ok := s.indexes[name]; !ok {
			resp.Configured = append(resp.Configured, name)
		}
	}
	s.indexesMu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	var req rpc.UnloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := rpc.UnloadResponse{Unloaded: []string{}}
	s.indexesMu.Lock()
	for _, name := range req.Names {
		if _, ok := s.indexes[name]; ok {
			delete(s.indexes, name)
			resp.Unloaded = append(resp.Unloaded, name)
		}
	}
	s.indexesMu.Unlock()

	log.Printf("daemon: unloaded %v", resp.Unloaded)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := source.CacheClear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("daemon: payload cache cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		s.exit(0)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
