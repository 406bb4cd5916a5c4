package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheBase_XDGSet(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	assert.Equal(t, filepath.Join("/custom/cache", "rsdocseek"), cacheBase())
	assert.Equal(t, filepath.Join("/custom/cache", "rsdocseek", "cache"), PayloadCacheDir())
	assert.Equal(t, filepath.Join("/custom/cache", "rsdocseek", "daemon.log"), LogPath())
}

func TestCacheBase_HomeDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	assert.Equal(t, filepath.Join(home, ".cache", "rsdocseek"), cacheBase())
}

func TestCacheBase_TmpFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "")
	// Should use os.TempDir() when HOME is unset
	assert.True(t, strings.Contains(cacheBase(), "rsdocseek"))
}

func TestSocketPath_Runtime(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/test")
	assert.Equal(t, "/run/test/rsdocseek/daemon.sock", SocketPath())
}

func TestDecode_Defaults(t *testing.T) {
	cfg, err := decode(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 60*time.Second, cfg.Fetch.Timeout())
}

func TestDecode_Sources(t *testing.T) {
	cfg, err := decode(map[string]any{
		"search": map[string]any{"limit": "5"},
		"sources": map[string]any{
			"std":   "https://doc.rust-lang.org/stable/search-index.js",
			"tokio": map[string]any{"location": "./tokio.js", "skip_invalid": true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.Limit)
	assert.Equal(t, "prefix", cfg.Search.DefaultMode)
	assert.Equal(t, map[string]SourceConfig{
		"std":   {Location: "https://doc.rust-lang.org/stable/search-index.js"},
		"tokio": {Location: "./tokio.js", SkipInvalid: true},
	}, cfg.Sources)
}

func TestDecode_Invalid(t *testing.T) {
	cases := map[string]map[string]any{
		"zero limit":     {"search": map[string]any{"limit": 0}},
		"negative cache": {"search": map[string]any{"cache_size": -1}},
		"zero timeout":   {"fetch": map[string]any{"timeout_seconds": 0}},
		"empty location": {"sources": map[string]any{"x": map[string]any{"skip_invalid": true}}},
	}
	for name, settings := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(settings)
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "rsdocseek"), 0o755))
	toml := `
[search]
default_mode = "fuzzy"

[sources]
serde = "/srv/serde/search-index.js"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rsdocseek", "config.toml"), []byte(toml), 0o644))
	t.Setenv("RSDOCSEEK_SEARCH_LIMIT", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fuzzy", cfg.Search.DefaultMode)
	assert.Equal(t, 7, cfg.Search.Limit)
	assert.Equal(t, "/srv/serde/search-index.js", cfg.Sources["serde"].Location)
}
