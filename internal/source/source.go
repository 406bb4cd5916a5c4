// Package source acquires search-index payloads from files or URLs.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	DefaultTimeout   = 60 * time.Second
	DefaultUserAgent = "rsdocseek/0.1.0"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type Options struct {
	// Refresh skips the on-disk cache and refetches remote payloads.
	Refresh   bool
	Timeout   time.Duration
	UserAgent string
	// NoCache disables both reading and writing the cache.
	NoCache bool
}

// IsRemote reports whether location is fetched over HTTP.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Read returns the decompressed payload at location. Remote payloads are
// served from the cache when present unless opts.Refresh is set.
func Read(ctx context.Context, location string, opts Options) ([]byte, error) {
	if !IsRemote(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", location, err)
		}
		return maybeDecompress(location, data)
	}

	if !opts.Refresh && !opts.NoCache {
		data, err := CacheRead(location)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("ignoring unreadable cache entry", "location", location, "error", err)
		}
	}

	data, err := fetch(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	if data, err = maybeDecompress(location, data); err != nil {
		return nil, err
	}
	if !opts.NoCache {
		if err := CacheWrite(location, data); err != nil {
			slog.Warn("failed to cache payload", "location", location, "error", err)
		}
	}
	return data, nil
}

func fetch(ctx context.Context, url string, opts Options) ([]byte, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", ua)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}

func maybeDecompress(location string, data []byte) ([]byte, error) {
	if !strings.HasSuffix(location, ".zst") && !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", location, err)
	}
	return out, nil
}
