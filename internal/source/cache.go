package source

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jcdickinson/rsdocseek/internal/config"
	"github.com/klauspost/compress/zstd"
)

// cachePath returns the sharded file path for a location:
// cache/<first2>/<rest>.js.zst, keyed by the SHA-256 of the location.
func cachePath(location string) string {
	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(location)))
	return filepath.Join(config.PayloadCacheDir(), hash[:2], hash[2:]+".js.zst")
}

// CacheWrite compresses and stores the payload fetched from location,
// replacing any earlier copy.
func CacheWrite(location string, data []byte) error {
	p := cachePath(location)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// CacheRead returns the cached payload for location. A missing entry
// yields an error matching fs.ErrNotExist.
func CacheRead(location string) ([]byte, error) {
	f, err := os.Open(cachePath(location))
	if err != nil {
		return nil, fmt.Errorf("reading cache for %s: %w", location, err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing cache for %s: %w", location, err)
	}
	return data, nil
}

// HasCache reports whether a payload for location is cached on disk.
func HasCache(location string) bool {
	_, err := os.Stat(cachePath(location))
	return err == nil
}

// CacheClear removes every cached payload.
func CacheClear() error {
	if err := os.RemoveAll(config.PayloadCacheDir()); err != nil {
		return fmt.Errorf("clearing payload cache: %w", err)
	}
	return nil
}
