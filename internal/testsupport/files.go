package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hdx/internal/config"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = 0x42
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// MkTree creates directories below the canonical root of cfg and returns the
// absolute path of the last one. Each rel is slash separated, for example
// "projects/demo/shots/sh010".
func MkTree(t testing.TB, cfg *config.Config, rels ...string) string {
	t.Helper()

	var last string
	for _, rel := range rels {
		last = Under(cfg, rel)
		if err := os.MkdirAll(last, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", last, err)
		}
	}
	return last
}

// Under returns the canonical path of rel below the configured root.
func Under(cfg *config.Config, rel string) string {
	return filepath.Join(cfg.Paths.Root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
}
