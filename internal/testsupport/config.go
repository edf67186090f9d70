package testsupport

import (
	"path/filepath"
	"testing"

	"hdx/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The canonical root lives under the temp dir so entity tests can build real
// trees; /hdx stays an accepted alias.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.Root = filepath.Join(base, "hdx")
	cfgVal.Paths.Aliases = []string{"/hdx"}
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Jobs.LedgerPath = filepath.Join(base, "state", "jobs.db")
	cfgVal.Mavis.SessionFile = filepath.Join(base, "state", "session.json")
	cfgVal.Mavis.Username = "artist"
	cfgVal.Mavis.Password = "secret"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithMavisURL points the config at a test server such as httptest.Server.URL.
func WithMavisURL(host string, port int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mavis.Host = host
		b.cfg.Mavis.Port = port
	}
}

// WithoutLedger disables the job ledger.
func WithoutLedger() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.LedgerEnabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.Root)
}
