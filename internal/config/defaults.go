package config

const (
	defaultRoot           = "/hdx"
	defaultAlias          = "/hdx"
	defaultMountPattern   = `^/mnt/[xz]\d+`
	defaultTopCategory    = "projects"
	defaultStateDir       = "~/.local/share/hdx"
	defaultLogDir         = "~/.local/share/hdx/logs"
	defaultMavisScheme    = "http"
	defaultMavisHost      = "localhost"
	defaultMavisPort      = 3000
	defaultLoginPath      = "api/users/login"
	defaultSessionCookie  = "connect.sid"
	defaultSessionFile    = "~/.local/share/hdx/session.json"
	defaultMavisTimeout   = 30
	defaultLedgerPath     = "~/.local/share/hdx/jobs.db"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultLedgerEnabled  = true
	maxMavisTimeoutSecond = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Root:         defaultRoot,
			Aliases:      []string{defaultAlias},
			MountPattern: defaultMountPattern,
			TopCategory:  defaultTopCategory,
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
		},
		Mavis: Mavis{
			Scheme:         defaultMavisScheme,
			Host:           defaultMavisHost,
			Port:           defaultMavisPort,
			LoginPath:      defaultLoginPath,
			SessionCookie:  defaultSessionCookie,
			SessionFile:    defaultSessionFile,
			TimeoutSeconds: defaultMavisTimeout,
		},
		Jobs: Jobs{
			LedgerEnabled: defaultLedgerEnabled,
			LedgerPath:    defaultLedgerPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
