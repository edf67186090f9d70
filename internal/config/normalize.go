package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMavis(); err != nil {
		return err
	}
	if err := c.normalizeJobs(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	// Root and aliases are facility paths, not user paths: no tilde expansion
	// and no filepath.Abs against the working directory.
	c.Paths.Root = cleanSlashPath(c.Paths.Root)
	if c.Paths.Root == "" {
		c.Paths.Root = defaultRoot
	}
	aliases := make([]string, 0, len(c.Paths.Aliases))
	seen := make(map[string]struct{}, len(c.Paths.Aliases))
	for _, alias := range c.Paths.Aliases {
		normalized := cleanSlashPath(alias)
		if normalized == "" || normalized == c.Paths.Root {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		aliases = append(aliases, normalized)
	}
	c.Paths.Aliases = aliases
	c.Paths.MountPattern = strings.TrimSpace(c.Paths.MountPattern)
	c.Paths.TopCategory = strings.Trim(strings.TrimSpace(c.Paths.TopCategory), "/")
	if c.Paths.TopCategory == "" {
		c.Paths.TopCategory = defaultTopCategory
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMavis() error {
	c.Mavis.Scheme = strings.ToLower(strings.TrimSpace(c.Mavis.Scheme))
	if c.Mavis.Scheme == "" {
		c.Mavis.Scheme = defaultMavisScheme
	}
	c.Mavis.Host = strings.TrimSpace(c.Mavis.Host)
	if value, ok := os.LookupEnv("MAVIS_HOST"); ok && strings.TrimSpace(value) != "" {
		host, port, hasPort := strings.Cut(strings.TrimSpace(value), ":")
		c.Mavis.Host = host
		if hasPort {
			parsed, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("MAVIS_HOST port: %w", err)
			}
			c.Mavis.Port = parsed
		}
	}
	if c.Mavis.Host == "" {
		c.Mavis.Host = defaultMavisHost
	}
	if c.Mavis.Port == 0 {
		c.Mavis.Port = defaultMavisPort
	}
	if c.Mavis.Username == "" {
		if value, ok := os.LookupEnv("MAVIS_USERNAME"); ok {
			c.Mavis.Username = value
		}
	}
	if c.Mavis.Password == "" {
		if value, ok := os.LookupEnv("MAVIS_PASSWORD"); ok {
			c.Mavis.Password = value
		}
	}
	c.Mavis.Username = strings.TrimSpace(c.Mavis.Username)
	c.Mavis.LoginPath = strings.TrimLeft(strings.TrimSpace(c.Mavis.LoginPath), "/")
	if c.Mavis.LoginPath == "" {
		c.Mavis.LoginPath = defaultLoginPath
	}
	c.Mavis.SessionCookie = strings.TrimSpace(c.Mavis.SessionCookie)
	if c.Mavis.SessionCookie == "" {
		c.Mavis.SessionCookie = defaultSessionCookie
	}
	var err error
	if strings.TrimSpace(c.Mavis.SessionFile) == "" {
		c.Mavis.SessionFile = defaultSessionFile
	}
	if c.Mavis.SessionFile, err = expandPath(c.Mavis.SessionFile); err != nil {
		return fmt.Errorf("mavis.session_file: %w", err)
	}
	if c.Mavis.TimeoutSeconds <= 0 {
		c.Mavis.TimeoutSeconds = defaultMavisTimeout
	}
	return nil
}

func (c *Config) normalizeJobs() error {
	var err error
	if strings.TrimSpace(c.Jobs.LedgerPath) == "" {
		c.Jobs.LedgerPath = defaultLedgerPath
	}
	if c.Jobs.LedgerPath, err = expandPath(c.Jobs.LedgerPath); err != nil {
		return fmt.Errorf("jobs.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func cleanSlashPath(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return path.Clean("/" + strings.TrimLeft(value, "/"))
}
