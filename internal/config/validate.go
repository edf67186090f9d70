package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMavis(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.Root == "" || c.Paths.Root == "/" {
		return errors.New("paths.root must name a directory below /")
	}
	if strings.Contains(c.Paths.TopCategory, "/") {
		return errors.New("paths.top_category must be a single path segment")
	}
	if c.Paths.MountPattern != "" {
		if !strings.HasPrefix(c.Paths.MountPattern, "^") {
			return errors.New("paths.mount_pattern must be anchored with ^")
		}
		if _, err := regexp.Compile(c.Paths.MountPattern); err != nil {
			return fmt.Errorf("paths.mount_pattern: %w", err)
		}
	}
	return nil
}

func (c *Config) validateMavis() error {
	switch c.Mavis.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("mavis.scheme must be http or https, got %q", c.Mavis.Scheme)
	}
	if c.Mavis.Port <= 0 || c.Mavis.Port > 65535 {
		return errors.New("mavis.port must be between 1 and 65535")
	}
	if c.Mavis.TimeoutSeconds > maxMavisTimeoutSecond {
		return fmt.Errorf("mavis.timeout_seconds must be <= %d", maxMavisTimeoutSecond)
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.LedgerEnabled && strings.TrimSpace(c.Jobs.LedgerPath) == "" {
		return errors.New("jobs.ledger_path must be set when jobs.ledger_enabled is true")
	}
	return nil
}

// RequireCredentials reports whether a login can be attempted. Credentials are
// only needed when no stored session is usable, so Load does not enforce them.
func (c *Config) RequireCredentials() error {
	if c.Mavis.Username == "" || c.Mavis.Password == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/hdx/config.toml"
		}
		return fmt.Errorf("mavis.username and mavis.password are required. Set MAVIS_USERNAME/MAVIS_PASSWORD or edit %s (create with 'hdx config init')", defaultPath)
	}
	return nil
}
