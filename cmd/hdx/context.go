package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"hdx/internal/config"
	"hdx/internal/entity"
	"hdx/internal/hdxpath"
	"hdx/internal/jobs"
	"hdx/internal/logging"
	"hdx/internal/mavis"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) parser() (*hdxpath.Parser, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return hdxpath.NewFromConfig(cfg)
}

// client returns a Mavis client holding a session: the stored one when it is
// still usable, otherwise a fresh login with the configured credentials.
func (c *commandContext) client(ctx context.Context) (*mavis.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client := mavis.New(mavis.ConfigFromApp(cfg),
		mavis.WithLogger(c.log()),
		mavis.WithSessionStore(mavis.NewFileSessionStore(cfg.Mavis.SessionFile)))

	resumed, err := client.Resume(ctx)
	if err != nil {
		logging.WarnWithContext(c.log(), "stored mavis session unreadable", "session_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run hdx logout to discard it"),
			logging.String(logging.FieldImpact, "logging in again"))
	}
	if resumed {
		return client, nil
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// ledger opens the job ledger, or returns nil when it is disabled.
func (c *commandContext) ledger() (*jobs.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Jobs.LedgerEnabled {
		return nil, nil
	}
	return jobs.Open(cfg)
}

// session carries what an entity command needs.
type session struct {
	remote entity.Remote
	parser *hdxpath.Parser
	opts   []entity.Option
}

func (c *commandContext) withSession(cmd *cobra.Command, fn func(context.Context, session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	parser, err := c.parser()
	if err != nil {
		return err
	}
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	opts := []entity.Option{entity.WithParser(parser), entity.WithLogger(c.log())}
	store, err := c.ledger()
	if err != nil {
		logging.WarnWithContext(c.log(), "job ledger unavailable", "ledger_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check jobs.ledger_path"),
			logging.String(logging.FieldImpact, "render jobs are not recorded locally"))
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, entity.WithLedger(store))
	}
	return fn(ctx, session{remote: client, parser: parser, opts: opts})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
