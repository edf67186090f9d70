package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hdx/internal/mavis"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to Mavis and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}
			store := mavis.NewFileSessionStore(cfg.Mavis.SessionFile)
			client := mavis.New(mavis.ConfigFromApp(cfg), mavis.WithLogger(ctx.log()), mavis.WithSessionStore(store))
			if err := client.Login(cmd.Context()); err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"username":     cfg.Mavis.Username,
					"server":       cfg.MavisBaseURL(),
					"session_file": store.Path(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", cfg.MavisBaseURL(), cfg.Mavis.Username)
			return nil
		},
	}
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored Mavis session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := mavis.New(mavis.ConfigFromApp(cfg), mavis.WithSessionStore(mavis.NewFileSessionStore(cfg.Mavis.SessionFile)))
			if err := client.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
			return nil
		},
	}
}
