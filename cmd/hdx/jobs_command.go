package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hdx/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List render jobs recorded in the local ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *jobs.Store) error {
				list, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if list == nil {
						list = []jobs.Job{}
					}
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, job := range list {
					rows = append(rows, []string{
						job.JobID,
						job.SubmittedAt.Local().Format(time.DateTime),
						job.Title,
						job.Command,
						job.Destination,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Job", "Submitted", "Title", "Command", "Destination"}, rows, nil, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	cmd.AddCommand(newJobShowCommand(ctx))
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job id>",
		Short: "Show one recorded render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *jobs.Store) error {
				job, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:         %s\n", job.JobID)
				fmt.Fprintf(out, "Title:       %s\n", job.Title)
				fmt.Fprintf(out, "Command:     %s\n", job.Command)
				fmt.Fprintf(out, "Source:      %s\n", job.Source)
				fmt.Fprintf(out, "Destination: %s\n", job.Destination)
				if job.EntityPath != "" {
					fmt.Fprintf(out, "Entity:      %s\n", job.EntityPath)
				}
				if len(job.Args) > 0 {
					fmt.Fprintf(out, "Args:        %s\n", strings.Join(job.Args, " "))
				}
				fmt.Fprintf(out, "Submitted:   %s\n", job.SubmittedAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}
}

func (c *commandContext) withLedger(fn func(*jobs.Store) error) error {
	store, err := c.ledger()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("job ledger is disabled (jobs.ledger_enabled = false)")
	}
	defer store.Close()
	return fn(store)
}
