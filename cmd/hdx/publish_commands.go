package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"hdx/internal/entity"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var fields []string
	var fileName string
	var copySource bool
	var publishType string

	cmd := &cobra.Command{
		Use:   "publish <attribute path> <source>",
		Short: "Publish the next version of an attribute",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseFields(fields)
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(c context.Context, s session) error {
				attr, err := entity.OpenAttribute(c, s.remote, args[0], "", s.opts...)
				if err != nil {
					return err
				}
				version, err := attr.Publish(c, args[1], rec, entity.PublishOptions{
					FileName:    fileName,
					CopySource:  copySource,
					PublishType: publishType,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, viewOf(version))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Published version %s of %s\n", version.Name(), attr.PhysicalPath())
				if master, ok := attr.Master(); ok && master == version {
					fmt.Fprintln(out, "Version is now master")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Metadata field as key=value (repeatable)")
	cmd.Flags().StringVar(&fileName, "file-name", "", "File name inside the version directory")
	cmd.Flags().BoolVar(&copySource, "copy-source", false, "Have Mavis copy the source into the version")
	cmd.Flags().StringVar(&publishType, "type", entity.PublishMaster, "Publish type; MASTER also promotes the version")
	return cmd
}

func newVersionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <attribute path>",
		Short: "List the published versions of an attribute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s session) error {
				attr, err := entity.OpenAttribute(c, s.remote, args[0], "", s.opts...)
				if err != nil {
					return err
				}
				master, _ := attr.Master()
				numbers := attr.VersionNumbers()

				if ctx.jsonOutput() {
					views := make([]entityView, 0, len(numbers))
					for _, n := range numbers {
						v, _ := attr.Version(n)
						views = append(views, viewOf(v))
					}
					return writeJSON(cmd, map[string]any{
						"attribute":      attr.PhysicalPath(),
						"versions":       views,
						"master_version": attr.MetadataInt("masterVersion", "", 0),
					})
				}

				out := cmd.OutOrStdout()
				if len(numbers) == 0 {
					fmt.Fprintf(out, "%s has no versions\n", attr.PhysicalPath())
					return nil
				}
				rows := make([][]string, 0, len(numbers))
				for _, n := range numbers {
					v, _ := attr.Version(n)
					rows = append(rows, []string{
						strconv.Itoa(n),
						yesNo(v == master),
						v.MetadataString("publishType", "", ""),
						v.MetadataString("source", "", ""),
						v.PhysicalPath(),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Version", "Master", "Type", "Source", "Path"},
					rows,
					[]columnAlignment{alignRight},
					shouldColorize(out),
				))
				return nil
			})
		},
	}
}

func newDailyCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var fields []string

	cmd := &cobra.Command{
		Use:   "daily <shot or asset path> <movie>",
		Short: "File a movie under today's dailies and submit its render",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseFields(fields)
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(c context.Context, s session) error {
				owner, err := openEntity(c, s, args[0], kindFlag)
				if err != nil {
					return err
				}
				daily, err := entity.OpenDaily(c, owner, args[1])
				if err != nil {
					return err
				}
				jobID, err := daily.Make(c, rec, nil)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"daily": viewOf(daily.Entity), "job_id": jobID})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Daily %s submitted as job %s\n", daily.PhysicalPath(), jobID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Owner kind (inferred from the path when omitted)")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Metadata field as key=value (repeatable)")
	return cmd
}
