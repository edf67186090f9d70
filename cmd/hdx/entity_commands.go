package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hdx/internal/entity"
	"hdx/internal/hdxpath"
	"hdx/internal/mavis"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <path>",
		Short: "Show how a path decomposes into category/name pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser, err := ctx.parser()
			if err != nil {
				return err
			}
			parsed, err := parser.Parse(args[0], "")
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, parsedView(parsed))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path: %s\n", parsed.Path)
			fmt.Fprintf(out, "Type: %s\n", parsed.Type)
			fmt.Fprintf(out, "Name: %s\n", parsed.Name)
			if parsed.FileName != "" {
				fmt.Fprintf(out, "File: %s\n", parsed.FileName)
			}
			rows := make([][]string, 0, len(parsed.Pairs))
			for _, pair := range parsed.Pairs {
				rows = append(rows, []string{pair.Category, pair.Name, pair.Path})
			}
			fmt.Fprintln(out, renderTable([]string{"Category", "Name", "Path"}, rows, nil, shouldColorize(out)))
			return nil
		},
	}
}

type pairView struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Path     string `json:"path"`
}

func parsedView(p hdxpath.Parsed) map[string]any {
	pairs := make([]pairView, 0, len(p.Pairs))
	for _, pair := range p.Pairs {
		pairs = append(pairs, pairView{Category: pair.Category, Name: pair.Name, Path: pair.Path})
	}
	return map[string]any{
		"source":    p.Source,
		"path":      p.Path,
		"type":      p.Type,
		"name":      p.Name,
		"file_name": p.FileName,
		"pairs":     pairs,
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var component string

	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Display the Mavis metadata of an entity and its ancestors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s session) error {
				e, err := openEntity(c, s, args[0], kindFlag)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, viewOf(e))
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s\n", e.Kind(), e.PhysicalPath())
				fmt.Fprintf(out, "Exists: %s\n", yesNo(e.Exists("")))
				snapshot := e.Snapshot()
				categories := sortedKeys(snapshot)
				if component != "" {
					categories = []string{component}
				}
				rows := make([][]string, 0)
				for _, category := range categories {
					rec := snapshot[category]
					for _, field := range sortedKeys(rec) {
						rows = append(rows, []string{category, field, formatValue(rec[field])})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No metadata")
					return nil
				}
				fmt.Fprintln(out, renderTable([]string{"Component", "Field", "Value"}, rows, nil, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Entity kind (inferred from the path when omitted)")
	cmd.Flags().StringVar(&component, "component", "", "Only show the record of this category")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var linkTable string

	cmd := &cobra.Command{
		Use:   "ls <path> [directory]",
		Short: "List records linked to an entity (directory defaults to all)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			directory := entity.ListAll
			if len(args) == 2 {
				directory = args[1]
			}
			return ctx.withSession(cmd, func(c context.Context, s session) error {
				e, err := openEntity(c, s, args[0], kindFlag)
				if err != nil {
					return err
				}
				listing, err := e.List(c, directory, linkTable)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if listing == nil {
						listing = map[string][]mavis.Record{}
					}
					return writeJSON(cmd, listing)
				}

				out := cmd.OutOrStdout()
				if len(listing) == 0 {
					fmt.Fprintf(out, "Nothing listed under %s\n", directory)
					return nil
				}
				rows := make([][]string, 0)
				for _, dir := range sortedKeys(listing) {
					for _, rec := range listing[dir] {
						p, _ := mavis.RecordPath(rec)
						rows = append(rows, []string{dir, formatValue(rec["id"]), rec.String("name"), p})
					}
				}
				fmt.Fprintln(out, renderTable([]string{"Directory", "ID", "Name", "Path"}, rows, []columnAlignment{alignLeft, alignRight}, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Entity kind (inferred from the path when omitted)")
	cmd.Flags().StringVar(&linkTable, "link-table", "", "Link table to list through")
	return cmd
}

func newMakeCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var fields []string
	var params []string

	cmd := &cobra.Command{
		Use:   "mk <path>",
		Short: "Register an entity with Mavis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseFields(fields)
			if err != nil {
				return err
			}
			extra, err := parseParams(params)
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(c context.Context, s session) error {
				e, err := openEntity(c, s, args[0], kindFlag)
				if err != nil {
					return err
				}
				if err := e.Make(c, rec, extra); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, viewOf(e))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (id %s)\n", e.Kind(), e.PhysicalPath(), e.ID())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Entity kind (inferred from the path when omitted)")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Metadata field as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Request parameter as key=value (repeatable)")
	return cmd
}

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var fields []string
	var params []string

	cmd := &cobra.Command{
		Use:   "update <path>",
		Short: "Change metadata fields of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseFields(fields)
			if err != nil {
				return err
			}
			if len(rec) == 0 {
				return fmt.Errorf("at least one --field is required")
			}
			extra, err := parseParams(params)
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(c context.Context, s session) error {
				e, err := openEntity(c, s, args[0], kindFlag)
				if err != nil {
					return err
				}
				if err := e.Update(c, rec, extra); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, viewOf(e))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %d field(s) on %s\n", len(rec), e.PhysicalPath())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Entity kind (inferred from the path when omitted)")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Metadata field as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Request parameter as key=value (repeatable)")
	return cmd
}

func newMoveCommand(ctx *commandContext) *cobra.Command {
	return newRelocateCommand(ctx, "mv", "Move an entity to a new path of the same category", (*entity.Entity).Move)
}

func newCopyCommand(ctx *commandContext) *cobra.Command {
	return newRelocateCommand(ctx, "cp", "Copy an entity to a new path of the same category", (*entity.Entity).Copy)
}

func newRelocateCommand(ctx *commandContext, use, short string, op func(*entity.Entity, context.Context, string) error) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   use + " <source> <destination>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s session) error {
				e, err := openEntity(c, s, args[0], kindFlag)
				if err != nil {
					return err
				}
				from := e.PhysicalPath()
				if err := op(e, c, args[1]); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, viewOf(e))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", from, e.PhysicalPath())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Entity kind (inferred from the path when omitted)")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var useSource bool

	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove an entity from Mavis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s session) error {
				e, err := openEntity(c, s, args[0], kindFlag)
				if err != nil {
					return err
				}
				removed, err := e.Remove(c, useSource)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"path": e.PhysicalPath(), "removed": removed})
				}
				if !removed {
					return fmt.Errorf("mavis declined to remove %s", e.PhysicalPath())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", e.PhysicalPath())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Entity kind (inferred from the path when omitted)")
	cmd.Flags().BoolVar(&useSource, "use-source", false, "Address the path exactly as given instead of its canonical form")
	return cmd
}
