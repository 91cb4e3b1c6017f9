package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/report"
	"github.com/spf13/cobra"
)

type importOptions struct {
	format   string
	importID string
	report   string
	dryRun   bool
	jsonOut  bool
	strict   bool
}

func (c *cli) newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <entity> [file]",
		Short: "Import a CSV or JSON file, or stdin when the file is omitted or -",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src core.Source = core.ReaderSource{Reader: cmd.InOrStdin()}
			if len(args) == 2 && args[1] != "-" {
				src = core.FileSource{Path: args[1]}
			}
			return c.runImport(cmd, args[0], src, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "", "Source format: csv or json (default: detect)")
	cmd.Flags().StringVar(&opts.importID, "import-id", "", "Import ID to stamp on stored records (default: generated)")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write rejected records to this .xlsx file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate without storing anything")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the summary as JSON")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with status 3 when any record is rejected")
	return cmd
}

func (c *cli) runImport(cmd *cobra.Command, entity string, src core.Source, opts importOptions) error {
	ctx := cmd.Context()
	if opts.importID != "" {
		ctx = core.ContextWithImportID(ctx, opts.importID)
	}

	var (
		sum core.ImportSummary
		err error
	)
	if opts.dryRun {
		var p core.Preview
		p, err = c.app.Service.Preview(ctx, entity, src, opts.format)
		sum = p.Summary
	} else {
		sum, err = c.app.Service.Import(ctx, entity, src, opts.format)
	}
	if err != nil {
		return err
	}

	if opts.report != "" {
		if err := writeReport(opts.report, sum); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			return err
		}
	} else {
		verb := "imported"
		if sum.DryRun {
			verb = "would import"
		}
		fmt.Fprintf(out, "%s %d of %d %s (format %s, import %s)\n",
			verb, sum.ImportedCount, sum.TotalRecords, sum.Entity, sum.Format, sum.ImportID)
		for _, line := range sum.Lines() {
			fmt.Fprintln(out, "  "+line)
		}
	}

	if opts.strict && len(sum.Rejected) > 0 {
		return withCode(exitRejected, fmt.Errorf("%d of %d records rejected", len(sum.Rejected), sum.TotalRecords))
	}
	return nil
}

func writeReport(path string, sum core.ImportSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.WriteRejections(f, sum); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
