package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/CRM/internal/admin"
	"github.com/spf13/cobra"
)

func (c *cli) newListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List stored records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := c.app.Service.Schema(args[0])
			if err != nil {
				return err
			}
			list, err := c.app.Service.ListRecords(cmd.Context(), schema.Name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			names := schema.FieldNames()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprint(tw, "ID")
			for _, name := range names {
				fmt.Fprint(tw, "\t"+name)
			}
			fmt.Fprintln(tw)
			for _, rec := range list {
				fmt.Fprint(tw, rec.ID)
				for _, name := range names {
					fmt.Fprint(tw, "\t"+rec.Fields[name])
				}
				fmt.Fprintln(tw)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print records as JSON")
	return cmd
}

func (c *cli) newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <entity>",
		Short: "List recent imports, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.app.Service.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintf(out, "no imports of %s\n", args[0])
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "IMPORT\tSTARTED\tFORMAT\tIMPORTED\tREJECTED")
			for _, sum := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\n",
					sum.ImportID, sum.StartedAt.UTC().Format(time.DateTime), sum.Format,
					sum.ImportedCount, sum.TotalRecords, len(sum.Rejected))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of imports to show")
	return cmd
}

func (c *cli) newResetCmd() *cobra.Command {
	var all, yes bool

	cmd := &cobra.Command{
		Use:   "reset [entity]",
		Short: "Delete every stored record of an entity, or of all entities with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return withCode(exitUsage, errors.New("name one entity or pass --all"))
			}
			if !yes {
				return withCode(exitUsage, errors.New("reset deletes records permanently; pass --yes to confirm"))
			}

			r := &admin.Resetter{Registry: c.app.Registry, Repository: c.app.Repository}
			out := cmd.OutOrStdout()
			if !all {
				n, err := r.Reset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted %d %s\n", n, args[0])
				return nil
			}

			counts, err := r.ResetAll(cmd.Context())
			for _, name := range c.app.Registry.Names() {
				if n, ok := counts[name]; ok {
					fmt.Fprintf(out, "deleted %d %s\n", n, name)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Reset every entity")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}
