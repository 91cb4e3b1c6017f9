package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) newEntitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the importable entities and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tKEY\tFIELDS")
			for _, schema := range c.app.Service.Entities() {
				fields := make([]string, len(schema.Fields))
				for i, f := range schema.Fields {
					fields[i] = f.Name
					if f.Required {
						fields[i] += "*"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", schema.Name, schema.Key, strings.Join(fields, ", "))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template <entity>",
		Short: "Print an empty CSV with the entity's header row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.app.Service.Template(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
