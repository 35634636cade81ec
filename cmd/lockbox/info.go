package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/lockbox"
)

func (c *cli) infoCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "info",
		Aliases: []string{"stats"},
		Short:   "Show vault statistics",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withVault(cmd.Context(), func(v *lockbox.Vault, _ lockbox.Report) error {
				stats, err := v.Stats()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Archive:   %s\n", stats.Locator)
				fmt.Fprintf(w, "Format:    v%d\n", stats.FormatVersion)
				fmt.Fprintf(w, "Records:   %d (%d fields, %d favorites)\n", stats.Records, stats.Fields, stats.Favorites)
				fmt.Fprintf(w, "Templates: %d custom\n", stats.Templates)
				fmt.Fprintf(w, "Issues:    %d critical, %d warning, %d repaired\n",
					stats.Report.Critical, stats.Report.Warning, stats.Report.Repaired)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func (c *cli) templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the templates available for add",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withVault(cmd.Context(), func(v *lockbox.Vault, _ lockbox.Report) error {
				templates, err := v.Templates()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tFIELDS\tSOURCE")
				for _, t := range templates {
					names := make([]string, 0, len(t.Fields))
					for _, f := range t.Fields {
						n := f.Name
						if f.Required {
							n += "*"
						}
						names = append(names, n)
					}
					source := "custom"
					if t.BuiltIn {
						source = "built-in"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, strings.Join(names, ","), source)
				}
				return tw.Flush()
			})
		},
	}
}
