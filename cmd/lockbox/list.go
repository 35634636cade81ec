package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/lockbox"
	"github.com/aretw0/lockbox/pkg/core"
)

func (c *cli) listCmd() *cobra.Command {
	var (
		asJSON    bool
		tags      []string
		favorites bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withVault(cmd.Context(), func(v *lockbox.Vault, _ lockbox.Report) error {
				results, err := v.Search(lockbox.Query{Tags: tags, FavoritesOnly: favorites})
				if err != nil {
					return err
				}
				list := make([]core.Credential, 0, len(results))
				for _, r := range results {
					list = append(list, r.Credential)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), summaries(list))
				}
				printTable(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Only credentials carrying every tag")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "Only favorites")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withVault(cmd.Context(), func(v *lockbox.Vault, _ lockbox.Report) error {
				cred, err := resolve(v, args[0])
				if err != nil {
					return err
				}
				printCredential(cmd.OutOrStdout(), cred, reveal)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print sensitive values")
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var (
		values bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search credentials by name, tags and fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withVault(cmd.Context(), func(v *lockbox.Vault, _ lockbox.Report) error {
				results, err := v.Search(lockbox.Query{
					Text:          strings.Join(args, " "),
					IncludeValues: values,
					Limit:         limit,
				})
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
					return nil
				}
				list := make([]core.Credential, 0, len(results))
				for _, r := range results {
					list = append(list, r.Credential)
				}
				printTable(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&values, "values", false, "Also match non-sensitive field values")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	return cmd
}

// resolve finds a credential by ID, falling back to an exact name match.
func resolve(v *lockbox.Vault, ref string) (core.Credential, error) {
	cred, err := v.Get(ref)
	if err == nil || !errors.Is(err, core.ErrNotFound) {
		return cred, err
	}
	list, err := v.List()
	if err != nil {
		return core.Credential{}, err
	}
	var match []core.Credential
	for _, c := range list {
		if strings.EqualFold(c.Name, ref) {
			match = append(match, c)
		}
	}
	switch len(match) {
	case 0:
		return core.Credential{}, fmt.Errorf("%w: %s", core.ErrNotFound, ref)
	case 1:
		return match[0], nil
	default:
		return core.Credential{}, fmt.Errorf("%d credentials named %q, use the id", len(match), ref)
	}
}

type summary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Template string   `json:"template,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Favorite bool     `json:"favorite,omitempty"`
}

func summaries(list []core.Credential) []summary {
	out := make([]summary, 0, len(list))
	for _, c := range list {
		out = append(out, summary{ID: c.ID, Name: c.Name, Template: c.Template, Tags: c.Tags, Favorite: c.Favorite})
	}
	return out
}

func printTable(w io.Writer, list []core.Credential) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTEMPLATE\tTAGS")
	for _, c := range list {
		name := c.Name
		if c.Favorite {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, name, c.Template, strings.Join(c.Tags, ","))
	}
	tw.Flush()
}

func printCredential(w io.Writer, c core.Credential, reveal bool) {
	fmt.Fprintf(w, "ID:       %s\n", c.ID)
	fmt.Fprintf(w, "Name:     %s\n", c.Name)
	if c.Template != "" {
		fmt.Fprintf(w, "Template: %s\n", c.Template)
	}
	if len(c.Tags) > 0 {
		fmt.Fprintf(w, "Tags:     %s\n", strings.Join(c.Tags, ", "))
	}
	for _, f := range c.Fields {
		value := f.Value
		if f.Masked() && !reveal {
			value = "********"
		}
		fmt.Fprintf(w, "  %s: %s\n", f.DisplayName(), value)
	}
	if c.Notes != "" {
		fmt.Fprintf(w, "Notes:\n%s\n", c.Notes)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
