package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/lockbox"
	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/password"
)

func (c *cli) addCmd() *cobra.Command {
	var (
		tags     []string
		notes    string
		favorite bool
		generate []string
		length   int
	)
	cmd := &cobra.Command{
		Use:   "add <template> <name> [field=value...]",
		Short: "Add a credential from a template",
		Example: `  lockbox add login GitHub username=octocat password=hunter2
  lockbox add login GitLab username=octocat --generate password
  lockbox add secure_note "Recovery codes" content="$(cat codes.txt)"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			if err := fillGenerated(values, generate, length); err != nil {
				return err
			}
			return c.withVault(cmd.Context(), func(v *lockbox.Vault, _ lockbox.Report) error {
				id, err := v.AddFromTemplate(args[0], args[1], values)
				if err != nil {
					return err
				}
				if len(tags) > 0 || notes != "" || favorite {
					cred, err := v.Get(id)
					if err != nil {
						return err
					}
					cred.Tags = core.NormalizeTags(append(cred.Tags, tags...))
					cred.Notes = notes
					cred.Favorite = favorite
					if err := v.Update(id, cred); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tags to attach")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.Flags().BoolVar(&favorite, "favorite", false, "Mark as favorite")
	cmd.Flags().StringSliceVarP(&generate, "generate", "g", nil, "Fields to fill with a random password")
	cmd.Flags().IntVar(&length, "length", password.DefaultOptions().Length, "Length of generated passwords")
	return cmd
}

func (c *cli) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id|name>",
		Aliases: []string{"delete"},
		Short:   "Delete a credential",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withVault(cmd.Context(), func(v *lockbox.Vault, _ lockbox.Report) error {
				cred, err := resolve(v, args[0])
				if err != nil {
					return err
				}
				if err := v.Delete(cred.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", cred.Name, cred.ID)
				return nil
			})
		},
	}
}

func parseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q, expected name=value", a)
		}
		values[name] = value
	}
	return values, nil
}
