package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aretw0/lockbox"
)

func (c *cli) validateCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the vault layout without changing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withVault(cmd.Context(), func(v *lockbox.Vault, _ lockbox.Report) error {
				report, err := v.Validate(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func (c *cli) repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Repair every issue that can be fixed safely",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withVault(cmd.Context(), func(v *lockbox.Vault, _ lockbox.Report) error {
				report, err := v.Repair(cmd.Context())
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func (c *cli) passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the vault passphrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withVault(ctx, func(v *lockbox.Vault, _ lockbox.Report) error {
				current, err := c.readSecret(envPassphrase, "Current passphrase: ")
				if err != nil {
					return err
				}
				defer clear(current)
				next, err := c.readSecret(envNewPassphrase, "New passphrase: ")
				if err != nil {
					return err
				}
				defer clear(next)
				if err := v.ChangePassphrase(ctx, current, next); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Passphrase changed.")
				return nil
			})
		},
	}
}

func printReport(w io.Writer, r lockbox.Report) {
	if r.Empty() {
		fmt.Fprintln(w, "No issues found.")
		return
	}
	for _, i := range r.Issues {
		fmt.Fprintln(w, i)
	}
	s := r.Summary()
	fmt.Fprintf(w, "%d critical, %d warning, %d info, %d repaired\n", s.Critical, s.Warning, s.Info, s.Repaired)
}
