package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/lockbox"
	"github.com/aretw0/lockbox/pkg/core"
)

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Hold the vault open and report changes made by other processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.watch = true
			ctx := cmd.Context()
			return c.withVault(ctx, func(v *lockbox.Vault, _ lockbox.Report) error {
				src := lockbox.EventSource(v, core.EventExternalChange)
				if err := src.Start(ctx); err != nil {
					return err
				}
				c.logger.Info("watching for external changes", "archive", v.Locator())
				for e := range src.Events() {
					fmt.Fprintln(cmd.OutOrStdout(), e)
				}
				return nil
			})
		},
	}
}
