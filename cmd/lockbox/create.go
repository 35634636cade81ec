package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (c *cli) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new empty vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, err := c.vault()
			if err != nil {
				return err
			}

			pass, err := c.readSecret(envPassphrase, "New passphrase: ")
			if err != nil {
				return err
			}
			defer clear(pass)
			if os.Getenv(envPassphrase) == "" {
				again, err := c.readSecret(envPassphrase, "Repeat passphrase: ")
				if err != nil {
					return err
				}
				same := bytes.Equal(pass, again)
				clear(again)
				if !same {
					return errors.New("passphrases do not match")
				}
			}

			if err := v.Create(ctx, pass); err != nil {
				return err
			}
			if err := v.Close(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", v.Locator())
			return nil
		},
	}
}
