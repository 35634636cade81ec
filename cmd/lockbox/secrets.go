package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/lockbox"
	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/password"
	"github.com/aretw0/lockbox/pkg/totp"
)

func (c *cli) totpCmd() *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:   "totp <id|name>",
		Short: "Print the current one-time code of a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withVault(cmd.Context(), func(v *lockbox.Vault, _ lockbox.Report) error {
				cred, err := resolve(v, args[0])
				if err != nil {
					return err
				}
				secret, ok := totpSecret(cred, field)
				if !ok {
					return core.NewError(core.ErrNotFound, "totp", fmt.Errorf("%s has no one-time code secret", cred.Name)).WithID(cred.ID)
				}
				now := c.now()
				code, err := totp.Generate(secret, now)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%ds left)\n", code, int(totp.Remaining(totp.Period, now).Seconds()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "Field holding the secret (default: first totp_secret field)")
	return cmd
}

func totpSecret(c core.Credential, name string) (string, bool) {
	if name != "" {
		f, ok := c.Field(name)
		return f.Value, ok && f.Value != ""
	}
	for _, f := range c.Fields {
		if f.Type == core.FieldTOTPSecret && f.Value != "" {
			return f.Value, true
		}
	}
	return "", false
}

func generateCmd() *cobra.Command {
	var (
		opts  = password.DefaultOptions()
		plain bool
		words int
		sep   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random password or passphrase",
		Example: `  lockbox generate --length 24
  lockbox generate --words 5 --separator .`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				pw  string
				err error
			)
			if words > 0 {
				pw, err = password.Passphrase(words, sep)
			} else {
				opts.Symbols = !plain
				pw, err = password.Generate(opts)
			}
			if err != nil {
				return err
			}
			a := password.Analyze(pw)
			fmt.Fprintln(cmd.OutOrStdout(), pw)
			fmt.Fprintf(cmd.ErrOrStderr(), "Strength: %s (score %d, %.0f bits)\n", a.Strength, a.Score, a.Entropy)
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Length, "length", "l", opts.Length, "Password length")
	cmd.Flags().BoolVar(&plain, "no-symbols", false, "Letters and digits only")
	cmd.Flags().BoolVar(&opts.ExcludeAmbiguous, "no-ambiguous", false, "Leave out "+password.Ambiguous)
	cmd.Flags().IntVarP(&words, "words", "w", 0, "Generate a passphrase of this many words instead")
	cmd.Flags().StringVar(&sep, "separator", "-", "Passphrase word separator")
	return cmd
}

// fillGenerated sets every named field to a fresh random password.
func fillGenerated(values map[string]string, fields []string, length int) error {
	for _, name := range fields {
		if _, set := values[name]; set {
			return fmt.Errorf("field %q is both given and generated", name)
		}
		opts := password.DefaultOptions()
		opts.Length = length
		pw, err := password.Generate(opts)
		if err != nil {
			return fmt.Errorf("generate %s: %w", name, err)
		}
		values[name] = pw
	}
	return nil
}
