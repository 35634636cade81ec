package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/aretw0/lockbox"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lockbox v%s (%s)\n", lockbox.Version, runtime.Version())
		},
	}
}
