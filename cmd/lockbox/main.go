package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/aretw0/lockbox/pkg/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps error kinds onto distinct process exit codes so scripts
// can tell a wrong passphrase from a broken archive.
func exitCode(err error) int {
	switch {
	case errors.Is(err, core.ErrAuth):
		return 2
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrCorruption):
		return 3
	case errors.Is(err, core.ErrLockTimeout):
		return 4
	default:
		return 1
	}
}
