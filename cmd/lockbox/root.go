package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/lockbox"
	"github.com/aretw0/lockbox/pkg/config"
)

const (
	envConfig        = "LOCKBOX_CONFIG"
	envArchive       = "LOCKBOX_ARCHIVE"
	envPassphrase    = "LOCKBOX_PASSPHRASE"
	envNewPassphrase = "LOCKBOX_NEW_PASSPHRASE"

	defaultArchive = "vault.lbx"
)

// cli holds the state shared by every command of one invocation.
type cli struct {
	verbose    bool
	configPath string
	archive    string
	watch      bool

	stdin  io.Reader
	lines  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	// readSecret returns a passphrase the caller owns and clears after use.
	readSecret func(env, prompt string) ([]byte, error)
	now        func() time.Time
}

func newCLI(stdin io.Reader, stdout, stderr io.Writer) *cli {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr, logger: slog.Default(), now: time.Now}
	c.readSecret = c.passphrase
	return c
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return newCLI(stdin, stdout, stderr).command()
}

func (c *cli) command() *cobra.Command {

	root := &cobra.Command{
		Use:   "lockbox",
		Short: "An encrypted, self-healing credential vault",
		Long: `Lockbox keeps credentials in a single encrypted archive.
Every open validates the archive layout and repairs what it safely can.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.logger = newLogger(c.stderr, c.verbose)
			slog.SetDefault(c.logger)
		},
	}
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (default: $"+envConfig+" or .lockbox.yaml upwards)")
	root.PersistentFlags().StringVarP(&c.archive, "archive", "a", "", "Archive path (default: $"+envArchive+" or "+defaultArchive+")")

	root.AddCommand(
		c.createCmd(),
		c.listCmd(),
		c.showCmd(),
		c.addCmd(),
		c.rmCmd(),
		c.searchCmd(),
		c.validateCmd(),
		c.repairCmd(),
		c.passwdCmd(),
		c.infoCmd(),
		c.templatesCmd(),
		c.totpCmd(),
		generateCmd(),
		c.watchCmd(),
		versionCmd(),
	)
	return root
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}))
}

// loadConfig resolves the configuration file from the flag, the
// environment or the nearest .lockbox.yaml, in that order.
func (c *cli) loadConfig() (config.Config, error) {
	cfg := config.Default()
	path := c.configPath
	if path == "" {
		path = os.Getenv(envConfig)
	}
	if path != "" {
		if err := config.Load(path, &cfg); err != nil {
			return config.Config{}, err
		}
		return cfg, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, err
	}
	found, err := lockbox.FindConfig(wd)
	if err != nil {
		return cfg, nil
	}
	if ok, err := config.LoadOptional(found, &cfg); err != nil {
		return config.Config{}, err
	} else if ok {
		c.logger.Debug("loaded config", "path", found)
	}
	return cfg, nil
}

func (c *cli) archivePath() string {
	if c.archive != "" {
		return c.archive
	}
	if p := os.Getenv(envArchive); p != "" {
		return p
	}
	return defaultArchive
}

func (c *cli) vault() (*lockbox.Vault, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return lockbox.New(c.archivePath(),
		lockbox.WithConfig(cfg),
		lockbox.WithLogger(c.logger),
		// The CLI is the production entry point; it never sandboxes.
		lockbox.WithDevSafety(false),
		lockbox.WithWatch(c.watch),
	)
}

// withVault opens the archive, runs fn and closes it again. Changes made
// by fn are saved on close.
func (c *cli) withVault(ctx context.Context, fn func(v *lockbox.Vault, report lockbox.Report) error) (err error) {
	v, err := c.vault()
	if err != nil {
		return err
	}
	pass, err := c.readSecret(envPassphrase, "Passphrase: ")
	if err != nil {
		return err
	}
	report, err := v.Open(ctx, pass)
	clear(pass)
	if err != nil {
		return err
	}
	defer func() {
		// Interrupted commands still save what they changed.
		if cerr := v.Close(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(v, report)
}

// passphrase reads a secret from env, the terminal or one line of stdin.
func (c *cli) passphrase(env, prompt string) ([]byte, error) {
	if p := os.Getenv(env); p != "" {
		return []byte(p), nil
	}
	if f, ok := c.stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprint(c.stderr, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
		return b, nil
	}
	if c.lines == nil {
		c.lines = bufio.NewReader(c.stdin)
	}
	line, err := c.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}
