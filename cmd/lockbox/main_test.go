package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lockbox/pkg/core"
)

const testConfig = `
kdf:
  time: 1
  memory_kib: 8192
  threads: 1
backup:
  auto: false
`

type harness struct {
	t       *testing.T
	dir     string
	archive string
	config  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "lockbox.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0o600))
	t.Setenv(envPassphrase, "correct horse battery")
	t.Setenv(envNewPassphrase, "")
	return &harness{t: t, dir: dir, archive: filepath.Join(dir, "vault.lbx"), config: cfg}
}

// run executes the CLI with the harness archive and config.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(append([]string{"--archive", h.archive, "--config", h.config}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run("", args...)
	require.NoError(h.t, err, "lockbox %s", strings.Join(args, " "))
	return out
}

func TestCLI_Lifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("create")
	assert.Contains(t, out, "Created")
	assert.FileExists(t, h.archive)

	id := strings.TrimSpace(h.mustRun("add", "login", "GitHub", "username=octocat", "password=hunter2", "--tag", "Work"))
	require.NotEmpty(t, id)

	out = h.mustRun("list")
	assert.Contains(t, out, "GitHub")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Work")

	out = h.mustRun("show", "github")
	assert.Contains(t, out, "octocat")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "hunter2")

	out = h.mustRun("show", id, "--reveal")
	assert.Contains(t, out, "hunter2")

	out = h.mustRun("search", "octo", "--values")
	assert.Contains(t, out, "GitHub")
	out = h.mustRun("search", "nothing-like-this")
	assert.Contains(t, out, "No matches.")

	out = h.mustRun("rm", "GitHub")
	assert.Contains(t, out, "Deleted GitHub")

	out = h.mustRun("list", "--json")
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestCLI_AddRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create")

	_, err := h.run("", "add", "login", "GitHub", "username")
	assert.ErrorContains(t, err, "expected name=value")

	_, err = h.run("", "add", "login", "GitHub", "username=octocat")
	assert.ErrorIs(t, err, core.ErrSchema)

	_, err = h.run("", "add", "no_such_template", "X")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCLI_WrongPassphrase(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create")

	t.Setenv(envPassphrase, "definitely not it")
	_, err := h.run("", "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAuth)
	assert.Equal(t, 2, exitCode(err))
}

func TestCLI_PassphraseFromStdin(t *testing.T) {
	h := newHarness(t)
	t.Setenv(envPassphrase, "")

	_, err := h.run("one passphrase\nanother one\n", "create")
	assert.ErrorContains(t, err, "do not match")
	assert.NoFileExists(t, h.archive)

	_, err = h.run("same passphrase\nsame passphrase\n", "create")
	require.NoError(t, err)

	out, err := h.run("same passphrase\n", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
}

func TestCLI_Passwd(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create")
	h.mustRun("add", "wifi", "Home", "ssid=home", "password=letmein")

	t.Setenv(envNewPassphrase, "a brand new passphrase")
	out := h.mustRun("passwd")
	assert.Contains(t, out, "Passphrase changed.")

	_, err := h.run("", "list")
	assert.ErrorIs(t, err, core.ErrAuth)

	t.Setenv(envPassphrase, "a brand new passphrase")
	out = h.mustRun("list")
	assert.Contains(t, out, "Home")
}

func TestCLI_ValidateRepairInfo(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create")

	out := h.mustRun("validate")
	assert.Contains(t, out, "No issues found.")

	out = h.mustRun("repair")
	assert.Contains(t, out, "No issues found.")

	out = h.mustRun("info")
	assert.Contains(t, out, "Records:   0")

	out = h.mustRun("templates")
	assert.Contains(t, out, "login")
	assert.Contains(t, out, "username*")
	assert.Contains(t, out, "built-in")
}

func TestCLI_ClearsPassphrases(t *testing.T) {
	h := newHarness(t)
	t.Setenv(envPassphrase, "")

	run := func(stdin string, args ...string) [][]byte {
		t.Helper()
		var handed [][]byte
		c := newCLI(strings.NewReader(stdin), &bytes.Buffer{}, &bytes.Buffer{})
		c.readSecret = func(env, prompt string) ([]byte, error) {
			b, err := c.passphrase(env, prompt)
			handed = append(handed, b)
			return b, err
		}
		cmd := c.command()
		cmd.SetArgs(append([]string{"--archive", h.archive, "--config", h.config}, args...))
		require.NoError(t, cmd.Execute(), "lockbox %s", strings.Join(args, " "))
		return handed
	}

	handed := run("correct horse battery\ncorrect horse battery\n", "create")
	handed = append(handed, run("correct horse battery\n", "list")...)
	handed = append(handed, run("correct horse battery\ncorrect horse battery\nanother passphrase\n", "passwd")...)

	require.Len(t, handed, 6)
	for i, b := range handed {
		require.NotEmpty(t, b)
		assert.Equal(t, make([]byte, len(b)), b, "passphrase %d not cleared", i)
	}
}

func TestCLI_InvalidConfig(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.config, []byte("archive:\n  compression_level: 42\n"), 0o600))

	_, err := h.run("", "create")
	assert.ErrorContains(t, err, "config validation failed")
	assert.NoFileExists(t, h.archive)
}

func TestCLI_Version(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("version")
	assert.True(t, strings.HasPrefix(out, "lockbox v"))
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{core.NewError(core.ErrAuth, "open", nil), 2},
		{&core.ValidationError{}, 3},
		{fmt.Errorf("wrapped: %w", core.ErrCorruption), 3},
		{core.ErrLockTimeout, 4},
		{errors.New("anything else"), 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, exitCode(c.err), c.err.Error())
	}
}
