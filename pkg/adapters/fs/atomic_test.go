package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates New File", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "vault.lbx")
		content := []byte("sealed")

		if err := writeFileAtomic(ctx, filename, content, 0o600); err != nil {
			t.Fatalf("writeFileAtomic failed: %v", err)
		}

		got, err := os.ReadFile(filename)
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if string(got) != string(content) {
			t.Errorf("Expected content %q, got %q", content, got)
		}
	})

	t.Run("Overwrites Existing File", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "vault.lbx")
		if err := os.WriteFile(filename, []byte("initial"), 0o600); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}

		if err := writeFileAtomic(ctx, filename, []byte("overwritten"), 0o600); err != nil {
			t.Fatalf("writeFileAtomic failed: %v", err)
		}

		got, _ := os.ReadFile(filename)
		if string(got) != "overwritten" {
			t.Errorf("Expected content 'overwritten', got %q", got)
		}
	})

	t.Run("Cancelled Write Keeps Previous File", func(t *testing.T) {
		dir := t.TempDir()
		filename := filepath.Join(dir, "vault.lbx")
		if err := os.WriteFile(filename, []byte("initial"), 0o600); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if err := writeFileAtomic(cancelled, filename, []byte("new"), 0o600); err == nil {
			t.Fatal("Expected cancellation error, got nil")
		}

		got, _ := os.ReadFile(filename)
		if string(got) != "initial" {
			t.Errorf("Expected previous content to survive, got %q", got)
		}

		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("Expected temp file cleanup, found %d entries", len(entries))
		}
	})

	t.Run("Fails if Directory Missing", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "missing_folder", "vault.lbx")
		if err := writeFileAtomic(ctx, filename, []byte("fail"), 0o600); err == nil {
			t.Error("Expected error when directory is missing, got nil")
		}
	})
}
