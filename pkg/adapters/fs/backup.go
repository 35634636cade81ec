package fs

import (
	"errors"
	"fmt"
	"os"
)

// BackupSuffix precedes the rotation index of a backup file.
const BackupSuffix = ".bak."

func backupPath(archive string, n int) string {
	return fmt.Sprintf("%s%s%d", archive, BackupSuffix, n)
}

// rotateBackups shifts archive.bak.1..N-1 up by one and copies the current
// archive to archive.bak.1. The oldest backup falls off.
func (p *Provider) rotateBackups(archive string) error {
	count := p.config.BackupCount
	if !p.config.AutoBackup || count <= 0 {
		return nil
	}
	current, err := os.ReadFile(archive)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read archive for backup: %w", err)
	}

	if err := os.Remove(backupPath(archive, count)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("drop oldest backup: %w", err)
	}
	for n := count - 1; n >= 1; n-- {
		err := os.Rename(backupPath(archive, n), backupPath(archive, n+1))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("rotate backup %d: %w", n, err)
		}
	}
	if err := os.WriteFile(backupPath(archive, 1), current, p.config.Perm); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	p.config.Logger.Debug("archive backup rotated", "archive", archive, "keep", count)
	return nil
}

// Backups lists the existing backups of locator, newest first.
func (p *Provider) Backups(locator string) ([]string, error) {
	archive, err := p.resolve(locator)
	if err != nil {
		return nil, err
	}
	var out []string
	for n := 1; n <= p.config.BackupCount; n++ {
		if _, err := os.Stat(backupPath(archive, n)); err == nil {
			out = append(out, backupPath(archive, n))
		}
	}
	return out, nil
}
