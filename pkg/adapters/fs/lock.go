package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"

	"github.com/aretw0/lockbox/pkg/core"
)

const (
	// LockSuffix is appended to the archive path to name its lock file.
	LockSuffix = ".lock"

	lockRetryInterval = 10 * time.Millisecond
)

// errLockLost is returned on unlock when the lock file no longer carries
// this holder's token.
var errLockLost = errors.New("lock file was taken over by another holder")

// lockPath returns the lock file guarding archive.
func lockPath(archive string) string {
	return archive + LockSuffix
}

// lockInfo is the content of a lock file: one value per line.
type lockInfo struct {
	pid   int
	since int64
	token string
}

func (l lockInfo) encode() []byte {
	return fmt.Appendf(nil, "%d\n%d\n%s\n", l.pid, l.since, l.token)
}

func readLock(path string) (lockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockInfo{}, err
	}
	var l lockInfo
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) > 0 {
		l.pid, _ = strconv.Atoi(lines[0])
	}
	if len(lines) > 1 {
		l.since, _ = strconv.ParseInt(lines[1], 10, 64)
	}
	if len(lines) > 2 {
		l.token = lines[2]
	}
	return l, nil
}

// Lock acquires the archive's lock file. It spins until the file can be
// created exclusively, breaking locks older than StaleAfter, and gives up
// with ErrLockTimeout after LockTimeout. While held, the lock file's mtime
// is refreshed well inside StaleAfter, so a live holder never looks stale.
func (p *Provider) Lock(ctx context.Context, locator string) (func() error, error) {
	archive, err := p.resolve(locator)
	if err != nil {
		return nil, err
	}
	path := lockPath(archive)
	deadline := time.Now().Add(p.config.LockTimeout)

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			info := lockInfo{pid: os.Getpid(), since: time.Now().Unix(), token: uuid.NewString()}
			_, werr := f.Write(info.encode())
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				os.Remove(path)
				return nil, core.NewError(core.ErrIO, "lock", classify(werr)).WithPath(path)
			}
			p.config.Logger.Debug("archive lock acquired", "lock", path)
			return p.hold(path, info.token), nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, core.NewError(core.ErrIO, "lock", classify(err)).WithPath(path)
		}

		if p.breakStaleLock(path) {
			continue
		}

		if time.Now().After(deadline) {
			return nil, core.NewError(core.ErrLockTimeout, "lock", fmt.Errorf("held by %s", lockOwner(path))).WithPath(path)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// hold keeps the lock at path alive and returns its release function.
// Release removes the file only while it still carries token.
func (p *Provider) hold(path, token string) func() error {
	stop := func() {}
	if p.config.StaleAfter > 0 {
		interval := max(p.config.StaleAfter/4, time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		task := lifecycle.Go(ctx, func(ctx context.Context) error {
			return p.refreshLock(ctx, path, token, interval)
		}, lifecycle.WithErrorHandler(p.reportError))
		stop = func() {
			cancel()
			_ = task.Wait()
		}
	}

	return func() error {
		stop()
		current, err := readLock(path)
		if errors.Is(err, os.ErrNotExist) {
			return core.NewError(core.ErrIO, "unlock", errLockLost).WithPath(path)
		}
		if err != nil {
			return core.NewError(core.ErrIO, "unlock", classify(err)).WithPath(path)
		}
		if current.token != token {
			p.config.Logger.Warn("archive lock taken over", "lock", path, "owner", lockOwner(path))
			return core.NewError(core.ErrIO, "unlock", errLockLost).WithPath(path)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return core.NewError(core.ErrIO, "unlock", err).WithPath(path)
		}
		p.config.Logger.Debug("archive lock released", "lock", path)
		return nil
	}
}

// refreshLock touches the lock file every interval until ctx ends. It stops
// early, with an error, once the file stops carrying token.
func (p *Provider) refreshLock(ctx context.Context, path, token string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current, err := readLock(path)
			if err == nil && current.token != token {
				err = errLockLost
			}
			if err != nil {
				return core.NewError(core.ErrIO, "refresh lock", err).WithPath(path)
			}
			now := time.Now()
			if err := os.Chtimes(path, now, now); err != nil {
				return core.NewError(core.ErrIO, "refresh lock", err).WithPath(path)
			}
		}
	}
}

// breakStaleLock removes the lock file if it has not been refreshed within
// StaleAfter.
func (p *Provider) breakStaleLock(path string) bool {
	if p.config.StaleAfter <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		// Released between attempts.
		return errors.Is(err, os.ErrNotExist)
	}
	if time.Since(info.ModTime()) < p.config.StaleAfter {
		return false
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false
	}
	p.config.Logger.Warn("stale archive lock removed", "lock", path, "age", time.Since(info.ModTime()).Round(time.Second))
	return true
}

func lockOwner(path string) string {
	l, err := readLock(path)
	if err != nil || l.pid <= 0 {
		return "unknown owner"
	}
	return "pid " + strconv.Itoa(l.pid)
}
