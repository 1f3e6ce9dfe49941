package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// staleLockAge is how old a lock file must be before another worker may
// break it. A crashed worker's lock otherwise blocks the match forever.
const staleLockAge = 10 * time.Minute

// ErrMatchLocked reports that another worker is already analyzing the
// match. The lock is advisory: callers should skip the match, not fail.
var ErrMatchLocked = errors.New("match already locked by another worker")

// matchLock is an advisory per-match file lock.
type matchLock struct {
	path string
}

// acquireLock takes the advisory lock for matchID under dir, creating dir
// if needed. Stale locks are broken and retaken.
func acquireLock(dir, matchID string) (*matchLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	path := filepath.Join(dir, lockName(matchID))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		info, statErr := os.Stat(path)
		if statErr != nil || time.Since(info.ModTime()) < staleLockAge {
			return nil, ErrMatchLocked
		}
		// Stale lock from a dead worker, break it and retry once.
		if err := os.Remove(path); err != nil {
			return nil, ErrMatchLocked
		}
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			return nil, ErrMatchLocked
		}
	}
	if err != nil {
		return nil, fmt.Errorf("creating lock file: %w", err)
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return &matchLock{path: path}, nil
}

func (l *matchLock) release() {
	os.Remove(l.path)
}

// lockName flattens a match id into a safe file name.
func lockName(matchID string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return r.Replace(matchID) + ".lock"
}
