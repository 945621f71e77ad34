// Package lockfile guards a conversation directory against concurrent
// sessions. One process owns one conversation at a time; a stale lock left by
// a dead process is reclaimed.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("conversation is locked by another process")

// Lockfile is a PID-stamped exclusive lock on a directory.
type Lockfile struct {
	path   string
	file   *os.File
	locked bool
}

// ForDir creates a lock guarding the given conversation directory.
func ForDir(dir string) *Lockfile {
	return &Lockfile{path: filepath.Join(dir, ".lock")}
}

// TryAcquire takes the lock, reclaiming it if the previous holder is gone.
func (l *Lockfile) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if os.IsExist(err) {
		holder, stale := l.holderState()
		if !stale {
			return fmt.Errorf("%w (pid %d)", ErrLocked, holder)
		}
		if err := os.Remove(l.path); err != nil {
			return fmt.Errorf("failed to reclaim stale lock: %w", err)
		}
		file, err = os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
		if err != nil {
			return fmt.Errorf("failed to recreate lock: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to create lock: %w", err)
	}

	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		_ = os.Remove(l.path)
		return fmt.Errorf("failed to write lock: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(l.path)
		return fmt.Errorf("failed to sync lock: %w", err)
	}

	l.file = file
	l.locked = true
	return nil
}

// holderState reads the current lock and reports its PID and whether it can
// be reclaimed. Unreadable or malformed locks count as stale.
func (l *Lockfile) holderState() (pid int, stale bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, true
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err = strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return 0, true
	}

	if !processAlive(pid) {
		return pid, true
	}

	// A very old lock from a live PID likely means PID reuse.
	if len(lines) >= 2 {
		if stamped, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1])); err == nil {
			if time.Since(stamped) > 24*time.Hour {
				return pid, true
			}
		}
	}
	return pid, false
}

// Release drops the lock. Safe to call when not held.
func (l *Lockfile) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false

	var err error
	if l.file != nil {
		err = l.file.Close()
		l.file = nil
	}
	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) && err == nil {
		err = removeErr
	}
	return err
}

// Locked reports whether this instance holds the lock.
func (l *Lockfile) Locked() bool {
	return l.locked
}
