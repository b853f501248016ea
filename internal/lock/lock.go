// Package lock keeps two ssh-agent-setup runs from editing the same unit
// and RC files at once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	// FileName is the lock file created inside the lock directory.
	FileName = "run.lock"

	// StaleThreshold is the age after which a lock is stale even when its
	// owner cannot be checked.
	StaleThreshold = 10 * time.Minute
)

// ErrLocked means another run holds the lock.
var ErrLocked = errors.New("another ssh-agent-setup run is in progress")

// Lock is a held run lock.
type Lock struct {
	path string
	file *os.File
}

// pidAlive is replaced in tests.
var pidAlive = func(ctx context.Context, pid int32) bool {
	alive, err := process.PidExistsWithContext(ctx, pid)
	return err == nil && alive
}

// Acquire creates the lock file in dir with O_EXCL. A lock left by a dead
// process, or older than StaleThreshold, is removed and acquisition is
// retried once.
func Acquire(ctx context.Context, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	file, err := create(path)
	if errors.Is(err, os.ErrExist) {
		if !isStale(ctx, path) {
			return nil, ErrLocked
		}
		os.Remove(path)
		file, err = create(path)
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	data := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(data); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write lock data: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release removes the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// Locker acquires the run lock in Dir.
type Locker struct {
	Dir string
}

// Lock acquires the lock and returns its release function.
func (l Locker) Lock(ctx context.Context) (func() error, error) {
	held, err := Acquire(ctx, l.Dir)
	if err != nil {
		return nil, err
	}
	return held.Release, nil
}

func create(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
}

// isStale reports whether the lock at path can be taken over.
func isStale(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) > StaleThreshold {
		return true
	}

	pid, ok := readPID(path)
	if !ok {
		// Owner is still writing, or the file is foreign. Wait for it to age.
		return false
	}
	return !pidAlive(ctx, pid)
}

func readPID(path string) (int32, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		value, found := strings.CutPrefix(line, "pid=")
		if !found {
			continue
		}
		pid, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
		if err != nil || pid <= 0 {
			return 0, false
		}
		return int32(pid), true
	}
	return 0, false
}
