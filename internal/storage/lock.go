package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("lock held by another process")

// GenerationLock is the lock file format that serializes writes to one
// kit's generated output tree. Regenerating the same kit from two processes
// at once would interleave remove-then-recreate, so the second one waits
// for (or fails on) this file.
type GenerationLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
	Kit       string    `json:"kit"`
}

// LockPath returns the lock file for a kit under outputDir. It lives next to
// the kit directory, not inside it, so removing the kit tree keeps it.
func LockPath(outputDir, kit string) string {
	return filepath.Join(outputDir, "kits", "."+kit+".generate.lock")
}

// AcquireLock creates the lock file at lockPath. A lock left behind by a
// dead process on this host is taken over.
func AcquireLock(lockPath, kit string) error {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get hostname: %w", err)
	}
	lock := GenerationLock{
		Holder:    "cpt-generate",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		Kit:       kit,
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, werr := f.Write(data)
			cerr := f.Close()
			if werr != nil {
				return fmt.Errorf("failed to write lock: %w", werr)
			}
			if cerr != nil {
				return fmt.Errorf("failed to write lock: %w", cerr)
			}
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock: %w", err)
		}

		existing, rerr := ReadLock(lockPath)
		if rerr == nil && isProcessAlive(existing.PID, existing.Hostname) {
			return fmt.Errorf("%w: kit %s is being generated by PID %d on %s (started %s)",
				ErrLocked, existing.Kit, existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
		}
		// Stale or unreadable lock: remove and retry once.
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}
	return fmt.Errorf("%w: could not take over %s", ErrLocked, lockPath)
}

// ReadLock reads and decodes a lock file.
func ReadLock(lockPath string) (*GenerationLock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var lock GenerationLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("invalid lock file %s: %w", lockPath, err)
	}
	return &lock, nil
}

// ReleaseLock removes the lock file. Use defer.
func ReleaseLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock: %w", err)
	}
	return nil
}

// isProcessAlive checks if a process with the given PID exists on the given
// hostname. Processes on other hosts cannot be checked and count as alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM: it exists but belongs to someone else.
	return errors.Is(err, syscall.EPERM)
}
