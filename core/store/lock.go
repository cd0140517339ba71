package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// lockRetryInterval is how often a blocked acquire re-attempts the lock.
const lockRetryInterval = 100 * time.Millisecond

// fileLock is an advisory cross-process lock backed by an O_EXCL-created
// lock file. Multiple CLI invocations are independent processes sharing one
// store directory, so in-memory locking alone is not enough; the lock file
// is the mutex primitive between them.
type fileLock struct {
	path string
}

// acquireFileLock blocks until the lock file can be created, the context is
// cancelled, or an unexpected filesystem error occurs. Lock files left
// behind by dead processes are detected by PID and broken.
func acquireFileLock(ctx context.Context, path string) (*fileLock, error) {
	for {
		lock, ok, err := tryFileLock(path)
		if err != nil {
			return nil, err
		}
		if ok {
			return lock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// tryFileLock makes a single, non-blocking lock attempt.
func tryFileLock(path string) (*fileLock, bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
		cerr := f.Close()
		if werr != nil || cerr != nil {
			os.Remove(path)
			return nil, false, errors.Join(werr, cerr)
		}
		return &fileLock{path: path}, true, nil
	}
	if !os.IsExist(err) {
		return nil, false, err
	}

	// Held by someone. Break it only if the owning process is gone.
	breakStaleLock(path)
	return nil, false, nil
}

// breakStaleLock removes a lock file whose recorded owner is dead. The file
// is renamed aside before removal; rename is atomic, so when several waiters
// judge the same lock stale only one gets the file, and the losers cannot
// delete a fresh lock created at the path in the meantime. The staleness
// re-check after the rename catches a waiter that grabbed a live lock which
// replaced the stale one between its check and its rename.
func breakStaleLock(path string) {
	if !lockIsStale(path) {
		return
	}
	aside := path + ".stale-" + uuid.NewString()
	if os.Rename(path, aside) != nil {
		return
	}
	if !lockIsStale(aside) {
		os.Rename(aside, path)
		return
	}
	os.Remove(aside)
}

// release removes the lock file.
func (l *fileLock) release() {
	os.Remove(l.path)
}

// lockIsStale reports whether the lock file's recorded owner is no longer a
// live process. Unreadable or malformed lock files are treated as live
// (fail closed).
func lockIsStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}

	// Signal 0 probes for existence without delivering anything. EPERM
	// still means the process exists.
	err = syscall.Kill(pid, 0)
	if err == nil || errors.Is(err, syscall.EPERM) {
		return false
	}
	return true
}
