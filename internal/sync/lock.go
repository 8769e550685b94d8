package sync

import "sync"

// jobLocks is a process-wide registry of per-job try-locks, satisfying
// the §5 requirement that the sync-service lock is "one per job-name,
// try-lock semantics, not blocking."
type jobLocks struct {
	mu      sync.Mutex
	running map[string]bool
}

func newJobLocks() *jobLocks {
	return &jobLocks{running: make(map[string]bool)}
}

// TryAcquire reports whether job was not already running, and if so marks
// it running. Release must be called exactly once for every true result.
func (l *jobLocks) TryAcquire(job string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running[job] {
		return false
	}
	l.running[job] = true
	return true
}

// Release marks job no longer running. Safe to call on any exit path,
// including after a panic recovery, so the lock never leaks.
func (l *jobLocks) Release(job string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.running, job)
}

// IsRunning reports whether job currently holds its lock.
func (l *jobLocks) IsRunning(job string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running[job]
}
