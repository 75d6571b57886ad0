// Package base provides base implementation for scheduler jobs.
package base

import (
	"sync"
	"time"
)

// JobBase records the outcome of the last run.
// Jobs embed it so the scheduler can report status without knowing the job type.
type JobBase struct {
	mu       sync.RWMutex
	lastRun  time.Time
	lastErr  error
	duration time.Duration
	runs     int64
}

// RecordRun stores the result of a finished run.
func (j *JobBase) RecordRun(started time.Time, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastRun = started
	j.lastErr = err
	j.duration = time.Since(started)
	j.runs++
}

// LastRun returns when the job last started, its error and how long it took.
// The zero time means the job never ran.
func (j *JobBase) LastRun() (time.Time, time.Duration, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastRun, j.duration, j.lastErr
}

// Runs returns how many times the job has completed.
func (j *JobBase) Runs() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.runs
}
