// Package jobmgr runs named, fire-once delayed jobs with cancellation,
// status callbacks, and in-memory tracking of pending jobs.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(func(msg string) {
//	    log.Println("JOB:", msg)
//	})
//
//	jm.After("leave:123", 2*time.Second, func(ctx context.Context) error {
//	    // runs once unless replaced or cancelled first
//	    return nil
//	})
//
//	// re-registering the same name cancels the pending job
//	jm.After("leave:123", 2*time.Second, ...)
//
// No retry logic, no workers, no persistence. Callers that need jobs to
// survive a restart re-register them on startup.
package jobmgr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Job represents a pending unit of work.
// Jobs are added and removed by Manager automatically.
type Job struct {
	Name   string
	Due    time.Time
	Cancel context.CancelFunc
	gen    uint64
}

// StatusReporter receives lifecycle events for jobs.
// Example messages:
//
//	scheduled:leave:42
//	running:leave:42
//	error:rating:99:message gone
//	done:leave:42
//	cancelled:leave:42
type StatusReporter func(string)

// Manager orchestrates scheduling, replacing and cancelling jobs.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	gen      uint64
	closed   bool
	Reporter StatusReporter
}

// NewManager creates a new Manager.
// The reporter callback may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		Reporter: reporter,
	}
}

// After schedules runner to execute once after delay. A pending job with the
// same name is cancelled and replaced. Jobs registered after Shutdown are
// dropped.
func (m *Manager) After(name string, delay time.Duration, runner func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return
	}
	if prev, ok := m.jobs[name]; ok {
		prev.Cancel()
		m.report("cancelled:" + name)
	}
	m.gen++
	job := &Job{Name: name, Due: time.Now().Add(delay), Cancel: cancel, gen: m.gen}
	m.jobs[name] = job
	m.mu.Unlock()

	m.report("scheduled:" + name)

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// a replacement may have been registered between the timer firing
		// and this point; only the current generation runs
		m.mu.Lock()
		cur, ok := m.jobs[name]
		if !ok || cur.gen != job.gen {
			m.mu.Unlock()
			return
		}
		delete(m.jobs, name)
		m.mu.Unlock()

		m.report("running:" + name)
		if err := runner(ctx); err != nil {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}
		cancel()
	}()
}

// Cancel stops a pending job by name. It reports whether a job was pending.
func (m *Manager) Cancel(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return false
	}
	job.Cancel()
	delete(m.jobs, name)
	m.report("cancelled:" + name)
	return true
}

// Pending reports whether a job with the given name is waiting to fire.
func (m *Manager) Pending(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// List returns the sorted names of pending jobs.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Status returns a human-readable summary of pending jobs.
// Example:
//
//	"Pending jobs: leave:1, rating:2"
//
// If none are pending: "No jobs are pending."
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are pending."
	}
	return fmt.Sprintf("Pending jobs: %s", strings.Join(active, ", "))
}

// Shutdown cancels every pending job and rejects new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for name, job := range m.jobs {
		job.Cancel()
		delete(m.jobs, name)
	}
}

// report delivers lifecycle messages to the reporter if present.
func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
