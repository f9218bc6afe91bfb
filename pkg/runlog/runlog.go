// Package runlog collects non-fatal errors and warnings during a single
// pipeline run. The log is append-only and scoped to one run; the response
// assembler reads it back after the stream completes.
package runlog

import (
	"sync"
	"time"
)

// Error kinds with a fixed retryability classification. Kinds outside this
// set are non-retryable by definition.
const (
	KindNetwork         = "NETWORK_ERROR"
	KindTimeout         = "TIMEOUT_ERROR"
	KindRateLimit       = "API_RATE_LIMIT"
	KindConnectionReset = "CONNECTION_RESET"
	KindServer5xx       = "SERVER_ERROR_5XX"
)

var retryableKinds = map[string]bool{
	KindNetwork:         true,
	KindTimeout:         true,
	KindRateLimit:       true,
	KindConnectionReset: true,
	KindServer5xx:       true,
}

// Entry is one recorded error or warning. Retryable is only meaningful for
// errors.
type Entry struct {
	Kind      string    `json:"type"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Retryable bool      `json:"retryable,omitempty"`
}

// Log is a run-scoped error accumulator. It is safe for concurrent use; the
// pipeline's detail fan-out appends from multiple goroutines.
type Log struct {
	mu          sync.Mutex
	errors      []Entry
	warnings    []Entry
	retryCounts map[string]int
}

// New creates an empty run log.
func New() *Log {
	return &Log{
		retryCounts: make(map[string]int),
	}
}

// AddError appends an error entry. Retryability is derived from the kind.
func (l *Log) AddError(kind, message string, details any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errors = append(l.errors, Entry{
		Kind:      kind,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
		Retryable: retryableKinds[kind],
	})
}

// AddWarning appends a warning entry.
func (l *Log) AddWarning(kind, message string, details any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.warnings = append(l.warnings, Entry{
		Kind:      kind,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	})
}

// ShouldRetry increments the retry counter for key and reports whether it is
// still under max. Callers use it for their own retry gating independent of
// the transport's built-in retries.
func (l *Log) ShouldRetry(key string, max int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.retryCounts[key] < max {
		l.retryCounts[key]++
		return true
	}
	return false
}

// ResetRetry clears the retry counter for key.
func (l *Log) ResetRetry(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.retryCounts, key)
}

// Errors returns a copy of the recorded errors.
func (l *Log) Errors() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.errors...)
}

// Warnings returns a copy of the recorded warnings.
func (l *Log) Warnings() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.warnings...)
}

// HasErrors reports whether any error was recorded.
func (l *Log) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors) > 0
}
