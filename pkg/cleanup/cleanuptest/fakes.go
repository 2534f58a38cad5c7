// Package cleanuptest provides in-memory test doubles for
// github.com/flowforge/eagerclean/pkg/cleanup's collaborator interfaces, in
// the style of the teacher's pkg/storage/mock_storage.go: plain structs that
// record every call instead of talking to a real backend.
package cleanuptest

import (
	"fmt"
	"sync"
)

// RecordingDeleter records every Delete call and can be told to fail N
// times for a given path before succeeding, to exercise the re-delete
// idempotence scenario (S6).
type RecordingDeleter struct {
	mu       sync.Mutex
	Deleted  []string
	failures map[string]int
}

func NewRecordingDeleter() *RecordingDeleter {
	return &RecordingDeleter{failures: make(map[string]int)}
}

// FailNextDelete makes the next Delete call for path fail; it can be
// called multiple times to queue up several consecutive failures.
func (d *RecordingDeleter) FailNextDelete(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[path]++
}

func (d *RecordingDeleter) Delete(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures[path] > 0 {
		d.failures[path]--
		return fmt.Errorf("simulated delete failure for %q", path)
	}
	d.Deleted = append(d.Deleted, path)
	return nil
}

// WasDeleted reports whether path was ever successfully deleted.
func (d *RecordingDeleter) WasDeleted(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.Deleted {
		if p == path {
			return true
		}
	}
	return false
}

// DeleteCount returns how many times path was successfully deleted.
func (d *RecordingDeleter) DeleteCount(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	for _, p := range d.Deleted {
		if p == path {
			count++
		}
	}
	return count
}

// FinalizeRecord is one recorded CacheSink.FinalizeAsync call.
type FinalizeRecord struct {
	TaskHash       string
	ConsumerHashes []string
}

// RecordingCache records every FinalizeAsync call synchronously, which is
// fine for tests — the interface only promises not to block the caller on
// I/O, not concurrency against the recorder itself.
type RecordingCache struct {
	mu      sync.Mutex
	Records []FinalizeRecord
}

func NewRecordingCache() *RecordingCache {
	return &RecordingCache{}
}

func (c *RecordingCache) FinalizeAsync(taskHash string, consumerHashes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Records = append(c.Records, FinalizeRecord{TaskHash: taskHash, ConsumerHashes: consumerHashes})
}

// RecordFor returns the finalize record for taskHash, if any.
func (c *RecordingCache) RecordFor(taskHash string) (FinalizeRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.Records {
		if r.TaskHash == taskHash {
			return r, true
		}
	}
	return FinalizeRecord{}, false
}

// RecordingLogger implements cleanup.Logger, buffering every call instead
// of writing to stderr, so tests can assert on warning/error counts.
type RecordingLogger struct {
	mu      sync.Mutex
	Infos   []string
	Warns   []string
	Errors  []string
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) Infof(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, fmt.Sprintf(format, args...))
}

func (l *RecordingLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, fmt.Sprintf(format, args...))
}

func (l *RecordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, fmt.Sprintf(format, args...))
}
