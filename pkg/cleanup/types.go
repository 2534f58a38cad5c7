// Package cleanup implements the eager intermediate-file cleanup engine: an
// event-driven state machine that deletes task working directories and
// intermediate output files as soon as they can no longer influence any
// future task.
package cleanup

import "github.com/flowforge/eagerclean/pkg/models"

// Logger defines the logging interface CleanupEngine depends on. The
// concrete implementation (internal/log) wraps logrus; tests use a
// lighter recorder.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// PathDeleter synchronously removes a file or recursively removes a
// directory. Implementations must be idempotent-safe: calling Delete on a
// path that is already gone is not an error.
type PathDeleter interface {
	Delete(path string) error
}

// CacheSink is a fire-and-forget sink for "task T's outputs were consumed
// by these tasks" records, consumed by resume logic. FinalizeAsync must not
// block the caller on I/O; implementations that need to, queue internally.
type CacheSink interface {
	FinalizeAsync(taskHash string, consumerHashes []string)
}

// Warning is emitted at workflow-begin for process configurations
// incompatible with eager deletion. It is informational only.
type Warning struct {
	Process string
	Reason  string
}

// Task and StaticDAG are re-exported aliases so callers of this package
// don't also need to import pkg/models for the common case.
type Task = models.Task
type StaticDAG = models.StaticDAG
