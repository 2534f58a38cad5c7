package cleanup

import (
	"context"
	"time"
)

// Report is a point-in-time summary of engine state, for the status API
// and the watch TUI. Producing it is pure read access under the engine
// mutex; it authorizes no deletions.
type Report struct {
	Processes      int
	ProcessesClosed int
	Tasks          int
	TasksDeleted   int
	TasksDeletable int
	Paths          int
	PathsDeleted   int
	PathsDeletable int
}

// Report returns a snapshot of the engine's current state.
func (e *CleanupEngine) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := Report{Processes: len(e.processes), Tasks: len(e.tasks), Paths: len(e.paths)}
	for _, ps := range e.processes {
		if ps.closed {
			r.ProcessesClosed++
		}
	}
	for _, ts := range e.tasks {
		if ts.deleted {
			r.TasksDeleted++
		} else if e.isTaskDeletable(ts) {
			r.TasksDeletable++
		}
	}
	for _, ps := range e.paths {
		if ps.deleted {
			r.PathsDeleted++
		} else if e.isPathDeletable(ps) {
			r.PathsDeletable++
		}
	}
	return r
}

// ProcessSnapshot is a point-in-time view of one process's state.
type ProcessSnapshot struct {
	Name      string
	Closed    bool
	Consumers []string
}

// TaskSnapshot is a point-in-time view of one task's state.
type TaskSnapshot struct {
	ID             string
	Process        string
	Completed      bool
	Success        bool
	Deleted        bool
	Deletable      bool
	PublishPending []string
	Consumers      []string
}

// PathSnapshot is a point-in-time view of one path's state.
type PathSnapshot struct {
	Path         string
	ProducerTask string
	Published    bool
	Deleted      bool
	Deletable    bool
	Consumers    []string
}

// ListProcesses returns a snapshot of every known process, for the
// status API's /processes endpoint.
func (e *CleanupEngine) ListProcesses() []ProcessSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ProcessSnapshot, 0, len(e.processes))
	for name, ps := range e.processes {
		out = append(out, ProcessSnapshot{Name: name, Closed: ps.closed, Consumers: keys(ps.consumers)})
	}
	return out
}

// GetTask returns a snapshot of a single task, for /tasks/{id}.
func (e *CleanupEngine) GetTask(id string) (TaskSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, ok := e.tasks[id]
	if !ok {
		return TaskSnapshot{}, false
	}
	return TaskSnapshot{
		ID: id, Process: ts.task.Process(), Completed: ts.completed, Success: ts.success,
		Deleted: ts.deleted, Deletable: !ts.deleted && e.isTaskDeletable(ts),
		PublishPending: keys(ts.publishOutputs), Consumers: keys(ts.consumers),
	}, true
}

// ListPaths returns a snapshot of every known path, for /paths.
func (e *CleanupEngine) ListPaths() []PathSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]PathSnapshot, 0, len(e.paths))
	for path, ps := range e.paths {
		out = append(out, PathSnapshot{
			Path: path, ProducerTask: ps.task, Published: ps.published, Deleted: ps.deleted,
			Deletable: !ps.deleted && e.isPathDeletable(ps), Consumers: keys(ps.consumers),
		})
	}
	return out
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// StartIdleSweepLoop re-runs the sweep on a ticker, in addition to the
// per-event sweep every handler already triggers. Disabled when
// interval <= 0. The returned function stops the loop.
func (e *CleanupEngine) StartIdleSweepLoop(ctx context.Context, interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}
	stopCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCtx.Done():
				return
			case <-ticker.C:
				e.mu.Lock()
				e.sweep()
				e.mu.Unlock()
			}
		}
	}()
	return cancel
}
