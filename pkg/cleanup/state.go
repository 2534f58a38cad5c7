package cleanup

import "github.com/flowforge/eagerclean/pkg/models"

// processState tracks a static process node: its derived process-level
// consumer set (computed once, at workflow-begin) and whether it has
// stopped spawning tasks.
type processState struct {
	consumers map[string]struct{} // process names
	closed    bool
}

// taskState tracks a single scheduled task. consumers accumulates
// task-level consumers as dependent tasks go pending; per invariant 6 this
// only happens while the task is not yet deleted.
type taskState struct {
	task           models.Task
	consumers      map[string]struct{} // task IDs
	publishOutputs map[string]struct{} // paths
	completed      bool
	success        bool
	deleted        bool
}

// pathState tracks a single declared output path of a completed task.
type pathState struct {
	task      string // producing task ID
	consumers map[string]struct{}
	published bool
	deleted   bool
}

func newTaskState(task models.Task) *taskState {
	return &taskState{
		task:           task,
		consumers:      make(map[string]struct{}),
		publishOutputs: make(map[string]struct{}),
	}
}

func newPathState(producerTaskID string, prePublished bool) *pathState {
	return &pathState{
		task:      producerTaskID,
		consumers: make(map[string]struct{}),
		published: prePublished,
	}
}
