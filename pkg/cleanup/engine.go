package cleanup

import (
	"sync"

	"github.com/flowforge/eagerclean/pkg/models"
	"github.com/flowforge/eagerclean/pkg/taskgraph"
	"github.com/pkg/errors"
)

// CleanupEngine is the event-driven state machine described in spec.md §4.2.
// It subscribes to five lifecycle events and, after each, decides which
// tasks and files are now safe to delete. All state mutation and the
// deleter/cache calls a mutation triggers happen under a single mutex — the
// simplest correct choice per spec.md §5.
type CleanupEngine struct {
	mu sync.Mutex

	deleter PathDeleter
	cache   CacheSink
	logger  Logger
	graph   *taskgraph.TaskGraph

	processes map[string]*processState
	tasks     map[string]*taskState
	paths     map[string]*pathState

	// publishedOutputs holds early-publication notifications for paths
	// whose producing task has not yet reached task-complete (invariant 7).
	publishedOutputs map[string]struct{}

	vertexKind map[string]models.VertexKind
}

// NewCleanupEngine constructs an engine with no workflow state. Call
// WorkflowBegin before any other event.
func NewCleanupEngine(deleter PathDeleter, cache CacheSink, logger Logger) *CleanupEngine {
	return &CleanupEngine{
		deleter:          deleter,
		cache:            cache,
		logger:           logger,
		graph:            taskgraph.New(),
		processes:        make(map[string]*processState),
		tasks:            make(map[string]*taskState),
		paths:            make(map[string]*pathState),
		publishedOutputs: make(map[string]struct{}),
		vertexKind:       make(map[string]models.VertexKind),
	}
}

// TaskGraph exposes the dynamic task dataflow graph populated as a side
// effect of task-pending/task-complete, for resume logic and reporting.
func (e *CleanupEngine) TaskGraph() *taskgraph.TaskGraph {
	return e.graph
}

// WorkflowBegin (E1) computes the process-level consumer set of every
// process in the static DAG by walking forward edges, treating operator
// vertices as transparent transit points and process vertices as terminal.
// A process with no downstream process consumers gets itself as its own
// consumer, so it is never blocked waiting on an empty set.
//
// It also inspects every process configuration and returns warnings (never
// an error) for shapes incompatible with eager deletion.
func (e *CleanupEngine) WorkflowBegin(dag StaticDAG) []Warning {
	e.mu.Lock()
	defer e.mu.Unlock()

	vertices := dag.Vertices()
	byName := make(map[string]models.Vertex, len(vertices))
	outgoing := make(map[string][]string)
	for _, v := range vertices {
		byName[v.Name] = v
		e.vertexKind[v.Name] = v.Kind
	}
	for _, edge := range dag.Edges() {
		outgoing[edge.From] = append(outgoing[edge.From], edge.To)
	}

	var warnings []Warning
	for _, v := range vertices {
		if v.Kind != models.VertexProcess {
			continue
		}
		consumers := walkProcessConsumers(v.Name, byName, outgoing)
		e.processes[v.Name] = &processState{consumers: consumers}

		if v.Config == nil {
			continue
		}
		if v.Config.ReexportsInput {
			warnings = append(warnings, Warning{
				Process: v.Name,
				Reason:  "process re-exports an input as a file output; incompatible with eager deletion",
			})
			e.logger.Warnf("process %q re-exports an input as an output; eager deletion of its inputs is unsafe", v.Name)
		}
		if v.Config.PublishMode.IncompatibleWithEagerDeletion() {
			warnings = append(warnings, Warning{
				Process: v.Name,
				Reason:  "process publishes with a symlink-like mode; incompatible with eager deletion",
			})
			e.logger.Warnf("process %q publishes with symlink-like mode %q; eager deletion of its outputs is unsafe", v.Name, v.Config.PublishMode)
		}
	}
	return warnings
}

// walkProcessConsumers performs the forward walk described above starting
// from start, without mutating engine state.
func walkProcessConsumers(start string, byName map[string]models.Vertex, outgoing map[string][]string) map[string]struct{} {
	consumers := make(map[string]struct{})
	visited := make(map[string]struct{})
	stack := append([]string{}, outgoing[start]...)
	for len(stack) > 0 {
		n := len(stack) - 1
		name := stack[n]
		stack = stack[:n]
		if _, seen := visited[name]; seen {
			continue
		}
		visited[name] = struct{}{}

		v, ok := byName[name]
		if !ok {
			continue
		}
		if v.Kind == models.VertexProcess {
			consumers[name] = struct{}{}
			continue // process vertices are terminal for the walk
		}
		stack = append(stack, outgoing[name]...)
	}
	if len(consumers) == 0 {
		consumers[start] = struct{}{}
	}
	return consumers
}

// ProcessClosed (E2) marks a process as done spawning tasks and runs a sweep.
func (e *CleanupEngine) ProcessClosed(processName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps, ok := e.processes[processName]
	if !ok {
		return errors.Errorf("cleanup: process-closed for unknown process %q", processName)
	}
	ps.closed = true
	e.sweep()
	return nil
}

// TaskPending (E3) records a fresh TaskState and links this task as a
// consumer of every already-known PathState it declares as an input. It
// deliberately does not sweep: a new task can only block deletions, never
// unblock one.
func (e *CleanupEngine) TaskPending(task Task) error {
	if task == nil {
		return errors.New("cleanup: task-pending called with nil task")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.tasks[task.ID()]; exists {
		return errors.Errorf("cleanup: task-pending called twice for task %q", task.ID())
	}
	e.tasks[task.ID()] = newTaskState(task)

	if err := e.graph.AddTask(task); err != nil {
		return errors.Wrap(err, "cleanup: recording task in task graph")
	}

	for _, inputPath := range task.Inputs() {
		ps, ok := e.paths[inputPath]
		if !ok {
			continue
		}
		ps.consumers[task.ID()] = struct{}{}
		if producer, ok := e.tasks[ps.task]; ok {
			producer.consumers[task.ID()] = struct{}{}
		}
	}
	return nil
}

// TaskComplete (E4) finalizes a task's outputs and publish bookkeeping.
//
// The sweep in step 3 intentionally runs before PathStates are created in
// step 4 — the task's own outputs are not candidates for per-file deletion
// in this same pass, only on later events. This mirrors the reference
// design; see spec.md §9 for the rationale.
func (e *CleanupEngine) TaskComplete(task Task) error {
	if task == nil {
		return errors.New("cleanup: task-complete called with nil task")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ts, ok := e.tasks[task.ID()]
	if !ok {
		return errors.Errorf("cleanup: task-complete for unknown task %q", task.ID())
	}

	if !task.Success() {
		ts.completed = true
		ts.success = false
		return nil
	}

	outputs := task.Outputs()

	publishSet := make(map[string]struct{})
	for _, out := range outputs {
		if out.FileTyped && out.Publish {
			publishSet[out.Path] = struct{}{}
		}
	}

	// Step 1: reconcile against early publication notifications.
	for path := range publishSet {
		if _, early := e.publishedOutputs[path]; early {
			delete(publishSet, path)
			delete(e.publishedOutputs, path)
		}
	}

	// Step 2.
	ts.publishOutputs = publishSet
	ts.completed = true
	ts.success = true

	// Step 3: sweep before the new PathStates exist.
	e.sweep()

	// Step 4: create PathStates for this task's file-typed outputs.
	if err := e.graph.AddTaskOutputs(task); err != nil {
		return errors.Wrap(err, "cleanup: recording task outputs in task graph")
	}
	for _, out := range outputs {
		if !out.FileTyped {
			continue
		}
		prePublished := !out.Publish
		e.paths[out.Path] = newPathState(task.ID(), prePublished)
	}
	return nil
}

// FilePublished (E5) records that source has been published. If its
// PathState is not yet known, the notification is stashed for reconciliation
// at the owning task's task-complete.
func (e *CleanupEngine) FilePublished(source string) error {
	if source == "" {
		return errors.New("cleanup: file-published called with empty path")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ps, ok := e.paths[source]
	if !ok {
		e.publishedOutputs[source] = struct{}{}
		return nil
	}

	if producer, ok := e.tasks[ps.task]; ok {
		delete(producer.publishOutputs, source)
	}
	ps.published = true

	if producer, ok := e.tasks[ps.task]; ok && e.isTaskDeletable(producer) {
		e.deleteTask(producer)
		return nil
	}
	if e.isPathDeletable(ps) {
		e.deletePath(source, ps)
	}
	return nil
}

// sweep performs one pass over all known tasks applying the task
// deletability predicate, then one pass over all known paths applying the
// path predicate. It is not a fixed point: every deletion-authorizing fact
// is itself an event that triggers its own sweep, so one pass per event is
// sufficient (spec.md §4.2).
func (e *CleanupEngine) sweep() {
	for _, ts := range e.tasks {
		if !ts.deleted && e.isTaskDeletable(ts) {
			e.deleteTask(ts)
		}
	}
	for path, ps := range e.paths {
		if !ps.deleted && e.isPathDeletable(ps) {
			e.deletePath(path, ps)
		}
	}
}

func (e *CleanupEngine) isTaskDeletable(ts *taskState) bool {
	if !ts.completed || ts.deleted || len(ts.publishOutputs) != 0 {
		return false
	}
	return e.allProcessConsumersClosed(ts.task.Process()) && e.allTaskConsumersCompleted(ts.consumers)
}

func (e *CleanupEngine) isPathDeletable(ps *pathState) bool {
	if !ps.published || ps.deleted {
		return false
	}
	producer, ok := e.tasks[ps.task]
	if !ok {
		return false
	}
	return e.allProcessConsumersClosed(producer.task.Process()) && e.allTaskConsumersCompleted(ps.consumers)
}

func (e *CleanupEngine) allProcessConsumersClosed(processName string) bool {
	proc, ok := e.processes[processName]
	if !ok {
		return false
	}
	for consumer := range proc.consumers {
		cs, ok := e.processes[consumer]
		if !ok || !cs.closed {
			return false
		}
	}
	return true
}

func (e *CleanupEngine) allTaskConsumersCompleted(consumers map[string]struct{}) bool {
	for id := range consumers {
		ts, ok := e.tasks[id]
		if !ok || !ts.completed {
			return false
		}
	}
	return true
}

// deleteTask invokes the deleter on the task's work directory. Either the
// deleted flag is set and a finalize record submitted, or neither — a
// deleter failure leaves the task eligible for another attempt on a later
// sweep.
func (e *CleanupEngine) deleteTask(ts *taskState) {
	if err := e.deleter.Delete(ts.task.WorkDir()); err != nil {
		e.logger.Errorf("cleanup: failed to delete work dir for task %q: %v", ts.task.ID(), err)
		return
	}
	ts.deleted = true

	var consumerHashes []string
	for id := range ts.consumers {
		if cts, ok := e.tasks[id]; ok && cts.success {
			consumerHashes = append(consumerHashes, cts.task.Hash())
		}
	}
	e.cache.FinalizeAsync(ts.task.Hash(), consumerHashes)
	e.logger.Infof("cleanup: deleted work dir for task %q (%d consumers finalized)", ts.task.ID(), len(consumerHashes))
}

// deletePath invokes the deleter on a single path, unless the producing
// task's work directory has already been deleted — in which case the path
// is already gone and only the flag is updated. This preserves idempotence
// against partial deleter failures.
func (e *CleanupEngine) deletePath(path string, ps *pathState) {
	if producer, ok := e.tasks[ps.task]; ok && producer.deleted {
		ps.deleted = true
		return
	}
	if err := e.deleter.Delete(path); err != nil {
		e.logger.Errorf("cleanup: failed to delete path %q: %v", path, err)
		return
	}
	ps.deleted = true
	e.logger.Infof("cleanup: deleted path %q", path)
}
