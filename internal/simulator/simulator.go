// Package simulator provides SimulatedExecutor, an in-process stand-in
// for the real executor the cleanup engine never talks to directly. It
// drives a declared process/task pipeline concurrently and emits the same
// five lifecycle events internal/eventbus would relay from the wire,
// directly against a cleanup.CleanupEngine.
//
// The concurrent dispatch — a channel of runnable jobs drained by a fixed
// pool of goroutines, a sync.WaitGroup, per-stage bookkeeping — is
// adapted from the teacher's pkg/service/worker_pool.go, swapped from
// scheduling named task functions to producing file-dataflow events.
package simulator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowforge/eagerclean/pkg/cleanup"
	"github.com/flowforge/eagerclean/pkg/models"
)

// ProcessSpec declares one process of a simulated pipeline. Processes
// must be listed in topological order: Upstream may only name processes
// that appear earlier in PipelineSpec.Processes, since a task can only be
// pending once the upstream paths it reads actually exist.
type ProcessSpec struct {
	Name      string
	Upstream  []string // process names this process's tasks read from
	TaskCount int
	Publish   bool // whether this process's outputs are published
	FailEvery int  // every FailEvery'th task fails; 0 disables
}

// PipelineSpec is a full simulated pipeline.
type PipelineSpec struct {
	Processes []ProcessSpec
}

// Event is one entry of the recorded event log, in emission order as
// observed by the simulator (which may differ, run to run, from the
// order the engine's mutex actually serialized concurrent calls in — the
// log exists for deterministic replay, not for reconstructing the exact
// interleaving).
type Event struct {
	Kind string // "workflow-begin", "process-closed", "task-pending", "task-complete", "file-published"
	DAG  *models.SimpleDAG
	Task *models.SimpleTask
	Path string
}

// EventLog is a concurrency-safe append-only record of emitted events.
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *EventLog) append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Events returns a snapshot of the recorded log.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// SimulatedExecutor runs a PipelineSpec against a CleanupEngine.
type SimulatedExecutor struct {
	Workers int

	randMu sync.Mutex
	rand   *rand.Rand
}

// New returns a SimulatedExecutor with workers goroutines per process
// stage and a PRNG seeded by seed. Concurrent workers draw from the PRNG
// in scheduling order, so with more than one worker the same seed does
// not reproduce a run exactly.
func New(workers int, seed int64) *SimulatedExecutor {
	if workers <= 0 {
		workers = 4
	}
	return &SimulatedExecutor{Workers: workers, rand: rand.New(rand.NewSource(seed))}
}

// Run drives spec against engine, process by process in the declared
// topological order, dispatching each process's tasks across a worker
// pool. It returns the full recorded event log for replay.
func (s *SimulatedExecutor) Run(engine *cleanup.CleanupEngine, spec PipelineSpec) (*EventLog, error) {
	log := &EventLog{}

	dag := buildDAG(spec)
	engine.WorkflowBegin(dag)
	log.append(Event{Kind: "workflow-begin", DAG: dag})

	outputsByProcess := make(map[string][]string)

	for _, proc := range spec.Processes {
		var upstreamPaths [][]string
		for _, up := range proc.Upstream {
			upstreamPaths = append(upstreamPaths, outputsByProcess[up])
		}

		jobs := make(chan int, proc.TaskCount)
		results := make(chan []string, proc.TaskCount)
		var wg sync.WaitGroup

		for w := 0; w < s.Workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					outs := s.runTask(engine, log, proc, i, upstreamPaths)
					results <- outs
				}
			}()
		}
		for i := 0; i < proc.TaskCount; i++ {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		close(results)

		var allOutputs []string
		for outs := range results {
			allOutputs = append(allOutputs, outs...)
		}
		outputsByProcess[proc.Name] = allOutputs

		if err := engine.ProcessClosed(proc.Name); err != nil {
			return log, err
		}
		log.append(Event{Kind: "process-closed", Task: &models.SimpleTask{ProcessName: proc.Name}})
	}

	return log, nil
}

func (s *SimulatedExecutor) runTask(engine *cleanup.CleanupEngine, log *EventLog, proc ProcessSpec, index int, upstreamPaths [][]string) []string {
	taskID := fmt.Sprintf("%s-%d", proc.Name, index)
	inputs := make(map[string]string)
	for ui, paths := range upstreamPaths {
		if len(paths) == 0 {
			continue
		}
		inputs[fmt.Sprintf("in%d", ui)] = paths[index%len(paths)]
	}

	task := &models.SimpleTask{
		TaskID:      taskID,
		TaskHash:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(taskID)).String(),
		TaskLabel:   taskID,
		TaskWorkDir: fmt.Sprintf("/work/%s", taskID),
		ProcessName: proc.Name,
		TaskInputs:  inputs,
	}

	if err := engine.TaskPending(task); err != nil {
		return nil
	}
	log.append(Event{Kind: "task-pending", Task: cloneTask(task)})

	outPath := fmt.Sprintf("/data/%s/out", taskID)
	success := !(proc.FailEvery > 0 && (index+1)%proc.FailEvery == 0)

	// Occasionally race a file-published notification ahead of
	// task-complete, exercising E4/E5's early-publication reconciliation.
	// runTask waits for that notification before it returns, so Run's
	// event log is complete once Run returns.
	var published sync.WaitGroup
	defer published.Wait()
	earlyPublish := success && proc.Publish && s.next()%3 == 0
	if earlyPublish {
		published.Add(1)
		go func() {
			defer published.Done()
			time.Sleep(time.Duration(s.next()%5) * time.Millisecond)
			_ = engine.FilePublished(outPath)
			log.append(Event{Kind: "file-published", Path: outPath})
		}()
	}

	task.TaskSuccess = success
	if success {
		task.TaskOutputs = []models.OutputSpec{{Name: "out", Path: outPath, FileTyped: true, Publish: proc.Publish}}
	}

	if err := engine.TaskComplete(task); err != nil {
		return nil
	}
	log.append(Event{Kind: "task-complete", Task: cloneTask(task)})

	if success && proc.Publish && !earlyPublish {
		_ = engine.FilePublished(outPath)
		log.append(Event{Kind: "file-published", Path: outPath})
	}

	if !success {
		return nil
	}
	return []string{outPath}
}

// next returns the next pseudo-random, non-negative value from the
// executor's seeded source. Safe for concurrent use: rand.Rand itself is
// not, so callers serialize through this method's lock.
func (s *SimulatedExecutor) next() uint64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.Uint64()
}

func cloneTask(t *models.SimpleTask) *models.SimpleTask {
	inputs := make(map[string]string, len(t.TaskInputs))
	for k, v := range t.TaskInputs {
		inputs[k] = v
	}
	outputs := make([]models.OutputSpec, len(t.TaskOutputs))
	copy(outputs, t.TaskOutputs)
	return &models.SimpleTask{
		TaskID: t.TaskID, TaskHash: t.TaskHash, TaskLabel: t.TaskLabel, TaskWorkDir: t.TaskWorkDir,
		ProcessName: t.ProcessName, TaskInputs: inputs, TaskOutputs: outputs, TaskSuccess: t.TaskSuccess,
	}
}

func buildDAG(spec PipelineSpec) *models.SimpleDAG {
	dag := &models.SimpleDAG{}
	for _, p := range spec.Processes {
		dag.VertexList = append(dag.VertexList, models.Vertex{
			Name: p.Name, Kind: models.VertexProcess, Config: &models.ProcessConfig{Name: p.Name},
		})
	}
	for _, p := range spec.Processes {
		for _, up := range p.Upstream {
			dag.EdgeList = append(dag.EdgeList, models.Edge{From: up, To: p.Name})
		}
	}
	return dag
}

// Replay drives the recorded events in log, in order, against a fresh
// engine — the round-trip property of spec.md §8.
func Replay(engine *cleanup.CleanupEngine, log *EventLog) error {
	for _, e := range log.Events() {
		switch e.Kind {
		case "workflow-begin":
			engine.WorkflowBegin(e.DAG)
		case "process-closed":
			if err := engine.ProcessClosed(e.Task.ProcessName); err != nil {
				return err
			}
		case "task-pending":
			if err := engine.TaskPending(e.Task); err != nil {
				return err
			}
		case "task-complete":
			if err := engine.TaskComplete(e.Task); err != nil {
				return err
			}
		case "file-published":
			if err := engine.FilePublished(e.Path); err != nil {
				return err
			}
		}
	}
	return nil
}
