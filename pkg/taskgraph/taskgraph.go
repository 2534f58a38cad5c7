// Package taskgraph records the dynamic task-level dataflow of a workflow
// run: every task that has been scheduled, its declared inputs, and — once
// known — its declared outputs. It is the companion structure the cache
// layer and resume logic query to answer "who produced this file" and
// "who consumes task T's outputs".
package taskgraph

import (
	"fmt"
	"sync"

	"github.com/flowforge/eagerclean/internal/log"
	"github.com/flowforge/eagerclean/pkg/models"
	"github.com/pkg/errors"
)

// Vertex is a single recorded task, addressable by the order it was added.
type Vertex struct {
	Index   int
	Label   string
	Inputs  map[string]string
	Outputs map[string]struct{}
}

// TaskGraph is an append-only record of the dynamic task dataflow. All
// write operations are serialized by an internal mutex; reads may observe
// any consistent snapshot but need not be linearized with writes, matching
// the concurrency contract of spec.md §4.1.
type TaskGraph struct {
	mu          sync.Mutex
	nextIndex   int
	vertices    map[string]*Vertex // task ID -> vertex
	producerIdx map[string]string  // path -> task ID
}

// New returns an empty TaskGraph.
func New() *TaskGraph {
	return &TaskGraph{
		vertices:    make(map[string]*Vertex),
		producerIdx: make(map[string]string),
	}
}

// AddTask records a new vertex for task with a monotonically assigned
// index, a "[xx/yyyyyy] <name>" label derived from the first eight hex
// characters of the task's content hash, and a by-value copy of its
// declared inputs.
//
// Callers must not call AddTask twice for the same task; doing so overwrites
// the recorded inputs without warning (spec.md §4.1).
func (g *TaskGraph) AddTask(task models.Task) error {
	if task == nil {
		return errors.New("taskgraph: AddTask called with nil task")
	}

	hash := task.Hash()
	short := hash
	if len(short) > 8 {
		short = short[:8]
	}
	label := fmt.Sprintf("[%s/%s] %s", bucket(short), remainder(short), task.Label())

	inputs := make(map[string]string, len(task.Inputs()))
	for k, v := range task.Inputs() {
		inputs[k] = v
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.nextIndex
	g.nextIndex++
	g.vertices[task.ID()] = &Vertex{
		Index:   idx,
		Label:   label,
		Inputs:  inputs,
		Outputs: make(map[string]struct{}),
	}
	return nil
}

// bucket returns the first two hex characters used as the directory-sharding
// prefix of the "[xx/yyyyyy]" label, mirroring how content-addressed caches
// shard their directories.
func bucket(hash string) string {
	if len(hash) < 2 {
		return hash
	}
	return hash[:2]
}

// remainder returns the six hex characters following the bucket, so that
// bucket+remainder reconstructs the full eight-character short hash.
func remainder(hash string) string {
	if len(hash) <= 2 {
		return ""
	}
	if len(hash) < 8 {
		return hash[2:]
	}
	return hash[2:8]
}

// AddTaskOutputs sets the vertex's outputs to the union of task's
// file-typed outputs and updates the reverse path->task index for each. If
// a path was previously registered to a different task, the later
// registration wins; callers should treat that as a workflow bug (two
// tasks claiming the same output path), not as a supported feature.
func (g *TaskGraph) AddTaskOutputs(task models.Task) error {
	if task == nil {
		return errors.New("taskgraph: AddTaskOutputs called with nil task")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	v, ok := g.vertices[task.ID()]
	if !ok {
		return errors.Errorf("taskgraph: AddTaskOutputs called for unknown task %q", task.ID())
	}

	for _, out := range task.Outputs() {
		if !out.FileTyped || out.Path == "" {
			continue
		}
		v.Outputs[out.Path] = struct{}{}
		if prevTaskID, exists := g.producerIdx[out.Path]; exists && prevTaskID != task.ID() {
			log.GetLogger().Errorf(
				"taskgraph: path %q re-registered from task %q to task %q — likely workflow bug",
				out.Path, prevTaskID, task.ID())
		}
		g.producerIdx[out.Path] = task.ID()
	}
	return nil
}

// GetProducerTask returns the ID of the task that produced path, if known.
func (g *TaskGraph) GetProducerTask(path string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.producerIdx[path]
	return id, ok
}

// GetProducerVertex returns the vertex that produced path, if known.
func (g *TaskGraph) GetProducerVertex(path string) (Vertex, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.producerIdx[path]
	if !ok {
		return Vertex{}, false
	}
	v, ok := g.vertices[id]
	if !ok {
		return Vertex{}, false
	}
	return cloneVertex(v), true
}

// GetVertices returns a snapshot of all recorded vertices, keyed by task ID.
func (g *TaskGraph) GetVertices() map[string]Vertex {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]Vertex, len(g.vertices))
	for id, v := range g.vertices {
		out[id] = cloneVertex(v)
	}
	return out
}

func cloneVertex(v *Vertex) Vertex {
	inputs := make(map[string]string, len(v.Inputs))
	for k, val := range v.Inputs {
		inputs[k] = val
	}
	outputs := make(map[string]struct{}, len(v.Outputs))
	for k := range v.Outputs {
		outputs[k] = struct{}{}
	}
	return Vertex{Index: v.Index, Label: v.Label, Inputs: inputs, Outputs: outputs}
}
