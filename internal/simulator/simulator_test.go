package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/eagerclean/pkg/cleanup"
	"github.com/flowforge/eagerclean/pkg/cleanup/cleanuptest"
)

func diamondSpec() PipelineSpec {
	return PipelineSpec{Processes: []ProcessSpec{
		{Name: "A", TaskCount: 4, Publish: false},
		{Name: "B", Upstream: []string{"A"}, TaskCount: 4, Publish: true},
		{Name: "C", Upstream: []string{"A"}, TaskCount: 4, FailEvery: 3},
		{Name: "D", Upstream: []string{"B", "C"}, TaskCount: 4, Publish: true},
	}}
}

func newEngine() (*cleanup.CleanupEngine, *cleanuptest.RecordingDeleter, *cleanuptest.RecordingCache) {
	deleter := cleanuptest.NewRecordingDeleter()
	cache := cleanuptest.NewRecordingCache()
	logger := cleanuptest.NewRecordingLogger()
	return cleanup.NewCleanupEngine(deleter, cache, logger), deleter, cache
}

// TestSimulatedRunCompletesWithoutFatalErrors drives a diamond pipeline
// with concurrent workers and a failing process, and expects every stage
// to report and every process to close without a programmer-contract
// violation.
func TestSimulatedRunCompletesWithoutFatalErrors(t *testing.T) {
	engine, deleter, _ := newEngine()
	exec := New(4, 42)

	log, err := exec.Run(engine, diamondSpec())
	require.NoError(t, err)
	assert.NotEmpty(t, log.Events())

	report := engine.Report()
	assert.Equal(t, report.Tasks, report.TasksDeleted,
		"every task should have been deleted once the last process closed, with no deleter failures injected")
	assert.NotEmpty(t, deleter.Deleted, "at least some work dirs/paths should have been cleaned up")
}

// TestReplayIsEquivalentToConcurrentRun is the round-trip property from
// spec.md §8: replaying the recorded event log into a fresh engine yields
// the same set of delete calls the concurrent run produced, even though
// the two runs may interleave differently.
func TestReplayIsEquivalentToConcurrentRun(t *testing.T) {
	liveEngine, liveDeleter, _ := newEngine()
	exec := New(6, 7)
	log, err := exec.Run(liveEngine, diamondSpec())
	require.NoError(t, err)

	replayEngine, replayDeleter, _ := newEngine()
	require.NoError(t, Replay(replayEngine, log))

	assert.ElementsMatch(t, dedupe(liveDeleter.Deleted), dedupe(replayDeleter.Deleted),
		"replaying the event log sequentially must delete the same set of paths as the concurrent run")
}

// TestNoPathDeletedBeforePublished checks invariant 2 of spec.md §8
// against the recorded event log: every publish-subject output the
// deleter removed must have a file-published event in the log. The
// relative order of the deletion and that event is not checked.
func TestNoPathDeletedBeforePublished(t *testing.T) {
	engine, deleter, _ := newEngine()
	exec := New(4, 99)
	log, err := exec.Run(engine, diamondSpec())
	require.NoError(t, err)

	published := make(map[string]bool)
	for _, e := range log.Events() {
		if e.Kind == "file-published" {
			published[e.Path] = true
		}
	}
	for _, e := range log.Events() {
		if e.Kind != "task-complete" || e.Task == nil {
			continue
		}
		for _, out := range e.Task.TaskOutputs {
			if !out.Publish {
				continue // not subject to publishing, pre-marked published at creation
			}
			if deleter.WasDeleted(out.Path) {
				assert.True(t, published[out.Path], "path %q was deleted but never published", out.Path)
			}
		}
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
