// Package eventbus turns the five wire-level workflow lifecycle
// notifications into calls against cleanup.CleanupEngine, using
// nats-io/nats.go as the transport — grounded on the messaging dependency
// declared in fawad-mazhar/naxos's go.mod for its orchestrator/runner
// notifications. This package is a transport adapter only: it carries
// none of the engine's predicates, playing the role of "the executor"
// from the engine's point of view.
package eventbus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/flowforge/eagerclean/internal/log"
	"github.com/flowforge/eagerclean/pkg/cleanup"
	"github.com/flowforge/eagerclean/pkg/models"
)

// Subjects is the fixed set of NATS subjects the bus subscribes to, one
// per inbound event named in spec.md §6.
const (
	SubjectWorkflowBegin = "eagerclean.workflow.begin"
	SubjectProcessClosed = "eagerclean.process.closed"
	SubjectTaskPending   = "eagerclean.task.pending"
	SubjectTaskComplete  = "eagerclean.task.complete"
	SubjectFilePublished = "eagerclean.file.published"
)

// WorkflowBeginMsg is the wire payload for SubjectWorkflowBegin: the
// static process DAG, serialized as plain vertex/edge lists since the
// engine's StaticDAG is a read-only accessor interface, not a wire type.
type WorkflowBeginMsg struct {
	Vertices []models.Vertex `json:"vertices"`
	Edges    []models.Edge   `json:"edges"`
}

// ProcessClosedMsg is the wire payload for SubjectProcessClosed.
type ProcessClosedMsg struct {
	Process string `json:"process"`
}

// TaskMsg is the wire payload shared by SubjectTaskPending and
// SubjectTaskComplete: a flattened models.SimpleTask, since the engine's
// Task handle is normally backed by in-process executor state that has
// no wire representation of its own.
type TaskMsg struct {
	models.SimpleTask
}

// FilePublishedMsg is the wire payload for SubjectFilePublished.
type FilePublishedMsg struct {
	Source string `json:"source"`
}

// Bus subscribes a CleanupEngine to the five subjects above. It is the
// "real executor" producer of inbound events, as opposed to
// internal/simulator which produces the same events in-process for tests
// and demos.
type Bus struct {
	conn   *nats.Conn
	engine *cleanup.CleanupEngine
	subs   []*nats.Subscription
}

// Connect dials url and returns a Bus ready to Start against engine.
func Connect(url string, engine *cleanup.CleanupEngine) (*Bus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, errors.Wrap(err, "eventbus: connect")
	}
	return &Bus{conn: conn, engine: engine}, nil
}

// Start subscribes to all five subjects. Programmer-contract violations
// (malformed payload, unknown task/process) are fatal per spec.md §7: the
// handler responds on the message's reply subject with an error so a
// request-reply executor can fail fast, and always logs.
func (b *Bus) Start() error {
	subs := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{SubjectWorkflowBegin, b.handleWorkflowBegin},
		{SubjectProcessClosed, b.handleProcessClosed},
		{SubjectTaskPending, b.handleTaskPending},
		{SubjectTaskComplete, b.handleTaskComplete},
		{SubjectFilePublished, b.handleFilePublished},
	}
	for _, s := range subs {
		sub, err := b.conn.Subscribe(s.subject, s.handler)
		if err != nil {
			return errors.Wrapf(err, "eventbus: subscribe %q", s.subject)
		}
		b.subs = append(b.subs, sub)
	}
	return nil
}

// Close unsubscribes and drains the connection.
func (b *Bus) Close() error {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	return b.conn.Drain()
}

func (b *Bus) handleWorkflowBegin(msg *nats.Msg) {
	var payload WorkflowBeginMsg
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		b.nack(msg, errors.Wrap(err, "eventbus: decode workflow-begin"))
		return
	}
	dag := &models.SimpleDAG{VertexList: payload.Vertices, EdgeList: payload.Edges}
	warnings := b.engine.WorkflowBegin(dag)
	for _, w := range warnings {
		log.GetLogger().Warnf("eventbus: workflow-begin warning for process %q: %s", w.Process, w.Reason)
	}
	b.ack(msg)
}

func (b *Bus) handleProcessClosed(msg *nats.Msg) {
	var payload ProcessClosedMsg
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		b.nack(msg, errors.Wrap(err, "eventbus: decode process-closed"))
		return
	}
	if err := b.engine.ProcessClosed(payload.Process); err != nil {
		b.nack(msg, err)
		return
	}
	b.ack(msg)
}

func (b *Bus) handleTaskPending(msg *nats.Msg) {
	var payload TaskMsg
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		b.nack(msg, errors.Wrap(err, "eventbus: decode task-pending"))
		return
	}
	task := payload.SimpleTask
	if err := b.engine.TaskPending(&task); err != nil {
		b.nack(msg, err)
		return
	}
	b.ack(msg)
}

func (b *Bus) handleTaskComplete(msg *nats.Msg) {
	var payload TaskMsg
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		b.nack(msg, errors.Wrap(err, "eventbus: decode task-complete"))
		return
	}
	task := payload.SimpleTask
	if err := b.engine.TaskComplete(&task); err != nil {
		b.nack(msg, err)
		return
	}
	b.ack(msg)
}

func (b *Bus) handleFilePublished(msg *nats.Msg) {
	var payload FilePublishedMsg
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		b.nack(msg, errors.Wrap(err, "eventbus: decode file-published"))
		return
	}
	if err := b.engine.FilePublished(payload.Source); err != nil {
		b.nack(msg, err)
		return
	}
	b.ack(msg)
}

func (b *Bus) ack(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Respond([]byte("ok"))
	}
}

func (b *Bus) nack(msg *nats.Msg, err error) {
	log.GetLogger().Errorf("eventbus: %v", err)
	if msg.Reply != "" {
		_ = msg.Respond([]byte("error: " + err.Error()))
	}
}
