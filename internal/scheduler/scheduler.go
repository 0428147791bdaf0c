// Package scheduler owns the persistent task queue and the bounded worker
// pool that runs long analysis jobs against it (spec §4.5).
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/selectia/selectia-core/internal/actor"
	"github.com/selectia/selectia-core/internal/ports"
)

// TaskKind tags which task body a payload should be dispatched to.
type TaskKind string

const (
	TaskFileAnalysis   TaskKind = "file_analysis"
	TaskStemExtraction TaskKind = "stem_extraction"
)

// TaskPayload is the JSON-encoded contents of a persisted task row: the
// tagged variant is FileAnalysis{metadata_id} or StemExtraction{metadata_id}
// (spec's task record), both represented here by the same shape since the
// Kind tag already disambiguates.
type TaskPayload struct {
	Kind       TaskKind `json:"kind"`
	MetadataID int64    `json:"metadata_id"`
}

// Runner executes one task variant. internal/analysis supplies the concrete
// file-analysis and stem-extraction runners; tests supply fakes.
type Runner interface {
	Run(ctx context.Context, payload TaskPayload) error
}

// RunnerFunc adapts a plain function to Runner.
type RunnerFunc func(ctx context.Context, payload TaskPayload) error

func (f RunnerFunc) Run(ctx context.Context, payload TaskPayload) error { return f(ctx, payload) }

// EventKind tags a queue-lifecycle event.
type EventKind int

const (
	EventTaskCreated EventKind = iota
	EventTaskUpdated
)

// Event mirrors spec §4.5's QueueTaskCreated/QueueTaskUpdated notifications.
type Event struct {
	Kind    EventKind
	ID      int64
	Status  ports.TaskStatus
	Removed bool
}

type scheduleMsg struct{ payload TaskPayload }
type taskDoneMsg struct {
	id      int64
	success bool
}
type pollMsg struct{}

// Scheduler is the bounded-pool task runner (spec §4.5).
type Scheduler struct {
	catalog  ports.Catalog
	runners  map[TaskKind]Runner
	poolSize int
	events   *actor.Dispatcher[Event]

	self   *actor.Sender[any]
	active int
}

// Options configures a Scheduler.
type Options struct {
	PoolSize int // default 1
	Runners  map[TaskKind]Runner
	Events   *actor.Dispatcher[Event]
}

// Spawn starts the scheduler actor: it resets crashed-processing rows to
// queued, then begins draining the queue up to PoolSize concurrent tasks.
func Spawn(ctx *actor.Context, catalog ports.Catalog, opts Options) *actor.Sender[any] {
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	s := &Scheduler{
		catalog:  catalog,
		runners:  opts.Runners,
		poolSize: poolSize,
		events:   opts.Events,
	}
	sender := actor.Spawn(ctx, s.run, actor.SpawnOptions{Name: "scheduler.Scheduler"})
	s.self = sender.Clone()
	return sender
}

func (s *Scheduler) emit(ev Event) {
	if s.events != nil {
		s.events.Emit(ev)
	}
}

func (s *Scheduler) run(sc *actor.ServiceContext, rx *actor.ServiceReceiver[any]) {
	ctx := context.Background()

	resetCount, err := s.catalog.SanitizeTaskStatus(ctx)
	if err != nil {
		slog.Error("scheduler: sanitize task status failed", "error", err)
	} else if resetCount > 0 {
		slog.Info("scheduler: reset crashed tasks to queued", "count", resetCount)
	}

	_ = s.self.Send(pollMsg{})

	for {
		msg, ok := rx.Recv()
		if !ok {
			return
		}
		switch m := msg.(type) {
		case scheduleMsg:
			s.handleSchedule(ctx, m.payload)
		case taskDoneMsg:
			s.handleTaskDone(ctx, m)
		case pollMsg:
			// wakeup only; dequeue loop below does the work.
		default:
			slog.Warn("scheduler: unknown message type", "type", fmt.Sprintf("%T", msg))
		}
		s.dequeueWhileAvailable(ctx)
	}
}

func (s *Scheduler) handleSchedule(ctx context.Context, payload TaskPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("scheduler: marshal task payload", "error", err)
		return
	}
	id, err := s.catalog.CreateTask(ctx, raw)
	if err != nil {
		slog.Error("scheduler: create task", "error", err)
		return
	}
	s.emit(Event{Kind: EventTaskCreated, ID: id, Status: ports.TaskQueued})
}

func (s *Scheduler) handleTaskDone(ctx context.Context, m taskDoneMsg) {
	s.active--
	if !m.success {
		slog.Warn("scheduler: task failed", "id", m.id)
	}
	if err := s.catalog.DeleteTask(ctx, m.id); err != nil {
		slog.Error("scheduler: delete finished task", "id", m.id, "error", err)
	}
	s.emit(Event{Kind: EventTaskUpdated, ID: m.id, Status: ports.TaskDone, Removed: true})
}

// dequeueWhileAvailable atomically claims rows for every open pool slot,
// spawning a task for each (spec §4.5: "after every message, while the pool
// has empty slots...").
func (s *Scheduler) dequeueWhileAvailable(ctx context.Context) {
	for s.active < s.poolSize {
		row, ok, err := s.catalog.DequeueTask(ctx)
		if err != nil {
			slog.Error("scheduler: dequeue task", "error", err)
			return
		}
		if !ok {
			return
		}
		s.active++
		s.emit(Event{Kind: EventTaskUpdated, ID: row.ID, Status: ports.TaskProcessing})
		go s.runTask(row)
	}
}

func (s *Scheduler) runTask(row ports.TaskRow) {
	var payload TaskPayload
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		slog.Error("scheduler: malformed task payload", "id", row.ID, "error", err)
		_ = s.self.Send(taskDoneMsg{id: row.ID, success: false})
		return
	}

	runner, ok := s.runners[payload.Kind]
	if !ok {
		slog.Error("scheduler: no runner registered for task kind", "id", row.ID, "kind", payload.Kind)
		_ = s.self.Send(taskDoneMsg{id: row.ID, success: false})
		return
	}

	err := runner.Run(context.Background(), payload)
	if err != nil {
		slog.Error("scheduler: task failed", "id", row.ID, "kind", payload.Kind, "error", err)
	}
	_ = s.self.Send(taskDoneMsg{id: row.ID, success: err == nil})
}

// Schedule persists a new queued task row for the given payload.
func Schedule(sender *actor.Sender[any], payload TaskPayload) error {
	return sender.Send(scheduleMsg{payload: payload})
}
