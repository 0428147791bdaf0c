package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/selectia/selectia-core/internal/actor"
	"github.com/selectia/selectia-core/internal/ports"
	"github.com/selectia/selectia-core/internal/ports/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReadyContext() *actor.Context {
	ctx := actor.NewContext()
	ctx.Ready()
	return ctx
}

// TestStartupRecoversCrashedTaskBeforeDispatch is spec §8 scenario 3: a row
// left in processing by a crashed run must be reset to queued, and the
// scheduler's own dispatch loop must observe that reset row as the oldest
// queued candidate (it was created first) before handing out new work.
func TestStartupRecoversCrashedTaskBeforeDispatch(t *testing.T) {
	catalog := fake.NewCatalog()
	ctx := context.Background()

	id1, err := catalog.CreateTask(ctx, []byte(`{"kind":"file_analysis"}`))
	require.NoError(t, err)
	id2, err := catalog.CreateTask(ctx, []byte(`{"kind":"file_analysis"}`))
	require.NoError(t, err)

	_, _, err = catalog.DequeueTask(ctx) // simulates a prior run claiming id1, then crashing
	require.NoError(t, err)
	row1, _, _ := catalog.GetTask(ctx, id1)
	require.Equal(t, ports.TaskProcessing, row1.Status)

	blocking := make(chan struct{})
	started := make(chan struct{}, 1)
	runners := map[TaskKind]Runner{
		TaskFileAnalysis: RunnerFunc(func(ctx context.Context, payload TaskPayload) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-blocking
			return nil
		}),
	}

	actorCtx := newReadyContext()
	Spawn(actorCtx, catalog, Options{PoolSize: 1, Runners: runners})

	// Wait for the single pool slot to be taken, so the row states below are
	// observed after the scheduler's first dispatch.
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("scheduler never dispatched a task")
	}

	require.Eventually(t, func() bool {
		row2, _, _ := catalog.GetTask(ctx, id2)
		return row2.Status == ports.TaskQueued
	}, time.Second, time.Millisecond)

	row1After, _, _ := catalog.GetTask(ctx, id1)
	assert.Equal(t, ports.TaskProcessing, row1After.Status)
	close(blocking)
}

func TestProcessingCountNeverExceedsPoolSize(t *testing.T) {
	catalog := fake.NewCatalog()
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := catalog.CreateTask(ctx, []byte(`{"kind":"file_analysis"}`))
		require.NoError(t, err)
	}

	const poolSize = 3
	var concurrent int32
	var maxSeen int32
	runners := map[TaskKind]Runner{
		TaskFileAnalysis: RunnerFunc(func(ctx context.Context, payload TaskPayload) error {
			n := atomic.AddInt32(&concurrent, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
			return nil
		}),
	}

	actorCtx := newReadyContext()
	Spawn(actorCtx, catalog, Options{PoolSize: poolSize, Runners: runners})

	require.Eventually(t, func() bool {
		rows, _ := catalog.GetTasks(ctx)
		return len(rows) == 0
	}, 5*time.Second, 5*time.Millisecond)

	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxSeen)), poolSize)
}

func TestScheduleCreatesQueuedRowAndEmitsEvent(t *testing.T) {
	catalog := fake.NewCatalog()
	events := actor.NewDispatcher[Event](16, 16)
	evCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go events.Run(evCtx)
	listener := events.Listen()

	var blockOnce sync.Once
	block := make(chan struct{})
	runners := map[TaskKind]Runner{
		TaskFileAnalysis: RunnerFunc(func(ctx context.Context, payload TaskPayload) error {
			blockOnce.Do(func() { <-block })
			return nil
		}),
	}

	actorCtx := newReadyContext()
	sender := Spawn(actorCtx, catalog, Options{PoolSize: 1, Runners: runners, Events: events})

	require.NoError(t, Schedule(sender, TaskPayload{Kind: TaskFileAnalysis, MetadataID: 42}))

	var sawCreated bool
	deadline := time.After(2 * time.Second)
	for !sawCreated {
		select {
		case ev := <-listener:
			if ev.Kind == EventTaskCreated {
				sawCreated = true
				assert.Equal(t, ports.TaskQueued, ev.Status)
			}
		case <-deadline:
			t.Fatal("timed out waiting for QueueTaskCreated event")
		}
	}
	close(block)
}

func TestTaskDoneDeletesFinishedRow(t *testing.T) {
	catalog := fake.NewCatalog()
	id, err := catalog.CreateTask(context.Background(), []byte(`{"kind":"file_analysis","file_id":1}`))
	require.NoError(t, err)

	done := make(chan struct{})
	runners := map[TaskKind]Runner{
		TaskFileAnalysis: RunnerFunc(func(ctx context.Context, payload TaskPayload) error {
			defer close(done)
			return nil
		}),
	}

	actorCtx := newReadyContext()
	Spawn(actorCtx, catalog, Options{PoolSize: 1, Runners: runners})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}

	require.Eventually(t, func() bool {
		_, ok, _ := catalog.GetTask(context.Background(), id)
		return !ok
	}, time.Second, time.Millisecond)
}
