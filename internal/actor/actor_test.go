package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnSuspendsUntilReady(t *testing.T) {
	ctx := NewContext()
	started := make(chan struct{})

	Spawn[int](ctx, func(sc *ServiceContext, rx *ServiceReceiver[int]) {
		close(started)
	}, SpawnOptions{Name: "ping"})

	select {
	case <-started:
		t.Fatal("entrypoint ran before Ready was called")
	case <-time.After(20 * time.Millisecond):
	}

	ctx.Ready()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("entrypoint never ran after Ready")
	}
}

func TestSpawnAfterReadyRunsImmediately(t *testing.T) {
	ctx := NewContext()
	ctx.Ready()

	started := make(chan struct{})
	Spawn[int](ctx, func(sc *ServiceContext, rx *ServiceReceiver[int]) {
		close(started)
	}, SpawnOptions{})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("entrypoint never ran")
	}
}

func TestServiceFIFOOrdering(t *testing.T) {
	ctx := NewContext()
	ctx.Ready()

	var mu sync.Mutex
	var received []int
	done := make(chan struct{})

	sender := Spawn[int](ctx, func(sc *ServiceContext, rx *ServiceReceiver[int]) {
		for {
			v, ok := rx.Recv()
			if !ok {
				close(done)
				return
			}
			mu.Lock()
			received = append(received, v)
			mu.Unlock()
		}
	}, SpawnOptions{})

	for i := 0; i < 10; i++ {
		require.NoError(t, sender.Send(i))
	}
	sender.Close()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, received)
}

func TestSingletonRegistryRoundTrip(t *testing.T) {
	ctx := NewContext()
	ctx.Ready()

	type MyService interface{ Name() string }

	sc := newServiceContext(ctx)
	require.NoError(t, RegisterSingleton[MyService](sc, fakeSvc{}))

	_, err := Lookup[MyService](ctx)
	require.NoError(t, err)

	err = RegisterSingleton[MyService](sc, fakeSvc{})
	assert.ErrorIs(t, err, ErrServiceAlreadyRegistered)

	sc.Destroy()
	_, err = Lookup[MyService](ctx)
	assert.ErrorIs(t, err, ErrServiceNotRegistered)
}

type fakeSvc struct{}

func (fakeSvc) Name() string { return "fake" }

func TestDispatcherFanOutOrderingAndDrop(t *testing.T) {
	d := NewDispatcher[int](16, 1) // listenerCap=1 forces drops for a slow listener
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	defer cancel()

	fast := d.Listen()
	slow := d.Listen()

	// Each event is drained from fast before the next is emitted, so fast's
	// single-slot queue never overflows while slow's does.
	var fastSeen []int
	for i := 0; i < 5; i++ {
		d.Emit(i)
		select {
		case v := <-fast:
			fastSeen = append(fastSeen, v)
		case <-time.After(time.Second):
			t.Fatalf("fast listener stalled at %d events", len(fastSeen))
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, fastSeen)

	// slow listener never drained; it should have at most 1 buffered event
	// (its queue capacity) and the dispatcher must not have blocked on it.
	select {
	case <-slow:
	default:
		t.Fatal("slow listener received nothing at all")
	}
}

func TestCallbackResolveAndWait(t *testing.T) {
	sender, receiver := NewCallback[string]()

	go func() {
		require.NoError(t, sender.Resolve("ok"))
	}()

	v, err := receiver.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	err = sender.Resolve("again")
	assert.ErrorIs(t, err, ErrCallbackAlreadyResolved)
}

func TestCallbackOwnerDropped(t *testing.T) {
	sender, receiver := NewCallback[int]()
	sender.Drop()

	_, err := receiver.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCallbackOwnerDropped)
}

func TestCallbackReceiverCancelled(t *testing.T) {
	sender, receiver := NewCallback[int]()
	receiver.Cancel()

	err := sender.Resolve(1)
	assert.ErrorIs(t, err, ErrCallbackSenderDropped)
}
