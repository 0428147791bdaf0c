package actor

import (
	"log/slog"
	"sync"
)

// Sender is the addressable half of a service's inbox. Send blocks when the
// inbox is full, applying back-pressure to the producer. Sender is cheaply
// cloneable (Clone) so a service can hold a sender to itself, as the demuxer
// proxy and the task scheduler both do.
type Sender[T any] struct {
	ch     chan T
	name   string
	closer *sync.Once
}

// Clone returns a Sender pointing at the same inbox. Used by self-sending
// services that need to both own the receive side and hand out a send side
// (to themselves or to callers).
func (s *Sender[T]) Clone() *Sender[T] {
	return &Sender[T]{ch: s.ch, name: s.name, closer: s.closer}
}

// Close closes the inbox, causing the entrypoint's next Recv to return
// ok=false. Safe to call more than once or from multiple clones.
func (s *Sender[T]) Close() {
	s.closer.Do(func() { close(s.ch) })
}

// ServiceReceiver is the consuming half an entrypoint reads from. It behaves
// like a plain receive-only channel (Recv, or Chan for use in a select).
type ServiceReceiver[T any] struct {
	ch <-chan T
}

// Recv reads the next message, or returns ok=false once the inbox is closed
// and drained (the send side has gone away).
func (r *ServiceReceiver[T]) Recv() (T, bool) {
	v, ok := <-r.ch
	return v, ok
}

// Chan exposes the underlying receive channel for use in a select statement
// alongside other event sources (timers, dispatchers, ...).
func (r *ServiceReceiver[T]) Chan() <-chan T { return r.ch }

// Send enqueues msg, blocking while the inbox is full. It returns
// ErrServiceNotAlive if the service's entrypoint has already returned and
// closed its receiver.
func (s *Sender[T]) Send(msg T) (err error) {
	defer func() {
		// A send on a closed channel panics; the only way that happens here
		// is a service that has already torn down its inbox.
		if r := recover(); r != nil {
			slog.Debug("actor: send to terminated service", "service", s.name)
			err = ErrServiceNotAlive
		}
	}()
	s.ch <- msg
	return nil
}

// TrySend enqueues msg without blocking. It reports ok=false immediately if
// the inbox is full, rather than applying back-pressure.
func (s *Sender[T]) TrySend(msg T) (ok bool) {
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// EntryFunc is a service's main loop. It owns the receiver and decides when
// to stop (typically when Recv reports the inbox closed, or a parent
// context is cancelled).
type EntryFunc[T any] func(sc *ServiceContext, rx *ServiceReceiver[T])

// SpawnOptions customizes Spawn.
type SpawnOptions struct {
	// InboxSize overrides DefaultInboxSize.
	InboxSize int
	// Name is used in log lines when the inbox is found to be terminated.
	Name string
}

// Spawn starts a new addressable service. The returned Sender is usable
// immediately; messages sent before the host calls Context.Ready queue in
// the bounded inbox, and the entrypoint itself does not begin running until
// the barrier opens.
func Spawn[T any](ctx *Context, entry EntryFunc[T], opts SpawnOptions) *Sender[T] {
	size := opts.InboxSize
	if size <= 0 {
		size = DefaultInboxSize
	}
	ch := make(chan T, size)
	sender := &Sender[T]{ch: ch, name: opts.Name, closer: &sync.Once{}}
	rx := &ServiceReceiver[T]{ch: ch}
	sc := newServiceContext(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logEntrypointPanic(opts.Name, r)
			}
			sender.Close()
			sc.Destroy()
		}()
		ctx.awaitReady(func() {
			entry(sc, rx)
		})
	}()

	return sender
}
