package demuxer

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/selectia/selectia-core/internal/actor"
)

// CallTable is the marshalled-calls map (spec §3): call_id -> single
// assignment result slot. call_id values handed out by Alloc are strictly
// increasing; each id appears in the table at most once and is removed on
// resolution or cancellation.
type CallTable struct {
	nextID uint64 // atomic

	mu      sync.RWMutex
	pending map[uint64]*actor.CallbackSender[json.RawMessage]
}

func NewCallTable() *CallTable {
	return &CallTable{pending: make(map[uint64]*actor.CallbackSender[json.RawMessage])}
}

// Alloc reserves the next call id and registers its result slot, returning
// the id and the receiver half a caller awaits.
func (t *CallTable) Alloc() (uint64, *actor.CallbackReceiver[json.RawMessage]) {
	id := atomic.AddUint64(&t.nextID, 1)
	sender, receiver := actor.NewCallback[json.RawMessage]()

	t.mu.Lock()
	t.pending[id] = sender
	t.mu.Unlock()

	return id, receiver
}

// Resolve moves payload into the slot for callID and removes the entry.
// An unknown call_id is logged and ignored, per the wire protocol's
// malformed/unmatched-message handling.
func (t *CallTable) Resolve(callID uint64, payload json.RawMessage) {
	t.mu.Lock()
	sender, ok := t.pending[callID]
	if ok {
		delete(t.pending, callID)
	}
	t.mu.Unlock()

	if !ok {
		slog.Warn("demuxer: CallBack for unknown call_id", "call_id", callID)
		return
	}
	if err := sender.Resolve(payload); err != nil {
		slog.Warn("demuxer: failed to resolve call", "call_id", callID, "error", err)
	}
}

// Cancel removes callID's entry without resolving it (used when a caller's
// context is cancelled while waiting).
func (t *CallTable) Cancel(callID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, callID)
}

// Len reports how many calls are currently outstanding.
func (t *CallTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}
