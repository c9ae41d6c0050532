package bridge

import (
	"sync"
	"time"
)

// commandResult is delivered exactly once per registered transaction.
type commandResult struct {
	TransactionID string
	Err           error
}

// pending is one in-flight control:set awaiting its ack.
type pending struct {
	id        string
	createdAt time.Time
	ch        chan commandResult
	timer     *time.Timer
}

// txnTable correlates outbound commands with their asynchronous acks by
// transaction id. Each entry resolves exactly once: whichever of
// success, error, or timeout removes the entry delivers the result, and
// anything arriving later finds nothing to act on. The table never
// holds a resolved entry, so its size doubles as the leak check.
type txnTable struct {
	mu      sync.Mutex
	pending map[string]*pending
}

func newTxnTable() *txnTable {
	return &txnTable{pending: make(map[string]*pending)}
}

// register creates a pending entry with its own timeout and returns the
// result channel. The channel is buffered so resolution never blocks on
// a caller that already gave up.
func (t *txnTable) register(id string, timeout time.Duration) <-chan commandResult {
	p := &pending{
		id:        id,
		createdAt: time.Now(),
		ch:        make(chan commandResult, 1),
	}
	p.timer = time.AfterFunc(timeout, func() {
		t.resolve(id, commandResult{TransactionID: id, Err: ErrCommandTimeout})
	})

	t.mu.Lock()
	t.pending[id] = p
	t.mu.Unlock()

	return p.ch
}

// resolve delivers the result for id and reports whether this call won.
// Late success/error/timeout arrivals for an already-resolved id are
// no-ops.
func (t *txnTable) resolve(id string, res commandResult) bool {
	t.mu.Lock()
	p, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	p.timer.Stop()
	p.ch <- res
	return true
}

// failAll rejects every in-flight command, used on disconnect.
func (t *txnTable) failAll(err error) {
	t.mu.Lock()
	drained := t.pending
	t.pending = make(map[string]*pending)
	t.mu.Unlock()

	for id, p := range drained {
		p.timer.Stop()
		p.ch <- commandResult{TransactionID: id, Err: err}
	}
}

// size returns the number of unresolved commands.
func (t *txnTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
