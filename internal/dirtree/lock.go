package dirtree

import (
	"context"

	"github.com/nicolagi/naming/internal/nerr"
)

// AcquireLocal admits a single (mode) request against this node only,
// implementing the per-node wait discipline: writer
// preference (a shared request never overtakes a queued writer) and
// compatibility batching (a released writer admits either the next single
// writer or the contiguous run of readers behind it). The lockmgr package
// calls this once per node in a path's ancestor chain; the multi-node
// ancestor-chain protocol lives there, not here.
//
// If ctx is cancelled while blocked, AcquireLocal removes its waiter token,
// wakes any other waiters so they can re-check the (unchanged) state, and
// returns nerr.ErrInterrupted.
//
// readHits is the node's read-hit counter after this acquisition if mode
// is Shared and the acquisition succeeded (0 otherwise); the lockmgr
// package uses it to decide whether to kick off a replication grow.
func (n *Node) AcquireLocal(ctx context.Context, mode Mode) (readHits int, err error) {
	n.mu.Lock()

	w := &Waiter{Mode: mode}
	mustQueue := len(n.state.waiters) > 0 || !n.compatibleLocked(mode)

	var cancelCh chan struct{}
	if mustQueue {
		n.state.waiters = append(n.state.waiters, w)
		if ctx != nil {
			cancelCh = make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					n.mu.Lock()
					w.cancelled = true
					n.state.cond.Broadcast()
					n.mu.Unlock()
				case <-cancelCh:
				}
			}()
		}
	}

	for {
		if w.cancelled {
			n.dequeueLocked(w)
			n.mu.Unlock()
			stopWatcher(cancelCh)
			return 0, nerr.ErrInterrupted
		}
		if !mustQueue || (len(n.state.waiters) > 0 && n.state.waiters[0] == w && n.compatibleLocked(mode)) {
			break
		}
		n.state.cond.Wait()
	}

	n.dequeueLocked(w)
	n.admitLocked(mode)
	if mode == Shared {
		n.readHits++
		readHits = n.readHits
	}
	// Wake the rest of the queue: a newly admitted reader may let the
	// next queued reader proceed too (compatibility batching); a newly
	// admitted writer changes nothing for anyone still queued, but the
	// broadcast is harmless since waiters re-check their own condition.
	n.state.cond.Broadcast()
	n.mu.Unlock()
	stopWatcher(cancelCh)
	return readHits, nil
}

// stopWatcher signals the cancellation watcher goroutine spawned for a
// queued acquire to exit; it is a no-op if no watcher was spawned (the
// request was admitted without blocking).
func stopWatcher(cancelCh chan struct{}) {
	if cancelCh != nil {
		close(cancelCh)
	}
}

// ReleaseLocal releases one hold of mode on this node and wakes waiters so
// the next compatible request(s) can proceed. It returns nerr.ErrInvalidArgument,
// and makes no change to lock state, if mode is not currently held — the
// guard the facade's unlock relies on to fail a mismatched lock/unlock pair.
func (n *Node) ReleaseLocal(mode Mode) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if mode == Exclusive {
		if !n.state.exclusiveHeld {
			return nerr.ErrInvalidArgument
		}
		n.state.exclusiveHeld = false
	} else {
		if n.state.sharedHolders == 0 {
			return nerr.ErrInvalidArgument
		}
		n.state.sharedHolders--
	}
	n.state.cond.Broadcast()
	return nil
}

// IsHeld reports whether mode is currently held by at least one holder.
func (n *Node) IsHeld(mode Mode) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if mode == Exclusive {
		return n.state.exclusiveHeld
	}
	return n.state.sharedHolders > 0
}

// compatibleLocked reports whether mode is compatible with the node's
// current holders. Callers must hold n.mu.
func (n *Node) compatibleLocked(mode Mode) bool {
	if mode == Exclusive {
		return !n.state.exclusiveHeld && n.state.sharedHolders == 0
	}
	return !n.state.exclusiveHeld
}

// admitLocked commits mode as a new holder of this node. Callers must hold
// n.mu and must only call this once compatibleLocked(mode) holds.
func (n *Node) admitLocked(mode Mode) {
	if mode == Exclusive {
		n.state.exclusiveHeld = true
	} else {
		n.state.sharedHolders++
	}
}

// dequeueLocked removes w from the waiter queue if present. Callers must
// hold n.mu.
func (n *Node) dequeueLocked(w *Waiter) {
	for i, q := range n.state.waiters {
		if q == w {
			n.state.waiters = append(n.state.waiters[:i], n.state.waiters[i+1:]...)
			return
		}
	}
}

// ResetReadHits zeroes the read-hit counter, called by the lockmgr package
// once it has scheduled a replication grow triggered by crossing the
// threshold.
func (n *Node) ResetReadHits() {
	n.mu.Lock()
	n.readHits = 0
	n.mu.Unlock()
}

// Idle reports whether the node currently has no holders and no waiters,
// the precondition the data model's Lifecycle section requires before a
// node may be destroyed.
func (n *Node) Idle() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.sharedHolders == 0 && !n.state.exclusiveHeld && len(n.state.waiters) == 0
}
