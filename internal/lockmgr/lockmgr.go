// Package lockmgr implements the naming server's hierarchical
// reader/writer lock manager: acquiring a path requires
// shared locks on every strict ancestor plus the requested mode on the
// target itself, and releases undo that in reverse. The per-node wait
// discipline (writer preference, compatibility batching, cooperative
// cancellation) lives on dirtree.Node (see internal/dirtree/lock.go);
// this package owns the multi-node ancestor-chain protocol and the
// replication side effects coupled to lock acquisition and
// release.
package lockmgr

import (
	"context"
	"fmt"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"github.com/nicolagi/naming/internal/dirtree"
	"github.com/nicolagi/naming/internal/nerr"
	"github.com/nicolagi/naming/internal/path"
)

// ReplicationTrigger is implemented by the replication package's
// controller. Manager depends only on this interface, not on the
// replication package itself, because the dependency runs both ways in
// the design and Go does not allow that as a direct package cycle.
type ReplicationTrigger interface {
	// Grow schedules a replication grow task for p. It must not block the
	// calling goroutine on the grow itself completing.
	Grow(p path.Path)
}

// Manager is the naming server's lock manager. It is safe for concurrent
// use by multiple goroutines, one per in-flight client or replication
// request.
type Manager struct {
	tree      *dirtree.Tree
	threshold int
	trigger   ReplicationTrigger
}

// New constructs a Manager over tree. threshold is the number of shared
// acquisitions on a file (since the last grow) that triggers a replication
// grow. trigger may be nil, in which case
// replication is never scheduled (useful for tests exercising locking in
// isolation, and for breaking the construction cycle between a Manager and
// the replication.Controller that depends on it — see SetTrigger).
func New(tree *dirtree.Tree, threshold int, trigger ReplicationTrigger) *Manager {
	return &Manager{tree: tree, threshold: threshold, trigger: trigger}
}

// SetTrigger wires trigger in after construction, for callers (cmd/naming's
// wiring) that must build the replication.Controller from a Manager that
// already exists before the controller can be handed back as this
// Manager's trigger.
func (m *Manager) SetTrigger(trigger ReplicationTrigger) {
	m.trigger = trigger
}

// Acquire implements the acquire protocol: shared on every
// strict ancestor of node, top-down, then mode on node itself. On failure
// at any step, every lock acquired so far is released in reverse order.
//
// Acquiring a shared lock on a file increments its read-hit counter and,
// if the configured threshold is crossed, resets the counter and schedules
// a replication grow. Acquiring an exclusive lock on a file with more than
// one live replica invalidates every replica but the first, commanding
// each to delete its copy; the replicas slice itself is left untouched so
// unlock can restore them.
func (m *Manager) Acquire(ctx context.Context, node *dirtree.Node, mode dirtree.Mode) error {
	return m.acquire(ctx, node, mode, true)
}

// AcquireForReplication acquires a shared lock on node the same way Acquire
// does, for the replication controller's own use around its copy call. It
// skips the read-hit threshold check, so it never schedules a grow itself;
// the shared acquisition still increments the node's read-hit counter like
// any other, and so counts toward the next client-triggered grow.
func (m *Manager) AcquireForReplication(ctx context.Context, node *dirtree.Node) error {
	return m.acquire(ctx, node, dirtree.Shared, false)
}

func (m *Manager) acquire(ctx context.Context, node *dirtree.Node, mode dirtree.Mode, countHits bool) error {
	chain := ancestorChain(node)
	acquired := make([]*dirtree.Node, 0, len(chain))
	for _, ancestor := range chain {
		if _, err := ancestor.AcquireLocal(ctx, dirtree.Shared); err != nil {
			release(acquired)
			return fmt.Errorf("lockmgr.Manager.Acquire: ancestor %s: %w", ancestor.Path(), err)
		}
		acquired = append(acquired, ancestor)
	}

	hits, err := node.AcquireLocal(ctx, mode)
	if err != nil {
		release(acquired)
		return fmt.Errorf("lockmgr.Manager.Acquire: %s: %w", node.Path(), err)
	}

	if countHits {
		m.onAcquired(node, mode, hits)
	}
	return nil
}

// Release implements the release protocol: restores any
// replicas invalidated by a preceding exclusive acquire (before releasing
// anything), releases mode on node, then releases shared on every strict
// ancestor, bottom-up. It returns nerr.ErrInvalidArgument, with no side
// effect, if mode is not currently held on node — the facade's unlock
// relies on this to reject a mismatched lock/unlock pair before restoring
// any replicas.
func (m *Manager) Release(ctx context.Context, node *dirtree.Node, mode dirtree.Mode) error {
	if !node.IsHeld(mode) {
		return nerr.ErrInvalidArgument
	}

	if mode == dirtree.Exclusive && !node.IsDirectory() {
		m.restoreReplicas(ctx, node)
	}

	if err := node.ReleaseLocal(mode); err != nil {
		return err
	}

	chain := ancestorChain(node)
	for i := len(chain) - 1; i >= 0; i-- {
		chain[i].ReleaseLocal(dirtree.Shared)
	}
	return nil
}

func (m *Manager) onAcquired(node *dirtree.Node, mode dirtree.Mode, hits int) {
	if node.IsDirectory() {
		return
	}
	switch mode {
	case dirtree.Shared:
		if m.threshold > 0 && hits >= m.threshold {
			node.ResetReadHits()
			if m.trigger != nil {
				m.trigger.Grow(node.Path())
			}
		}
	case dirtree.Exclusive:
		m.invalidateReplicas(node)
	}
}

func (m *Manager) invalidateReplicas(node *dirtree.Node) {
	stale := m.tree.InvalidateReplicas(node)
	if len(stale) == 0 {
		return
	}
	p := node.Path()
	for _, r := range stale {
		if _, err := r.Command.Delete(context.Background(), p); err != nil {
			log.WithFields(log.Fields{
				"path":    p.String(),
				"replica": r.Command.Identity(),
			}).WithError(err).Warn("lockmgr: replica invalidation delete failed")
		}
	}
}

func (m *Manager) restoreReplicas(ctx context.Context, node *dirtree.Node) {
	stale, live := m.tree.RestoreReplicas(node)
	if len(stale) == 0 || len(live) == 0 {
		return
	}
	source := live[rand.Intn(len(live))]
	p := node.Path()
	for _, r := range stale {
		if _, err := r.Command.Copy(ctx, p, source.Storage); err != nil {
			log.WithFields(log.Fields{
				"path":    p.String(),
				"replica": r.Command.Identity(),
				"source":  source.Storage.Identity(),
			}).WithError(err).Warn("lockmgr: replica restore copy failed")
		}
	}
}

func ancestorChain(node *dirtree.Node) []*dirtree.Node {
	var chain []*dirtree.Node
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func release(nodes []*dirtree.Node) {
	for i := len(nodes) - 1; i >= 0; i-- {
		nodes[i].ReleaseLocal(dirtree.Shared)
	}
}
