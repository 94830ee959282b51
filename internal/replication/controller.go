// Package replication implements the naming server's ReplicationController:
// a bounded pool of background tasks, each growing one file's replica set
// by one storage server, triggered by the lock manager when a file's
// read-hit count crosses the configured threshold.
package replication

import (
	"context"
	"math/rand"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/nicolagi/naming/internal/dirtree"
	"github.com/nicolagi/naming/internal/path"
	"github.com/nicolagi/naming/internal/stub"
)

// Registry is the subset of the naming core's storage-server registry the
// controller needs: the full set of registered (storage, command) pairs, to
// pick a target not already holding a given file. Defined here, rather than
// depending on the naming package directly, for the same reason
// lockmgr.ReplicationTrigger exists: naming depends on replication
// (Core.Registry returns a replication.Registry), so replication cannot
// depend back on naming.
type Registry interface {
	Servers() []stub.Pair
}

// LockManager is the subset of lockmgr.Manager the controller needs to
// acquire and release a shared lock around a grow task. Defined as an
// interface for the same reason Registry
// is: it lets tests substitute a double without constructing a full
// dirtree.Tree and lockmgr.Manager pair when only the grow logic itself is
// under test, and keeps this package's dependency on lockmgr explicit and
// minimal.
type LockManager interface {
	AcquireForReplication(ctx context.Context, node *dirtree.Node) error
	Release(ctx context.Context, node *dirtree.Node, mode dirtree.Mode) error
}

// Controller runs replication grow tasks on a bounded pool of goroutines,
// bounding fan-out concurrency with a buffered channel used as a counting
// semaphore.
type Controller struct {
	tree     *dirtree.Tree
	locks    LockManager
	registry Registry
	sem      chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Controller. workers bounds the number of grow tasks that
// may run concurrently.
func New(tree *dirtree.Tree, locks LockManager, registry Registry, workers int) *Controller {
	if workers < 1 {
		workers = 1
	}
	return &Controller{
		tree:     tree,
		locks:    locks,
		registry: registry,
		sem:      make(chan struct{}, workers),
	}
}

// Grow implements lockmgr.ReplicationTrigger: it schedules a grow task for p
// and returns without waiting for it to run, so the caller (the lock
// manager, inline in a client's Acquire call) is never blocked on
// replication I/O.
func (c *Controller) Grow(p path.Path) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.sem <- struct{}{}
		defer func() { <-c.sem }()
		c.grow(p)
	}()
}

// Wait blocks until every grow task scheduled so far has completed. Tests
// use it to observe a grow's effect deterministically instead of polling;
// cmd/naming's shutdown path uses it to drain in-flight replication before
// exiting.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// grow implements the single-task algorithm.
func (c *Controller) grow(p path.Path) {
	ctx := context.Background()

	node := c.tree.Lookup(p)
	if node == nil || node.IsDirectory() {
		return
	}

	if err := c.locks.AcquireForReplication(ctx, node); err != nil {
		log.WithFields(log.Fields{"path": p.String()}).WithError(err).Warn("replication: grow could not acquire shared lock")
		return
	}
	defer c.locks.Release(ctx, node, dirtree.Shared)

	held := make(map[string]bool)
	for _, r := range node.LiveReplicas() {
		held[r.Storage.Identity()] = true
	}

	var candidates []stub.Pair
	for _, srv := range c.registry.Servers() {
		if !held[srv.Storage.Identity()] {
			candidates = append(candidates, srv)
		}
	}
	if len(candidates) == 0 {
		log.WithFields(log.Fields{"path": p.String()}).Debug("replication: fully replicated, nothing to grow")
		return
	}
	target := candidates[rand.Intn(len(candidates))]

	live := node.LiveReplicas()
	source := live[rand.Intn(len(live))]

	if _, err := target.Command.Copy(ctx, p, source.Storage); err != nil {
		log.WithFields(log.Fields{
			"path":   p.String(),
			"target": target.Storage.Identity(),
			"source": source.Storage.Identity(),
		}).WithError(err).Warn("replication: grow copy failed, aborting")
		return
	}

	c.tree.AddReplica(node, dirtree.Replica{Storage: target.Storage, Command: target.Command})
}
