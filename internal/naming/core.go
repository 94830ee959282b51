// Package naming implements NamingCore: the facade
// bundling the directory tree, the lock manager, and the storage-server
// registry into the single process-wide value the RPC service layer
// (service.go, registration.go) calls into. A Core's lifecycle is bounded
// by the service: constructed before the RPC endpoints start, torn down
// after they stop.
package naming

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/nicolagi/naming/internal/dirtree"
	"github.com/nicolagi/naming/internal/lockmgr"
	"github.com/nicolagi/naming/internal/nerr"
	"github.com/nicolagi/naming/internal/path"
	"github.com/nicolagi/naming/internal/replication"
	"github.com/nicolagi/naming/internal/stub"
)

// Core implements the NamingService facade contracts.
type Core struct {
	tree     *dirtree.Tree
	locks    *lockmgr.Manager
	registry *registry
}

// NewCore constructs a Core over an empty tree. locks must be a
// lockmgr.Manager built over the same tree, typically with a
// replication.Controller (constructed with Core.Registry()) wired in as
// its lockmgr.ReplicationTrigger.
func NewCore(tree *dirtree.Tree, locks *lockmgr.Manager) *Core {
	return &Core{tree: tree, locks: locks, registry: newRegistry()}
}

// Registry exposes the storage-server registry as a replication.Registry,
// for wiring a replication.Controller before any register call arrives.
func (c *Core) Registry() replication.Registry {
	return c.registry
}

func parsePath(s string) (path.Path, error) {
	if s == "" {
		return path.Path{}, nerr.ErrInvalidArgument
	}
	return path.Of(s)
}

// Lock acquires a lock on path in the requested mode.
func (c *Core) Lock(ctx context.Context, p string, exclusive bool) error {
	pp, err := parsePath(p)
	if err != nil {
		return err
	}
	node := c.tree.Lookup(pp)
	if node == nil {
		return nerr.ErrPathNotFound
	}
	return c.locks.Acquire(ctx, node, modeOf(exclusive))
}

// Unlock releases a lock on path previously acquired in the given mode.
// This fails with nerr.ErrInvalidArgument, rather than
// nerr.ErrPathNotFound, if path is unknown — or if it is not currently
// locked in the requested mode.
func (c *Core) Unlock(ctx context.Context, p string, exclusive bool) error {
	pp, err := parsePath(p)
	if err != nil {
		return err
	}
	node := c.tree.Lookup(pp)
	if node == nil {
		return nerr.ErrInvalidArgument
	}
	return c.locks.Release(ctx, node, modeOf(exclusive))
}

func modeOf(exclusive bool) dirtree.Mode {
	if exclusive {
		return dirtree.Exclusive
	}
	return dirtree.Shared
}

// IsDirectory reports whether path names a directory. The production
// variant this follows does not take any lock for this read-only query.
func (c *Core) IsDirectory(p string) (bool, error) {
	pp, err := parsePath(p)
	if err != nil {
		return false, err
	}
	node := c.tree.Lookup(pp)
	if node == nil {
		return false, nerr.ErrPathNotFound
	}
	return node.IsDirectory(), nil
}

// List returns directory's child names. Like IsDirectory, this takes no
// lock.
func (c *Core) List(p string) ([]string, error) {
	pp, err := parsePath(p)
	if err != nil {
		return nil, err
	}
	names, err := c.tree.List(pp)
	if err != nil {
		return nil, nerr.ErrPathNotFound
	}
	return names, nil
}

// CreateFile allocates a file node under path's parent and commands a
// storage server to create it: the parent directory's placement hint if
// one is set and still registered, otherwise a uniformly random registered
// server. The parent's exclusive lock is held across the whole operation.
func (c *Core) CreateFile(ctx context.Context, p string) (bool, error) {
	pp, err := parsePath(p)
	if err != nil {
		return false, err
	}
	if pp.IsRoot() {
		return false, nil
	}
	if len(c.registry.Servers()) == 0 {
		return false, nerr.ErrInvalidState
	}
	parentPath, _ := pp.Parent()
	parentNode := c.tree.Lookup(parentPath)
	if parentNode == nil || !parentNode.IsDirectory() {
		return false, nerr.ErrPathNotFound
	}

	if err := c.locks.Acquire(ctx, parentNode, dirtree.Exclusive); err != nil {
		return false, err
	}
	defer c.locks.Release(ctx, parentNode, dirtree.Exclusive)

	name, _ := pp.Last()
	child, added := c.tree.CreateChild(parentNode, name, dirtree.File)
	if !added {
		return false, nil
	}

	// Prefer the parent directory's placement hint (its single
	// registration placeholder, invariant (ii)) over the global set, so
	// siblings created under the same directory tend to land on the same
	// storage server; fall back to a random registered server if no hint
	// is set or the hinted server has since deregistered.
	var target stub.Pair
	var ok bool
	if hint, hinted := c.tree.PlacementHint(parentNode); hinted {
		target, ok = c.registry.byIdentity(hint.Storage.Identity())
	}
	if !ok {
		target, ok = c.registry.random()
	}
	if !ok {
		c.tree.DeleteChild(parentNode, name)
		return false, nerr.ErrInvalidState
	}
	if _, err := target.Command.Create(ctx, pp); err != nil {
		c.tree.DeleteChild(parentNode, name)
		return false, fmt.Errorf("%w: %v", nerr.ErrRPC, err)
	}
	c.tree.AddReplica(child, dirtree.Replica{Storage: target.Storage, Command: target.Command})
	c.tree.SetPlacementHint(parentNode, dirtree.Replica{Storage: target.Storage, Command: target.Command})
	return true, nil
}

// CreateDirectory allocates a directory node under path's parent. Unlike
// CreateFile this is a pure metadata operation: no remote call is made.
func (c *Core) CreateDirectory(ctx context.Context, p string) (bool, error) {
	pp, err := parsePath(p)
	if err != nil {
		return false, err
	}
	if pp.IsRoot() {
		return false, nil
	}
	parentPath, _ := pp.Parent()
	parentNode := c.tree.Lookup(parentPath)
	if parentNode == nil || !parentNode.IsDirectory() {
		return false, nerr.ErrPathNotFound
	}

	if err := c.locks.Acquire(ctx, parentNode, dirtree.Exclusive); err != nil {
		return false, err
	}
	defer c.locks.Release(ctx, parentNode, dirtree.Exclusive)

	name, _ := pp.Last()
	_, added := c.tree.CreateChild(parentNode, name, dirtree.Directory)
	return added, nil
}

// Delete removes the subtree rooted at path, propagating deletes to every
// replica of every file beneath it. The parent's exclusive lock is held
// across the whole operation.
func (c *Core) Delete(ctx context.Context, p string) (bool, error) {
	pp, err := parsePath(p)
	if err != nil {
		return false, err
	}
	if pp.IsRoot() {
		return false, nil
	}
	if c.tree.Lookup(pp) == nil {
		return false, nerr.ErrPathNotFound
	}
	parentPath, _ := pp.Parent()
	parentNode := c.tree.Lookup(parentPath)
	if parentNode == nil {
		return false, nerr.ErrPathNotFound
	}

	if err := c.locks.Acquire(ctx, parentNode, dirtree.Exclusive); err != nil {
		return false, err
	}
	defer c.locks.Release(ctx, parentNode, dirtree.Exclusive)

	ok := c.tree.Remove(pp, func(command stub.Command, fp path.Path) error {
		_, err := command.Delete(context.Background(), fp)
		return err
	})
	return ok, nil
}

// GetStorage returns a storage stub serving file, chosen uniformly at
// random from its live replicas.
func (c *Core) GetStorage(p string) (stub.Storage, error) {
	pp, err := parsePath(p)
	if err != nil {
		return nil, err
	}
	node := c.tree.Lookup(pp)
	if node == nil || node.IsDirectory() {
		return nil, nerr.ErrPathNotFound
	}
	live := node.LiveReplicas()
	if len(live) == 0 {
		return nil, nerr.ErrInvalidState
	}
	return live[rand.Intn(len(live))].Storage, nil
}

// Register merges a storage server's local file inventory into the tree,
// returning the paths the caller must discard locally because they were
// already known under another server. The whole operation is serialised
// with other tree mutations via an exclusive lock on the tree's root.
func (c *Core) Register(ctx context.Context, storage stub.Storage, command stub.Command, files []string) ([]string, error) {
	if storage == nil || command == nil {
		return nil, nerr.ErrInvalidArgument
	}
	paths := make([]path.Path, 0, len(files))
	for _, f := range files {
		pp, err := path.Of(f)
		if err != nil {
			return nil, err
		}
		paths = append(paths, pp)
	}

	root := c.tree.Root()
	if err := c.locks.Acquire(ctx, root, dirtree.Exclusive); err != nil {
		return nil, err
	}
	defer c.locks.Release(ctx, root, dirtree.Exclusive)

	if err := c.registry.add(stub.Pair{Storage: storage, Command: command}); err != nil {
		return nil, err
	}

	duplicates := c.tree.MergeRegister(paths, dirtree.Replica{Storage: storage, Command: command})
	out := make([]string, len(duplicates))
	for i, d := range duplicates {
		out[i] = d.String()
	}
	return out, nil
}
