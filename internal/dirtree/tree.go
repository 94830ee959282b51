package dirtree

import (
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nicolagi/naming/internal/path"
	"github.com/nicolagi/naming/internal/stub"
)

func errorf(typeMethod, format string, a ...interface{}) error {
	return fmt.Errorf("github.com/nicolagi/naming/internal/dirtree."+typeMethod+": "+format, a...)
}

// Tree is the tree-wide structure owning every Node. Structural mutations
// (Insert, Remove, MergeRegister) and structural reads (Lookup, List) are
// serialized by a single coarse mutex: these mutations are
// always short, and are additionally guarded at the semantic level by the
// caller holding the relevant ancestor's exclusive lock (acquired through
// the lockmgr package before calling into Tree).
type Tree struct {
	mu   sync.Mutex
	root *Node
}

// New constructs a tree containing only the root directory.
func New() *Tree {
	return &Tree{root: NewRoot()}
}

// Root returns the tree's root node.
func (t *Tree) Root() *Node { return t.root }

// Lookup walks from the root toward path, returning the node at path, or
// nil if no such node exists. lookup stops early and
// returns the intervening file node if an ancestor component names a file
// rather than a directory, so the caller can reject the request
// (file-as-directory) using ordinary not-a-directory logic instead of a
// special case.
func (t *Tree) Lookup(p path.Path) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookupLocked(p)
}

func (t *Tree) lookupLocked(p path.Path) *Node {
	n := t.root
	for _, name := range p.Iterate() {
		if n.kind == File {
			return n
		}
		child, ok := n.children[name]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// List returns the sorted set of child names of the directory at path. It
// returns an error if path does not name an existing directory.
func (t *Tree) List(p path.Path) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.lookupLocked(p)
	if n == nil {
		return nil, errorf("Tree.List", "%q: %w", p, errNotFound)
	}
	if n.kind != Directory {
		return nil, errorf("Tree.List", "%q: %w", p, errNotDirectory)
	}
	return n.childNames(), nil
}

// CreateChild adds a single child node named name under parent, which must
// already be a loaded directory node in this tree. It returns (nil,
// false) if a child with that name already exists, and does not modify the
// tree in that case — matching create_file/create_directory
// returning false on an existing path rather than erroring.
func (t *Tree) CreateChild(parent *Node, name string, kind Kind) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := parent.children[name]; exists {
		return nil, false
	}
	child := newChild(parent, name, kind)
	parent.children[name] = child
	return child, true
}

// DeleteChild removes a single child node from parent without recursing
// and without invoking any delete callback, used to roll back a metadata
// insertion whose remote storage-server call subsequently failed (the
// create_file rollback path), as opposed to Remove, which is the
// user-facing recursive deletion with remote propagation.
func (t *Tree) DeleteChild(parent *Node, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(parent.children, name)
}

// AddReplica appends (storage, command) to a file node's replica list if
// no replica with the same Storage identity is already present (stub
// identity dedup), and marks it
// live. It reports whether a new replica was added.
func (t *Tree) AddReplica(file *Node, r Replica) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range file.replicas {
		if existing.Storage == r.Storage {
			return false
		}
	}
	file.replicas = append(file.replicas, r)
	file.liveReplicaCount++
	return true
}

// PlacementHint returns dir's placement hint and whether one is set, for
// naming.Core.CreateFile's parent-locality preference (invariant (ii)).
func (t *Tree) PlacementHint(dir *Node) (Replica, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return dir.PlacementHint()
}

// SetPlacementHint records r as the storage server most recently chosen to
// hold one of dir's children.
func (t *Tree) SetPlacementHint(dir *Node, r Replica) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dir.SetPlacementHint(r)
}

// InvalidateReplicas implements the write-side of the
// replication coupling: when an exclusive lock is acquired on a file with
// more than one live replica, every replica but the first is marked stale
// (liveReplicaCount drops to 1) while the replicas slice itself is left
// untouched, so the originals can be restored on release. It returns the
// replicas newly marked stale, for the caller to issue CommandStub.delete
// against.
func (t *Tree) InvalidateReplicas(file *Node) (invalidated []Replica) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if file.liveReplicaCount <= 1 {
		return nil
	}
	invalidated = make([]Replica, len(file.replicas)-1)
	copy(invalidated, file.replicas[1:])
	file.liveReplicaCount = 1
	return invalidated
}

// RestoreReplicas implements the release-side of the lock protocol: restores
// liveReplicaCount to the full length of the replicas slice, returning the
// replicas that were stale (and so need a CommandStub.copy from a live
// source) along with the current live set to choose that source from.
// Restoration must happen before the caller releases the semantic lock.
func (t *Tree) RestoreReplicas(file *Node) (stale []Replica, live []Replica) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if file.liveReplicaCount >= len(file.replicas) {
		return nil, file.LiveReplicas()
	}
	stale = make([]Replica, len(file.replicas)-file.liveReplicaCount)
	copy(stale, file.replicas[file.liveReplicaCount:])
	live = make([]Replica, file.liveReplicaCount)
	copy(live, file.replicas[:file.liveReplicaCount])
	file.liveReplicaCount = len(file.replicas)
	return stale, live
}

// Insert walks path from the root, creating missing intermediate
// directories implicitly, and places a file or directory leaf depending on
// asDirectory. If the leaf already exists as a file and asDirectory is
// false, the given replica is merged into its replica set (deduplicated by
// Storage identity) instead of erroring, and added is false. If insert
// traverses a component that already names a file, the insert fails
// silently: no tree change is made, node is nil and added is false — a
// file never implicitly becomes a directory.
func (t *Tree) Insert(p path.Path, r Replica, asDirectory bool) (node *Node, added bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var parent *Node
	cur := t.root
	components := p.Iterate()
	for i, name := range components {
		last := i == len(components)-1
		if cur.kind == File {
			return nil, false
		}
		child, ok := cur.children[name]
		if !ok {
			kind := Directory
			if last && !asDirectory {
				kind = File
			}
			child = newChild(cur, name, kind)
			cur.children[name] = child
		}
		parent = cur
		cur = child
	}
	if cur.kind == File {
		if parent != nil {
			parent.SetPlacementHint(r)
		}
		preexisting := len(cur.replicas) > 0
		for _, existing := range cur.replicas {
			if existing.Storage == r.Storage {
				return cur, false
			}
		}
		cur.replicas = append(cur.replicas, r)
		cur.liveReplicaCount++
		return cur, !preexisting
	}
	return cur, true
}

// DeleteCommand is the callback Remove invokes once per (replica, path)
// for every file under the removed subtree, so it can command the owning
// storage server to drop its bytes. Taking a callback rather than calling
// command.Delete directly keeps context plumbing and logging policy in the
// naming package, which is where the rest of the remote-call error
// handling policy lives.
type DeleteCommand func(command stub.Command, p path.Path) error

// Remove recursively removes the subtree rooted at path from the tree,
// invoking deleteCmd for every (file, replica) pair found, depth-first.
// Propagation continues even if individual deleteCmd calls fail; errors
// are logged and otherwise ignored, because metadata is authoritative.
// Remove reports whether path existed; a path lying under a file node does
// not exist, and nothing is removed for it.
func (t *Tree) Remove(p path.Path, deleteCmd DeleteCommand) bool {
	t.mu.Lock()
	node := t.lookupLocked(p)
	if node == nil || node.IsRoot() || node.Path().Len() != p.Len() {
		t.mu.Unlock()
		return false
	}
	parent := node.parent
	delete(parent.children, node.name)
	t.mu.Unlock()

	removeSubtree(node, deleteCmd)
	return true
}

func removeSubtree(node *Node, deleteCmd DeleteCommand) {
	if node.kind == Directory {
		var g errgroup.Group
		for _, child := range node.children {
			child := child
			g.Go(func() error {
				removeSubtree(child, deleteCmd)
				return nil
			})
		}
		_ = g.Wait()
		return
	}
	p := node.Path()
	for _, r := range node.replicas {
		if err := deleteCmd(r.Command, p); err != nil {
			log.WithFields(log.Fields{
				"path": p.String(),
			}).WithError(err).Warn("dirtree: remote delete failed during recursive remove")
		}
	}
}

// MergeRegister merges files, a registering storage server's local file
// inventory, into the tree under (storage, command). Deeper paths are
// merged first, so a listed path that is also an ancestor of another
// listed path ends up as a directory (and is not reported as a duplicate).
// Each path already present as a file node, or lying under one, is
// recorded as a duplicate instead of being inserted again, and r is not
// added to that file's replicas; duplicates are returned so the caller
// (the register RPC, see the naming package) can tell the registering
// server to discard those files locally.
func (t *Tree) MergeRegister(files []path.Path, r Replica) (duplicates []path.Path) {
	ordered := make([]path.Path, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Len() > ordered[j].Len() })
	for _, p := range ordered {
		if existing := t.Lookup(p); existing != nil && existing.kind == File {
			duplicates = append(duplicates, p)
			continue
		}
		if _, added := t.Insert(p, r, false); !added {
			duplicates = append(duplicates, p)
		}
	}
	return duplicates
}

var (
	errNotFound     = fmt.Errorf("not found")
	errNotDirectory = fmt.Errorf("not a directory")
)
