// Package dirtree implements the naming server's in-memory directory tree:
// a trie from Path to Node, where each node additionally carries the lock
// state consulted by the lockmgr package and, for files, the replica set
// consulted by the replication package. The tree itself is purely
// in-memory and lost on restart: there is no block-oriented or
// content-addressable persistence layer underneath it.
package dirtree

import (
	"sort"
	"sync"

	"github.com/nicolagi/naming/internal/path"
	"github.com/nicolagi/naming/internal/stub"
)

// Kind distinguishes a file node from a directory node. It is immutable
// after a node is created, per the data model's invariant (i).
type Kind int

const (
	// Directory nodes hold a children map and no replica set beyond the
	// single registration placeholder used for child placement
	// (placementHint below).
	Directory Kind = iota
	// File nodes hold a replica set and no children.
	File
)

func (k Kind) String() string {
	if k == Directory {
		return "directory"
	}
	return "file"
}

// Replica pairs the two capability handles a naming core holds for one
// storage server's copy of a file: StorageStub for client-facing byte
// access, CommandStub for privileged create/delete/copy.
type Replica struct {
	Storage stub.Storage
	Command stub.Command
}

// Node is one entry in the directory tree. Every field below is guarded by
// the owning Tree's mutex (see tree.go) except the lock-state fields, which
// are guarded by mu and touched only through the methods in lock.go
// (AcquireLocal, ReleaseLocal, IsHeld, Idle), which the lockmgr package calls.
type Node struct {
	kind   Kind
	name   string
	parent *Node

	// children is nil for file nodes; for directory nodes it maps a
	// component name to the child node, with names unique among siblings
	// (invariant (i)).
	children map[string]*Node

	// replicas is nil for directory nodes; for file nodes it holds one
	// entry per storage server known to carry the file, in the order
	// storage servers registered or were added by replication. Replicas
	// [0:liveReplicaCount] are authoritative (invariant (iv)); the rest
	// are stale copies retained so they can be restored by the lock
	// manager's unlock-time replica restoration.
	replicas         []Replica
	liveReplicaCount int

	// placementHint is nil for file nodes; for directory nodes it is the
	// storage server most recently chosen to hold one of this directory's
	// children (set by Insert when it places or merges a file under this
	// directory, and by naming.Core.CreateFile via Tree.SetPlacementHint),
	// consulted by
	// naming.Core.CreateFile as the parent's replica-set-of-one for
	// locality preference, per the data model's invariant (ii): a
	// directory has no replica set of its own beyond this single
	// registration placeholder.
	placementHint *Replica

	// readHits counts successful shared-lock acquisitions since the last
	// replica grow; consulted and reset by the lockmgr package.
	readHits int

	mu    sync.Mutex
	state lockState
}

// lockState is the per-node reader/writer lock bookkeeping described in
// a count of current shared holders, whether the node is
// exclusively held, and a FIFO of waiting requests. It lives in dirtree
// because it is part of a node's identity (destroyed with the node, per
// the data model's Lifecycle section), but only the lockmgr package reads
// or writes it, through the accessor methods below.
type lockState struct {
	sharedHolders int
	exclusiveHeld bool
	waiters       []*Waiter
	cond          *sync.Cond
}

// Mode is the lock mode requested against a single node.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

func (m Mode) String() string {
	if m == Shared {
		return "shared"
	}
	return "exclusive"
}

// Waiter is a FIFO token for a blocked lock request, tagged with the mode
// requested. AcquireLocal creates one for each request that has to queue
// and removes it once the request is admitted or cancelled.
type Waiter struct {
	Mode      Mode
	cancelled bool
}

// NewRoot constructs the tree's root directory node. The root has no
// parent and is never destroyed.
func NewRoot() *Node {
	n := &Node{
		kind:     Directory,
		name:     "",
		children: make(map[string]*Node),
	}
	n.state.cond = sync.NewCond(&n.mu)
	return n
}

func newChild(parent *Node, name string, kind Kind) *Node {
	n := &Node{
		kind:   kind,
		name:   name,
		parent: parent,
	}
	if kind == Directory {
		n.children = make(map[string]*Node)
	} else {
		n.liveReplicaCount = 0
	}
	n.state.cond = sync.NewCond(&n.mu)
	return n
}

// Kind reports whether the node is a file or a directory.
func (n *Node) Kind() Kind { return n.kind }

// IsDirectory reports whether the node is a directory. The root is always
// a directory.
func (n *Node) IsDirectory() bool { return n.kind == Directory }

// Name returns the node's last path component; the root's name is "".
func (n *Node) Name() string { return n.name }

// Parent returns the node's parent, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// IsRoot reports whether n is the tree's root.
func (n *Node) IsRoot() bool { return n.parent == nil }

// childNames returns the sorted set of a directory node's children names.
// Callers must hold the tree's mutex (see Tree.List).
func (n *Node) childNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Replicas returns a copy of the node's full replica list (including stale
// ones beyond the live count). Callers must hold the tree's mutex.
func (n *Node) Replicas() []Replica {
	out := make([]Replica, len(n.replicas))
	copy(out, n.replicas)
	return out
}

// LiveReplicas returns a copy of the authoritative prefix of the replica
// list (replicas[0:liveReplicaCount]). Callers must hold the tree's mutex.
func (n *Node) LiveReplicas() []Replica {
	out := make([]Replica, n.liveReplicaCount)
	copy(out, n.replicas[:n.liveReplicaCount])
	return out
}

// LiveReplicaCount returns the current count of authoritative replicas.
func (n *Node) LiveReplicaCount() int { return n.liveReplicaCount }

// PlacementHint returns the directory's placement hint, and whether one is
// set. Callers must hold the tree's mutex.
func (n *Node) PlacementHint() (Replica, bool) {
	if n.placementHint == nil {
		return Replica{}, false
	}
	return *n.placementHint, true
}

// SetPlacementHint records r as the storage server most recently chosen for
// one of n's children, for later locality preference. Callers must hold the
// tree's mutex.
func (n *Node) SetPlacementHint(r Replica) {
	n.placementHint = &r
}

// Path reconstructs the node's full path by walking parent references to
// the root.
func (n *Node) Path() path.Path {
	var names []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		names = append([]string{cur.name}, names...)
	}
	p := path.Root
	for _, name := range names {
		var err error
		p, err = p.Append(name)
		if err != nil {
			// Component names are only ever taken from an already
			// validated path.Path; this cannot happen.
			panic(err)
		}
	}
	return p
}
