package dirtree

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nicolagi/naming/internal/path"
	"github.com/nicolagi/naming/internal/stub"
)

func TestInsertCreatesIntermediateDirectories(t *testing.T) {
	tree := New()
	a := path.MustOf("/a")
	ab := path.MustOf("/a/b")

	_, added := tree.Insert(ab, Replica{Storage: storageNamed("A")}, false)
	assert.True(t, added)

	dirNode := tree.Lookup(a)
	if dirNode == nil {
		t.Fatal("expected /a to exist")
	}
	assert.True(t, dirNode.IsDirectory())

	fileNode := tree.Lookup(ab)
	if fileNode == nil {
		t.Fatal("expected /a/b to exist")
	}
	assert.False(t, fileNode.IsDirectory())
	assert.Equal(t, 1, fileNode.LiveReplicaCount())
}

func TestInsertIdempotentByStubIdentity(t *testing.T) {
	tree := New()
	p := path.MustOf("/x")
	_, added1 := tree.Insert(p, Replica{Storage: storageNamed("A")}, false)
	_, added2 := tree.Insert(p, Replica{Storage: storageNamed("A")}, false)
	assert.True(t, added1)
	assert.False(t, added2)
	assert.Len(t, tree.Lookup(p).Replicas(), 1)
}

func TestInsertFileNeverBecomesDirectory(t *testing.T) {
	tree := New()
	file := path.MustOf("/a")
	child := path.MustOf("/a/b")

	tree.Insert(file, Replica{Storage: storageNamed("A")}, false)
	node, added := tree.Insert(child, Replica{Storage: storageNamed("A")}, false)
	assert.Nil(t, node)
	assert.False(t, added)
	assert.Nil(t, tree.Lookup(child))
}

func TestLookupStopsAtFile(t *testing.T) {
	tree := New()
	file := path.MustOf("/a")
	tree.Insert(file, Replica{Storage: storageNamed("A")}, false)

	node := tree.Lookup(path.MustOf("/a/b/c"))
	if node == nil {
		t.Fatal("expected lookup to return the intervening file node")
	}
	assert.False(t, node.IsDirectory())
	assert.Equal(t, "/a", node.Path().String())
}

func TestList(t *testing.T) {
	tree := New()
	tree.Insert(path.MustOf("/a"), Replica{Storage: storageNamed("A")}, false)
	tree.Insert(path.MustOf("/b"), Replica{Storage: storageNamed("A")}, true)

	names, err := tree.List(path.Root)
	if err != nil {
		t.Fatal(err)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	if _, err := tree.List(path.MustOf("/a")); err == nil {
		t.Error("expected error listing a file")
	}
	if _, err := tree.List(path.MustOf("/missing")); err == nil {
		t.Error("expected error listing a missing path")
	}
}

func TestMergeRegisterDuplicates(t *testing.T) {
	tree := New()
	x := path.MustOf("/x")

	dupA := tree.MergeRegister([]path.Path{x}, Replica{Storage: storageNamed("A")})
	assert.Empty(t, dupA)

	dupB := tree.MergeRegister([]path.Path{x}, Replica{Storage: storageNamed("B")})
	assert.Equal(t, []path.Path{x}, dupB)

	node := tree.Lookup(x)
	assert.Len(t, node.Replicas(), 1)
}

func TestRemoveCascadesAndDeletesReplicas(t *testing.T) {
	tree := New()
	f := path.MustOf("/d/e/f")
	tree.Insert(f, Replica{Storage: storageNamed("A"), Command: commandNamed("cmdA")}, false)

	var deleted []path.Path
	var mu sync.Mutex
	ok := tree.Remove(path.MustOf("/d"), func(command stub.Command, p path.Path) error {
		mu.Lock()
		deleted = append(deleted, p)
		mu.Unlock()
		if command.Identity() != "cmdA" {
			t.Errorf("unexpected command stub: %v", command)
		}
		return nil
	})
	assert.True(t, ok)
	assert.Equal(t, []path.Path{f}, deleted)

	names, err := tree.List(path.Root)
	if err != nil {
		t.Fatal(err)
	}
	assert.NotContains(t, names, "d")
}

func TestRemoveRoot(t *testing.T) {
	tree := New()
	assert.False(t, tree.Remove(path.Root, func(stub.Command, path.Path) error { return nil }))
}

func TestRemoveContinuesDespiteDeleteErrors(t *testing.T) {
	tree := New()
	tree.Insert(path.MustOf("/d/f1"), Replica{Storage: storageNamed("A")}, false)
	tree.Insert(path.MustOf("/d/f2"), Replica{Storage: storageNamed("A")}, false)

	var count int
	var mu sync.Mutex
	ok := tree.Remove(path.MustOf("/d"), func(stub.Command, path.Path) error {
		mu.Lock()
		count++
		mu.Unlock()
		return assert.AnError
	})
	assert.True(t, ok)
	assert.Equal(t, 2, count)
}

func TestInvalidateAndRestoreReplicas(t *testing.T) {
	tree := New()
	p := path.MustOf("/x")
	tree.Insert(p, Replica{Storage: storageNamed("A")}, false)
	tree.AddReplica(tree.Lookup(p), Replica{Storage: storageNamed("B")})
	node := tree.Lookup(p)
	assert.Equal(t, 2, node.LiveReplicaCount())

	invalidated := tree.InvalidateReplicas(node)
	assert.Equal(t, []Replica{{Storage: storageNamed("B")}}, invalidated)
	assert.Equal(t, 1, node.LiveReplicaCount())

	stale, live := tree.RestoreReplicas(node)
	assert.Equal(t, []Replica{{Storage: storageNamed("B")}}, stale)
	assert.Equal(t, []Replica{{Storage: storageNamed("A")}}, live)
	assert.Equal(t, 2, node.LiveReplicaCount())
}
