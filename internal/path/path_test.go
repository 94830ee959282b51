package path

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestOfRoundTrip(t *testing.T) {
	testCases := []string{
		"/",
		"/a",
		"/a/b",
		"/a/b/c",
	}
	for _, s := range testCases {
		p, err := Of(s)
		if err != nil {
			t.Fatalf("Of(%q): %v", s, err)
		}
		assert.Equal(t, s, p.String())
		q, err := Of(p.String())
		if err != nil {
			t.Fatalf("Of(%q) round trip: %v", p.String(), err)
		}
		assert.True(t, p.Equal(q))
	}
}

func TestOfDropsEmptyComponents(t *testing.T) {
	p, err := Of("/a//b///c/")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, p.Components()); diff != "" {
		t.Errorf("components mismatch (-want +got):\n%s", diff)
	}
}

func TestOfRejectsInvalid(t *testing.T) {
	testCases := []string{
		"",
		"a/b",
		"/a:b",
	}
	for _, s := range testCases {
		if _, err := Of(s); err == nil {
			t.Errorf("Of(%q): expected error, got nil", s)
		}
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	root := Root
	testCases := []string{"", "a/b", "a:b"}
	for _, c := range testCases {
		if _, err := root.Append(c); err == nil {
			t.Errorf("Append(%q): expected error, got nil", c)
		}
	}
}

func TestParentAndLast(t *testing.T) {
	if _, err := Root.Parent(); err == nil {
		t.Error("Parent() on root: expected error, got nil")
	}
	if _, err := Root.Last(); err == nil {
		t.Error("Last() on root: expected error, got nil")
	}

	p := MustOf("/a/b/c")
	parent, err := p.Parent()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "/a/b", parent.String())
	last, err := p.Last()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "c", last)
}

func TestIsSubpath(t *testing.T) {
	a := MustOf("/a")
	ab := MustOf("/a/b")
	abc := MustOf("/a/b/c")
	x := MustOf("/x")

	assert.True(t, a.IsSubpath(a))
	assert.True(t, ab.IsSubpath(a))
	assert.True(t, abc.IsSubpath(ab))
	assert.True(t, abc.IsSubpath(a))
	assert.False(t, a.IsSubpath(ab))
	assert.False(t, x.IsSubpath(a))
	assert.True(t, a.IsSubpath(Root))
	assert.True(t, Root.IsSubpath(Root))
}

func TestCompareOrdersAncestorBeforeDescendant(t *testing.T) {
	testCases := []struct {
		a, b string
	}{
		{"/", "/a"},
		{"/a", "/a/b"},
		{"/a/b", "/a/b/c"},
		{"/a", "/b"},
	}
	for _, tc := range testCases {
		a, b := MustOf(tc.a), MustOf(tc.b)
		if a.Compare(b) >= 0 {
			t.Errorf("Compare(%q, %q): expected negative, got %d", tc.a, tc.b, a.Compare(b))
		}
		if b.Compare(a) <= 0 {
			t.Errorf("Compare(%q, %q): expected positive, got %d", tc.b, tc.a, b.Compare(a))
		}
		if a.Compare(a) != 0 {
			t.Errorf("Compare(%q, %q): expected 0", tc.a, tc.a)
		}
	}
}

func TestAncestors(t *testing.T) {
	p := MustOf("/a/b/c")
	ancestors := p.Ancestors()
	if len(ancestors) != 3 {
		t.Fatalf("expected 3 ancestors, got %d", len(ancestors))
	}
	assert.Equal(t, "/", ancestors[0].String())
	assert.Equal(t, "/a", ancestors[1].String())
	assert.Equal(t, "/a/b", ancestors[2].String())
}

func TestIterate(t *testing.T) {
	p := MustOf("/a/b")
	first := p.Iterate()
	second := p.Iterate()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("iterate not restartable (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, first); diff != "" {
		t.Errorf("iterate mismatch (-want +got):\n%s", diff)
	}
}
