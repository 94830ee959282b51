// Package path implements the naming server's notion of a filesystem path:
// an immutable, component-structured, value-comparable sequence distinct
// from the standard library's slash-string helpers in path/filepath.
package path

import (
	"fmt"
	"strings"

	"github.com/nicolagi/naming/internal/nerr"
)

// Path is an immutable sequence of non-empty components. The root path has
// zero components. Two paths are equal iff their component sequences are
// equal, as reported by Equal. Path holds a slice, so it cannot be compared
// with == or used as a map key. The underlying array is never mutated after
// construction: Append copies into a new slice, while Parent and Ancestors
// return Paths that share a prefix of the original's slice.
type Path struct {
	components []string
}

// Root is the empty path, the root of the directory tree.
var Root = Path{}

// Of parses the slash-delimited string form of a path. It fails with
// nerr.ErrInvalidPath if s is empty, does not begin with "/", or contains a
// colon anywhere. Empty components produced by consecutive or trailing
// slashes are discarded.
func Of(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("%w: empty path string", nerr.ErrInvalidPath)
	}
	if s[0] != '/' {
		return Path{}, fmt.Errorf("%w: %q does not start with /", nerr.ErrInvalidPath, s)
	}
	if strings.ContainsRune(s, ':') {
		return Path{}, fmt.Errorf("%w: %q contains ':'", nerr.ErrInvalidPath, s)
	}
	var components []string
	for _, c := range strings.Split(s, "/") {
		if c != "" {
			components = append(components, c)
		}
	}
	return Path{components: components}, nil
}

// MustOf is Of, panicking on error. Intended for tests and constants.
func MustOf(s string) Path {
	p, err := Of(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the path in slash-delimited form, always beginning with
// "/". The root renders as "/".
func (p Path) String() string {
	if len(p.components) == 0 {
		return "/"
	}
	return "/" + strings.Join(p.components, "/")
}

// IsRoot reports whether p has no components.
func (p Path) IsRoot() bool {
	return len(p.components) == 0
}

// Len returns the number of components, i.e. the depth of p below the root.
func (p Path) Len() int {
	return len(p.components)
}

// Append returns a new path with component appended as the new last
// component. It fails with nerr.ErrInvalidPath if component is empty or
// contains "/" or ":".
func (p Path) Append(component string) (Path, error) {
	if component == "" {
		return Path{}, fmt.Errorf("%w: empty component", nerr.ErrInvalidPath)
	}
	if strings.ContainsAny(component, "/:") {
		return Path{}, fmt.Errorf("%w: component %q contains '/' or ':'", nerr.ErrInvalidPath, component)
	}
	next := make([]string, len(p.components)+1)
	copy(next, p.components)
	next[len(p.components)] = component
	return Path{components: next}, nil
}

// Parent returns the one-shorter prefix of p. It fails with
// nerr.ErrInvalidPath if p is the root.
func (p Path) Parent() (Path, error) {
	if p.IsRoot() {
		return Path{}, fmt.Errorf("%w: root has no parent", nerr.ErrInvalidPath)
	}
	return Path{components: p.components[:len(p.components)-1]}, nil
}

// Last returns the final component of p. It fails with nerr.ErrInvalidPath
// if p is the root.
func (p Path) Last() (string, error) {
	if p.IsRoot() {
		return "", fmt.Errorf("%w: root has no last component", nerr.ErrInvalidPath)
	}
	return p.components[len(p.components)-1], nil
}

// Components returns a copy of the path's component sequence. Mutating the
// result does not affect p.
func (p Path) Components() []string {
	out := make([]string, len(p.components))
	copy(out, p.components)
	return out
}

// IsSubpath reports whether other's components are a prefix of p's, i.e.
// other is p itself or a strict ancestor of p. Every path is its own
// subpath.
func (p Path) IsSubpath(other Path) bool {
	if len(other.components) > len(p.components) {
		return false
	}
	for i, c := range other.components {
		if p.components[i] != c {
			return false
		}
	}
	return true
}

// Equal reports whether p and other have the same component sequence.
func (p Path) Equal(other Path) bool {
	if len(p.components) != len(other.components) {
		return false
	}
	for i, c := range p.components {
		if other.components[i] != c {
			return false
		}
	}
	return true
}

// Compare provides a total order over paths such that a strict ancestor
// always compares less than its descendant: components are compared
// lexicographically, with a shorter matching prefix sorting first (so /a <
// /a/b). The lockmgr package does not use it: it locks a single path's
// ancestor chain at a time, top-down by parent references.
func (p Path) Compare(other Path) int {
	n := len(p.components)
	if m := len(other.components); m < n {
		n = m
	}
	for i := 0; i < n; i++ {
		if p.components[i] != other.components[i] {
			if p.components[i] < other.components[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(p.components) < len(other.components):
		return -1
	case len(p.components) > len(other.components):
		return 1
	default:
		return 0
	}
}

// Ancestors returns the strict ancestor chain from the root down to (but
// excluding) p itself: root, then each successively longer prefix.
func (p Path) Ancestors() []Path {
	out := make([]Path, 0, len(p.components))
	for i := 0; i < len(p.components); i++ {
		out = append(out, Path{components: p.components[:i]})
	}
	return out
}

// Iterate returns a restartable, finite sequence of the path's components,
// in root-to-leaf order. The returned slice is a copy and safe to range
// over repeatedly.
func (p Path) Iterate() []string {
	return p.Components()
}
