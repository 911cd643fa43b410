// Package tree implements the prefix tree of event sequences seen while
// exploring interleavings.
//
// Every node stands for one event that occurred immediately after the
// sequence spelled by the path from the root. Nodes live in an arena and are
// addressed by NodeID; children are created lazily and never removed.
//
// Each node carries an exhausted flag: the belief that further iterations
// will not add children under it. New nodes start exhausted. Adding a child
// clears the parent's flag, because a new continuation just appeared there.
//
// All traversals use explicit stacks, so arbitrarily long sequences are safe.
// A Tree is not safe for concurrent use; callers serialize access.
package tree

import (
	"strings"
)

// NodeID addresses a node in the arena.
type NodeID int

// Root is the id of the root node, the empty sequence.
const Root NodeID = 0

type node struct {
	children  map[string]NodeID
	order     []string // child names in insertion order
	exhausted bool
}

// Tree is an arena-backed prefix tree of event sequences.
type Tree struct {
	nodes []node
}

// New creates a tree holding only the root.
func New() *Tree {
	return &Tree{nodes: []node{newNode()}}
}

func newNode() node {
	return node{
		children:  make(map[string]NodeID),
		exhausted: true,
	}
}

// NodeCount returns the number of nodes, root included.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}

// HasChild reports whether name was ever seen right after parent.
func (t *Tree) HasChild(parent NodeID, name string) bool {
	_, ok := t.nodes[parent].children[name]
	return ok
}

// GetOrCreateChild returns the child of parent named name, creating it if
// needed. On creation the parent's exhausted flag is cleared.
func (t *Tree) GetOrCreateChild(parent NodeID, name string) (NodeID, bool) {
	return t.AddChild(parent, name, false)
}

// AddChild is GetOrCreateChild with control over the parent's flag: on
// creation the parent's flag is set to exhaustParent. Used with true for the
// exit half of a bracketed pair, whose enter node can never be followed by
// anything else.
func (t *Tree) AddChild(parent NodeID, name string, exhaustParent bool) (NodeID, bool) {
	if id, ok := t.nodes[parent].children[name]; ok {
		return id, false
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, newNode())

	p := &t.nodes[parent]
	p.children[name] = id
	p.order = append(p.order, name)
	p.exhausted = exhaustParent
	return id, true
}

// Walk follows path from the root and returns the node it ends at.
func (t *Tree) Walk(path []string) (NodeID, bool) {
	cur := Root
	for _, name := range path {
		next, ok := t.nodes[cur].children[name]
		if !ok {
			return Root, false
		}
		cur = next
	}
	return cur, true
}

// Exhausted reports the exhausted flag of id.
func (t *Tree) Exhausted(id NodeID) bool {
	return t.nodes[id].exhausted
}

// MarkExhausted sets the exhausted flag of id.
func (t *Tree) MarkExhausted(id NodeID) {
	t.nodes[id].exhausted = true
}

// FindGrowthPoint searches depth-first, children in insertion order, for the
// first node that is not exhausted and has no non-exhausted descendant.
//
// The node found is tentatively marked exhausted: if the iteration that uses
// it registers a new child there, the flag is cleared again.
//
// Returns the path to the node, or (empty, false) when the tree is fully
// exhausted.
func (t *Tree) FindGrowthPoint() ([]string, bool) {
	type frame struct {
		id   NodeID
		next int
	}

	stack := []frame{{id: Root}}
	path := make([]string, 0, 16)

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		n := &t.nodes[top.id]

		if top.next < len(n.order) {
			name := n.order[top.next]
			top.next++
			stack = append(stack, frame{id: n.children[name]})
			path = append(path, name)
			continue
		}

		// Post-order: every child subtree is exhausted.
		if !n.exhausted {
			n.exhausted = true
			return append([]string{}, path...), true
		}

		stack = stack[:len(stack)-1]
		if len(path) > 0 {
			path = path[:len(path)-1]
		}
	}

	return []string{}, false
}

// CountLeaves returns the number of nodes without children. Once exploration
// converges this equals the number of distinct interleavings observed.
func (t *Tree) CountLeaves() int {
	leaves := 0
	for i := range t.nodes {
		if len(t.nodes[i].order) == 0 {
			leaves++
		}
	}
	return leaves
}

// IsFullyExhausted reports whether every node is exhausted.
func (t *Tree) IsFullyExhausted() bool {
	for i := range t.nodes {
		if !t.nodes[i].exhausted {
			return false
		}
	}
	return true
}

// Paths returns every root-to-leaf path, in depth-first insertion order.
// A tree holding only the root yields a single empty path.
func (t *Tree) Paths() [][]string {
	type frame struct {
		id   NodeID
		next int
	}

	var paths [][]string
	stack := []frame{{id: Root}}
	path := make([]string, 0, 16)

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		n := &t.nodes[top.id]

		if len(n.order) == 0 {
			paths = append(paths, append([]string{}, path...))
		}

		if top.next < len(n.order) {
			name := n.order[top.next]
			top.next++
			stack = append(stack, frame{id: n.children[name]})
			path = append(path, name)
			continue
		}

		stack = stack[:len(stack)-1]
		if len(path) > 0 {
			path = path[:len(path)-1]
		}
	}

	return paths
}

// Dump renders the tree for debugging. Each line is indented by depth and
// shows '+' for a node that may still grow, '-' for an exhausted one, the
// event name, and '<' on the cursor node.
func (t *Tree) Dump(cursor NodeID) string {
	type item struct {
		id    NodeID
		name  string
		depth int
	}

	var sb strings.Builder
	stack := []item{{id: Root}}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[it.id]

		sb.WriteString(strings.Repeat(".", it.depth*2))
		if n.exhausted {
			sb.WriteByte('-')
		} else {
			sb.WriteByte('+')
		}
		sb.WriteString(" : ")
		sb.WriteString(it.name)
		if it.id == cursor {
			sb.WriteString(" <")
		}
		sb.WriteByte('\n')

		// Push in reverse so children print in insertion order.
		for i := len(n.order) - 1; i >= 0; i-- {
			name := n.order[i]
			stack = append(stack, item{id: n.children[name], name: name, depth: it.depth + 1})
		}
	}

	return sb.String()
}
