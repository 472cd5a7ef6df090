package hibercheck

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNoMatch is the error of a search attempt that found no matching node.
var ErrNoMatch = errors.New("no matching node")

// DepthFirstSearch returns the first node under root, root included, that
// matches sel in pre-order: a node before its children, children in sibling
// order. It returns nil when nothing matches or root is nil.
func DepthFirstSearch(root *Node, sel Selector) *Node {
	if root == nil {
		return nil
	}
	if ok, _ := sel(root); ok {
		return root
	}
	for _, c := range root.children {
		if m := DepthFirstSearch(c, sel); m != nil {
			return m
		}
	}
	return nil
}

// FindAll returns every node under root that matches sel, in pre-order.
func FindAll(root *Node, sel Selector) []*Node {
	var out []*Node
	walk(root, func(n *Node) {
		if ok, _ := sel(n); ok {
			out = append(out, n)
		}
	})
	return out
}

func walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.children {
		walk(c, fn)
	}
}

// Dump renders the tree under root, one node per line, children indented
// two spaces under their parent.
func Dump(root *Node) string {
	if root == nil {
		return "(no ui tree captured)"
	}
	var b strings.Builder
	dumpNode(&b, root, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func dumpNode(b *strings.Builder, n *Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.String())
	b.WriteByte('\n')
	for _, c := range n.children {
		dumpNode(b, c, depth+1)
	}
}

// indentLines prefixes every line of s.
func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// WaitFind polls fetch for a fresh tree until a node matching sel is found,
// returning the first match in pre-order. On timeout the *PollError names
// the selector and carries a dump of the last tree that was fetched.
func WaitFind(fetch func() (*Node, error), sel Selector, opts ...PollOption) (*Node, error) {
	return waitFind(DefaultTimeout, DefaultPollInterval, fetch, sel, opts)
}

func waitFind(timeout, interval time.Duration, fetch func() (*Node, error), sel Selector, opts []PollOption) (*Node, error) {
	desc := describe(sel)

	var last *Node
	n, err := eventually(timeout, interval, func() (*Node, error) {
		root, err := fetch()
		if err != nil {
			return nil, err
		}
		last = root
		if m := DepthFirstSearch(root, sel); m != nil {
			return m, nil
		}
		return nil, errors.Wrapf(ErrNoMatch, "no view found matching %s", desc)
	}, opts)

	var pe *PollError
	if errors.As(err, &pe) {
		pe.Condition = desc
		pe.Dump = Dump(last)
	}
	return n, err
}
