package hibercheck

import (
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// Node is an immutable snapshot of one accessibility node. A tree of Nodes is
// fetched fresh from the device on every probe; it never changes after
// parsing.
type Node struct {
	index      int
	text       string
	resourceID string
	class      string
	pkg        string
	desc       string
	flags      nodeFlags
	bounds     image.Rectangle

	parent   *Node
	children []*Node
}

type nodeFlags struct {
	checkable     bool
	checked       bool
	clickable     bool
	enabled       bool
	focusable     bool
	focused       bool
	scrollable    bool
	longClickable bool
	selected      bool
}

// hierarchyClass is the class given to the synthetic root that holds the
// window roots of a dump.
const hierarchyClass = "hierarchy"

// ParseDump parses the XML written by "uiautomator dump". The returned root is
// a synthetic "hierarchy" node whose children are the window roots.
func ParseDump(r io.Reader) (*Node, error) {
	z := html.NewTokenizer(r)

	var root *Node
	var stack []*Node
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				if root == nil {
					return nil, errors.New("ui dump: no hierarchy element")
				}
				if len(stack) != 0 {
					return nil, errors.Errorf("ui dump: %d unclosed elements", len(stack))
				}
				return root, nil
			}
			return nil, errors.Wrap(z.Err(), "ui dump")

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			var n *Node
			switch tok.Data {
			case hierarchyClass:
				if root != nil {
					return nil, errors.New("ui dump: multiple hierarchy elements")
				}
				n = &Node{class: hierarchyClass, flags: nodeFlags{enabled: true}}
				root = n
			case "node":
				if len(stack) == 0 {
					return nil, errors.New("ui dump: node outside hierarchy")
				}
				var err error
				if n, err = nodeFromAttrs(tok.Attr); err != nil {
					return nil, err
				}
				parent := stack[len(stack)-1]
				n.parent = parent
				parent.children = append(parent.children, n)
			default:
				continue
			}
			if tt == html.StartTagToken {
				stack = append(stack, n)
			}

		case html.EndTagToken:
			tok := z.Token()
			if tok.Data != "node" && tok.Data != hierarchyClass {
				continue
			}
			if len(stack) == 0 {
				return nil, errors.Errorf("ui dump: unexpected </%s>", tok.Data)
			}
			stack = stack[:len(stack)-1]
		}
	}
}

// ParseDumpString is ParseDump for an in-memory dump.
func ParseDumpString(s string) (*Node, error) {
	return ParseDump(strings.NewReader(s))
}

// nodeFromAttrs builds a node from its attributes. A missing enabled
// attribute means enabled.
func nodeFromAttrs(attrs []html.Attribute) (*Node, error) {
	n := &Node{flags: nodeFlags{enabled: true}}
	for _, a := range attrs {
		switch a.Key {
		case "index":
			i, err := strconv.Atoi(a.Val)
			if err != nil {
				return nil, errors.Wrapf(err, "ui dump: index %q", a.Val)
			}
			n.index = i
		case "text":
			n.text = a.Val
		case "resource-id":
			n.resourceID = a.Val
		case "class":
			n.class = a.Val
		case "package":
			n.pkg = a.Val
		case "content-desc":
			n.desc = a.Val
		case "checkable":
			n.flags.checkable = a.Val == "true"
		case "checked":
			n.flags.checked = a.Val == "true"
		case "clickable":
			n.flags.clickable = a.Val == "true"
		case "enabled":
			n.flags.enabled = a.Val == "true"
		case "focusable":
			n.flags.focusable = a.Val == "true"
		case "focused":
			n.flags.focused = a.Val == "true"
		case "scrollable":
			n.flags.scrollable = a.Val == "true"
		case "long-clickable":
			n.flags.longClickable = a.Val == "true"
		case "selected":
			n.flags.selected = a.Val == "true"
		case "bounds":
			b, err := parseBounds(a.Val)
			if err != nil {
				return nil, err
			}
			n.bounds = b
		}
	}
	return n, nil
}

// parseBounds parses "[left,top][right,bottom]".
func parseBounds(s string) (image.Rectangle, error) {
	var r image.Rectangle
	if _, err := fmt.Sscanf(s, "[%d,%d][%d,%d]", &r.Min.X, &r.Min.Y, &r.Max.X, &r.Max.Y); err != nil {
		return image.Rectangle{}, errors.Wrapf(err, "ui dump: bounds %q", s)
	}
	return r, nil
}

// Text returns the node text.
func (n *Node) Text() string { return n.text }

// ResourceID returns the fully qualified view id, e.g. "android:id/title".
func (n *Node) ResourceID() string { return n.resourceID }

// Class returns the widget class name.
func (n *Node) Class() string { return n.class }

// Package returns the package that owns the window.
func (n *Node) Package() string { return n.pkg }

// Desc returns the content description.
func (n *Node) Desc() string { return n.desc }

// Checkable reports whether the node can be checked.
func (n *Node) Checkable() bool { return n.flags.checkable }

// Checked reports whether the node is checked.
func (n *Node) Checked() bool { return n.flags.checked }

// Clickable reports whether the node accepts clicks.
func (n *Node) Clickable() bool { return n.flags.clickable }

// Enabled reports whether the node is enabled.
func (n *Node) Enabled() bool { return n.flags.enabled }

// Focused reports whether the node has input focus.
func (n *Node) Focused() bool { return n.flags.focused }

// Scrollable reports whether the node scrolls.
func (n *Node) Scrollable() bool { return n.flags.scrollable }

// Selected reports whether the node is selected.
func (n *Node) Selected() bool { return n.flags.selected }

// Bounds returns the on-screen rectangle of the node.
func (n *Node) Bounds() image.Rectangle { return n.bounds }

// Center returns the point a tap on the node should target.
func (n *Node) Center() image.Point {
	return image.Pt((n.bounds.Min.X+n.bounds.Max.X)/2, (n.bounds.Min.Y+n.bounds.Max.Y)/2)
}

// Index returns the position of the node among its siblings.
func (n *Node) Index() int { return n.index }

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child slice.
func (n *Node) Children() []*Node {
	cp := make([]*Node, len(n.children))
	copy(cp, n.children)
	return cp
}

// unknownClass stands in for a node dumped without a class.
const unknownClass = "?"

// String returns a one-line description of the node, as used by Dump.
func (n *Node) String() string {
	return n.describe(true)
}

// describe renders the node on one line, with or without its bounds.
func (n *Node) describe(withBounds bool) string {
	var b strings.Builder
	if n.class == "" {
		b.WriteString(unknownClass)
	} else {
		b.WriteString(n.class)
	}
	if n.text != "" {
		fmt.Fprintf(&b, " text=%q", n.text)
	}
	if n.desc != "" {
		fmt.Fprintf(&b, " desc=%q", n.desc)
	}
	if n.resourceID != "" {
		fmt.Fprintf(&b, " res=%q", n.resourceID)
	}
	if n.pkg != "" {
		fmt.Fprintf(&b, " pkg=%q", n.pkg)
	}
	if f := n.flags.String(); f != "" {
		b.WriteString(" ")
		b.WriteString(f)
	}
	if withBounds && n.class != hierarchyClass {
		fmt.Fprintf(&b, " [%d,%d][%d,%d]", n.bounds.Min.X, n.bounds.Min.Y, n.bounds.Max.X, n.bounds.Max.Y)
	}
	return b.String()
}

func (f nodeFlags) String() string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(f.checkable, "checkable")
	add(f.checked, "checked")
	add(f.clickable, "clickable")
	add(!f.enabled, "disabled")
	add(f.focused, "focused")
	add(f.scrollable, "scrollable")
	add(f.selected, "selected")
	if len(names) == 0 {
		return ""
	}
	return "{" + strings.Join(names, ",") + "}"
}
