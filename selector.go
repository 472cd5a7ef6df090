package hibercheck

import (
	"fmt"
	"regexp"
	"strings"
)

// A Selector reports whether a Node satisfies a condition.
// The string return is a human-readable description for error messages.
type Selector func(n *Node) (ok bool, description string)

// Text matches nodes whose text equals s.
func Text(s string) Selector {
	return func(n *Node) (bool, string) {
		return n.text == s, fmt.Sprintf("text %q", s)
	}
}

// TextMatches matches nodes whose whole text matches the regular expression.
// The pattern is compiled once; an invalid pattern causes a panic.
func TextMatches(pattern string) Selector {
	re := regexp.MustCompile(`^(?:` + pattern + `)$`)
	return func(n *Node) (bool, string) {
		return re.MatchString(n.text), fmt.Sprintf("text matching %q", pattern)
	}
}

// TextMatchesFold matches nodes whose text equals s ignoring case.
func TextMatchesFold(s string) Selector {
	return func(n *Node) (bool, string) {
		return strings.EqualFold(n.text, s), fmt.Sprintf("text %q (ignoring case)", s)
	}
}

// TextContainsFold matches nodes whose text contains substr ignoring case.
func TextContainsFold(substr string) Selector {
	lower := strings.ToLower(substr)
	return func(n *Node) (bool, string) {
		return strings.Contains(strings.ToLower(n.text), lower), fmt.Sprintf("text containing %q (ignoring case)", substr)
	}
}

// TextStartsWith matches nodes whose text begins with prefix.
func TextStartsWith(prefix string) Selector {
	return func(n *Node) (bool, string) {
		return strings.HasPrefix(n.text, prefix), fmt.Sprintf("text starting with %q", prefix)
	}
}

// Desc matches nodes whose content description equals s.
func Desc(s string) Selector {
	return func(n *Node) (bool, string) {
		return n.desc == s, fmt.Sprintf("desc %q", s)
	}
}

// ResourceID matches nodes with the given fully qualified view id.
func ResourceID(id string) Selector {
	return func(n *Node) (bool, string) {
		return n.resourceID == id, fmt.Sprintf("res %q", id)
	}
}

// Class matches nodes of the given widget class.
func Class(name string) Selector {
	return func(n *Node) (bool, string) {
		return n.class == name, fmt.Sprintf("class %q", name)
	}
}

// Clickable matches nodes whose clickable flag equals want.
func Clickable(want bool) Selector {
	return func(n *Node) (bool, string) {
		return n.flags.clickable == want, fmt.Sprintf("clickable=%t", want)
	}
}

// Checkable matches nodes whose checkable flag equals want.
func Checkable(want bool) Selector {
	return func(n *Node) (bool, string) {
		return n.flags.checkable == want, fmt.Sprintf("checkable=%t", want)
	}
}

// Checked matches nodes whose checked flag equals want.
func Checked(want bool) Selector {
	return func(n *Node) (bool, string) {
		return n.flags.checked == want, fmt.Sprintf("checked=%t", want)
	}
}

// HasDescendant matches nodes that have a strict descendant matching sel.
func HasDescendant(sel Selector) Selector {
	desc := "has descendant (" + describe(sel) + ")"
	return func(n *Node) (bool, string) {
		for _, c := range n.children {
			if DepthFirstSearch(c, sel) != nil {
				return true, desc
			}
		}
		return false, desc
	}
}

// Not inverts a selector.
func Not(sel Selector) Selector {
	return func(n *Node) (bool, string) {
		ok, desc := sel(n)
		return !ok, "NOT(" + desc + ")"
	}
}

// All matches when every provided selector matches.
func All(selectors ...Selector) Selector {
	return func(n *Node) (bool, string) {
		descs := make([]string, 0, len(selectors))
		ok := true
		for _, sel := range selectors {
			m, desc := sel(n)
			descs = append(descs, desc)
			ok = ok && m
		}
		return ok, "all of: " + strings.Join(descs, ", ")
	}
}

// Any matches when at least one provided selector matches.
func Any(selectors ...Selector) Selector {
	return func(n *Node) (bool, string) {
		descs := make([]string, 0, len(selectors))
		ok := false
		for _, sel := range selectors {
			m, desc := sel(n)
			descs = append(descs, desc)
			ok = ok || m
		}
		return ok, "any of: " + strings.Join(descs, ", ")
	}
}

// describe returns the description of sel without needing a real node.
func describe(sel Selector) string {
	_, desc := sel(&Node{})
	return desc
}
