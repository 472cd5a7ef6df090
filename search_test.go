package hibercheck_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/cboone/hibercheck"
)

// labeledTree is root(text=A){ X{ B }, C } where A, B and C all carry the
// target description.
const labeledTree = `<hierarchy>
<node text="A" content-desc="target" bounds="[0,0][100,100]">
  <node text="X" bounds="[0,0][50,50]">
    <node text="B" content-desc="target" bounds="[0,0][10,10]"/>
  </node>
  <node text="C" content-desc="target" bounds="[50,50][100,100]"/>
</node>
</hierarchy>`

func mustParse(t *testing.T, dump string) *hibercheck.Node {
	t.Helper()
	root, err := hibercheck.ParseDumpString(dump)
	if err != nil {
		t.Fatalf("ParseDump: %v", err)
	}
	return root
}

func TestDepthFirstSearchPreOrder(t *testing.T) {
	root := mustParse(t, labeledTree)

	if n := hibercheck.DepthFirstSearch(root, hibercheck.Desc("target")); n == nil || n.Text() != "A" {
		t.Errorf("first match = %v, want A", n)
	}

	// Without the root matching, a child's subtree comes before its siblings.
	n := hibercheck.DepthFirstSearch(root, hibercheck.All(hibercheck.Desc("target"), hibercheck.Not(hibercheck.Text("A"))))
	if n == nil || n.Text() != "B" {
		t.Errorf("first match = %v, want B", n)
	}
}

func TestDepthFirstSearchNoMatch(t *testing.T) {
	root := mustParse(t, labeledTree)
	if n := hibercheck.DepthFirstSearch(root, hibercheck.Text("Z")); n != nil {
		t.Errorf("got %s, want nil", n)
	}
	if n := hibercheck.DepthFirstSearch(nil, hibercheck.Text("A")); n != nil {
		t.Errorf("nil root returned %s", n)
	}
}

func TestFindAll(t *testing.T) {
	root := mustParse(t, labeledTree)
	var got []string
	for _, n := range hibercheck.FindAll(root, hibercheck.Desc("target")) {
		got = append(got, n.Text())
	}
	if strings.Join(got, ",") != "A,B,C" {
		t.Errorf("FindAll = %v, want [A B C]", got)
	}
}

func TestDump(t *testing.T) {
	root := mustParse(t, labeledTree)
	want := strings.Join([]string{
		`hierarchy`,
		`  ? text="A" desc="target" [0,0][100,100]`,
		`    ? text="X" [0,0][50,50]`,
		`      ? text="B" desc="target" [0,0][10,10]`,
		`    ? text="C" desc="target" [50,50][100,100]`,
	}, "\n")
	if got := hibercheck.Dump(root); got != want {
		t.Errorf("Dump =\n%s\nwant\n%s", got, want)
	}
	if got := hibercheck.Dump(nil); got != "(no ui tree captured)" {
		t.Errorf("Dump(nil) = %q", got)
	}
}

func TestWaitFindEventuallyMatches(t *testing.T) {
	dumps := []string{
		`<hierarchy><node text="Loading" bounds="[0,0][1,1]"/></hierarchy>`,
		`<hierarchy><node text="Loading" bounds="[0,0][1,1]"/></hierarchy>`,
		`<hierarchy><node text="Allow" clickable="true" bounds="[0,0][1,1]"/></hierarchy>`,
	}
	fetches := 0
	fetch := func() (*hibercheck.Node, error) {
		d := dumps[min(fetches, len(dumps)-1)]
		fetches++
		return hibercheck.ParseDumpString(d)
	}

	n, err := hibercheck.WaitFind(fetch, hibercheck.Text("Allow"), hibercheck.WithWaitPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("WaitFind: %v", err)
	}
	if !n.Clickable() || fetches != 3 {
		t.Errorf("got %s after %d fetches, want the Allow button after 3", n, fetches)
	}
}

func TestWaitFindTimeoutDumpsLastTree(t *testing.T) {
	fetch := func() (*hibercheck.Node, error) {
		return hibercheck.ParseDumpString(labeledTree)
	}
	_, err := hibercheck.WaitFind(fetch, hibercheck.Text("Uninstall"),
		hibercheck.WithinTimeout(50*time.Millisecond), hibercheck.WithWaitPollInterval(10*time.Millisecond))

	var pe *hibercheck.PollError
	if !errors.As(err, &pe) {
		t.Fatalf("error %v is not a *PollError", err)
	}
	if !errors.Is(err, hibercheck.ErrNoMatch) {
		t.Error("timeout does not wrap ErrNoMatch")
	}
	msg := err.Error()
	for _, want := range []string{
		`waiting for: text "Uninstall"`,
		"last ui tree:",
		`text="C" desc="target"`,
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestWaitFindFetchErrors(t *testing.T) {
	fetchErr := errors.New("uiautomator: could not get idle state")
	_, err := hibercheck.WaitFind(func() (*hibercheck.Node, error) {
		return nil, fetchErr
	}, hibercheck.Text("A"), hibercheck.WithinTimeout(30*time.Millisecond))
	if !errors.Is(err, fetchErr) {
		t.Errorf("error = %v, want it to wrap the fetch error", err)
	}
	if !strings.Contains(err.Error(), "(no ui tree captured)") {
		t.Errorf("message does not say no tree was captured:\n%s", err)
	}
}
