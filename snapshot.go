package hibercheck

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// MatchSnapshot compares the current UI tree against a golden file stored in
// testdata/snapshots/<sanitized-test-name>-<hash>/<sanitized-name>.txt.
// Bounds are left out of the golden file, so it holds across screen sizes.
//
// Set HIBERCHECK_UPDATE=1 to create or update golden files.
func (d *Device) MatchSnapshot(name string) {
	d.t.Helper()
	root, err := d.UIRoot()
	if err != nil {
		d.t.Fatalf("hibercheck: snapshot: %v", err)
	}
	root.MatchSnapshot(d.t, name)
}

// MatchSnapshot on Node snapshots a previously fetched tree.
func (n *Node) MatchSnapshot(t testing.TB, name string) {
	t.Helper()

	path := filepath.Join(snapshotDir(t), sanitizeName(name)+".txt")
	got := snapshotLines(n)

	if shouldUpdate() {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("hibercheck: snapshot: %v", err)
		}
		if err := os.WriteFile(path, []byte(strings.Join(got, "\n")+"\n"), 0o644); err != nil {
			t.Fatalf("hibercheck: snapshot: %v", err)
		}
		return
	}

	golden, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Fatalf("hibercheck: snapshot: no golden file %s\nRun with HIBERCHECK_UPDATE=1 to create it.\n\nActual tree:\n%s",
			path, strings.Join(got, "\n"))
	}
	if err != nil {
		t.Fatalf("hibercheck: snapshot: %v", err)
	}

	want := strings.Split(strings.TrimSuffix(string(golden), "\n"), "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("hibercheck: snapshot: %q differs from %s (-golden +actual):\n%s\nRun with HIBERCHECK_UPDATE=1 to update.",
			name, path, diff)
	}
}

// snapshotLines renders the tree like Dump, one node per line, without
// bounds.
func snapshotLines(root *Node) []string {
	var lines []string
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		lines = append(lines, strings.Repeat("  ", depth)+n.describe(false))
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	if root != nil {
		walk(root, 0)
	}
	return lines
}

// snapshotDir keeps the golden files of one test together; the hash keeps
// tests whose sanitized names collide apart.
func snapshotDir(t testing.TB) string {
	t.Helper()
	h := sha256.Sum256([]byte(t.Name()))
	return filepath.Join("testdata", "snapshots", sanitizeName(t.Name())+"-"+hex.EncodeToString(h[:4]))
}

func shouldUpdate() bool {
	switch os.Getenv("HIBERCHECK_UPDATE") {
	case "1", "true", "yes":
		return true
	}
	return false
}
