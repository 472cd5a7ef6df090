package hibercheck_test

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cboone/hibercheck"
)

const settingsDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.android.permissioncontroller" content-desc="" checkable="false" checked="false" clickable="false" enabled="true" focusable="false" focused="false" scrollable="false" long-clickable="false" password="false" selected="false" bounds="[0,0][1080,2400]">
    <node index="0" text="App permissions" resource-id="android:id/title" class="android.widget.TextView" package="com.android.permissioncontroller" content-desc="" checkable="false" checked="false" clickable="false" enabled="true" focusable="false" focused="false" scrollable="false" long-clickable="false" password="false" selected="false" bounds="[42,200][600,260]" />
    <node index="1" text="" resource-id="" class="android.widget.LinearLayout" package="com.android.permissioncontroller" content-desc="" checkable="false" checked="false" clickable="true" enabled="true" focusable="true" focused="false" scrollable="false" long-clickable="false" password="false" selected="false" bounds="[0,300][1080,500]">
      <node index="0" text="Remove permissions if app is unused" resource-id="android:id/title" class="android.widget.TextView" package="com.android.permissioncontroller" content-desc="" checkable="false" checked="false" clickable="false" enabled="true" focusable="false" focused="false" scrollable="false" long-clickable="false" password="false" selected="false" bounds="[42,320][900,380]" />
      <node index="1" text="" resource-id="android:id/switch_widget" class="android.widget.Switch" package="com.android.permissioncontroller" content-desc="" checkable="true" checked="true" clickable="false" enabled="true" focusable="false" focused="false" scrollable="false" long-clickable="false" password="false" selected="false" bounds="[920,340][1040,460]" />
    </node>
  </node>
</hierarchy>`

func TestParseDump(t *testing.T) {
	root, err := hibercheck.ParseDumpString(settingsDump)
	if err != nil {
		t.Fatalf("ParseDump: %v", err)
	}
	if root.Class() != "hierarchy" || root.Parent() != nil {
		t.Fatalf("root = %s, want the hierarchy node", root)
	}

	windows := root.Children()
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	frame := windows[0]
	if frame.Package() != "com.android.permissioncontroller" {
		t.Errorf("Package = %q", frame.Package())
	}
	if got := len(frame.Children()); got != 2 {
		t.Fatalf("frame has %d children, want 2", got)
	}

	row := frame.Children()[1]
	if !row.Clickable() || row.Index() != 1 || row.Parent() != frame {
		t.Errorf("row = %s", row)
	}
	sw := row.Children()[1]
	if !sw.Checkable() || !sw.Checked() || sw.ResourceID() != "android:id/switch_widget" {
		t.Errorf("switch = %s", sw)
	}
	if want := image.Rect(920, 340, 1040, 460); sw.Bounds() != want {
		t.Errorf("Bounds = %v, want %v", sw.Bounds(), want)
	}
	if want := image.Pt(980, 400); sw.Center() != want {
		t.Errorf("Center = %v, want %v", sw.Center(), want)
	}
}

func TestParseDumpEscapes(t *testing.T) {
	root, err := hibercheck.ParseDumpString(`<hierarchy><node text="Tom &amp; Jerry &quot;1&quot;" bounds="[0,0][1,1]"/></hierarchy>`)
	if err != nil {
		t.Fatalf("ParseDump: %v", err)
	}
	if got := root.Children()[0].Text(); got != `Tom & Jerry "1"` {
		t.Errorf("Text = %q", got)
	}
}

func TestParseDumpErrors(t *testing.T) {
	tests := []struct {
		name string
		dump string
		want string
	}{
		{"empty", "", "no hierarchy"},
		{"error page", "ERROR: could not get idle state.", "no hierarchy"},
		{"unclosed", `<hierarchy><node bounds="[0,0][1,1]">`, "unclosed"},
		{"orphan node", `<node bounds="[0,0][1,1]"/>`, "outside hierarchy"},
		{"two roots", `<hierarchy></hierarchy><hierarchy></hierarchy>`, "multiple"},
		{"bad bounds", `<hierarchy><node bounds="0,0,1,1"/></hierarchy>`, "bounds"},
		{"bad index", `<hierarchy><node index="x"/></hierarchy>`, "index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hibercheck.ParseDumpString(tt.dump)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestNodeString(t *testing.T) {
	root, err := hibercheck.ParseDumpString(`<hierarchy><node text="OK" class="android.widget.Button" clickable="true" enabled="false" bounds="[1,2][3,4]"/></hierarchy>`)
	if err != nil {
		t.Fatal(err)
	}
	want := `android.widget.Button text="OK" {clickable,disabled} [1,2][3,4]`
	if got := root.Children()[0].String(); got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}

func TestChildrenReturnsCopy(t *testing.T) {
	root, err := hibercheck.ParseDumpString(settingsDump)
	if err != nil {
		t.Fatal(err)
	}
	kids := root.Children()
	kids[0] = nil
	if root.Children()[0] == nil {
		t.Error("mutating Children() result changed the tree")
	}
}

func TestNodeMatchSnapshot(t *testing.T) {
	root, err := hibercheck.ParseDumpString(settingsDump)
	if err != nil {
		t.Fatal(err)
	}
	t.Chdir(t.TempDir())

	t.Setenv("HIBERCHECK_UPDATE", "1")
	root.MatchSnapshot(t, "permissions page")

	files, err := filepath.Glob(filepath.Join("testdata", "snapshots", "*", "*.txt"))
	if err != nil || len(files) != 1 {
		t.Fatalf("golden files = %v, %v; want one", files, err)
	}
	golden, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(golden), "][") {
		t.Errorf("golden file holds bounds:\n%s", golden)
	}
	if !strings.Contains(string(golden), `android.widget.Switch res="android:id/switch_widget"`) {
		t.Errorf("golden file misses the switch:\n%s", golden)
	}

	t.Setenv("HIBERCHECK_UPDATE", "")
	root.MatchSnapshot(t, "permissions page")
}
