// Command fakeadb stands in for adb in tests. It answers from a YAML script
// and never talks to a device.
//
// The script is $FAKEADB_DIR/script.yaml:
//
//	version: 1.0.41        # reported by "adb version"
//	state: device          # printed by "adb get-state"
//	ui:                    # dumps served in order to "exec-out cat"; the last repeats
//	  - <hierarchy>...</hierarchy>
//	ui_full:               # served instead of ui after a dump without --compressed
//	  - <hierarchy>...</hierarchy>
//	shell:                 # responses per shell command line, served in order; the last repeats
//	  getprop ro.build.version.sdk:
//	    - out: "34"
//	  pidof com.example:
//	    - exit: 1
//	    - out: "1234"
//	  cmd jobscheduler run -u 0 -f com.android.permissioncontroller 2:
//	    - log: [onStartJob]  # appended to the logcat buffer when served
//
// The fake keeps a logcat buffer: "log -t TAG MSG" appends to it and
// "logcat -d" prints it, unless the script answers those commands itself.
// Other shell commands without a script entry print nothing and succeed. Every
// invocation is appended to $FAKEADB_DIR/commands.log, one per line, without
// the "-s serial" prefix.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

type response struct {
	Out  string   `yaml:"out"`
	Err  string   `yaml:"err"`
	Exit int      `yaml:"exit"`
	Log  []string `yaml:"log"`
}

type script struct {
	Version string                `yaml:"version"`
	State   string                `yaml:"state"`
	UI      []string              `yaml:"ui"`
	UIFull  []string              `yaml:"ui_full"`
	Shell   map[string][]response `yaml:"shell"`
}

func main() {
	dir := os.Getenv("FAKEADB_DIR")
	if dir == "" {
		fail(1, "fakeadb: FAKEADB_DIR not set")
	}

	args := os.Args[1:]
	if len(args) >= 2 && args[0] == "-s" {
		args = args[2:]
	}
	logCommand(dir, args)

	sc, err := loadScript(dir)
	if err != nil {
		fail(1, "fakeadb: %v", err)
	}
	if len(args) == 0 {
		fail(1, "fakeadb: no command")
	}

	switch args[0] {
	case "version":
		v := sc.Version
		if v == "" {
			v = "1.0.41"
		}
		fmt.Printf("Android Debug Bridge version %s\nVersion 34.0.5-fake\n", v)
	case "get-state":
		if sc.State == "" {
			sc.State = "device"
		}
		if sc.State != "device" {
			fail(1, "error: device %s", sc.State)
		}
		fmt.Println(sc.State)
	case "wait-for-device":
	case "exec-out":
		if len(args) == 3 && args[1] == "cat" && strings.HasSuffix(args[2], ".xml") {
			serveUI(dir, sc, args[2])
			return
		}
		serveShell(dir, sc, args[1:])
	case "shell":
		serveShell(dir, sc, args[1:])
	default:
		fail(1, "fakeadb: unknown command %q", args[0])
	}
}

func serveShell(dir string, sc *script, cmd []string) {
	line := strings.Join(cmd, " ")
	if len(cmd) > 0 && cmd[0] == "uiautomator" {
		mode := "full"
		if strings.Contains(line, "--compressed") {
			mode = "compressed"
		}
		_ = os.WriteFile(filepath.Join(dir, "last_dump"), []byte(mode), 0o644)
		fmt.Printf("UI hierchary dumped to: %s\n", cmd[len(cmd)-1])
		return
	}
	rs := sc.Shell[line]
	if len(rs) == 0 {
		switch {
		case len(cmd) >= 4 && cmd[0] == "log" && cmd[1] == "-t":
			appendLog(dir, "I "+cmd[2]+": "+strings.Join(cmd[3:], " "))
		case line == "logcat -d":
			b, _ := os.ReadFile(filepath.Join(dir, "logcat"))
			fmt.Print(string(b))
		}
		return
	}
	r := rs[next(dir, "shell "+line, len(rs))]
	for _, l := range r.Log {
		appendLog(dir, "I PermissionController: "+l)
	}
	fmt.Print(r.Out)
	if r.Exit != 0 || r.Err != "" {
		fmt.Fprint(os.Stderr, r.Err)
	}
	os.Exit(r.Exit)
}

func serveUI(dir string, sc *script, path string) {
	dumps, key := sc.UI, "ui"
	if mode, _ := os.ReadFile(filepath.Join(dir, "last_dump")); string(mode) == "full" && len(sc.UIFull) > 0 {
		dumps, key = sc.UIFull, "ui_full"
	}
	if len(dumps) == 0 {
		fail(1, "cat: %s: No such file or directory", path)
	}
	fmt.Print(dumps[next(dir, key, len(dumps))])
}

// next returns the index of the response to serve for key and advances the
// counter, sticking at the last response.
func next(dir, key string, n int) int {
	sum := sha256.Sum256([]byte(key))
	path := filepath.Join(dir, "counters", hex.EncodeToString(sum[:8]))
	i := 0
	if b, err := os.ReadFile(path); err == nil {
		i, _ = strconv.Atoi(strings.TrimSpace(string(b)))
	}
	if i >= n {
		i = n - 1
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	_ = os.WriteFile(path, []byte(strconv.Itoa(i+1)), 0o644)
	return i
}

func loadScript(dir string) (*script, error) {
	b, err := os.ReadFile(filepath.Join(dir, "script.yaml"))
	if os.IsNotExist(err) {
		return &script{}, nil
	}
	if err != nil {
		return nil, err
	}
	var sc script
	if err := yaml.UnmarshalStrict(b, &sc); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	return &sc, nil
}

func logCommand(dir string, args []string) {
	f, err := os.OpenFile(filepath.Join(dir, "commands.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(strings.Join(args, " ") + "\n")
}

func appendLog(dir, line string) {
	f, err := os.OpenFile(filepath.Join(dir, "logcat"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line + "\n")
}

func fail(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}
