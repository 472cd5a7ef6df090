package hibercheck

import (
	"fmt"
	"image"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/cboone/hibercheck/internal/adbcli"
)

// resolveAdbPath determines the adb binary path by checking, in order:
// 1. WithAdbPath option
// 2. HIBERCHECK_ADB environment variable
// 3. $PATH lookup
//
// Returns the resolved path and whether it was explicitly configured.
func resolveAdbPath(t testing.TB, configured string) (path string, explicit bool) {
	t.Helper()

	if configured != "" {
		return configured, true
	}

	if envPath := os.Getenv("HIBERCHECK_ADB"); envPath != "" {
		return envPath, true
	}

	found, err := exec.LookPath("adb")
	if err != nil {
		t.Skip("hibercheck: open: adb not found")
	}
	return found, false
}

// checkAdbVersion verifies the adb version meets the minimum requirement.
func checkAdbVersion(t testing.TB, runner *adbcli.Runner, explicit bool) {
	t.Helper()

	version, err := runner.Version()
	if err != nil {
		if explicit {
			t.Fatalf("hibercheck: open: %v", err)
		}
		t.Skipf("hibercheck: open: %v", err)
	}

	if !versionAtLeast(version, minAdbVersion) {
		msg := fmt.Sprintf("hibercheck: open: adb version %s is below minimum %s", version, minAdbVersion)
		if explicit {
			t.Fatal(msg)
		}
		t.Skip(msg)
	}
}

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// versionAtLeast returns true if version >= minVersion. Both are
// "major.minor.patch".
func versionAtLeast(version, minVersion string) bool {
	parse := func(v string) ([3]int, bool) {
		var out [3]int
		m := versionRe.FindStringSubmatch(v)
		if m == nil {
			return out, false
		}
		for i := range out {
			out[i], _ = strconv.Atoi(m[i+1])
		}
		return out, true
	}

	v, ok1 := parse(version)
	m, ok2 := parse(minVersion)
	if !ok1 || !ok2 {
		return false
	}
	for i := range v {
		if v[i] != m[i] {
			return v[i] > m[i]
		}
	}
	return true
}

// sanitizeName replaces characters that are not filesystem-safe.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

// dumpUI writes a uiautomator dump to path on the device and reads it back.
// The compressed form omits views that are not important for accessibility.
func dumpUI(runner *adbcli.Runner, path string, compressed bool) (*Node, error) {
	args := []string{"uiautomator", "dump"}
	if compressed {
		args = append(args, "--compressed")
	}
	args = append(args, path)
	if _, err := runner.Shell(args...); err != nil {
		return nil, errors.Wrap(err, "uiautomator dump")
	}

	raw, err := runner.ExecOut("cat", path)
	if err != nil {
		return nil, errors.Wrap(err, "reading ui dump")
	}
	return ParseDumpString(raw)
}

// tap sends a tap at p.
func tap(runner *adbcli.Runner, p image.Point) error {
	_, err := runner.Shell("input", "tap", strconv.Itoa(p.X), strconv.Itoa(p.Y))
	return err
}

// keyevent injects key events.
func keyevent(runner *adbcli.Runner, keys []Key) error {
	args := []string{"input", "keyevent"}
	for _, k := range keys {
		args = append(args, string(k))
	}
	_, err := runner.Shell(args...)
	return err
}

// pidOf returns the pid of the named process, or 0 if it is not running.
func pidOf(runner *adbcli.Runner, name string) (int, error) {
	out, err := runner.Shell("pidof", name)
	if err != nil {
		// pidof exits 1 when nothing matches.
		if code, ok := adbcli.ExitCode(err); ok && code == 1 {
			return 0, nil
		}
		return 0, err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0, nil
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, errors.Wrapf(err, "parsing pidof output %q", out)
	}
	return pid, nil
}

// oomScoreAdj reads the oom_score_adj of pid.
func oomScoreAdj(runner *adbcli.Runner, pid int) (int, error) {
	out, err := runner.Shell("cat", fmt.Sprintf("/proc/%d/oom_score_adj", pid))
	if err != nil {
		return 0, err
	}
	adj, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, errors.Wrapf(err, "parsing oom_score_adj %q", out)
	}
	return adj, nil
}

// deviceState returns the output of "adb get-state", e.g. "device".
func deviceState(runner *adbcli.Runner) (string, error) {
	out, err := runner.Run("get-state")
	return strings.TrimSpace(out), err
}

// parseFeatures parses "pm list features" output.
func parseFeatures(out string) map[string]bool {
	features := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "feature:"); ok {
			// Versioned features print as "feature:name=version".
			name, _, _ = strings.Cut(name, "=")
			features[name] = true
		}
	}
	return features
}
