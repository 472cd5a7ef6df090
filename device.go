package hibercheck

import (
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cboone/hibercheck/internal/adbcli"
)

// Device is a handle to an Android device under test. It is the context
// object every probe and wait runs against. It is created with Open and
// cleaned up automatically via t.Cleanup.
type Device struct {
	t        testing.TB
	runner   *adbcli.Runner
	opts     options
	dumpPath string

	sdk          int
	features     map[string]bool
	lockDisabled bool
}

const (
	dumpDir      = "/data/local/tmp"
	idleTimeout  = 10 * time.Second
	idleInterval = 500 * time.Millisecond

	serverKillTimeout = 5 * time.Second
)

// Open connects to a device through adb and reads its properties.
// Cleanup is automatic via t.Cleanup: the device is sent home and the
// on-device dump file is removed.
//
// The test is skipped when adb is not installed, or when no device is
// attached and none was requested explicitly.
func Open(t testing.TB, userOpts ...Option) *Device {
	t.Helper()

	opts := defaultOptions()
	for _, o := range userOpts {
		o(&opts)
	}
	if opts.timeout < 0 || opts.pollInterval < 0 {
		t.Fatalf("hibercheck: open: negative timeout or poll interval")
	}

	runner, closeTransport := newRunner(t, opts)

	if opts.verbose {
		runner.SetLogf(t.Logf)
	}

	if state, err := deviceState(runner); err != nil || state != "device" {
		if runner.Serial() == "" {
			t.Skipf("hibercheck: open: no device attached (state %q): %v", state, err)
		}
		if err := waitForDevice(t, runner, opts.ssh == nil); err != nil {
			t.Fatalf("hibercheck: open: %v", err)
		}
	}

	d := &Device{
		t:        t,
		runner:   runner,
		opts:     opts,
		dumpPath: dumpDir + "/hibercheck-" + uuid.NewString() + ".xml",
	}

	if err := d.readProperties(); err != nil {
		t.Fatalf("hibercheck: open: %v", err)
	}

	t.Cleanup(func() {
		_ = keyevent(runner, []Key{Home})
		_, _ = runner.Shell("rm", "-f", d.dumpPath)
		closeTransport()
	})

	return d
}

// waitForDevice waits for the requested device. A local adb server that
// never reports the device is often wedged; it is killed once and the wait
// retried against a fresh server.
func waitForDevice(t testing.TB, runner *adbcli.Runner, local bool) error {
	t.Helper()
	err := runner.WaitForDevice(defaultDeviceTimeout)
	if err == nil || !local {
		return err
	}
	t.Logf("hibercheck: open: %v; restarting local adb server", err)
	if kerr := adbcli.KillLocalServer(serverKillTimeout); kerr != nil && !errors.Is(kerr, adbcli.ErrServerNotRunning) {
		return errors.Wrapf(err, "restarting adb server: %v", kerr)
	}
	return runner.WaitForDevice(defaultDeviceTimeout)
}

// newRunner builds the adb runner, dialing the lab host first when the
// device is attached remotely.
func newRunner(t testing.TB, opts options) (*adbcli.Runner, func()) {
	t.Helper()

	serial := opts.serial
	if serial == "" {
		serial = os.Getenv("ANDROID_SERIAL")
	}

	if opts.ssh == nil {
		adbPath, explicit := resolveAdbPath(t, opts.adbPath)
		runner := adbcli.New(adbPath, serial)
		checkAdbVersion(t, runner, explicit)
		return runner, func() {}
	}

	adbPath := opts.adbPath
	if adbPath == "" {
		adbPath = "adb"
	}
	client, err := adbcli.DialSSH(*opts.ssh)
	if err != nil {
		t.Fatalf("hibercheck: open: %v", err)
	}
	runner := adbcli.New(adbPath, serial)
	runner.SetTransport(adbcli.SSHTransport{Client: client})
	checkAdbVersion(t, runner, true)
	return runner, func() { client.Close() }
}

// readProperties queries the device properties the suite branches on.
func (d *Device) readProperties() error {
	var g errgroup.Group
	g.Go(func() error {
		out, err := d.runner.Shell("getprop", "ro.build.version.sdk")
		if err != nil {
			return errors.Wrap(err, "reading sdk level")
		}
		sdk, err := strconv.Atoi(strings.TrimSpace(out))
		if err != nil {
			return errors.Wrapf(err, "parsing sdk level %q", out)
		}
		d.sdk = sdk
		return nil
	})
	g.Go(func() error {
		out, err := d.runner.Shell("pm", "list", "features")
		if err != nil {
			return errors.Wrap(err, "listing features")
		}
		d.features = parseFeatures(out)
		return nil
	})
	g.Go(func() error {
		out, err := d.runner.Shell("cmd", "lock_settings", "get-disabled")
		if err != nil {
			return errors.Wrap(err, "reading lock settings")
		}
		d.lockDisabled = strings.TrimSpace(out) == "true"
		return nil
	})
	return g.Wait()
}

// T returns the test the device is bound to.
func (d *Device) T() testing.TB {
	return d.t
}

// Serial returns the serial adb addresses the device by; empty when adb picks
// its default device.
func (d *Device) Serial() string {
	return d.runner.Serial()
}

// SDKLevel returns ro.build.version.sdk.
func (d *Device) SDKLevel() int {
	return d.sdk
}

// HasFeature reports whether the device declares the system feature.
func (d *Device) HasFeature(name string) bool {
	return d.features[name]
}

// LockDisabled reports whether the lock screen is disabled.
func (d *Device) LockDisabled() bool {
	return d.lockDisabled
}

// Shell runs a command in the device shell and returns its stdout.
func (d *Device) Shell(args ...string) (string, error) {
	return d.runner.Shell(args...)
}

// ShellOrFatal runs a command in the device shell and returns its stdout,
// failing the test if the command fails.
func (d *Device) ShellOrFatal(args ...string) string {
	d.t.Helper()
	out, err := d.runner.Shell(args...)
	if err != nil {
		d.t.Fatalf("hibercheck: shell: %v", err)
	}
	return out
}

// UIRoot fetches a fresh compressed UI tree.
func (d *Device) UIRoot() (*Node, error) {
	return dumpUI(d.runner, d.dumpPath, true)
}

// FullUIRoot fetches a fresh UI tree that includes views not important for
// accessibility.
func (d *Device) FullUIRoot() (*Node, error) {
	return dumpUI(d.runner, d.dumpPath, false)
}

// FindObject polls the compressed UI tree until a node matches sel and
// returns the first match in pre-order.
func (d *Device) FindObject(sel Selector, wopts ...PollOption) (*Node, error) {
	return waitFind(d.opts.timeout, d.opts.pollInterval, d.UIRoot, sel, wopts)
}

// WaitFindObject is FindObject that fails the test on timeout. The failure
// names the selector and dumps the last fetched tree.
func (d *Device) WaitFindObject(sel Selector, wopts ...PollOption) *Node {
	d.t.Helper()
	n, err := d.FindObject(sel, wopts...)
	if err != nil {
		d.t.Fatalf("hibercheck: wait-find-object: %v", err)
	}
	return n
}

// WaitFindNode is WaitFindObject over the full UI tree. Use it for views the
// compressed tree leaves out.
func (d *Device) WaitFindNode(sel Selector, wopts ...PollOption) *Node {
	d.t.Helper()
	n, err := waitFind(d.opts.timeout, d.opts.pollInterval, d.FullUIRoot, sel, wopts)
	if err != nil {
		d.t.Fatalf("hibercheck: wait-find-node: %v", err)
	}
	return n
}

// Click taps the center of n.
func (d *Device) Click(n *Node) {
	d.t.Helper()
	if err := tap(d.runner, n.Center()); err != nil {
		d.t.Fatalf("hibercheck: click: %v", err)
	}
}

// ClickLabel clicks the node whose text is label, ignoring case, and waits
// for the UI to settle. When the compressed tree never shows the label, the
// full tree is searched for text containing it.
func (d *Device) ClickLabel(label string) {
	d.t.Helper()
	n, err := d.FindObject(TextMatchesFold(label))
	if err != nil {
		n = d.WaitFindNode(TextContainsFold(label))
	}
	d.Click(n)
	d.WaitForIdle()
}

// Press injects one or more key events.
func (d *Device) Press(keys ...Key) {
	d.t.Helper()
	if err := keyevent(d.runner, keys); err != nil {
		d.t.Fatalf("hibercheck: press: %v", err)
	}
}

// GoBack presses the back key.
func (d *Device) GoBack() {
	d.t.Helper()
	d.Press(Back)
}

// GoHome presses the home key.
func (d *Device) GoHome() {
	d.t.Helper()
	d.Press(Home)
}

// WakeUp turns the screen on.
func (d *Device) WakeUp() {
	d.t.Helper()
	d.Press(WakeUp)
}

// WaitForIdle waits until two consecutive UI trees are identical. A UI that
// never settles is logged, not fatal.
func (d *Device) WaitForIdle() {
	d.t.Helper()
	prev := ""
	err := Poll(func() error {
		root, err := d.UIRoot()
		if err != nil {
			return err
		}
		cur := Dump(root)
		if cur != prev {
			prev = cur
			return errors.New("ui still changing")
		}
		return nil
	}, WithinTimeout(idleTimeout), WithWaitPollInterval(idleInterval))
	if err != nil {
		d.t.Logf("hibercheck: wait-for-idle: %v", err)
	}
}

// ProcessImportance returns the importance of the named process, or
// ImportanceGone if no such process exists.
func (d *Device) ProcessImportance(name string) (Importance, error) {
	pid, err := pidOf(d.runner, name)
	if err != nil {
		return 0, errors.Wrapf(err, "looking up %s", name)
	}
	if pid == 0 {
		return ImportanceGone, nil
	}
	adj, err := oomScoreAdj(d.runner, pid)
	if err != nil {
		// The process exited between the two reads.
		if code, ok := adbcli.ExitCode(err); ok && code != 0 {
			return ImportanceGone, nil
		}
		return 0, errors.Wrapf(err, "reading state of %s", name)
	}
	return importanceFromOomAdj(adj), nil
}

// AwaitAppState waits until the importance of the named process satisfies
// cond. Use it after force-stopping an app so the next step does not race the
// process teardown.
func (d *Device) AwaitAppState(name string, cond ImportanceCondition, wopts ...PollOption) {
	d.t.Helper()
	_, desc := cond(0)
	_, err := eventually(d.opts.timeout, d.opts.pollInterval, func() (Importance, error) {
		imp, err := d.ProcessImportance(name)
		if err != nil {
			return imp, err
		}
		if ok, _ := cond(imp); !ok {
			return imp, errors.Errorf("%s importance is %v", name, imp)
		}
		return imp, nil
	}, wopts)
	if err != nil {
		var pe *PollError
		if errors.As(err, &pe) {
			pe.Condition = name + " " + desc
		}
		d.t.Fatalf("hibercheck: await-app-state: %v", err)
	}
}

// CheckPermission returns the grant state of perm for pkg.
func (d *Device) CheckPermission(pkg, perm string) (PermissionState, error) {
	out, err := d.runner.Shell("dumpsys", "package", pkg)
	if err != nil {
		return PermissionDenied, errors.Wrapf(err, "dumpsys package %s", pkg)
	}
	return parsePermissionState(out, pkg, perm)
}

// AssertPermission waits until perm for pkg is in state want.
func (d *Device) AssertPermission(pkg, perm string, want PermissionState, wopts ...PollOption) {
	d.t.Helper()
	if !strings.Contains(perm, "permission.") {
		d.t.Fatalf("hibercheck: assert-permission: %q is not a permission name", perm)
	}
	err := pollWith(d.opts, func() error {
		got, err := d.CheckPermission(pkg, perm)
		if err != nil {
			return err
		}
		if got != want {
			return errors.Errorf("%s of %s is %v, want %v", perm, pkg, got, want)
		}
		return nil
	}, wopts)
	if err != nil {
		var pe *PollError
		if errors.As(err, &pe) {
			pe.Condition = perm + " of " + pkg + " to be " + want.String()
		}
		d.t.Fatalf("hibercheck: assert-permission: %v", err)
	}
}

// Eventually is Poll using the device's default timeout and poll interval.
func (d *Device) Eventually(probe func() error, wopts ...PollOption) error {
	return pollWith(d.opts, probe, wopts)
}

// RequireEventually is Eventually that fails the test on timeout.
func (d *Device) RequireEventually(probe func() error, wopts ...PollOption) {
	d.t.Helper()
	if err := d.Eventually(probe, wopts...); err != nil {
		d.t.Fatalf("hibercheck: eventually: %v", err)
	}
}

func pollWith(opts options, probe func() error, wopts []PollOption) error {
	_, err := eventually(opts.timeout, opts.pollInterval, func() (struct{}, error) {
		return struct{}{}, probe()
	}, wopts)
	return err
}
