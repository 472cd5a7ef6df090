// Package autorevoke drives the auto-revoke (app hibernation) feature of an
// Android device: it installs test apps, makes them look unused, runs the
// hibernation job, and checks what happened to their permissions, the unused
// apps UI, and the safety center.
//
// A Suite wraps a hibercheck.Device. Every helper fails the test through the
// device's testing.TB on error.
package autorevoke

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cboone/hibercheck"
)

// System features the suite branches on.
const (
	FeatureAutomotive = "android.hardware.type.automotive"
	FeatureWatch      = "android.hardware.type.watch"
	FeatureTV         = "android.software.leanback"
)

const (
	sdkS = 31

	// Before S, killing an app too soon after launch leaves a stale process
	// record that sticks until reboot.
	preSKillDelay = 5 * time.Second
)

// Suite is the auto-revoke fixture bound to one device.
type Suite struct {
	dev *hibercheck.Device
	cfg *Config

	// Supported is the app hibernation applies to on this device type;
	// PreMinVersion targets an SDK below the minimum.
	Supported     App
	PreMinVersion App

	permController string
}

// New prepares the device for a test: it turns off animations, freezes the
// rotation, collapses notifications, wakes the screen, and unlocks it when a
// lock screen is enabled. Settings are restored when the test ends. The first
// Suite on a device also replays the permission controller's boot receiver.
func New(dev *hibercheck.Device, cfg *Config) *Suite {
	t := dev.T()
	t.Helper()

	s := &Suite{dev: dev, cfg: cfg}
	if s.IsAutomotive() {
		s.Supported, s.PreMinVersion = cfg.Apps.S, cfg.Apps.R
	} else {
		s.Supported, s.PreMinVersion = cfg.Apps.R, cfg.Apps.Q
	}

	s.permController = cfg.PermissionController
	if s.permController == "" {
		s.permController = s.detectPermissionController()
	}
	s.runBootReceiverOnce()

	for _, st := range testSettings {
		s.overrideSetting(st)
	}
	if out := dev.ShellOrFatal("cmd", "statusbar", "collapse"); out != "" {
		t.Fatalf("autorevoke: collapse status bar: unexpected output %q", out)
	}
	dev.WakeUp()
	if !dev.LockDisabled() {
		// Only unlock when a lock screen exists, so no wallpaper picker covers
		// the UI on freeform windows.
		dev.Press(hibercheck.Menu)
	}
	return s
}

// Device returns the underlying device.
func (s *Suite) Device() *hibercheck.Device {
	return s.dev
}

// Config returns the suite config.
func (s *Suite) Config() *Config {
	return s.cfg
}

func (s *Suite) detectPermissionController() string {
	t := s.dev.T()
	t.Helper()
	out := s.dev.ShellOrFatal("pm", "list", "packages", "permissioncontroller")
	for _, line := range strings.Split(out, "\n") {
		pkg := strings.TrimPrefix(strings.TrimSpace(line), "package:")
		if strings.HasSuffix(pkg, ".permissioncontroller") {
			return pkg
		}
	}
	t.Fatalf("autorevoke: no permission controller package in %q", out)
	return ""
}

// IsAutomotive reports whether the device is a car.
func (s *Suite) IsAutomotive() bool { return s.dev.HasFeature(FeatureAutomotive) }

// IsWatch reports whether the device is a watch.
func (s *Suite) IsWatch() bool { return s.dev.HasFeature(FeatureWatch) }

// IsTV reports whether the device is a TV.
func (s *Suite) IsTV() bool { return s.dev.HasFeature(FeatureTV) }

// InstallApk installs an APK already pushed to the device, replacing any
// existing version.
func (s *Suite) InstallApk(apk string) {
	t := s.dev.T()
	t.Helper()
	if out := s.dev.ShellOrFatal("pm", "install", "-r", apk); !strings.Contains(out, "Success") {
		t.Fatalf("autorevoke: install %s: %q", apk, out)
	}
}

// UninstallApp uninstalls pkg and fails unless the package manager reports
// success.
func (s *Suite) UninstallApp(pkg string) {
	t := s.dev.T()
	t.Helper()
	if out := s.dev.ShellOrFatal("pm", "uninstall", pkg); !strings.Contains(out, "Success") {
		t.Fatalf("autorevoke: uninstall %s: %q", pkg, out)
	}
}

// UninstallAppWithoutAssertion uninstalls pkg, ignoring the result.
func (s *Suite) UninstallAppWithoutAssertion(pkg string) {
	_, _ = s.dev.Shell("pm", "uninstall", pkg)
}

// IsPackageInstalled reports whether pkg is installed.
func (s *Suite) IsPackageInstalled(pkg string) (bool, error) {
	out, err := s.dev.Shell("pm", "list", "packages", pkg)
	if err != nil {
		return false, errors.Wrap(err, "listing packages")
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "package:"+pkg {
			return true, nil
		}
	}
	return false, nil
}

// WithApp installs app, runs fn, and uninstalls it again, asserting the
// uninstall succeeds.
func (s *Suite) WithApp(app App, fn func()) {
	s.dev.T().Helper()
	s.InstallApk(app.APK)
	defer s.UninstallApp(app.Package)
	fn()
}

// WithAppNoUninstallAssertion is WithApp for tests that may uninstall the app
// themselves.
func (s *Suite) WithAppNoUninstallAssertion(app App, fn func()) {
	s.dev.T().Helper()
	s.InstallApk(app.APK)
	defer s.UninstallAppWithoutAssertion(app.Package)
	fn()
}

// GrantPermission grants a runtime permission.
func (s *Suite) GrantPermission(pkg, perm string) {
	s.dev.T().Helper()
	s.dev.ShellOrFatal("pm", "grant", pkg, perm)
}

// StartApp launches the app's launcher activity and waits until it is in
// front.
func (s *Suite) StartApp(pkg string) {
	s.dev.T().Helper()
	s.dev.ShellOrFatal("monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	s.dev.AwaitAppState(pkg, hibercheck.ImportanceAtMost(hibercheck.ImportanceTopSleeping))
	s.dev.WaitForIdle()
}

// KillApp force-stops pkg and waits for its process to leave the foreground.
func (s *Suite) KillApp(pkg string) {
	t := s.dev.T()
	t.Helper()
	if s.dev.SDKLevel() < sdkS {
		time.Sleep(preSKillDelay)
	}
	if out := s.dev.ShellOrFatal("am", "force-stop", pkg); out != "" {
		t.Fatalf("autorevoke: force-stop %s: unexpected output %q", pkg, out)
	}
	s.dev.AwaitAppState(pkg, hibercheck.ImportanceAbove(hibercheck.ImportanceTopSleeping))
}

// SetupApp grants the permission under test, checks it, and uses the app
// once.
func (s *Suite) SetupApp(pkg string) {
	s.dev.T().Helper()
	s.GrantPermission(pkg, s.cfg.Permission)
	s.dev.AssertPermission(pkg, s.cfg.Permission, hibercheck.PermissionGranted)
	s.StartApp(pkg)
	s.KillApp(pkg)
}

// AssertPermission waits until the permission under test for pkg is want.
func (s *Suite) AssertPermission(pkg string, want hibercheck.PermissionState) {
	s.dev.T().Helper()
	s.dev.AssertPermission(pkg, s.cfg.Permission, want)
}

// CurrentUser returns the foreground user id.
func (s *Suite) CurrentUser() int {
	t := s.dev.T()
	t.Helper()
	out := s.dev.ShellOrFatal("am", "get-current-user")
	id, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("autorevoke: parsing current user %q: %v", out, err)
	}
	return id
}

// OpenUnusedAppsNotification opens the unused apps page from the
// notification posted by the hibernation job.
func (s *Suite) OpenUnusedAppsNotification() {
	s.dev.T().Helper()
	if s.IsWatch() {
		s.dev.ShellOrFatal("am", "start", "-a", "android.intent.action.MANAGE_UNUSED_APPS")
		s.dev.WaitForIdle()
		return
	}
	s.dev.ShellOrFatal("cmd", "statusbar", "expand-notifications")
	s.dev.Click(s.dev.WaitFindObject(hibercheck.TextContainsFold("unused app")))
	s.dev.WaitForIdle()
}

// GoToPermissions opens the auto-revoke permissions page of pkg.
func (s *Suite) GoToPermissions(pkg string) {
	s.dev.T().Helper()
	s.dev.ShellOrFatal("am", "start",
		"-a", "android.intent.action.AUTO_REVOKE_PERMISSIONS",
		"-d", "package:"+pkg,
		"-f", "0x10000000")
	s.dev.WaitForIdle()
	s.dev.ClickLabel("Permissions")
}

// AllowlistToggle returns the switch that exempts the app from auto-revoke
// on its permissions page.
func (s *Suite) AllowlistToggle() *hibercheck.Node {
	s.dev.T().Helper()
	s.dev.WaitForIdle()
	label := "Remove permissions"
	if s.IsWatch() {
		label = "Pause app"
	}
	row := s.dev.WaitFindObject(hibercheck.All(
		hibercheck.Clickable(true),
		hibercheck.HasDescendant(hibercheck.TextStartsWith(label)),
		hibercheck.HasDescendant(hibercheck.Checkable(true)),
	))
	return hibercheck.DepthFirstSearch(row, hibercheck.Checkable(true))
}

// AssertAllowlistState checks the allowlist state the test app displays.
func (s *Suite) AssertAllowlistState(want bool) {
	t := s.dev.T()
	t.Helper()
	n := s.dev.WaitFindObject(hibercheck.TextStartsWith("Auto-revoke allowlisted: "))
	if !strings.Contains(n.Text(), strconv.FormatBool(want)) {
		t.Fatalf("autorevoke: app shows %q, want allowlisted %t", n.Text(), want)
	}
}

// ClickUninstall clicks the uninstall action of pkg's row on the unused apps
// page and confirms the dialog.
func (s *Suite) ClickUninstall(pkg string) {
	t := s.dev.T()
	t.Helper()

	var row *hibercheck.Node
	var action hibercheck.Selector
	if s.IsAutomotive() {
		row = s.dev.WaitFindObject(hibercheck.All(
			hibercheck.ResourceID(s.permController+":id/car_ui_first_action_container"),
			hibercheck.HasDescendant(hibercheck.Text(pkg)),
		)).Parent()
		action = hibercheck.ResourceID(s.permController + ":id/car_ui_secondary_action")
	} else {
		row = s.dev.WaitFindObject(hibercheck.Text(pkg)).Parent().Parent()
		action = hibercheck.Desc("Uninstall or disable")
	}
	if row == nil {
		t.Fatalf("autorevoke: row of %s has no parent", pkg)
	}

	button := hibercheck.DepthFirstSearch(row, action)
	if button == nil {
		_, desc := action(row)
		t.Fatalf("autorevoke: no %s in row of %s:\n%s", desc, pkg, hibercheck.Dump(row))
	}
	s.dev.Click(button)
	s.dev.Click(s.dev.WaitFindObject(hibercheck.Text("OK")))
}
