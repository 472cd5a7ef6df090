// Package hibercheck provides black-box testing for Android devices driven
// over adb, built around waiting for eventually-true conditions.
//
// hibercheck talks to a real device (or emulator) through the adb binary,
// reads its UI through uiautomator dumps, and reports failures through the
// standard [testing.TB] interface.
//
// # Quick Start
//
//	func TestAllowDialog(t *testing.T) {
//		dev := hibercheck.Open(t)
//		dev.ShellOrFatal("am", "start", "-n", "com.example/.Main")
//		dev.Click(dev.WaitFindObject(hibercheck.Text("Allow")))
//		dev.AssertPermission("com.example", "android.permission.CAMERA", hibercheck.PermissionGranted)
//	}
//
// Cleanup is automatic through t.Cleanup; there is no Close method.
//
// # Polling
//
// [Eventually] invokes a probe until it succeeds or a timeout expires and
// returns the first successful value. [Poll] is the same for probes that
// only report an error. On timeout both return a [*PollError] carrying the
// error of the last attempt.
//
// Wait behavior:
//
//   - Defaults: 10s timeout, 200ms poll interval
//   - Per-device overrides: [WithTimeout], [WithPollInterval]
//   - Per-call overrides: [WithinTimeout], [WithWaitPollInterval]
//   - The probe always runs at least once
//   - Poll intervals under 10ms are clamped to 10ms
//   - Negative timeout or poll values return [ErrInvalidPolicy]
//
// # UI Trees
//
// A [Node] tree is parsed fresh from every dump and never changes.
// [DepthFirstSearch] returns the first match in pre-order. Built-in
// selectors include [Text], [TextMatches], [TextMatchesFold],
// [TextContainsFold], [TextStartsWith], [Desc], [ResourceID], [Class],
// [Clickable], [Checkable], [Checked], [HasDescendant], [Not], [All], and
// [Any].
//
// [Device.WaitFindObject] polls the compressed tree and fails the test on
// timeout with the selector description and a dump of the last tree.
//
// # Process and Permission State
//
// [Device.ProcessImportance] maps a process to an [Importance] and reports
// [ImportanceGone] when it is not running. [Device.AwaitAppState] and
// [Device.AssertPermission] poll those states.
//
// # Snapshots
//
// [Device.MatchSnapshot] and [Node.MatchSnapshot] compare UI dumps, without
// bounds, to golden files under testdata/snapshots. Set HIBERCHECK_UPDATE=1
// to create or update them.
//
// # Requirements
//
//   - Go 1.24+
//   - adb 1.0.39+
//
// adb is resolved in this order:
//
//   - [WithAdbPath]
//   - HIBERCHECK_ADB
//   - PATH lookup for adb
//
// [WithSSHHost] runs adb on a remote lab host instead.
package hibercheck
