package autorevoke

import (
	"strconv"
	"strings"
	"sync"
)

type setting struct {
	namespace, key, value string
}

// Held for the whole test so the UI the suite polls does not move under it.
var testSettings = []setting{
	{"global", "window_animation_scale", "0"},
	{"global", "transition_animation_scale", "0"},
	{"global", "animator_duration_scale", "0"},
	{"system", "accelerometer_rotation", "0"},
	{"system", "user_rotation", "0"},
}

// overrideSetting puts st and restores the previous value when the test ends.
func (s *Suite) overrideSetting(st setting) {
	t := s.dev.T()
	t.Helper()
	old := strings.TrimSpace(s.dev.ShellOrFatal("settings", "get", st.namespace, st.key))
	s.dev.ShellOrFatal("settings", "put", st.namespace, st.key, st.value)
	t.Cleanup(func() {
		s.restore("settings", st.namespace, st.key, old)
	})
}

// restore puts back a value read with "<tool> get". A value that was unset
// is deleted instead.
func (s *Suite) restore(tool, namespace, key, old string) {
	if old == nullValue || old == "" {
		_, _ = s.dev.Shell(tool, "delete", namespace, key)
		return
	}
	_, _ = s.dev.Shell(tool, "put", namespace, key, old)
}

const (
	actionSetUpHibernation = "com.android.permissioncontroller.action.SET_UP_HIBERNATION"
	actionBootCompleted    = "android.intent.action.BOOT_COMPLETED"
	hibernationBootClass   = "com.android.permissioncontroller.hibernation.HibernationOnBootReceiver"
	flagReceiverForeground = "0x10000000"
)

// Devices whose boot receiver already ran in this test binary, by serial.
var bootReceiverRun sync.Map

// runBootReceiverOnce replays the permission controller's boot-time setup so
// the hibernation jobs are scheduled, once per device.
func (s *Suite) runBootReceiverOnce() {
	t := s.dev.T()
	t.Helper()
	if _, done := bootReceiverRun.Load(s.dev.Serial()); done {
		return
	}

	user := strconv.Itoa(s.CurrentUser())
	args := []string{"am", "broadcast", "--user", user, "-a", actionSetUpHibernation,
		"-p", s.permController, "-f", flagReceiverForeground}
	receivers, _ := s.dev.Shell("cmd", "package", "query-receivers", "--brief",
		"--user", user, "-a", actionSetUpHibernation, s.permController)
	if strings.Contains(receivers, "No receivers found") {
		// Older permission controllers only set up on boot.
		args = []string{"am", "broadcast", "--user", user, "-a", actionBootCompleted,
			"-n", s.permController + "/" + hibernationBootClass, "-f", flagReceiverForeground}
	}
	if out := s.dev.ShellOrFatal(args...); !strings.Contains(out, "Broadcast completed") {
		t.Fatalf("autorevoke: boot receiver: %q", out)
	}
	bootReceiverRun.Store(s.dev.Serial(), struct{}{})
}
