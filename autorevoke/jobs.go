package autorevoke

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cboone/hibercheck"
)

// Job ids the permission controller schedules.
const (
	hibernationJobID     = 2
	eventCleanupJobID    = 3
	hibernationJobRounds = 2
)

// Log lines the hibernation job writes, in order, when one run completes.
var hibernationJobLog = []string{"onStartJob", "Done auto-revoke for user"}

const (
	// logTag tags the marker lines RunHibernationJob writes to logcat.
	logTag = "hibercheck"

	nsPermissions    = "permissions"
	nsAppHibernation = "app_hibernation"
	nsPrivacy        = "privacy"

	keyUnusedThreshold = "auto_revoke_unused_threshold_millis2"
	keyPreSTargets     = "app_hibernation_targets_pre_s_apps"
	keySafetyCenter    = "safety_center_is_enabled"

	// KeyExactTime makes the permission controller record the exact time of
	// permission changes instead of rounding to the day.
	KeyExactTime = "permission_changes_store_exact_time"

	// nullValue is what "settings get" and "device_config get" print for an
	// unset key.
	nullValue = "null"
)

// WithDeviceConfig sets a device_config flag for the duration of fn and
// restores the previous value afterwards. A flag that was unset is deleted
// again.
func (s *Suite) WithDeviceConfig(namespace, key, value string, fn func()) {
	t := s.dev.T()
	t.Helper()

	old := strings.TrimSpace(s.dev.ShellOrFatal("device_config", "get", namespace, key))
	s.dev.ShellOrFatal("device_config", "put", namespace, key, value)
	defer s.restore("device_config", namespace, key, old)
	fn()
}

// WithUnusedThreshold makes apps count as unused after d for the duration of
// fn.
func (s *Suite) WithUnusedThreshold(d time.Duration, fn func()) {
	s.dev.T().Helper()
	s.WithDeviceConfig(nsPermissions, keyUnusedThreshold, strconv.FormatInt(d.Milliseconds(), 10), fn)
}

// WithSafetyCenterEnabled enables the safety center for the duration of fn.
func (s *Suite) WithSafetyCenterEnabled(fn func()) {
	s.dev.T().Helper()
	s.WithDeviceConfig(nsPrivacy, keySafetyCenter, "true", fn)
}

// HibernationEnabledForPreSApps reports whether hibernation also applies to
// apps targeting an SDK below S.
func (s *Suite) HibernationEnabledForPreSApps() bool {
	s.dev.T().Helper()
	out := s.dev.ShellOrFatal("device_config", "get", nsAppHibernation, keyPreSTargets)
	return strings.TrimSpace(out) == "true"
}

// RunHibernationJob forces the hibernation job and waits until it logs
// completion. It runs twice: the first run may only reschedule itself.
func (s *Suite) RunHibernationJob() {
	t := s.dev.T()
	t.Helper()
	for i := 0; i < hibernationJobRounds; i++ {
		t.Logf("autorevoke: running hibernation job (%d/%d)", i+1, hibernationJobRounds)
		mark := s.markLog()
		s.runJob(hibernationJobID)
		err := s.dev.Eventually(func() error {
			return s.logcatContainsInOrder(mark, hibernationJobLog)
		}, hibercheck.WithinTimeout(s.cfg.JobTimeout))
		if err != nil {
			t.Fatalf("autorevoke: hibernation job: %v", err)
		}
	}
}

// RunPermissionEventCleanupJob forces the job that drops old permission
// change events.
func (s *Suite) RunPermissionEventCleanupJob() {
	s.dev.T().Helper()
	s.runJob(eventCleanupJobID)
}

func (s *Suite) runJob(id int) {
	s.dev.T().Helper()
	user := strconv.Itoa(s.CurrentUser())
	s.dev.ShellOrFatal("cmd", "jobscheduler", "run", "-u", user, "-f", s.permController, strconv.Itoa(id))
}

// markLog writes a unique line to logcat and returns it. Lines logged before
// the marker never satisfy a wait that starts from it.
func (s *Suite) markLog() string {
	s.dev.T().Helper()
	mark := "mark-" + uuid.NewString()
	s.dev.ShellOrFatal("log", "-t", logTag, mark)
	return mark
}

// logcatContainsInOrder checks that logcat has the marker line followed by
// lines containing each of want, in that order.
func (s *Suite) logcatContainsInOrder(mark string, want []string) error {
	out, err := s.dev.Shell("logcat", "-d")
	if err != nil {
		return errors.Wrap(err, "reading logcat")
	}
	return containsInOrder(out, append([]string{mark}, want...))
}

// containsInOrder reports a missing line as an error naming the first
// substring of want with no matching line after the previous match.
func containsInOrder(log string, want []string) error {
	i := 0
	for _, line := range strings.Split(log, "\n") {
		if i == len(want) {
			break
		}
		if strings.Contains(line, want[i]) {
			i++
		}
	}
	if i < len(want) {
		return errors.Errorf("log has no %q after %q", want[i], want[:i])
	}
	return nil
}
