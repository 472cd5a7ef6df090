package hibercheck

import (
	"testing"

	"github.com/pkg/errors"
)

func TestImportanceFromOomAdj(t *testing.T) {
	tests := []struct {
		adj  int
		want Importance
	}{
		{-900, ImportanceForeground},
		{0, ImportanceForeground},
		{100, ImportanceVisible},
		{200, ImportancePerceptible},
		{250, ImportancePerceptible},
		{300, ImportancePerceptible},
		{399, ImportancePerceptible},
		{400, ImportanceCantSaveState},
		{499, ImportanceCantSaveState},
		{500, ImportanceService},
		{600, ImportanceCached},
		{700, ImportanceCached},
		{800, ImportanceService},
		{900, ImportanceCached},
		{999, ImportanceCached},
	}
	for _, tt := range tests {
		if got := importanceFromOomAdj(tt.adj); got != tt.want {
			t.Errorf("importanceFromOomAdj(%d) = %v, want %v", tt.adj, got, tt.want)
		}
	}
}

func TestImportanceConditions(t *testing.T) {
	above, desc := ImportanceAbove(ImportanceTopSleeping)(ImportanceCached)
	if !above || desc != "importance > TOP_SLEEPING" {
		t.Errorf("ImportanceAbove = (%t, %q)", above, desc)
	}
	if ok, _ := ImportanceAbove(ImportanceTopSleeping)(ImportanceTopSleeping); ok {
		t.Error("ImportanceAbove is not strict")
	}
	if ok, _ := ImportanceAtMost(ImportanceTopSleeping)(ImportanceForeground); !ok {
		t.Error("foreground is not at most TOP_SLEEPING")
	}
	if ok, _ := ImportanceAbove(ImportanceTopSleeping)(importanceFromOomAdj(400)); !ok {
		t.Error("a heavy-weight process must count as background")
	}
	if ok, _ := ImportanceAbove(ImportanceTopSleeping)(ImportanceGone); !ok {
		t.Error("a gone process must count as background")
	}
	if ok, _ := ImportanceIs(ImportanceGone)(ImportanceCached); ok {
		t.Error("ImportanceIs matched a different value")
	}
	if got := Importance(42).String(); got != "42" {
		t.Errorf("unknown importance String = %q, want 42", got)
	}
}

const dumpsysPackage = `Packages:
  Package [android.hibernation.cts.autorevokerapp] (2b1c9a3):
    userId=10234
    install permissions:
      android.permission.INTERNET: granted=true
    User 0: ceDataInode=1234 installed=true hidden=false suspended=false
      runtime permissions:
        android.permission.READ_CALENDAR: granted=false, flags=[ USER_SENSITIVE_WHEN_GRANTED|USER_SENSITIVE_WHEN_DENIED]
        android.permission.BLUETOOTH_CONNECT: granted=true, flags=[ REVOKE_WHEN_REQUESTED]
    User 10: ceDataInode=0 installed=true hidden=false suspended=false
      runtime permissions:
        android.permission.READ_CALENDAR: granted=true
`

func TestParsePermissionState(t *testing.T) {
	const pkg = "android.hibernation.cts.autorevokerapp"
	tests := []struct {
		perm string
		want PermissionState
	}{
		{"android.permission.READ_CALENDAR", PermissionDenied},
		{"android.permission.BLUETOOTH_CONNECT", PermissionGranted},
		{"android.permission.INTERNET", PermissionGranted},
		{"android.permission.CAMERA", PermissionDenied},
	}
	for _, tt := range tests {
		got, err := parsePermissionState(dumpsysPackage, pkg, tt.perm)
		if err != nil {
			t.Fatalf("%s: %v", tt.perm, err)
		}
		if got != tt.want {
			t.Errorf("%s = %v, want %v", tt.perm, got, tt.want)
		}
	}
}

func TestParsePermissionStateUnknownPackage(t *testing.T) {
	_, err := parsePermissionState("Unable to find package: test.missing\n", "test.missing", "android.permission.CAMERA")
	if !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("error = %v, want ErrPackageNotFound", err)
	}
}

func TestParseFeatures(t *testing.T) {
	got := parseFeatures("feature:android.hardware.type.watch\nfeature:android.software.leanback\nfeature:android.hardware.vulkan.level=1\n\n")
	for _, f := range []string{"android.hardware.type.watch", "android.software.leanback", "android.hardware.vulkan.level"} {
		if !got[f] {
			t.Errorf("feature %q missing from %v", f, got)
		}
	}
	if got["android.hardware.type.automotive"] {
		t.Error("unexpected automotive feature")
	}
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		v, min string
		want   bool
	}{
		{"1.0.41", "1.0.39", true},
		{"1.0.39", "1.0.39", true},
		{"1.0.32", "1.0.39", false},
		{"2.0.0", "1.0.39", true},
		{"garbage", "1.0.39", false},
	}
	for _, tt := range tests {
		if got := versionAtLeast(tt.v, tt.min); got != tt.want {
			t.Errorf("versionAtLeast(%q, %q) = %t, want %t", tt.v, tt.min, got, tt.want)
		}
	}
}
