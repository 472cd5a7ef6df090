package autorevoke

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const validConfig = `
apps:
  q: {apk: /tmp/q.apk, package: test.q}
  r: {apk: /tmp/r.apk, package: test.r}
  s: {apk: /tmp/s.apk, package: test.s}
`

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(validConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Permission != ReadCalendar {
		t.Errorf("Permission = %q, want %q", cfg.Permission, ReadCalendar)
	}
	if cfg.SplitPermission != BluetoothConnect {
		t.Errorf("SplitPermission = %q, want %q", cfg.SplitPermission, BluetoothConnect)
	}
	if cfg.JobTimeout != defaultJobTimeout {
		t.Errorf("JobTimeout = %v, want %v", cfg.JobTimeout, defaultJobTimeout)
	}
	if diff := cmp.Diff(App{APK: "/tmp/r.apk", Package: "test.r"}, cfg.Apps.R); diff != "" {
		t.Errorf("Apps.R mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(validConfig + `
permission: android.permission.READ_CONTACTS
permission_controller: com.google.android.permissioncontroller
job_timeout: 90s
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Permission != "android.permission.READ_CONTACTS" {
		t.Errorf("Permission = %q", cfg.Permission)
	}
	if cfg.PermissionController != "com.google.android.permissioncontroller" {
		t.Errorf("PermissionController = %q", cfg.PermissionController)
	}
	if cfg.JobTimeout != 90*time.Second {
		t.Errorf("JobTimeout = %v, want 90s", cfg.JobTimeout)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"missing app", "apps:\n  q: {apk: a, package: b}\n  r: {apk: a, package: b}\n", "apps.s"},
		{"missing package", strings.Replace(validConfig, "package: test.q", "package: ''", 1), "apps.q"},
		{"unknown field", validConfig + "bogus: 1\n", "bogus"},
		{"bad timeout", validConfig + "job_timeout: soon\n", "job_timeout"},
		{"negative timeout", validConfig + "job_timeout: -1s\n", "must be positive"},
		{"zero timeout", validConfig + "job_timeout: 0s\n", "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(path, []byte(validConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Apps.S.Package != "test.s" {
		t.Errorf("Apps.S.Package = %q, want test.s", cfg.Apps.S.Package)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
