package autorevoke

import (
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Default permissions under test.
const (
	ReadCalendar     = "android.permission.READ_CALENDAR"
	BluetoothConnect = "android.permission.BLUETOOTH_CONNECT"
)

// App is a test app: the path of its APK on the device and the package it
// installs. Push the APKs before running the suite.
type App struct {
	APK     string `yaml:"apk"`
	Package string `yaml:"package"`
}

// Config describes the test apps and knobs of the compliance suite.
//
// Example:
//
//	apps:
//	  q: {apk: /data/local/tmp/cts/hibernation/CtsAutoRevokeQApp.apk, package: android.hibernation.cts.autorevokeqapp}
//	  r: {apk: /data/local/tmp/cts/hibernation/CtsAutoRevokeRApp.apk, package: android.hibernation.cts.autorevokerapp}
//	  s: {apk: /data/local/tmp/cts/hibernation/CtsAutoRevokeSApp.apk, package: android.hibernation.cts.autorevokesapp}
//	job_timeout: 30s
type Config struct {
	Apps struct {
		Q App `yaml:"q"`
		R App `yaml:"r"`
		S App `yaml:"s"`
	} `yaml:"apps"`

	// Permission is revoked from unused apps. Defaults to READ_CALENDAR.
	Permission string `yaml:"permission"`
	// SplitPermission is granted implicitly to pre-S apps and must survive
	// hibernation. Defaults to BLUETOOTH_CONNECT.
	SplitPermission string `yaml:"split_permission"`
	// PermissionController overrides the detected permission controller
	// package.
	PermissionController string `yaml:"permission_controller"`

	// JobTimeout bounds the wait for a hibernation job to log completion.
	JobTimeout    time.Duration `yaml:"-"`
	RawJobTimeout string        `yaml:"job_timeout"`
}

const defaultJobTimeout = 30 * time.Second

// LoadConfig reads a YAML suite config and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading suite config")
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML suite config and fills in defaults.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing suite config")
	}

	if cfg.Permission == "" {
		cfg.Permission = ReadCalendar
	}
	if cfg.SplitPermission == "" {
		cfg.SplitPermission = BluetoothConnect
	}
	cfg.JobTimeout = defaultJobTimeout
	if cfg.RawJobTimeout != "" {
		d, err := time.ParseDuration(cfg.RawJobTimeout)
		if err != nil {
			return nil, errors.Wrapf(err, "job_timeout %q", cfg.RawJobTimeout)
		}
		if d <= 0 {
			return nil, errors.Errorf("job_timeout %q must be positive", cfg.RawJobTimeout)
		}
		cfg.JobTimeout = d
	}

	for name, app := range map[string]App{"q": cfg.Apps.Q, "r": cfg.Apps.R, "s": cfg.Apps.S} {
		if app.APK == "" || app.Package == "" {
			return nil, errors.Errorf("apps.%s needs both apk and package", name)
		}
	}
	return &cfg, nil
}

// ConfigFromEnv loads the config named by HIBERCHECK_CONFIG, skipping the test
// when the variable is unset.
func ConfigFromEnv(t testing.TB) *Config {
	t.Helper()
	path := os.Getenv("HIBERCHECK_CONFIG")
	if path == "" {
		t.Skip("autorevoke: HIBERCHECK_CONFIG not set")
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("autorevoke: %v", err)
	}
	return cfg
}
