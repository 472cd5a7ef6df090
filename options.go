package hibercheck

import (
	"time"

	"github.com/cboone/hibercheck/internal/adbcli"
)

type options struct {
	serial       string
	adbPath      string
	timeout      time.Duration
	pollInterval time.Duration
	ssh          *adbcli.SSHConfig
	verbose      bool
}

// Option configures a Device created by Open.
type Option func(*options)

// WithSerial selects the device by serial number. Without it, ANDROID_SERIAL
// is used, and then adb's default device.
func WithSerial(serial string) Option {
	return func(o *options) {
		o.serial = serial
	}
}

// WithAdbPath sets the path to the adb binary. Defaults to "adb" (resolved
// via $PATH). The HIBERCHECK_ADB environment variable can also be used as a
// fallback before the default.
func WithAdbPath(path string) Option {
	return func(o *options) {
		o.adbPath = path
	}
}

// WithTimeout sets the default timeout for every wait on the device.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithPollInterval sets the default polling interval for every wait on the
// device.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithSSHHost runs adb on a remote lab host reached over SSH with public key
// authentication. knownHosts may be empty to skip host key verification.
func WithSSHHost(addr, user, keyPath, knownHosts string) Option {
	return func(o *options) {
		o.ssh = &adbcli.SSHConfig{
			Addr:           addr,
			User:           user,
			KeyPath:        keyPath,
			KnownHostsPath: knownHosts,
		}
	}
}

// WithVerbose logs every adb command through t.Logf.
func WithVerbose() Option {
	return func(o *options) {
		o.verbose = true
	}
}

// PollOption configures a single Eventually, Poll, or wait call.
type PollOption func(*pollOptions)

type pollOptions struct {
	timeout      time.Duration
	pollInterval time.Duration
	message      string
}

// WithinTimeout overrides the total time budget for a single call.
// A value of 0 means "use defaults". Negative values are rejected.
func WithinTimeout(d time.Duration) PollOption {
	return func(o *pollOptions) {
		o.timeout = d
	}
}

// WithWaitPollInterval overrides the time between probe invocations for a
// single call. A value of 0 means "use defaults". Negative values are
// rejected. Positive values under 10ms are clamped to 10ms.
func WithWaitPollInterval(d time.Duration) PollOption {
	return func(o *pollOptions) {
		o.pollInterval = d
	}
}

// WithFailureMessage prefixes the failure diagnostics with msg.
func WithFailureMessage(msg string) PollOption {
	return func(o *pollOptions) {
		o.message = msg
	}
}

const (
	// DefaultTimeout is the total budget of a poll call.
	DefaultTimeout = 10 * time.Second
	// DefaultPollInterval is the sleep between failed probe invocations.
	DefaultPollInterval = 200 * time.Millisecond

	minPollInterval      = 10 * time.Millisecond
	defaultDeviceTimeout = 30 * time.Second
	minAdbVersion        = "1.0.39"
)

func defaultOptions() options {
	return options{
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
	}
}
