// Package adbcli provides low-level adb command execution bound to a single
// device serial. It is internal to the hibercheck package.
package adbcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// Transport executes a program and captures its output. The local transport
// runs it on this host; the SSH transport runs it on a remote lab host.
type Transport interface {
	Run(ctx context.Context, name string, args []string) (stdout, stderr []byte, err error)
}

// Runner executes adb commands against a specific device.
type Runner struct {
	adbPath   string
	serial    string
	transport Transport
	logf      func(format string, args ...any)
}

// New creates a Runner bound to the given adb binary and device serial.
// An empty serial lets adb pick its default device.
func New(adbPath, serial string) *Runner {
	return &Runner{
		adbPath:   adbPath,
		serial:    serial,
		transport: localTransport{},
	}
}

// SetTransport replaces the transport used to execute adb.
func (r *Runner) SetTransport(t Transport) {
	r.transport = t
}

// SetLogf installs a hook that receives every command before it runs.
func (r *Runner) SetLogf(logf func(format string, args ...any)) {
	r.logf = logf
}

// Run executes an adb command with the given arguments and returns its
// stdout output. If the command fails, it returns an *Error containing
// stderr.
func (r *Runner) Run(args ...string) (string, error) {
	return r.RunContext(context.Background(), args...)
}

// RunContext executes an adb command with the given context and arguments.
func (r *Runner) RunContext(ctx context.Context, args ...string) (string, error) {
	var fullArgs []string
	if r.serial != "" {
		fullArgs = append(fullArgs, "-s", r.serial)
	}
	fullArgs = append(fullArgs, args...)
	return r.exec(ctx, fullArgs)
}

// Shell runs a command in the device shell.
func (r *Runner) Shell(args ...string) (string, error) {
	return r.RunContext(context.Background(), append([]string{"shell"}, args...)...)
}

// ExecOut runs a command on the device with a raw (binary safe) stdout stream.
func (r *Runner) ExecOut(args ...string) (string, error) {
	return r.RunContext(context.Background(), append([]string{"exec-out"}, args...)...)
}

func (r *Runner) exec(ctx context.Context, fullArgs []string) (string, error) {
	if r.logf != nil {
		r.logf("adb %s", strings.Join(fullArgs, " "))
	}
	stdout, stderr, err := r.transport.Run(ctx, r.adbPath, fullArgs)
	if err != nil {
		return "", &Error{
			Op:     opName(fullArgs),
			Args:   fullArgs,
			Stderr: strings.TrimSpace(string(stderr)),
			Err:    err,
		}
	}
	return string(stdout), nil
}

// opName skips the serial selector so errors name the adb verb.
func opName(args []string) string {
	if len(args) >= 2 && args[0] == "-s" {
		args = args[2:]
	}
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// Serial returns the device serial used by this runner.
func (r *Runner) Serial() string {
	return r.serial
}

// AdbPath returns the path to the adb binary.
func (r *Runner) AdbPath() string {
	return r.adbPath
}

// Error represents an adb command failure.
type Error struct {
	Op     string
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("adb %s failed: %v", e.Op, e.Err)
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Version runs "adb version" and returns the protocol version string
// (e.g. "1.0.41").
func (r *Runner) Version() (string, error) {
	out, err := r.exec(context.Background(), []string{"version"})
	if err != nil {
		return "", errors.Wrap(err, "adb version")
	}

	// First line is like "Android Debug Bridge version 1.0.41".
	first := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	const prefix = "Android Debug Bridge version "
	if !strings.HasPrefix(first, prefix) {
		return "", errors.Errorf("unexpected adb version output: %q", first)
	}
	return strings.TrimPrefix(first, prefix), nil
}

// WaitForDevice blocks until the device is attached or the timeout expires.
func (r *Runner) WaitForDevice(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := r.RunContext(ctx, "wait-for-device"); err != nil {
		return errors.Wrapf(err, "device not ready after %v", timeout)
	}
	return nil
}

type localTransport struct{}

func (localTransport) Run(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ExitCode returns the exit status carried by err, for both local and SSH
// transports.
func ExitCode(err error) (int, bool) {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), true
	}
	var se *ssh.ExitError
	if errors.As(err, &se) {
		return se.ExitStatus(), true
	}
	return 0, false
}
