package hibercheck

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidPolicy is returned when a poll call is given a negative timeout or
// poll interval. The probe is not invoked.
var ErrInvalidPolicy = errors.New("invalid poll policy")

// PollError is returned when a probe did not succeed before the deadline.
// It carries the error from the last probe invocation, not the first.
type PollError struct {
	Message   string
	Condition string
	Timeout   time.Duration
	Attempts  int
	Elapsed   time.Duration
	Last      error
	// Dump is the textual dump of the last fetched UI tree. Only UI searches
	// set it.
	Dump string
}

func (e *PollError) Error() string {
	var b strings.Builder
	if e.Message != "" {
		b.WriteString(e.Message)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "timed out after %v (%d attempts)", e.Timeout, e.Attempts)
	if e.Condition != "" {
		fmt.Fprintf(&b, "\n    waiting for: %s", e.Condition)
	}
	if e.Last != nil {
		fmt.Fprintf(&b, "\n    last error: %v", e.Last)
	}
	if e.Dump != "" {
		b.WriteString("\n    last ui tree:\n")
		b.WriteString(indentLines(e.Dump, "    "))
	}
	return b.String()
}

func (e *PollError) Unwrap() error {
	return e.Last
}

// Eventually invokes probe until it returns a nil error or the timeout
// expires. The first successful value is returned. On timeout it returns a
// *PollError wrapping the error of the last invocation.
//
// probe is always invoked at least once. Between failed attempts Eventually
// sleeps for the poll interval, shortened so that no attempt starts after the
// deadline. It blocks for at most the timeout plus one probe duration.
func Eventually[T any](probe func() (T, error), opts ...PollOption) (T, error) {
	return eventually(DefaultTimeout, DefaultPollInterval, probe, opts)
}

// eventually is Eventually with caller-supplied defaults for the policy.
func eventually[T any](timeout, interval time.Duration, probe func() (T, error), opts []PollOption) (T, error) {
	var zero T

	po, err := resolvePollOptions(timeout, interval, opts)
	if err != nil {
		return zero, err
	}

	start := time.Now()
	deadline := start.Add(po.timeout)
	attempts := 0
	for {
		v, err := probe()
		attempts++
		if err == nil {
			return v, nil
		}

		now := time.Now()
		if !now.Before(deadline) {
			return zero, &PollError{
				Message:  po.message,
				Timeout:  po.timeout,
				Attempts: attempts,
				Elapsed:  now.Sub(start),
				Last:     err,
			}
		}

		wait := po.pollInterval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		time.Sleep(wait)
	}
}

// Poll is Eventually for probes that only report success or failure.
func Poll(probe func() error, opts ...PollOption) error {
	_, err := Eventually(func() (struct{}, error) {
		return struct{}{}, probe()
	}, opts...)
	return err
}

// Require is Eventually for test bodies: on failure it calls t.Fatal with the
// poll diagnostics.
func Require[T any](t testing.TB, probe func() (T, error), opts ...PollOption) T {
	t.Helper()
	v, err := Eventually(probe, opts...)
	if err != nil {
		t.Fatalf("hibercheck: eventually: %v", err)
	}
	return v
}

// resolvePollOptions applies opts over the given defaults.
func resolvePollOptions(timeout, interval time.Duration, opts []PollOption) (pollOptions, error) {
	po := pollOptions{}
	for _, o := range opts {
		o(&po)
	}

	switch {
	case po.timeout < 0:
		return po, errors.Wrapf(ErrInvalidPolicy, "negative timeout: %v", po.timeout)
	case po.pollInterval < 0:
		return po, errors.Wrapf(ErrInvalidPolicy, "negative poll interval: %v", po.pollInterval)
	}

	if po.timeout == 0 {
		po.timeout = timeout
	}
	if po.pollInterval == 0 {
		po.pollInterval = interval
	}
	if po.pollInterval < minPollInterval {
		po.pollInterval = minPollInterval
	}
	return po, nil
}
