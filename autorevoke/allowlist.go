package autorevoke

import (
	"strings"

	"github.com/pkg/errors"
)

const opAutoRevoke = "AUTO_REVOKE_PERMISSIONS_IF_UNUSED"

// An app is exempt from auto-revoke when the op is ignored for it.
const (
	modeAllowlisted    = "ignore"
	modeNotAllowlisted = "allow"
)

// SetAllowlisted exempts pkg from auto-revoke, or removes the exemption.
func (s *Suite) SetAllowlisted(pkg string, allowlisted bool) {
	s.dev.T().Helper()
	mode := modeNotAllowlisted
	if allowlisted {
		mode = modeAllowlisted
	}
	s.dev.ShellOrFatal("appops", "set", pkg, opAutoRevoke, mode)
}

// IsAllowlisted reports whether pkg is exempt from auto-revoke.
func (s *Suite) IsAllowlisted(pkg string) (bool, error) {
	out, err := s.dev.Shell("appops", "get", pkg, opAutoRevoke)
	if err != nil {
		return false, errors.Wrapf(err, "appops get %s", pkg)
	}
	mode, err := parseAppOpMode(out, opAutoRevoke)
	if err != nil {
		return false, err
	}
	return mode == modeAllowlisted, nil
}

// parseAppOpMode extracts the mode of op from "appops get" output, e.g.
// "AUTO_REVOKE_PERMISSIONS_IF_UNUSED: ignore; time=+1m2s ago". An op that was
// never set prints "No operations." and has the default mode.
func parseAppOpMode(out, op string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), op+":")
		if !ok {
			continue
		}
		mode, _, _ := strings.Cut(strings.TrimSpace(rest), ";")
		if mode = strings.TrimSpace(mode); mode == "" {
			return "", errors.Errorf("empty mode for %s in %q", op, line)
		}
		return mode, nil
	}
	if strings.Contains(out, "No operations") {
		return "default", nil
	}
	return "", errors.Errorf("no %s in appops output %q", op, out)
}
