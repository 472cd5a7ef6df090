package hibercheck

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PermissionState is the result of a permission check.
type PermissionState int

// Permission states, as returned by PackageManager.checkPermission.
const (
	PermissionGranted PermissionState = 0
	PermissionDenied  PermissionState = -1
)

var permissionNames = map[PermissionState]string{
	PermissionGranted: "PERMISSION_GRANTED",
	PermissionDenied:  "PERMISSION_DENIED",
}

func (s PermissionState) String() string {
	if name, ok := permissionNames[s]; ok {
		return name
	}
	return strconv.Itoa(int(s))
}

// ErrPackageNotFound is returned when dumpsys does not know the package.
var ErrPackageNotFound = errors.New("package not found")

// parsePermissionState finds perm in "dumpsys package <pkg>" output. The
// first occurrence wins, which is user 0 on multi-user devices. A permission
// the package does not hold is denied.
func parsePermissionState(dumpsys, pkg, perm string) (PermissionState, error) {
	if strings.Contains(dumpsys, "Unable to find package: "+pkg) {
		return PermissionDenied, errors.Wrap(ErrPackageNotFound, pkg)
	}

	prefix := perm + ": "
	sc := bufio.NewScanner(strings.NewReader(dumpsys))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		rest := strings.TrimPrefix(line, prefix)
		switch {
		case strings.HasPrefix(rest, "granted=true"):
			return PermissionGranted, nil
		case strings.HasPrefix(rest, "granted=false"):
			return PermissionDenied, nil
		}
	}
	if err := sc.Err(); err != nil {
		return PermissionDenied, errors.Wrap(err, "scanning dumpsys output")
	}
	return PermissionDenied, nil
}
