package adbcli

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// ErrServerNotRunning is returned when no local adb server process exists.
var ErrServerNotRunning = errors.New("adb server not running")

// LocalServers returns the adb server processes running on this host.
// A server is an "adb" process that has been daemonized (reparented to init).
func LocalServers() ([]*process.Process, error) {
	ps, err := process.Processes()
	if err != nil {
		return nil, errors.Wrap(err, "listing processes")
	}

	var servers []*process.Process
	for _, p := range ps {
		if name, err := p.Name(); err != nil || name != "adb" {
			continue
		}
		if ppid, err := p.Ppid(); err != nil || ppid != 1 {
			continue
		}
		servers = append(servers, p)
	}
	return servers, nil
}

// KillLocalServer kills every local adb server and waits for each to exit.
// adb kill-server hangs when the server is wedged, so the process is sent
// SIGKILL directly.
func KillLocalServer(timeout time.Duration) error {
	servers, err := LocalServers()
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		return ErrServerNotRunning
	}

	for _, p := range servers {
		if err := unix.Kill(int(p.Pid), unix.SIGKILL); err != nil {
			if err == unix.ESRCH {
				continue
			}
			return errors.Wrapf(err, "killing adb server %d", p.Pid)
		}

		deadline := time.Now().Add(timeout)
		for {
			// A fresh Process is needed since gopsutil caches attributes.
			if _, err := process.NewProcess(p.Pid); err != nil {
				break
			}
			if time.Now().After(deadline) {
				return errors.Errorf("adb server %d still running after %v", p.Pid, timeout)
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
	return nil
}
