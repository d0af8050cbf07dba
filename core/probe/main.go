// Package probe reads the pid file of a daemon to decide its liveness.
package probe

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/redfish/deploy/core/rfdaemon"
	"github.com/redfish/deploy/core/status"
)

type (
	// Result is the outcome of a daemon probe.
	Result struct {
		Status status.T

		// Pid is the daemon process id, set when Status is Running.
		Pid int

		// Err is the reason of a NotRunning or Undef status.
		Err error
	}

	// Descriptor is the daemon interface used by Run.
	Descriptor interface {
		PidFileCommand() string
		RunWithOutput(ctx context.Context, s string) ([]byte, error)
	}
)

var (
	// ErrInvalidPid is the probe error of a pid file content not parsable
	// as a process id.
	ErrInvalidPid = errors.New("invalid pid file content")

	_ Descriptor = rfdaemon.Descriptor{}
)

// Run reads the pid file of the daemon d. A zero timeout disables the
// probe deadline, ctx still applies.
func Run(ctx context.Context, d Descriptor, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	b, err := d.RunWithOutput(ctx, d.PidFileCommand())
	switch {
	case err == nil:
	case rfdaemon.IsExitError(err):
		return Result{Status: status.NotRunning, Err: err}
	default:
		return Result{Status: status.Undef, Err: err}
	}
	pid, err := ParsePid(b)
	if err != nil {
		return Result{Status: status.Undef, Err: err}
	}
	return Result{Status: status.Running, Pid: pid}
}

// ParsePid returns the process id found in the pid file content b.
func ParsePid(b []byte) (int, error) {
	s := strings.TrimSpace(string(b))
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, errors.Wrapf(ErrInvalidPid, "%q", s)
	}
	return pid, nil
}
