// Package status defines the liveness states a daemon probe can report.
package status

// T is the liveness status of a daemon.
type T int

const (
	// Undef is the status of a daemon whose probe failed before any
	// conclusion could be drawn: unreachable node, timeout, garbage in the
	// pid file.
	Undef T = iota

	// Running is the status of a daemon whose pid file was read.
	Running

	// NotRunning is the status of a daemon whose pid file read command ran
	// and failed.
	NotRunning
)

var toString = map[T]string{
	Undef:      "undef",
	Running:    "running",
	NotRunning: "not running",
}

func (t T) String() string {
	if s, ok := toString[t]; ok {
		return s
	}
	return "undef"
}

// IsRunning returns true if the status is Running.
func (t T) IsRunning() bool {
	return t == Running
}
