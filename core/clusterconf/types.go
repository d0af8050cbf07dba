// Package clusterconf loads the redfish cluster configuration file and
// enumerates the daemons it describes.
//
// The configuration is a JSON, YAML or INI document. In JSON and YAML, the
// daemons are listed in the "mds" and "osd" arrays, and the optional "conf"
// object holds the cluster-wide settings:
//
//	{
//	  "conf": {"ssh_user": "redfish"},
//	  "mds": [{"host": "node1", "base_dir": "/var/redfish/mds0"}],
//	  "osd": [{"host": "node2", "base_dir": "/var/redfish/osd0"}]
//	}
//
// In INI, each daemon is a section named <type>#<n>, and the cluster-wide
// settings are in the [conf] section.
package clusterconf

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

type (
	// Type is the daemon type.
	Type string

	// T is a loaded and validated cluster configuration.
	T struct {
		Conf    Settings
		daemons []Daemon
	}

	// Settings are the cluster-wide settings, used as defaults by the
	// daemons.
	Settings struct {
		SSHUser    string `json:"ssh_user,omitempty"`
		SSHPort    int    `json:"ssh_port,omitempty"`
		SSHKey     string `json:"ssh_key,omitempty"`
		KnownHosts string `json:"known_hosts,omitempty"`
	}

	// Daemon is the configuration of one daemon.
	Daemon struct {
		Type  Type `json:"-"`
		Index int  `json:"-"`

		// Host is the node executing the daemon. The local shell is used
		// for the local node, a ssh session otherwise.
		Host string `json:"host"`

		// BaseDir is the daemon base directory.
		BaseDir string `json:"base_dir"`

		// PidFileTemplate is the pid file path. ${base_dir} is expanded.
		// Defaults to <base_dir>/pid.
		PidFileTemplate string `json:"pid_file,omitempty"`

		SSHUser string `json:"ssh_user,omitempty"`
		SSHPort int    `json:"ssh_port,omitempty"`

		// Raw is the daemon configuration object as found in the cluster
		// configuration, compacted.
		Raw json.RawMessage `json:"-"`
	}

	// Filter selects the daemons to enumerate. A nil filter selects all
	// daemons.
	Filter func(Daemon) bool
)

const (
	MDS Type = "mds"
	OSD Type = "osd"
)

// Types is the daemon types in enumeration order.
var Types = []Type{MDS, OSD}

func (t Type) IsValid() bool {
	for _, s := range Types {
		if s == t {
			return true
		}
	}
	return false
}

// ParseType returns the Type named s, or an error if s is not a daemon type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(s))
	if !t.IsValid() {
		return "", &ValidationError{Errs: []string{"unknown daemon type " + s}}
	}
	return t, nil
}

// TypeFilter returns a Filter selecting the daemons of the types l.
func TypeFilter(l ...Type) Filter {
	return func(d Daemon) bool {
		for _, t := range l {
			if d.Type == t {
				return true
			}
		}
		return false
	}
}

// Name returns the daemon identifier in the cluster, like "mds#0".
func (d Daemon) Name() string {
	return string(d.Type) + "#" + strconv.Itoa(d.Index)
}

// PidFile returns the path of the daemon pid file.
func (d Daemon) PidFile() string {
	if d.PidFileTemplate == "" {
		return filepath.Join(d.BaseDir, "pid")
	}
	return strings.ReplaceAll(d.PidFileTemplate, "${base_dir}", d.BaseDir)
}

// String returns the raw daemon configuration.
func (d Daemon) String() string {
	return string(d.Raw)
}

// Daemons returns the daemons selected by filter, ordered by type then by
// position in the configuration.
func (t *T) Daemons(filter Filter) []Daemon {
	l := make([]Daemon, 0, len(t.daemons))
	for _, d := range t.daemons {
		if filter != nil && !filter(d) {
			continue
		}
		l = append(l, d)
	}
	return l
}

// Len returns the number of configured daemons.
func (t *T) Len() int {
	return len(t.daemons)
}
