package clusterconf

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/redfish/deploy/util/hostname"
)

// ValidationError lists the violations found in a cluster configuration.
type ValidationError struct {
	Errs []string
}

func (e *ValidationError) Error() string {
	return "invalid cluster configuration: " + strings.Join(e.Errs, "; ")
}

// Validate verifies the required keys are set and the values are usable.
// All violations are reported in a single *ValidationError.
func (t *T) Validate() error {
	var errs []string
	add := func(name, format string, args ...interface{}) {
		errs = append(errs, name+": "+fmt.Sprintf(format, args...))
	}
	if !validPort(t.Conf.SSHPort) {
		add("conf", "invalid ssh_port %d", t.Conf.SSHPort)
	}
	for _, d := range t.daemons {
		name := d.Name()
		switch {
		case d.Host == "":
			add(name, "host is required")
		case !hostname.IsValidHost(d.Host):
			add(name, "invalid host %q", d.Host)
		}
		switch {
		case d.BaseDir == "":
			add(name, "base_dir is required")
		case !filepath.IsAbs(d.BaseDir):
			add(name, "base_dir %q is not an absolute path", d.BaseDir)
		}
		if d.PidFileTemplate != "" && d.BaseDir != "" && !filepath.IsAbs(d.PidFile()) {
			add(name, "pid_file %q is not an absolute path", d.PidFileTemplate)
		}
		if !validPort(d.SSHPort) {
			add(name, "invalid ssh_port %d", d.SSHPort)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errs: errs}
	}
	return nil
}

// validPort accepts 0 as "use the default port".
func validPort(n int) bool {
	return n >= 0 && n <= 65535
}
