// Package rfdaemon exposes the daemons of a redfish cluster configuration
// as descriptors able to run commands in the daemon execution context.
package rfdaemon

import (
	"context"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"

	"github.com/redfish/deploy/core/clusterconf"
	"github.com/redfish/deploy/util/funcopt"
	"github.com/redfish/deploy/util/hostname"
	"github.com/redfish/deploy/util/sshnode"
)

type (
	// Descriptor is a daemon configuration and the executor of its
	// execution context.
	Descriptor struct {
		Conf     clusterconf.Daemon
		Executor Executor
	}

	// Options are the settings used to build the executors.
	Options struct {
		Log *zerolog.Logger

		// ConnectTimeout bounds the ssh connection establishment.
		ConnectTimeout time.Duration
	}
)

// FromConf returns the descriptors of the daemons selected by filter, in
// the configuration enumeration order.
func FromConf(conf *clusterconf.T, filter clusterconf.Filter, opts Options) []Descriptor {
	daemons := conf.Daemons(filter)
	l := make([]Descriptor, len(daemons))
	for i, d := range daemons {
		l[i] = Descriptor{
			Conf:     d,
			Executor: newExecutor(conf.Conf, d, opts),
		}
	}
	return l
}

func newExecutor(settings clusterconf.Settings, d clusterconf.Daemon, opts Options) Executor {
	if hostname.IsLocal(d.Host) {
		return LocalExecutor{Log: opts.Log}
	}
	user := d.SSHUser
	if user == "" {
		user = settings.SSHUser
	}
	port := d.SSHPort
	if port == 0 {
		port = settings.SSHPort
	}
	sshOpts := []funcopt.O{
		sshnode.WithUser(user),
		sshnode.WithPort(port),
		sshnode.WithKnownHostsFile(settings.KnownHosts),
	}
	if settings.SSHKey != "" {
		sshOpts = append(sshOpts, sshnode.WithKeyFiles(settings.SSHKey))
	}
	if opts.ConnectTimeout > 0 {
		sshOpts = append(sshOpts, sshnode.WithTimeout(opts.ConnectTimeout))
	}
	return SSHExecutor{
		Host: d.Host,
		Node: sshnode.New(sshOpts...),
		Log:  opts.Log,
	}
}

// PidFile returns the path of the daemon pid file.
func (t Descriptor) PidFile() string {
	return t.Conf.PidFile()
}

// PidFileCommand returns the command printing the daemon pid file content.
func (t Descriptor) PidFileCommand() string {
	return "cat " + shellquote.Join(t.PidFile())
}

// RunWithOutput runs the command s in the daemon execution context and
// returns its stdout.
func (t Descriptor) RunWithOutput(ctx context.Context, s string) ([]byte, error) {
	return t.Executor.RunWithOutput(ctx, s)
}

// IsLocal returns true if the daemon commands are executed in the local
// shell.
func (t Descriptor) IsLocal() bool {
	_, ok := t.Executor.(LocalExecutor)
	return ok
}
