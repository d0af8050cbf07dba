package rfdaemon

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/redfish/deploy/util/command"
	"github.com/redfish/deploy/util/funcopt"
	"github.com/redfish/deploy/util/sshnode"
)

type (
	// Executor runs a command string in a daemon execution context and
	// returns the captured stdout. A command that ran and exited non-zero
	// returns an error satisfying IsExitError.
	Executor interface {
		RunWithOutput(ctx context.Context, s string) ([]byte, error)
	}

	// LocalExecutor runs the commands in the local shell.
	LocalExecutor struct {
		Log *zerolog.Logger
	}

	// SSHExecutor runs the commands in a ssh session opened on Host.
	SSHExecutor struct {
		Host string
		Node *sshnode.T
		Log  *zerolog.Logger
	}
)

func (t LocalExecutor) RunWithOutput(ctx context.Context, s string) ([]byte, error) {
	opts := []funcopt.O{
		command.WithContext(ctx),
		command.WithBufferedStdout(),
	}
	if t.Log != nil {
		opts = append(opts,
			command.WithLogger(t.Log),
			command.WithStderrLogLevel(zerolog.DebugLevel),
		)
	}
	cmd, err := command.NewFromString(s, opts...)
	if err != nil {
		return nil, err
	}
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return cmd.Stdout(), nil
}

func (t SSHExecutor) RunWithOutput(ctx context.Context, s string) ([]byte, error) {
	if t.Log != nil {
		t.Log.Debug().Str("host", t.Host).Str("cmd", s).Msg("ssh run")
	}
	client, err := t.Node.NewClient(ctx, t.Host)
	if err != nil {
		return nil, errors.Wrapf(err, "ssh %s", t.Host)
	}
	defer client.Close()
	b, err := sshnode.Run(ctx, client, s)
	if err != nil {
		return nil, errors.Wrapf(err, "ssh %s", t.Host)
	}
	return b, nil
}

// IsExitError returns true if err reports a command that ran and exited
// with a non-zero code.
func IsExitError(err error) bool {
	_, ok := ExitCode(err)
	return ok
}

// ExitCode returns the exit code of the command that failed with err.
func ExitCode(err error) (int, bool) {
	var localErr *command.ErrExitCode
	if errors.As(err, &localErr) {
		return localErr.ExitCode(), true
	}
	var sshErr *ssh.ExitError
	if errors.As(err, &sshErr) {
		return sshErr.ExitStatus(), true
	}
	return 0, false
}
