package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/anmitsu/go-shlex"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/redfish/deploy/util/funcopt"
)

type (
	T struct {
		name            string
		args            []string
		log             *zerolog.Logger
		logLevel        zerolog.Level
		commandLogLevel zerolog.Level
		stdoutLogLevel  zerolog.Level
		stderrLogLevel  zerolog.Level
		bufferStdout    bool
		bufferStderr    bool
		cwd             string
		env             []string
		ctx             context.Context
		okExitCodes     []int
		onStdoutLine    func(string)
		onStderrLine    func(string)

		cmd           *exec.Cmd
		pid           int
		commandString string
		readers       sync.WaitGroup
		goroutine     []func()
		stdout        []byte
		stderr        []byte
		started       bool // Prevent relaunch
		waited        bool // Prevent relaunch
	}

	// ErrExitCode is returned by Wait and Run when the command exited with
	// a code not in the success codes.
	ErrExitCode struct {
		exitCode     int
		successCodes []int
	}
)

var (
	ErrAlreadyStarted = errors.New("command: already started")
	ErrAlreadyWaited  = errors.New("command: already waited")
)

func New(opts ...funcopt.O) *T {
	t := &T{
		stdoutLogLevel:  zerolog.Disabled,
		stderrLogLevel:  zerolog.Disabled,
		logLevel:        zerolog.DebugLevel,
		commandLogLevel: zerolog.DebugLevel,
		okExitCodes:     []int{0},
	}
	_ = funcopt.Apply(t, opts...)
	return t
}

// NewFromString returns a command built from the string s, split with
// CmdArgsFromString. The options are applied after the name and args are
// set, so they can't be overridden by WithName or WithArgs.
func NewFromString(s string, opts ...funcopt.O) (*T, error) {
	argv, err := CmdArgsFromString(s)
	if err != nil {
		return nil, err
	}
	opts = append([]funcopt.O{WithName(argv[0]), WithArgs(argv[1:])}, opts...)
	return New(opts...), nil
}

func (t *T) String() string {
	if len(t.commandString) != 0 {
		return t.commandString
	}
	t.commandString = t.toString()
	return t.commandString
}

func (t *T) Run() error {
	if err := t.Start(); err != nil {
		return err
	}
	return t.Wait()
}

// Stdout returns stdout results of command (meaningful after Wait() or Run()),
// command created without funcopt WithBufferedStdout() return nil
func (t *T) Stdout() []byte {
	return stripFirstByte(t.stdout)
}

// Stderr returns stderr results of command (meaningful after Wait() or Run())
// command created without funcopt WithBufferedStderr() return nil
func (t *T) Stderr() []byte {
	return stripFirstByte(t.stderr)
}

// Start prepares the command, then calls the underlying cmd.Start().
// It takes care of logging, context cancellation, stdout and stderr watchers.
func (t *T) Start() (err error) {
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true
	if t.name == "" {
		return errors.New("command: empty command name")
	}
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	t.ctx = ctx
	cmd := exec.CommandContext(ctx, t.name, t.args...)
	t.cmd = cmd
	t.update()
	log := t.log
	if t.stdoutLogLevel != zerolog.Disabled || t.bufferStdout || t.onStdoutLine != nil {
		var r io.ReadCloser
		if r, err = cmd.StdoutPipe(); err != nil {
			t.logErr(err, "command.Start() -> StdoutPipe()")
			return err
		}
		t.watch(r, "out", t.stdoutLogLevel, t.onStdoutLine, t.bufferStdout, &t.stdout)
	}
	if t.stderrLogLevel != zerolog.Disabled || t.bufferStderr || t.onStderrLine != nil {
		var r io.ReadCloser
		if r, err = cmd.StderrPipe(); err != nil {
			t.logErr(err, "command.Start() -> StderrPipe()")
			return err
		}
		t.watch(r, "err", t.stderrLogLevel, t.onStderrLine, t.bufferStderr, &t.stderr)
	}
	if log != nil && t.commandLogLevel != zerolog.Disabled {
		log.WithLevel(t.commandLogLevel).Str("cmd", cmd.String()).Msg("running")
	}
	if err = cmd.Start(); err != nil {
		t.logErr(err, "running")
		return err
	}
	if cmd.Process != nil {
		t.pid = cmd.Process.Pid
	}
	t.readers.Add(len(t.goroutine))
	for _, f := range t.goroutine {
		go f()
	}
	return nil
}

// watch prepares the scanner goroutine of a stdout or stderr pipe. The
// goroutines are started by Start once the process is running.
func (t *T) watch(r io.Reader, key string, level zerolog.Level, onLine func(string), buffer bool, b *[]byte) {
	t.goroutine = append(t.goroutine, func() {
		defer t.readers.Done()
		s := bufio.NewScanner(r)
		for s.Scan() {
			if t.log != nil && level != zerolog.Disabled {
				t.log.WithLevel(level).Str(key, s.Text()).Int("pid", t.pid).Send()
			}
			if onLine != nil {
				onLine(s.Text())
			}
			if buffer {
				*b = append(*b, append([]byte("\n"), s.Bytes()...)...)
			}
		}
	})
}

func (t *T) ExitCode() int {
	if t.cmd == nil || t.cmd.ProcessState == nil {
		return -1
	}
	return t.cmd.ProcessState.ExitCode()
}

func (t *T) Wait() error {
	if !t.started {
		return errors.New("command: not started")
	}
	if t.waited {
		return ErrAlreadyWaited
	}
	t.waited = true
	// the pipes must be drained before cmd.Wait() closes them
	t.readers.Wait()
	err := t.cmd.Wait()
	if ctxErr := t.ctx.Err(); ctxErr != nil {
		t.logErr(ctxErr, "cmd.Wait()")
		return errors.Wrapf(ctxErr, "%s", t)
	}
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return t.checkExitCode(exitError.ExitCode())
		}
		t.logErr(err, "cmd.Wait()")
		return err
	}
	return t.checkExitCode(t.ExitCode())
}

func (t *T) checkExitCode(exitCode int) error {
	if len(t.okExitCodes) == 0 {
		t.logExitCode(exitCode, nil)
		return nil
	}
	for _, validCode := range t.okExitCodes {
		if exitCode == validCode {
			t.logExitCode(exitCode, nil)
			return nil
		}
	}
	err := &ErrExitCode{exitCode: exitCode, successCodes: t.okExitCodes}
	t.logExitCode(exitCode, err)
	return err
}

func (e *ErrExitCode) Error() string {
	return fmt.Sprintf("command exit code %v not in success codes: %v", e.exitCode, e.successCodes)
}

// ExitCode returns the exit code of the failed command.
func (e *ErrExitCode) ExitCode() int {
	return e.exitCode
}

func (t *T) logExitCode(exitCode int, err error) {
	if t.log == nil {
		return
	}
	t.log.WithLevel(t.logLevel).Err(err).Str("cmd", t.cmd.String()).Int("exitCode", exitCode).Send()
}

func (t *T) logErr(err error, msg string) {
	if t.log == nil {
		return
	}
	t.log.WithLevel(t.logLevel).Err(err).Str("cmd", t.cmd.String()).Msg(msg)
}

// update t.cmd with options
func (t *T) update() {
	cmd := t.cmd
	if cmd == nil {
		panic("command.update() called with cmd nil")
	}
	if t.cwd != "" {
		cmd.Dir = t.cwd
	}
	if len(t.env) > 0 {
		cmd.Env = append(cmd.Environ(), t.env...)
	}
	t.commandString = t.toString()
}

func commandArgsFromString(s string) ([]string, error) {
	var needShell bool
	if len(s) == 0 {
		return nil, errors.New("can not create command from empty string")
	}
	switch {
	case strings.Contains(s, "|"):
		needShell = true
	case strings.Contains(s, "&&"):
		needShell = true
	case strings.Contains(s, ";"):
		needShell = true
	case strings.Contains(s, ">"):
		needShell = true
	}
	if needShell {
		return []string{"/bin/sh", "-c", s}, nil
	}
	sSplit, err := shlex.Split(s, true)
	if err != nil {
		return nil, err
	}
	if len(sSplit) == 0 {
		return nil, errors.New("unexpected empty command args from string")
	}
	return sSplit, nil
}

// CmdArgsFromString returns args for exec.Command from a string command 's'
// When string command 's' contains multiple commands,
//
//	exec.Command("/bin/sh", "-c", s)
//
// else
//
//	exec.Command from shlex.Split(s)
func CmdArgsFromString(s string) ([]string, error) {
	return commandArgsFromString(s)
}

func (t *T) toString() string {
	if len(t.args) == 0 {
		return t.name
	}
	var args []string
	for _, arg := range t.args {
		args = append(args, fmt.Sprintf("%q", arg))
	}
	return fmt.Sprintf("%v %s", t.name, strings.Join(args, " "))
}

func stripFirstByte(b []byte) []byte {
	if len(b) > 1 {
		return b[1:]
	}
	return b
}
