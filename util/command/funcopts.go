package command

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/redfish/deploy/util/funcopt"
)

func WithName(name string) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.name = name
		return nil
	})
}

func WithArgs(args []string) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.args = args
		return nil
	})
}

func WithVarArgs(args ...string) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.args = args
		return nil
	})
}

func WithLogger(l *zerolog.Logger) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.log = l
		return nil
	})
}

// WithContext sets the context passed to exec.CommandContext. The process
// is killed when the context is done, and Wait then returns the context
// error.
func WithContext(ctx context.Context) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.ctx = ctx
		return nil
	})
}

// WithOkExitCodes sets the exit codes considered successful. An empty list
// accepts any exit code.
func WithOkExitCodes(codes ...int) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.okExitCodes = codes
		return nil
	})
}

func WithLogLevel(l zerolog.Level) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.logLevel = l
		return nil
	})
}

func WithCommandLogLevel(l zerolog.Level) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.commandLogLevel = l
		return nil
	})
}

func WithStdoutLogLevel(l zerolog.Level) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.stdoutLogLevel = l
		return nil
	})
}

func WithStderrLogLevel(l zerolog.Level) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.stderrLogLevel = l
		return nil
	})
}

func WithBufferedStdout() funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.bufferStdout = true
		return nil
	})
}

func WithBufferedStderr() funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.bufferStderr = true
		return nil
	})
}

func WithCWD(cwd string) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.cwd = cwd
		return nil
	})
}

func WithEnv(env []string) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.env = env
		return nil
	})
}

func WithOnStdoutLine(f func(string)) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.onStdoutLine = f
		return nil
	})
}

func WithOnStderrLine(f func(string)) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.onStderrLine = f
		return nil
	})
}
