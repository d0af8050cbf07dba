package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the configuration of the zerolog logger and writers
type Config struct {
	// WithConsoleLog enables console logging
	WithConsoleLog bool

	// WithColor enables console logging coloring
	WithColor bool

	// ConsoleOut is the console writer destination. Defaults to os.Stderr.
	ConsoleOut io.Writer

	// WithLogFile makes the framework log to a file
	// the fields below can be skipped if this value is false!
	WithLogFile bool

	// Directory to log to to when filelogging is enabled
	Directory string

	// Filename is the name of the logfile which will be placed inside the directory
	Filename string

	// MaxSize the max size in MB of the logfile before it's rolled
	MaxSize int

	// MaxBackups the max number of rolled files to keep
	MaxBackups int

	// MaxAge the max age in days to keep a logfile
	MaxAge int
}

// Logger is the redfish specific zerolog logger
type Logger struct {
	*zerolog.Logger
}

const (
	TimeFormat = "15:04:05.000"
)

// Configure sets up the logging framework. A log file that can't be set up
// is reported in the returned error, the returned logger is usable anyway.
func Configure(config Config) (*Logger, error) {
	var (
		writers []io.Writer
		err     error
	)
	if config.WithConsoleLog {
		out := config.ConsoleOut
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    !config.WithColor,
			TimeFormat: TimeFormat,
		})
	}
	if config.WithLogFile {
		var fileWriter io.Writer
		if fileWriter, err = newRollingFile(config); err == nil {
			writers = append(writers, fileWriter)
		}
	}
	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}
	logger := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{Logger: &logger}, err
}

func newRollingFile(config Config) (io.Writer, error) {
	if err := os.MkdirAll(config.Directory, 0744); err != nil {
		return nil, errors.Wrapf(err, "can't create log directory %s", config.Directory)
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(config.Directory, config.Filename),
		MaxBackups: config.MaxBackups, // files
		MaxSize:    config.MaxSize,    // megabytes
		MaxAge:     config.MaxAge,     // days
	}, nil
}
