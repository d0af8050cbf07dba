// Package cmd defines the redfish status command line and options.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/redfish/deploy/core/clusterconf"
	"github.com/redfish/deploy/core/colorstatus"
	"github.com/redfish/deploy/core/reporter"
	"github.com/redfish/deploy/core/rfdaemon"
	"github.com/redfish/deploy/util/logging"
)

type (
	// Options are the status command options.
	Options struct {
		// ClusterConfig is the cluster configuration file path.
		ClusterConfig string

		// Kill9 is accepted for compatibility with the other deploy
		// commands sharing the option set. The status command ignores it.
		Kill9 bool

		// Type restricts the probes to a daemon type.
		Type string

		// Timeout bounds each daemon probe. Zero disables the timeout.
		Timeout time.Duration

		// Color is the output colorization mode: yes, no or auto.
		Color string

		// Debug lowers the log level to debug.
		Debug bool

		// LogFile, if set, is a rolling log file receiving a copy of the
		// logs.
		LogFile string

		// ConfigFile is the file holding the option defaults.
		ConfigFile string
	}
)

const (
	envPrefix      = "REDFISH"
	DefaultTimeout = 30 * time.Second
)

var (
	ErrMissingClusterConfig = errors.New("you must give a Redfish cluster configuration file")
)

// NewRootCmd returns the status command, storing the parsed flags in opts.
func NewRootCmd(opts *Options) *cobra.Command {
	var log zerolog.Logger
	c := &cobra.Command{
		Use:           "status",
		Short:         "Print the running state of the daemons of a redfish cluster.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			if err := initConfig(c.Flags(), opts.ConfigFile); err != nil {
				return err
			}
			colorstatus.SetColor(opts.Color, asFile(c.OutOrStdout()))
			l, err := configureLogging(*opts, c.ErrOrStderr())
			log = l
			if err != nil {
				log.Warn().Err(err).Msg("log file disabled")
			}
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error {
			return run(c.Context(), *opts, c.OutOrStdout(), log)
		},
	}
	flags := c.Flags()
	flags.StringVarP(&opts.ClusterConfig, "cluster-config", "c", "", "the redfish cluster configuration file (json, yaml or ini)")
	flags.BoolVarP(&opts.Kill9, "kill-9", "9", false, "accepted for compatibility, ignored by status")
	flags.StringVarP(&opts.Type, "type", "t", "", "only probe the daemons of this type: mds|osd")
	flags.DurationVar(&opts.Timeout, "timeout", DefaultTimeout, "maximum duration of a daemon probe, 0 to disable")
	flags.StringVar(&opts.Color, "color", "auto", "output colorization yes|no|auto")
	flags.BoolVar(&opts.Debug, "debug", false, "show debug log")
	flags.StringVar(&opts.LogFile, "log-file", "", "also log to this rolling file")
	flags.StringVar(&opts.ConfigFile, "config", "", "options defaults file (default \"$HOME/.redfish.yaml\")")
	return c
}

// initConfig sets the value of the flags not set on the command line from
// the REDFISH_<FLAG> environment variables, then from the config file.
func initConfig(flags *pflag.FlagSet, configFile string) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config file %s", configFile)
		}
	} else if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".redfish")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return errors.Wrap(err, "read config file")
			}
		}
	}
	var errs []string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "config" || !v.IsSet(f.Name) {
			return
		}
		if err := flags.Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", f.Name, err))
		}
	})
	if len(errs) > 0 {
		return errors.Errorf("invalid option defaults: %s", strings.Join(errs, ", "))
	}
	return nil
}

func configureLogging(opts Options, stderr io.Writer) (zerolog.Logger, error) {
	if opts.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	config := logging.Config{
		WithConsoleLog: true,
		WithColor:      !color.NoColor,
		ConsoleOut:     stderr,
	}
	if opts.LogFile != "" {
		config.WithLogFile = true
		config.Directory = filepath.Dir(opts.LogFile)
		config.Filename = filepath.Base(opts.LogFile)
		config.MaxSize = 5
		config.MaxBackups = 1
		config.MaxAge = 30
	}
	l, err := logging.Configure(config)
	return l.With().Str("sid", uuid.New().String()).Logger(), err
}

func run(ctx context.Context, opts Options, out io.Writer, log zerolog.Logger) error {
	if opts.ClusterConfig == "" {
		return ErrMissingClusterConfig
	}
	var filter clusterconf.Filter
	if opts.Type != "" {
		typ, err := clusterconf.ParseType(opts.Type)
		if err != nil {
			return err
		}
		filter = clusterconf.TypeFilter(typ)
	}
	conf, err := clusterconf.LoadFile(opts.ClusterConfig)
	if err != nil {
		return err
	}
	if opts.Kill9 {
		log.Debug().Msg("--kill-9 is ignored by the status command")
	}
	log.Debug().Str("cluster_config", opts.ClusterConfig).Int("daemons", conf.Len()).Msg("cluster configuration loaded")
	daemons := rfdaemon.FromConf(conf, filter, rfdaemon.Options{
		Log:            &log,
		ConnectTimeout: opts.Timeout,
	})
	r := reporter.T{
		Out:     out,
		Log:     log,
		Timeout: opts.Timeout,
	}
	if _, err := r.Run(ctx, daemons); err != nil {
		return errors.Wrap(err, "status interrupted")
	}
	return nil
}

func asFile(w io.Writer) *os.File {
	if f, ok := w.(*os.File); ok {
		return f
	}
	return nil
}

// ExecuteArgs runs the status command with the arguments args and returns
// the process exit code. An interrupt signal stops the run before the next
// status line and exits 1.
func ExecuteArgs(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return executeContext(ctx, args, stdout, stderr)
}

func executeContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := NewRootCmd(&Options{})
	c.SetArgs(args)
	c.SetOut(stdout)
	c.SetErr(stderr)
	if err := c.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

// Execute runs the status command with the process arguments and exits.
// This is called by main.main().
func Execute() {
	os.Exit(ExecuteArgs(os.Args[1:], os.Stdout, os.Stderr))
}
