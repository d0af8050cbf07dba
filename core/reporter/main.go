// Package reporter prints the liveness of the daemons of a cluster, one
// daemon after the other.
package reporter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/redfish/deploy/core/colorstatus"
	"github.com/redfish/deploy/core/probe"
	"github.com/redfish/deploy/core/rfdaemon"
	"github.com/redfish/deploy/core/status"
)

type (
	// T is the status reporter.
	T struct {
		// Out receives the progress and status lines.
		Out io.Writer

		// Log receives the probe errors details.
		Log zerolog.Logger

		// Timeout bounds each probe. Zero means no timeout.
		Timeout time.Duration
	}

	// Summary counts the probe outcomes of a run.
	Summary struct {
		Running    int
		NotRunning int
		Failed     int
	}
)

// Total returns the number of probed daemons.
func (t Summary) Total() int {
	return t.Running + t.NotRunning + t.Failed
}

// Run probes the daemons in order and prints, for each, a progress block
// and a status line. Probe failures never interrupt the run. When ctx is
// done, Run stops without printing a status line for the interrupted
// probe and returns ctx.Err().
func (t T) Run(ctx context.Context, daemons []rfdaemon.Descriptor) (Summary, error) {
	var summary Summary
	for i, d := range daemons {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		n := i + 1
		fmt.Fprintf(t.Out, "processing daemon %d\n", n)
		fmt.Fprintln(t.Out, d.Conf.String())
		log := t.Log.With().Int("daemon", n).Str("name", d.Conf.Name()).Str("host", d.Conf.Host).Logger()
		log.Debug().Str("cmd", d.PidFileCommand()).Msg("probe")
		r := probe.Run(ctx, d, t.Timeout)
		switch r.Status {
		case status.Running:
			summary.Running++
			fmt.Fprintf(t.Out, "daemon %d is %s as process %d\n", n, colorstatus.Sprint(r.Status, "running"), r.Pid)
		case status.NotRunning:
			summary.NotRunning++
			log.Debug().Err(r.Err).Msg("pid file read failed")
			fmt.Fprintf(t.Out, "daemon %d is %s.\n", n, colorstatus.Sprint(r.Status, "NOT running"))
		default:
			if err := ctx.Err(); err != nil {
				log.Debug().Err(r.Err).Msg("probe interrupted")
				return summary, err
			}
			summary.Failed++
			log.Warn().Err(r.Err).Msg("probe failed")
			fmt.Fprintf(t.Out, "daemon %d is %s.\n", n, colorstatus.Sprint(r.Status, "NOT running"))
		}
	}
	t.Log.Debug().
		Int("running", summary.Running).
		Int("not_running", summary.NotRunning).
		Int("failed", summary.Failed).
		Msg("status done")
	return summary, nil
}
