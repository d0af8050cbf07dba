package colorstatus

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/redfish/deploy/core/status"
)

// SetColor enables or disables the colorization of the outputs. The mode is
// one of "yes", "no" or "auto". In auto mode, the outputs are colorized
// only if f is a terminal.
func SetColor(mode string, f *os.File) {
	switch mode {
	case "yes":
		color.NoColor = false
	case "no":
		color.NoColor = true
	default:
		color.NoColor = f == nil || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	}
}

// Sprint returns s colorized according to the status t.
func Sprint(t status.T, s string) string {
	c := color.New(color.Reset).SprintFunc()
	switch t {
	case status.Running:
		c = color.New(color.FgGreen).SprintFunc()
	case status.NotRunning:
		c = color.New(color.FgRed).SprintFunc()
	case status.Undef:
		c = color.New(color.FgHiYellow).SprintFunc()
	}
	return c(s)
}
