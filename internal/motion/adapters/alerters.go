package adapters

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/banshee-data/motionwatch/internal/monitoring"
	"github.com/banshee-data/motionwatch/internal/motion/pipeline"
	"go.uber.org/multierr"
)

// Alert text shown by desktop notifiers.
const (
	AlertTitle   = "Motion Detected!"
	AlertMessage = "Check your motion detector."
)

// LogAlerter writes the alert to the diagnostic log. It is always wired so
// an alert leaves a trace even when no other output is configured.
type LogAlerter struct{}

func (LogAlerter) Alert(context.Context) error {
	monitoring.Logf("[alert] %s %s", AlertTitle, AlertMessage)
	return nil
}

// CommandAlerter runs a shell-free command per alert, for example a sound
// player or notify-send. {title} and {message} in arguments are replaced
// with the alert text.
type CommandAlerter struct {
	Name string
	Args []string
}

// ParseCommandAlerter splits a command line on whitespace.
func ParseCommandAlerter(line string) (*CommandAlerter, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty alert command")
	}
	return &CommandAlerter{Name: fields[0], Args: fields[1:]}, nil
}

func (c *CommandAlerter) Alert(ctx context.Context) error {
	args := make([]string, len(c.Args))
	r := strings.NewReplacer("{title}", AlertTitle, "{message}", AlertMessage)
	for i, a := range c.Args {
		args[i] = r.Replace(a)
	}
	out, err := exec.CommandContext(ctx, c.Name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("alert command %s: %w: %s", c.Name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// MultiAlerter fans one alert out to every sink, in order. All sinks are
// tried; their errors are combined.
type MultiAlerter []pipeline.AlertSink

func (m MultiAlerter) Alert(ctx context.Context) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Alert(ctx))
	}
	return err
}
