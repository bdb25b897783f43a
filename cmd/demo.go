package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"k8s.io/utils/clock"

	"github.com/babelcloud/screenrec/config"
	"github.com/babelcloud/screenrec/internal/recorder"
	"github.com/babelcloud/screenrec/internal/util"
)

type DemoOptions struct {
	Region  recorder.Region
	NoAudio bool
}

func NewDemoCommand() *cobra.Command {
	opts := &DemoOptions{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the record, pause, resume, stop demo sequence",
		Long: `Prompt for a capture region, then record, pause, resume and stop on a
fixed schedule (8s recording, 5s paused, 3s recording by default; see the
demo.* settings). The prompt repeats until the region is accepted.

When stdin is not a terminal the region must be passed with --width and --height.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ExecuteDemo(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.Region.Width, "width", 0, "Capture width in pixels (skips the prompt)")
	flags.IntVar(&opts.Region.Height, "height", 0, "Capture height in pixels")
	flags.IntVar(&opts.Region.OffsetX, "x", 0, "Horizontal offset of the capture region")
	flags.IntVar(&opts.Region.OffsetY, "y", 0, "Vertical offset of the capture region")
	flags.BoolVar(&opts.NoAudio, "no-audio", false, "Do not record the microphone")

	return cmd
}

func ExecuteDemo(cmd *cobra.Command, opts *DemoOptions) error {
	out := cmd.OutOrStdout()
	banner(out, "Starting")

	cfg := sessionConfig()
	if opts.NoAudio {
		cfg.AudioEnabled = false
	}
	if err := ensureOutputDir(cfg.OutputPath); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session := newSession(clock.RealClock{})

	var next func() (recorder.Region, error)
	interactive := false
	switch {
	case opts.Region.Width > 0 || opts.Region.Height > 0:
		given := opts.Region
		next = func() (recorder.Region, error) { return given, nil }
	case term.IsTerminal(int(os.Stdin.Fd())):
		next = newRegionPrompter(os.Stdin, out).Prompt
		interactive = true
	default:
		return errors.New("stdin is not a terminal; pass the capture region with --width and --height")
	}

	setup := spinningConfigurer{inner: session, out: cmd.ErrOrStderr()}
	if err := configureLoop(ctx, setup, cfg, next, out, interactive); err != nil {
		return err
	}

	record, pause, resume := config.GetDemoDurations()
	return runDemo(ctx, session, clock.RealClock{}, out, demoSchedule{
		Record: record,
		Pause:  pause,
		Resume: resume,
	})
}

type configurer interface {
	Configure(ctx context.Context, cfg recorder.SessionConfig) error
}

// configureLoop asks for a region until Configure accepts it. Only a rejected
// configuration is retried, and only when retry is set.
func configureLoop(ctx context.Context, s configurer, cfg recorder.SessionConfig, next func() (recorder.Region, error), out io.Writer, retry bool) error {
	for {
		region, err := next()
		if err != nil {
			return err
		}
		cfg.Region = region

		err = s.Configure(ctx, cfg)
		if err == nil {
			return nil
		}
		if !retry || !errors.Is(err, recorder.ErrConfig) {
			return fmt.Errorf("failed to configure recorder: %w", err)
		}
		color.New(color.FgYellow).Fprintf(out, "Invalid region: %v\n", err)
	}
}

type demoSchedule struct {
	Record time.Duration
	Pause  time.Duration
	Resume time.Duration
}

// demoSession is the part of recorder.Session the demo drives.
type demoSession interface {
	Start() error
	Pause()
	Resume()
	Stop() error
	Done() <-chan struct{}
}

// runDemo starts s and walks it through the schedule. A session that stops
// on its own cuts the schedule short.
func runDemo(ctx context.Context, s demoSession, c clock.Clock, out io.Writer, sched demoSchedule) error {
	logger := util.GetLogger()

	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start recorder: %w", err)
	}

	steps := []struct {
		wait   time.Duration
		action func()
		name   string
	}{
		{sched.Record, s.Pause, "Pausing"},
		{sched.Pause, s.Resume, "Resuming"},
		{sched.Resume, nil, ""},
	}

	for _, step := range steps {
		select {
		case <-c.After(step.wait):
		case <-s.Done():
			logger.Warn("Recording ended before the demo finished")
			return stopDemo(s, out)
		case <-ctx.Done():
			logger.Info("Demo interrupted")
			return stopDemo(s, out)
		}
		if step.action != nil {
			step.action()
			banner(out, step.name)
		}
	}
	return stopDemo(s, out)
}

func stopDemo(s demoSession, out io.Writer) error {
	err := s.Stop()
	banner(out, "Stopping")
	return err
}

func banner(out io.Writer, verb string) {
	color.New(color.Bold).Fprintf(out, "---- %s ScreenRecorder ----\n", verb)
}
