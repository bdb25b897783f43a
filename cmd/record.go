package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/babelcloud/screenrec/config"
	"github.com/babelcloud/screenrec/internal/capture"
	"github.com/babelcloud/screenrec/internal/recorder"
	"github.com/babelcloud/screenrec/internal/util"
)

type RecordOptions struct {
	Region   recorder.Region
	NoAudio  bool
	Duration time.Duration
}

func NewRecordCommand() *cobra.Command {
	opts := &RecordOptions{}

	cmd := &cobra.Command{
		Use:   "record [flags]",
		Short: "Record a screen region until interrupted",
		Long: `Record a region of the screen, and the default microphone unless --no-audio
is given, until Ctrl-C is pressed or --duration elapses.

The container is chosen by the output extension: .mp4, .m4v and .mov write
fragmented MP4; .webm and .mkv write Matroska.`,
		Example: `  # Record the whole primary display
  screenrec record

  # Record the top-left 1280x720 pixels
  screenrec record --width 1280 --height 720

  # Record a region at an offset for 30 seconds, without audio
  screenrec record --width 800 --height 600 --x 100 --y 50 --duration 30s --no-audio

  # Write WebM instead of MP4
  screenrec record -o ~/Videos/meeting.webm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlag("output.path", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			return ExecuteRecord(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.Region.Width, "width", 0, "Capture width in pixels (default: full screen)")
	flags.IntVar(&opts.Region.Height, "height", 0, "Capture height in pixels (default: full screen)")
	flags.IntVar(&opts.Region.OffsetX, "x", 0, "Horizontal offset of the capture region")
	flags.IntVar(&opts.Region.OffsetY, "y", 0, "Vertical offset of the capture region")
	flags.BoolVar(&opts.NoAudio, "no-audio", false, "Do not record the microphone")
	flags.DurationVar(&opts.Duration, "duration", 0, "Stop after this long (0 records until interrupted)")
	flags.StringP("output", "o", config.GetOutputPath(), "Output file")

	return cmd
}

func ExecuteRecord(cmd *cobra.Command, opts *RecordOptions) error {
	logger := util.GetLogger()
	c := clock.RealClock{}

	cfg := sessionConfig()
	cfg.Region = opts.Region
	if cfg.Region.Width == 0 && cfg.Region.Height == 0 {
		w, h, err := capture.DisplayResolution(cmd.Context(), runtime.GOOS)
		if err != nil {
			return fmt.Errorf("pass --width and --height: %w", err)
		}
		cfg.Region.Width, cfg.Region.Height = w-cfg.Region.OffsetX, h-cfg.Region.OffsetY
		logger.Info("Recording the full screen", "width", w, "height", h)
	}
	if opts.NoAudio {
		cfg.AudioEnabled = false
	}
	if err := ensureOutputDir(cfg.OutputPath); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session := newSession(c)
	setup := spinningConfigurer{inner: session, out: cmd.ErrOrStderr()}
	if err := setup.Configure(ctx, cfg); err != nil {
		return fmt.Errorf("failed to configure recorder: %w", err)
	}
	if err := session.Start(); err != nil {
		return fmt.Errorf("failed to start recorder: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s (press Ctrl-C to stop)\n", color.GreenString("● Recording"), color.CyanString(cfg.OutputPath))

	var timeout <-chan time.Time
	if opts.Duration > 0 {
		timeout = c.After(opts.Duration)
	}

	select {
	case <-ctx.Done():
		logger.Info("Interrupted, stopping")
	case <-timeout:
		logger.Info("Duration elapsed, stopping", "duration", opts.Duration)
	case <-session.Done():
		logger.Warn("Recording ended on its own")
	}

	if err := session.Stop(); err != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "✗ Recording failed: %v\n", err)
		return err
	}
	fmt.Fprintf(out, "%s %s\n", color.GreenString("✓ Saved"), cfg.OutputPath)
	return nil
}
