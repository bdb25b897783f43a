package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/term"
	"k8s.io/utils/clock"

	"github.com/babelcloud/screenrec/config"
	"github.com/babelcloud/screenrec/internal/capture"
	"github.com/babelcloud/screenrec/internal/recorder"
	"github.com/babelcloud/screenrec/internal/util"
)

// sessionConfig maps the loaded settings onto a session configuration. The
// capture region is left for the caller.
func sessionConfig() recorder.SessionConfig {
	cfg := recorder.DefaultSessionConfig(runtime.GOOS)
	cfg.OutputPath = config.GetOutputPath()
	cfg.AudioEnabled = config.GetAudioEnabled()
	cfg.ProbePackets = config.GetProbePackets()
	cfg.Video = recorder.DeviceConfig{
		Backend:   config.GetVideoBackend(),
		Format:    config.GetVideoFormat(),
		Source:    config.GetVideoSource(),
		FrameRate: config.GetVideoFrameRate(),
		Preset:    config.GetVideoPreset(),
		LogEvery:  config.GetLogVideoEvery(),
	}
	cfg.Audio = recorder.DeviceConfig{
		Backend:    config.GetAudioBackend(),
		Format:     config.GetAudioFormat(),
		Source:     config.GetAudioSource(),
		Bitrate:    config.GetAudioBitrate(),
		SampleRate: config.GetAudioSampleRate(),
		LogEvery:   config.GetLogAudioEvery(),
	}
	return cfg
}

func newSession(c clock.Clock) *recorder.Session {
	registry := capture.NewDefaultRegistry(config.GetFFmpegPath(), c)
	return recorder.NewSession(
		recorder.WithRegistry(registry),
		recorder.WithLogger(util.GetLogger()),
	)
}

func ensureOutputDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", dir)
	}
	return nil
}

// spinningConfigurer shows a spinner while the capture devices are opened
// and probed, which can take seconds for an ffmpeg grabber.
type spinningConfigurer struct {
	inner configurer
	out   io.Writer
}

func (c spinningConfigurer) Configure(ctx context.Context, cfg recorder.SessionConfig) error {
	sp := util.NewUISpinner(c.out, plainOutput(), "Opening capture devices...")
	if err := c.inner.Configure(ctx, cfg); err != nil {
		sp.Fail("Capture setup failed")
		return err
	}
	sp.Success("Capture devices ready")
	return nil
}

// plainOutput reports whether progress should be printed line by line.
func plainOutput() bool {
	return verbose || util.IsVerbose() || !term.IsTerminal(int(os.Stderr.Fd()))
}
