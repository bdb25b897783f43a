package recorder

import (
	"maps"
	"strconv"

	"github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/capture"
	"github.com/babelcloud/screenrec/internal/media"
)

// Region is the captured rectangle of the screen.
type Region struct {
	Width   int
	Height  int
	OffsetX int
	OffsetY int
}

// DeviceConfig selects and tunes the capture device of one role.
type DeviceConfig struct {
	Backend string            // capture registry name, e.g. "ffmpeg", "wav"
	Format  string            // backend input format, e.g. "x11grab", "alsa"
	Source  string            // device, display or file name
	Options map[string]string // extra backend options, merged over the defaults

	FrameRate  int    // video only
	Preset     string // video only, encoder speed preset
	Bitrate    int    // audio only, bits per second
	SampleRate int    // audio only

	// LogEvery is the number of written frames between progress log lines.
	LogEvery int
}

// SessionConfig is supplied once per Configure and never changes afterwards.
type SessionConfig struct {
	Region       Region
	AudioEnabled bool
	OutputPath   string

	Video DeviceConfig
	Audio DeviceConfig

	// ProbePackets bounds how many packets a worker reads while discovering
	// codec parameters.
	ProbePackets int
}

// DefaultSessionConfig returns the settings of the original demo: the
// platform grabber at 15 fps with the medium preset, and the default
// microphone encoded to 128 kbit/s AAC.
func DefaultSessionConfig(goos string) SessionConfig {
	d := capture.PlatformDefaults(goos)
	return SessionConfig{
		AudioEnabled: true,
		OutputPath:   "output.mp4",
		Video: DeviceConfig{
			Backend:   "ffmpeg",
			Format:    d.VideoFormat,
			Source:    d.VideoSource,
			FrameRate: 15,
			Preset:    "medium",
			LogEvery:  10,
		},
		Audio: DeviceConfig{
			Backend:    "ffmpeg",
			Format:     d.AudioFormat,
			Source:     d.AudioSource,
			Bitrate:    128 * 1024,
			SampleRate: 48000,
			LogEvery:   100,
		},
		ProbePackets: 256,
	}
}

// Validate reports the first invalid setting as an ErrConfig.
func (c SessionConfig) Validate() error {
	switch {
	case c.Region.Width <= 0 || c.Region.Height <= 0:
		return errors.Wrapf(ErrConfig, "capture region %dx%d must be positive", c.Region.Width, c.Region.Height)
	case c.Region.OffsetX < 0 || c.Region.OffsetY < 0:
		return errors.Wrapf(ErrConfig, "capture offset %d,%d must not be negative", c.Region.OffsetX, c.Region.OffsetY)
	case c.OutputPath == "":
		return errors.Wrap(ErrConfig, "output path is empty")
	case c.Video.Backend == "":
		return errors.Wrap(ErrConfig, "video backend is empty")
	case c.Video.FrameRate <= 0:
		return errors.Wrapf(ErrConfig, "video frame rate %d must be positive", c.Video.FrameRate)
	case c.ProbePackets <= 0:
		return errors.Wrapf(ErrConfig, "probe packet budget %d must be positive", c.ProbePackets)
	}
	if c.AudioEnabled {
		switch {
		case c.Audio.Backend == "":
			return errors.Wrap(ErrConfig, "audio backend is empty")
		case c.Audio.SampleRate <= 0:
			return errors.Wrapf(ErrConfig, "audio sample rate %d must be positive", c.Audio.SampleRate)
		case c.Audio.Bitrate < 0:
			return errors.Wrapf(ErrConfig, "audio bitrate %d must not be negative", c.Audio.Bitrate)
		}
	}
	return nil
}

// videoSource builds the grabber source for the capture region.
func (c SessionConfig) videoSource(goos string) capture.Source {
	r := c.Region
	opts := capture.ScreenOptions(goos, r.Width, r.Height, r.OffsetX, r.OffsetY, c.Video.FrameRate)
	maps.Copy(opts, c.Video.Options)

	encode := map[string]string{}
	if c.Video.Preset != "" {
		encode["preset"] = c.Video.Preset
	}
	return capture.Source{
		Role:      media.RoleVideo,
		Format:    c.Video.Format,
		Name:      c.Video.Source,
		Options:   opts,
		Encode:    encode,
		FrameRate: c.Video.FrameRate,
	}
}

func (c SessionConfig) audioSource() capture.Source {
	opts := map[string]string{}
	maps.Copy(opts, c.Audio.Options)

	encode := map[string]string{}
	if c.Audio.Bitrate > 0 {
		encode["b:a"] = strconv.Itoa(c.Audio.Bitrate)
	}
	return capture.Source{
		Role:       media.RoleAudio,
		Format:     c.Audio.Format,
		Name:       c.Audio.Source,
		Options:    opts,
		Encode:     encode,
		SampleRate: c.Audio.SampleRate,
	}
}
