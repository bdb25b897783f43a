package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelcloud/screenrec/internal/media"
)

type nopBackend struct{}

func (nopBackend) Open(context.Context, Source) (Device, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("b", nopBackend{})
	r.Register("a", nopBackend{})

	assert.Equal(t, []string{"a", "b"}, r.Names())

	_, err := r.Lookup("a")
	require.NoError(t, err)

	_, err = r.Lookup("dshow")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry("", nil)
	assert.Equal(t, []string{"ffmpeg", "wav"}, r.Names())
}

func TestPlatformDefaults(t *testing.T) {
	tests := []struct {
		goos        string
		videoFormat string
		audioFormat string
	}{
		{"linux", "x11grab", "alsa"},
		{"windows", "gdigrab", "dshow"},
		{"darwin", "avfoundation", "avfoundation"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			d := PlatformDefaults(tt.goos)
			assert.Equal(t, tt.videoFormat, d.VideoFormat)
			assert.Equal(t, tt.audioFormat, d.AudioFormat)
			assert.NotEmpty(t, d.VideoSource)
			assert.NotEmpty(t, d.AudioSource)
		})
	}
}

func TestScreenOptions(t *testing.T) {
	linux := ScreenOptions("linux", 800, 600, 5, 6, 15)
	assert.Equal(t, map[string]string{
		"framerate":  "15",
		"video_size": "800x600",
		"grab_x":     "5",
		"grab_y":     "6",
	}, linux)

	windows := ScreenOptions("windows", 800, 600, 5, 6, 15)
	assert.Equal(t, "5", windows["offset_x"])
	assert.Equal(t, "6", windows["offset_y"])
	assert.NotContains(t, windows, "grab_x")
}

func TestParseVideoSize(t *testing.T) {
	w, h, ok := parseVideoSize("1920x1080")
	require.True(t, ok)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	_, _, ok = parseVideoSize("big")
	assert.False(t, ok)
}

type fixedDevice struct{ streams []StreamInfo }

func (d fixedDevice) Streams() []StreamInfo              { return d.streams }
func (d fixedDevice) ReadPacket() (*media.Packet, error) { return nil, ErrNotReady }
func (d fixedDevice) Close() error                       { return nil }

func TestFindBestStream(t *testing.T) {
	dev := fixedDevice{streams: []StreamInfo{
		{Index: 0, Role: media.RoleAudio},
		{Index: 1, Role: media.RoleVideo},
		{Index: 2, Role: media.RoleVideo},
	}}

	s, err := FindBestStream(dev, media.RoleVideo)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Index)

	_, err = FindBestStream(fixedDevice{}, media.RoleAudio)
	assert.ErrorIs(t, err, ErrStreamNotFound)
}
