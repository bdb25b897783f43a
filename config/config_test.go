package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := newViper()

	assert.Equal(t, "ffmpeg", v.GetString("video.backend"))
	assert.Equal(t, 15, v.GetInt("video.framerate"))
	assert.Equal(t, "medium", v.GetString("video.preset"))
	assert.True(t, v.GetBool("audio.enabled"))
	assert.Equal(t, 131072, v.GetInt("audio.bitrate"))
	assert.Equal(t, 48000, v.GetInt("audio.samplerate"))
	assert.Equal(t, 10, v.GetInt("log.video_every"))
	assert.Equal(t, 100, v.GetInt("log.audio_every"))
	assert.Equal(t, 8*time.Second, v.GetDuration("demo.record"))
	assert.Equal(t, 5*time.Second, v.GetDuration("demo.pause"))
	assert.Equal(t, 3*time.Second, v.GetDuration("demo.resume"))
	assert.Equal(t, "output.mp4", filepath.Base(v.GetString("output.path")))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SCREENREC_VIDEO_FRAMERATE", "30")
	t.Setenv("SCREENREC_OUTPUT", "/tmp/out.webm")
	t.Setenv("SCREENREC_AUDIO_ENABLED", "false")

	v := newViper()

	assert.Equal(t, 30, v.GetInt("video.framerate"))
	assert.Equal(t, "/tmp/out.webm", v.GetString("output.path"))
	assert.False(t, v.GetBool("audio.enabled"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("video:\n  framerate: 24\ndemo:\n  pause: 1s\n"), 0o644))

	saved := v
	defer func() { v = saved }()
	v = newViper()

	require.NoError(t, LoadFile(path))
	assert.Equal(t, 24, GetVideoFrameRate())
	_, pause, _ := GetDemoDurations()
	assert.Equal(t, time.Second, pause)
	assert.Equal(t, path, ConfigFileUsed())
}

func TestLoadFileMissing(t *testing.T) {
	saved := v
	defer func() { v = saved }()
	v = newViper()

	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "nope.yaml")))
}
