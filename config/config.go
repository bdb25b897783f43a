package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/babelcloud/screenrec/internal/capture"
)

var v *viper.Viper

func init() {
	v = newViper()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
		// Config file not found; ignore error and use defaults
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// Environment variables: SCREENREC_VIDEO_FRAMERATE -> video.framerate
	v.SetEnvPrefix("screenrec")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("output.path", "SCREENREC_OUTPUT", "SCREENREC_OUTPUT_PATH")
	v.BindEnv("ffmpeg.path", "SCREENREC_FFMPEG", "FFMPEG_PATH")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Look for config in the following paths
	configPaths := []string{
		".",
		filepath.Join(xdg.ConfigHome, "screenrec"),
		"/etc/screenrec",
	}
	for _, path := range configPaths {
		v.AddConfigPath(os.ExpandEnv(path))
	}
	return v
}

func setDefaults(v *viper.Viper) {
	platform := capture.PlatformDefaults(runtime.GOOS)

	v.SetDefault("output.path", filepath.Join(xdg.UserDirs.Videos, "screenrec", "output.mp4"))

	v.SetDefault("video.backend", "ffmpeg")
	v.SetDefault("video.format", platform.VideoFormat)
	v.SetDefault("video.source", platform.VideoSource)
	v.SetDefault("video.framerate", 15)
	v.SetDefault("video.preset", "medium")

	v.SetDefault("audio.enabled", true)
	v.SetDefault("audio.backend", "ffmpeg")
	v.SetDefault("audio.format", platform.AudioFormat)
	v.SetDefault("audio.source", platform.AudioSource)
	v.SetDefault("audio.bitrate", 128*1024)
	v.SetDefault("audio.samplerate", 48000)

	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("probe.packets", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.video_every", 10)
	v.SetDefault("log.audio_every", 100)

	v.SetDefault("demo.record", 8*time.Second)
	v.SetDefault("demo.pause", 5*time.Second)
	v.SetDefault("demo.resume", 3*time.Second)
}

// LoadFile merges an explicit config file over the defaults.
func LoadFile(path string) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// ConfigFileUsed returns the config file that was read, if any.
func ConfigFileUsed() string {
	return v.ConfigFileUsed()
}

// BindFlag makes a command line flag override key when it is set.
func BindFlag(key string, flag *pflag.Flag) error {
	return v.BindPFlag(key, flag)
}

// Set overrides key for the rest of the process.
func Set(key string, value any) {
	v.Set(key, value)
}

// GetOutputPath returns the container file the recorder writes
func GetOutputPath() string {
	return v.GetString("output.path")
}

// GetVideoBackend returns the capture backend name used for the screen
func GetVideoBackend() string {
	return v.GetString("video.backend")
}

// GetVideoFormat returns the grabber input format (x11grab, gdigrab, ...)
func GetVideoFormat() string {
	return v.GetString("video.format")
}

// GetVideoSource returns the grabber source (display, "desktop", file)
func GetVideoSource() string {
	return v.GetString("video.source")
}

func GetVideoFrameRate() int {
	return v.GetInt("video.framerate")
}

func GetVideoPreset() string {
	return v.GetString("video.preset")
}

// GetAudioEnabled reports whether an audio worker is started
func GetAudioEnabled() bool {
	return v.GetBool("audio.enabled")
}

func GetAudioBackend() string {
	return v.GetString("audio.backend")
}

func GetAudioFormat() string {
	return v.GetString("audio.format")
}

func GetAudioSource() string {
	return v.GetString("audio.source")
}

func GetAudioBitrate() int {
	return v.GetInt("audio.bitrate")
}

func GetAudioSampleRate() int {
	return v.GetInt("audio.samplerate")
}

// GetFFmpegPath returns the ffmpeg binary used by the ffmpeg backend
func GetFFmpegPath() string {
	return v.GetString("ffmpeg.path")
}

// GetProbePackets returns how many packets a worker may read while probing codec parameters
func GetProbePackets() int {
	return v.GetInt("probe.packets")
}

func GetLogLevel() string {
	return v.GetString("log.level")
}

func GetLogFormat() string {
	return v.GetString("log.format")
}

func GetLogFile() string {
	return v.GetString("log.file")
}

// GetLogVideoEvery returns how many video frames pass between progress log lines
func GetLogVideoEvery() int {
	return v.GetInt("log.video_every")
}

// GetLogAudioEvery returns how many audio frames pass between progress log lines
func GetLogAudioEvery() int {
	return v.GetInt("log.audio_every")
}

// GetDemoDurations returns the record, pause and resume phases of the demo sequence
func GetDemoDurations() (record, pause, resume time.Duration) {
	return v.GetDuration("demo.record"), v.GetDuration("demo.pause"), v.GetDuration("demo.resume")
}
