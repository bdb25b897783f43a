package capture

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults holds the platform grabber and microphone used when the
// configuration does not name one.
type Defaults struct {
	VideoFormat string
	VideoSource string
	AudioFormat string
	AudioSource string
}

// PlatformDefaults returns the capture defaults for goos.
func PlatformDefaults(goos string) Defaults {
	switch goos {
	case "windows":
		return Defaults{
			VideoFormat: "gdigrab",
			VideoSource: "desktop",
			AudioFormat: "dshow",
			AudioSource: "audio=virtual-audio-capturer",
		}
	case "darwin":
		return Defaults{
			VideoFormat: "avfoundation",
			VideoSource: "Capture screen 0",
			AudioFormat: "avfoundation",
			AudioSource: ":0",
		}
	default:
		display := os.Getenv("DISPLAY")
		if display == "" {
			display = ":0.0"
		}
		return Defaults{
			VideoFormat: "x11grab",
			VideoSource: display,
			AudioFormat: "alsa",
			AudioSource: "default",
		}
	}
}

// ScreenOptions returns the grabber options selecting a capture region on goos.
func ScreenOptions(goos string, width, height, offsetX, offsetY, frameRate int) map[string]string {
	opts := map[string]string{
		"framerate":  strconv.Itoa(frameRate),
		"video_size": fmt.Sprintf("%dx%d", width, height),
	}
	switch goos {
	case "windows":
		opts["offset_x"] = strconv.Itoa(offsetX)
		opts["offset_y"] = strconv.Itoa(offsetY)
	case "darwin":
		// avfoundation cannot crop; the region size is still passed through.
	default:
		opts["grab_x"] = strconv.Itoa(offsetX)
		opts["grab_y"] = strconv.Itoa(offsetY)
	}
	return opts
}

// parseVideoSize parses a "WxH" option value.
func parseVideoSize(s string) (int, int, bool) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil {
		return 0, 0, false
	}
	return w, h, true
}
