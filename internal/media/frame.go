package media

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
)

// Role is the media kind a worker, a stream and its frames belong to.
type Role int

const (
	RoleVideo Role = iota
	RoleAudio
)

func (r Role) String() string {
	switch r {
	case RoleVideo:
		return "video"
	case RoleAudio:
		return "audio"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Codec names an elementary stream format.
type Codec string

const (
	CodecH264     Codec = "h264"
	CodecAAC      Codec = "aac"
	CodecPCMS16LE Codec = "pcm_s16le"
)

// Packet is a raw unit read from a capture device.
type Packet struct {
	StreamIndex int
	Data        []byte
	PTS         int64    // in TimeBase units
	TimeBase    Rational // native time base of the stream
}

// Frame is a decoded unit of media. It is handed to the sink and not retained.
type Frame struct {
	Role     Role
	PTS      int64    // in TimeBase units
	TimeBase Rational // time base PTS is expressed in
	Units    [][]byte // H.264 NAL units of one access unit, or a single audio payload
	IsKey    bool     // random access point (always true for audio)
	Samples  int      // audio samples per channel carried by the frame
}

// StreamParams describes an output stream declared to a sink.
type StreamParams struct {
	Codec Codec

	// Video
	Width     int
	Height    int
	FrameRate int
	SPS       []byte
	PPS       []byte

	// Audio
	SampleRate  int
	Channels    int
	BitDepth    int
	Bitrate     int
	AudioConfig *mpeg4audio.AudioSpecificConfig
}
