package codec

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/media"
)

var (
	// ErrDecoderUnavailable is returned by New for a codec without a decoder.
	ErrDecoderUnavailable = errors.New("decoder unavailable")
	// ErrNeedMoreInput means the packet was consumed but no frame is ready yet.
	ErrNeedMoreInput = errors.New("need more input")
)

// Decoder turns raw packets of one stream into frames.
//
// Decode returns frames stamped in the packet's time base; the caller
// rescales them into TimeBase.
type Decoder interface {
	Codec() media.Codec
	TimeBase() media.Rational
	Decode(pkt *media.Packet) (*media.Frame, error)

	// Params returns the output stream parameters once enough input has been
	// seen to know them.
	Params() (media.StreamParams, bool)
}

// Hint carries what the capture side already knows about a stream.
type Hint struct {
	Width      int
	Height     int
	FrameRate  int
	SampleRate int
	Channels   int
	Bitrate    int
}

// New returns a decoder for codec.
func New(codec media.Codec, hint Hint) (Decoder, error) {
	switch codec {
	case media.CodecH264:
		return newH264Decoder(hint), nil
	case media.CodecAAC:
		return newAACDecoder(hint), nil
	case media.CodecPCMS16LE:
		if hint.SampleRate <= 0 || hint.Channels <= 0 {
			return nil, pkgerrors.Wrapf(ErrDecoderUnavailable, "pcm needs sample rate and channels (got %d, %d)", hint.SampleRate, hint.Channels)
		}
		return newPCMDecoder(hint), nil
	default:
		return nil, pkgerrors.Wrapf(ErrDecoderUnavailable, "codec %q", codec)
	}
}
