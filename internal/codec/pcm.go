package codec

import (
	"github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/media"
)

// pcmDecoder passes interleaved signed 16-bit little-endian samples through.
type pcmDecoder struct {
	hint Hint
}

func newPCMDecoder(hint Hint) *pcmDecoder {
	return &pcmDecoder{hint: hint}
}

func (d *pcmDecoder) Codec() media.Codec { return media.CodecPCMS16LE }

func (d *pcmDecoder) TimeBase() media.Rational {
	return media.NewRational(1, int64(d.hint.SampleRate))
}

func (d *pcmDecoder) Decode(pkt *media.Packet) (*media.Frame, error) {
	frameSize := 2 * d.hint.Channels
	if len(pkt.Data) == 0 {
		return nil, ErrNeedMoreInput
	}
	if len(pkt.Data)%frameSize != 0 {
		return nil, errors.Errorf("pcm packet of %d bytes is not a multiple of %d", len(pkt.Data), frameSize)
	}
	return &media.Frame{
		Role:     media.RoleAudio,
		PTS:      pkt.PTS,
		TimeBase: pkt.TimeBase,
		Units:    [][]byte{pkt.Data},
		IsKey:    true,
		Samples:  len(pkt.Data) / frameSize,
	}, nil
}

func (d *pcmDecoder) Params() (media.StreamParams, bool) {
	return media.StreamParams{
		Codec:      media.CodecPCMS16LE,
		SampleRate: d.hint.SampleRate,
		Channels:   d.hint.Channels,
		BitDepth:   16,
	}, true
}
