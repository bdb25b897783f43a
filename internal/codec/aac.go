package codec

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/media"
)

type aacDecoder struct {
	hint   Hint
	config *mpeg4audio.AudioSpecificConfig
}

func newAACDecoder(hint Hint) *aacDecoder {
	return &aacDecoder{hint: hint}
}

func (d *aacDecoder) Codec() media.Codec { return media.CodecAAC }

// TimeBase is one tick per sample; it is only known for sure after the
// first ADTS header, until then the capture hint is used.
func (d *aacDecoder) TimeBase() media.Rational {
	if d.config != nil {
		return media.NewRational(1, int64(d.config.SampleRate))
	}
	if d.hint.SampleRate > 0 {
		return media.NewRational(1, int64(d.hint.SampleRate))
	}
	return media.Rational{}
}

// Decode parses one or more ADTS frames. Every access unit of the packet ends
// up in Frame.Units with the ADTS header stripped.
func (d *aacDecoder) Decode(pkt *media.Packet) (*media.Frame, error) {
	var pkts mpeg4audio.ADTSPackets
	if err := pkts.Unmarshal(pkt.Data); err != nil {
		return nil, errors.Wrap(err, "unmarshal adts")
	}
	if len(pkts) == 0 {
		return nil, ErrNeedMoreInput
	}

	if d.config == nil {
		d.config = &mpeg4audio.AudioSpecificConfig{
			Type:         pkts[0].Type,
			SampleRate:   pkts[0].SampleRate,
			ChannelCount: adtsChannelCount(pkt.Data),
		}
	} else if pkts[0].SampleRate != d.config.SampleRate {
		return nil, errors.Errorf("sample rate changed from %d to %d", d.config.SampleRate, pkts[0].SampleRate)
	}

	units := make([][]byte, len(pkts))
	for i, p := range pkts {
		units[i] = p.AU
	}
	return &media.Frame{
		Role:     media.RoleAudio,
		PTS:      pkt.PTS,
		TimeBase: pkt.TimeBase,
		Units:    units,
		IsKey:    true,
		Samples:  len(units) * mpeg4audio.SamplesPerAccessUnit,
	}, nil
}

func (d *aacDecoder) Params() (media.StreamParams, bool) {
	if d.config == nil {
		return media.StreamParams{}, false
	}
	cfg := *d.config
	return media.StreamParams{
		Codec:       media.CodecAAC,
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.ChannelCount,
		Bitrate:     d.hint.Bitrate,
		AudioConfig: &cfg,
	}, true
}

// adtsChannelCount reads channel_configuration from an ADTS header.
func adtsChannelCount(h []byte) int {
	if len(h) < 4 {
		return 0
	}
	cfg := int(h[2]&0x01)<<2 | int(h[3]>>6)
	if cfg == 7 {
		return 8
	}
	return cfg
}
