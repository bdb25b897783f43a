package codec

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/media"
)

// videoClockRate is the MPEG clock every H.264 frame is stamped in.
const videoClockRate = 90000

type h264Decoder struct {
	hint   Hint
	sps    []byte
	pps    []byte
	width  int
	height int
	// no frame is emitted before the first IDR
	sawIDR bool
}

func newH264Decoder(hint Hint) *h264Decoder {
	return &h264Decoder{hint: hint}
}

func (d *h264Decoder) Codec() media.Codec { return media.CodecH264 }

func (d *h264Decoder) TimeBase() media.Rational {
	return media.NewRational(1, videoClockRate)
}

func (d *h264Decoder) Decode(pkt *media.Packet) (*media.Frame, error) {
	var au h264.AnnexB
	if err := au.Unmarshal(pkt.Data); err != nil {
		return nil, errors.Wrap(err, "unmarshal annex-b")
	}

	units := make([][]byte, 0, len(au))
	isKey := false
	for _, nalu := range au {
		if len(nalu) == 0 {
			continue
		}
		switch h264.NALUType(nalu[0] & 0x1F) {
		case h264.NALUTypeSPS:
			if err := d.setSPS(nalu); err != nil {
				return nil, err
			}
			continue
		case h264.NALUTypePPS:
			d.pps = append([]byte(nil), nalu...)
			continue
		case h264.NALUTypeAccessUnitDelimiter:
			continue
		case h264.NALUTypeIDR:
			isKey = true
		}
		units = append(units, nalu)
	}

	if isKey && d.sps != nil && d.pps != nil {
		d.sawIDR = true
	}
	if !d.sawIDR || len(units) == 0 {
		return nil, ErrNeedMoreInput
	}

	return &media.Frame{
		Role:     media.RoleVideo,
		PTS:      pkt.PTS,
		TimeBase: pkt.TimeBase,
		Units:    units,
		IsKey:    isKey,
	}, nil
}

func (d *h264Decoder) setSPS(nalu []byte) error {
	var sps h264.SPS
	if err := sps.Unmarshal(nalu); err != nil {
		return errors.Wrap(err, "parse sps")
	}
	d.sps = append([]byte(nil), nalu...)
	d.width = sps.Width()
	d.height = sps.Height()
	return nil
}

func (d *h264Decoder) Params() (media.StreamParams, bool) {
	if !d.sawIDR {
		return media.StreamParams{}, false
	}
	return media.StreamParams{
		Codec:     media.CodecH264,
		Width:     d.width,
		Height:    d.height,
		FrameRate: d.hint.FrameRate,
		SPS:       d.sps,
		PPS:       d.pps,
	}, true
}
