package codec

import "github.com/pkg/errors"

// BuildAVCDecoderConfig returns the avcC record for one SPS and one PPS with
// 4-byte NALU lengths.
func BuildAVCDecoderConfig(sps, pps []byte) ([]byte, error) {
	if len(sps) < 4 || len(pps) == 0 {
		return nil, errors.New("avcC needs an SPS and a PPS")
	}
	if len(sps) > 0xFFFF || len(pps) > 0xFFFF {
		return nil, errors.New("parameter set too large for avcC")
	}
	out := make([]byte, 0, 11+len(sps)+len(pps))
	out = append(out, 0x01, sps[1], sps[2], sps[3], 0xFF, 0xE1)
	out = append(out, byte(len(sps)>>8), byte(len(sps)))
	out = append(out, sps...)
	out = append(out, 0x01, byte(len(pps)>>8), byte(len(pps)))
	out = append(out, pps...)
	return out, nil
}
