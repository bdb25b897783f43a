package capture

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

const adtsHeaderLen = 7

// SplitAccessUnits is a bufio.SplitFunc that cuts an H.264 Annex-B byte
// stream into access units. The stream must carry access unit delimiters;
// bytes before the first delimiter are dropped.
func SplitAccessUnits(data []byte, atEOF bool) (int, []byte, error) {
	start := findAccessUnitDelimiter(data, 0)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}

	next := findAccessUnitDelimiter(data, start+4)
	if next >= 0 {
		return next, data[start:next], nil
	}
	if atEOF {
		return len(data), data[start:], nil
	}
	return 0, nil, nil
}

// findAccessUnitDelimiter returns the offset of the start code introducing the
// next AUD NAL unit at or after from, or -1.
func findAccessUnitDelimiter(data []byte, from int) int {
	for i := from; i+3 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 || data[i+2] != 1 {
			continue
		}
		if h264.NALUType(data[i+3]&0x1F) != h264.NALUTypeAccessUnitDelimiter {
			continue
		}
		if i > from && data[i-1] == 0 {
			return i - 1
		}
		return i
	}
	return -1
}

// SplitADTSFrames is a bufio.SplitFunc that cuts an ADTS byte stream into
// frames, header included. It resynchronises on the 0xFFF syncword.
func SplitADTSFrames(data []byte, atEOF bool) (int, []byte, error) {
	i := 0
	for i+1 < len(data) && !isADTSSync(data[i:]) {
		i++
	}
	if i+adtsHeaderLen > len(data) {
		if atEOF {
			return len(data), nil, nil
		}
		return i, nil, nil
	}

	frameLen := adtsFrameLength(data[i:])
	if frameLen < adtsHeaderLen {
		return i + 1, nil, nil
	}
	if i+frameLen > len(data) {
		if atEOF {
			return len(data), nil, nil
		}
		return i, nil, nil
	}
	return i + frameLen, data[i : i+frameLen], nil
}

func isADTSSync(b []byte) bool {
	return b[0] == 0xFF && b[1]&0xF6 == 0xF0
}

func adtsFrameLength(h []byte) int {
	return int(h[3]&0x03)<<11 | int(h[4])<<3 | int(h[5])>>5
}

// adtsSamples returns the number of PCM samples per channel carried by an ADTS frame.
func adtsSamples(h []byte) int {
	return (int(h[6]&0x03) + 1) * 1024
}
