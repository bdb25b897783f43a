package capture

import (
	"bufio"
	"bytes"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aud4   = []byte{0x00, 0x00, 0x00, 0x01, 0x09, 0xF0}
	aud3   = []byte{0x00, 0x00, 0x01, 0x09, 0xF0}
	spsNAL = []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0xC0, 0x1F}
	idrNAL = []byte{0x00, 0x00, 0x01, 0x65, 0x88, 0x84, 0x00, 0x10}
	pNAL   = []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0x9A, 0x02}
)

func join(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func scanAll(t *testing.T, data []byte, split bufio.SplitFunc) [][]byte {
	t.Helper()
	scanner := bufio.NewScanner(iotest.OneByteReader(bytes.NewReader(data)))
	scanner.Split(split)
	var out [][]byte
	for scanner.Scan() {
		out = append(out, append([]byte(nil), scanner.Bytes()...))
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestSplitAccessUnits(t *testing.T) {
	first := join(aud4, spsNAL, idrNAL)
	second := join(aud3, pNAL)
	third := join(aud4, pNAL)

	units := scanAll(t, join([]byte{0xAA, 0xBB}, first, second, third), SplitAccessUnits)

	require.Len(t, units, 3)
	assert.Equal(t, first, units[0])
	assert.Equal(t, second, units[1])
	assert.Equal(t, third, units[2])
}

func TestSplitAccessUnitsWithoutDelimiter(t *testing.T) {
	units := scanAll(t, join(spsNAL, idrNAL), SplitAccessUnits)
	assert.Empty(t, units)
}

func adtsFrame(payload []byte, blocks int) []byte {
	frameLen := adtsHeaderLen + len(payload)
	h := []byte{
		0xFF, 0xF1,
		0x4C, // AAC LC, 48kHz
		0x80 | byte(frameLen>>11)&0x03,
		byte(frameLen >> 3),
		byte(frameLen&0x07)<<5 | 0x1F,
		0xFC | byte(blocks-1)&0x03,
	}
	return append(h, payload...)
}

func TestSplitADTSFrames(t *testing.T) {
	f1 := adtsFrame([]byte{0x21, 0x10, 0x04}, 1)
	f2 := adtsFrame(bytes.Repeat([]byte{0x5A}, 300), 1)

	frames := scanAll(t, join([]byte{0x00, 0x13}, f1, f2), SplitADTSFrames)

	require.Len(t, frames, 2)
	assert.Equal(t, f1, frames[0])
	assert.Equal(t, f2, frames[1])
	assert.Equal(t, len(f2), adtsFrameLength(frames[1]))
}

func TestSplitADTSFramesDropsTruncatedTail(t *testing.T) {
	f1 := adtsFrame([]byte{0x01, 0x02}, 1)
	f2 := adtsFrame([]byte{0x03, 0x04, 0x05, 0x06}, 1)

	frames := scanAll(t, join(f1, f2[:len(f2)-2]), SplitADTSFrames)

	require.Len(t, frames, 1)
	assert.Equal(t, f1, frames[0])
}

func TestADTSSamples(t *testing.T) {
	assert.Equal(t, 1024, adtsSamples(adtsFrame(nil, 1)))
	assert.Equal(t, 2048, adtsSamples(adtsFrame(nil, 2)))
}
