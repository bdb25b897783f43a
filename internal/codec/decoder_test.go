package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelcloud/screenrec/internal/media"
)

// 1920x1080 baseline SPS
var testSPS = []byte{
	0x67, 0x42, 0xc0, 0x28, 0xd9, 0x00, 0x78, 0x02,
	0x27, 0xe5, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04,
	0x00, 0x00, 0x03, 0x00, 0xf0, 0x3c, 0x60, 0xc9,
	0x20,
}

var (
	testPPS    = []byte{0x68, 0xce, 0x38, 0x80}
	testIDR    = []byte{0x65, 0x88, 0x84, 0x00, 0x10}
	testPFrame = []byte{0x41, 0x9a, 0x24, 0x8c, 0x09}
	testAUD    = []byte{0x09, 0xf0}
)

func annexB(nalus ...[]byte) []byte {
	var buf bytes.Buffer
	for _, n := range nalus {
		buf.Write([]byte{0, 0, 0, 1})
		buf.Write(n)
	}
	return buf.Bytes()
}

// adts builds a 48kHz stereo AAC-LC ADTS frame.
func adts(payload []byte) []byte {
	frameLen := 7 + len(payload)
	h := []byte{
		0xFF, 0xF1,
		0x4C,
		0x80 | byte(frameLen>>11)&0x03,
		byte(frameLen >> 3),
		byte(frameLen&0x07)<<5 | 0x1F,
		0xFC,
	}
	return append(h, payload...)
}

func TestNewUnknownCodec(t *testing.T) {
	_, err := New("vp9", Hint{})
	assert.ErrorIs(t, err, ErrDecoderUnavailable)

	_, err = New(media.CodecPCMS16LE, Hint{})
	assert.ErrorIs(t, err, ErrDecoderUnavailable)
}

func TestH264DecoderWaitsForKeyframe(t *testing.T) {
	dec, err := New(media.CodecH264, Hint{FrameRate: 15})
	require.NoError(t, err)
	assert.Equal(t, media.NewRational(1, 90000), dec.TimeBase())

	tb := media.NewRational(1, 15)

	_, err = dec.Decode(&media.Packet{Data: annexB(testAUD, testPFrame), PTS: 0, TimeBase: tb})
	assert.ErrorIs(t, err, ErrNeedMoreInput)
	_, ready := dec.Params()
	assert.False(t, ready)

	frame, err := dec.Decode(&media.Packet{Data: annexB(testAUD, testSPS, testPPS, testIDR), PTS: 1, TimeBase: tb})
	require.NoError(t, err)
	assert.True(t, frame.IsKey)
	assert.Equal(t, int64(1), frame.PTS)
	assert.Equal(t, tb, frame.TimeBase)
	assert.Equal(t, [][]byte{testIDR}, frame.Units)

	params, ready := dec.Params()
	require.True(t, ready)
	assert.Equal(t, 1920, params.Width)
	assert.Equal(t, 1080, params.Height)
	assert.Equal(t, 15, params.FrameRate)
	assert.Equal(t, testSPS, params.SPS)
	assert.Equal(t, testPPS, params.PPS)

	frame, err = dec.Decode(&media.Packet{Data: annexB(testAUD, testPFrame), PTS: 2, TimeBase: tb})
	require.NoError(t, err)
	assert.False(t, frame.IsKey)
}

func TestH264DecoderRejectsGarbage(t *testing.T) {
	dec, err := New(media.CodecH264, Hint{})
	require.NoError(t, err)

	_, err = dec.Decode(&media.Packet{Data: []byte{0x01, 0x02}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNeedMoreInput)
}

func TestAACDecoder(t *testing.T) {
	dec, err := New(media.CodecAAC, Hint{SampleRate: 44100, Bitrate: 131072})
	require.NoError(t, err)
	assert.Equal(t, media.NewRational(1, 44100), dec.TimeBase())

	au1 := []byte{0x21, 0x10, 0x04, 0x60}
	au2 := []byte{0x21, 0x10, 0x05, 0x60}
	tb := media.NewRational(1, 48000)

	frame, err := dec.Decode(&media.Packet{Data: append(adts(au1), adts(au2)...), PTS: 2048, TimeBase: tb})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{au1, au2}, frame.Units)
	assert.Equal(t, 2048, frame.Samples)
	assert.Equal(t, int64(2048), frame.PTS)
	assert.True(t, frame.IsKey)

	assert.Equal(t, media.NewRational(1, 48000), dec.TimeBase())
	params, ready := dec.Params()
	require.True(t, ready)
	assert.Equal(t, 48000, params.SampleRate)
	assert.Equal(t, 2, params.Channels)
	assert.Equal(t, 131072, params.Bitrate)
	require.NotNil(t, params.AudioConfig)
	assert.Equal(t, 2, params.AudioConfig.ChannelCount)
}

func TestPCMDecoder(t *testing.T) {
	dec, err := New(media.CodecPCMS16LE, Hint{SampleRate: 16000, Channels: 2})
	require.NoError(t, err)

	frame, err := dec.Decode(&media.Packet{Data: make([]byte, 64), PTS: 320})
	require.NoError(t, err)
	assert.Equal(t, 16, frame.Samples)
	assert.Equal(t, int64(320), frame.PTS)

	_, err = dec.Decode(&media.Packet{Data: make([]byte, 3)})
	assert.Error(t, err)

	_, err = dec.Decode(&media.Packet{})
	assert.ErrorIs(t, err, ErrNeedMoreInput)

	params, ready := dec.Params()
	require.True(t, ready)
	assert.Equal(t, 16, params.BitDepth)
}

func TestADTSChannelCount(t *testing.T) {
	assert.Equal(t, 2, adtsChannelCount(adts(nil)))
	assert.Equal(t, 0, adtsChannelCount([]byte{0xFF}))
}
