package capture

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/babelcloud/screenrec/internal/media"
	"github.com/babelcloud/screenrec/internal/util"
)

const defaultFrameMs = 20

// maxPacingLag is how far behind the file clock a reader may fall before
// pacing restarts from now instead of bursting to catch up.
const maxPacingLag = 250 * time.Millisecond

// WAVBackend plays a .wav file as a microphone. Source.Name is the file path.
//
// Options:
//   - frame_ms: packet duration in milliseconds (default 20)
//   - realtime: "false" disables pacing packets on the clock
type WAVBackend struct {
	Clock clock.Clock
}

// NewWAVBackend returns a WAV backend paced on c. A nil clock uses the wall clock.
func NewWAVBackend(c clock.Clock) *WAVBackend {
	if c == nil {
		c = clock.RealClock{}
	}
	return &WAVBackend{Clock: c}
}

func (b *WAVBackend) Open(ctx context.Context, src Source) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := util.GetLogger().With("component", "wav", "file", src.Name)

	f, err := os.Open(src.Name)
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceNotFound, "open %s: %v", src.Name, err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, errors.Wrapf(ErrDeviceNotFound, "%s is not a valid wav file", src.Name)
	}
	if err := decoder.FwdToPCM(); err != nil {
		f.Close()
		return nil, errors.Wrapf(ErrDeviceNotFound, "seek to pcm in %s: %v", src.Name, err)
	}

	frameMs := defaultFrameMs
	if v, ok := src.Options["frame_ms"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			f.Close()
			return nil, errors.Errorf("invalid frame_ms %q", v)
		}
		frameMs = n
	}

	sampleRate := int(decoder.SampleRate)
	channels := int(decoder.NumChans)
	samplesPerFrame := sampleRate * frameMs / 1000
	if samplesPerFrame <= 0 || channels <= 0 {
		f.Close()
		return nil, errors.Errorf("non-positive samples per frame (rate %d, channels %d)", sampleRate, channels)
	}

	logger.Debug("Loaded audio file",
		"sampleRate", sampleRate,
		"channels", channels,
		"bitDepth", decoder.BitDepth,
		"samplesPerFrame", samplesPerFrame,
	)

	return &wavDevice{
		file:     f,
		decoder:  decoder,
		clock:    b.Clock,
		realtime: src.Options["realtime"] != "false",
		bitDepth: int(decoder.BitDepth),
		info: StreamInfo{
			Role:       media.RoleAudio,
			Codec:      media.CodecPCMS16LE,
			TimeBase:   media.NewRational(1, int64(sampleRate)),
			SampleRate: sampleRate,
			Channels:   channels,
			BitDepth:   16,
		},
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			Data: make([]int, samplesPerFrame*channels),
		},
		logger: logger,
	}, nil
}

type wavDevice struct {
	file     *os.File
	decoder  *wav.Decoder
	clock    clock.Clock
	realtime bool
	bitDepth int
	info     StreamInfo
	buf      *goaudio.IntBuffer
	logger   *slog.Logger

	started time.Time
	samples int64

	closeOnce sync.Once
	closeErr  error
}

func (d *wavDevice) Streams() []StreamInfo {
	return []StreamInfo{d.info}
}

func (d *wavDevice) ReadPacket() (*media.Packet, error) {
	if d.started.IsZero() {
		d.started = d.clock.Now()
	}

	n, err := d.decoder.PCMBuffer(d.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "read wav pcm")
	}
	n -= n % d.info.Channels
	if n == 0 {
		return nil, io.EOF
	}

	data := make([]byte, n*2)
	for i, v := range d.buf.Data[:n] {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(toInt16(v, d.bitDepth)))
	}

	pkt := &media.Packet{
		StreamIndex: d.info.Index,
		Data:        data,
		PTS:         d.samples,
		TimeBase:    d.info.TimeBase,
	}
	d.samples += int64(n / d.info.Channels)

	if d.realtime {
		played := time.Duration(d.samples) * time.Second / time.Duration(d.info.SampleRate)
		now := d.clock.Now()
		due := d.started.Add(played)
		if lag := now.Sub(due); lag > maxPacingLag {
			// The reader stalled (paused session): no burst on resume.
			d.logger.Debug("Reader stalled, re-anchoring pacing", "lag", lag)
			d.started = now.Add(-played)
			due = now
		}
		if wait := due.Sub(now); wait > 0 {
			d.clock.Sleep(wait)
		}
	}
	return pkt, nil
}

func (d *wavDevice) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.file.Close()
		d.logger.Debug("wav device closed", "samples", d.samples)
	})
	return d.closeErr
}

// toInt16 scales a decoded sample of the given bit depth to 16 bits.
func toInt16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	default:
		return int16(v)
	}
}
