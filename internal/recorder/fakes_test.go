package recorder

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/capture"
	"github.com/babelcloud/screenrec/internal/media"
	"github.com/babelcloud/screenrec/internal/sink"
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

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDevice produces synthetic H.264 (video) or PCM (audio) packets.
type fakeDevice struct {
	role  media.Role
	info  capture.StreamInfo
	delay time.Duration

	// limit > 0 ends the stream with eofErr after that many packets
	limit  int
	eofErr error
	// every notReadyEvery-th read reports ErrNotReady first
	notReadyEvery int
	// mutate, when set, may rewrite packet i before it is returned
	mutate func(i int, pkt *media.Packet)

	mu     sync.Mutex
	reads  int
	sent   int
	closed atomic.Bool
}

func newVideoDevice() *fakeDevice {
	return &fakeDevice{
		role:   media.RoleVideo,
		delay:  time.Millisecond,
		eofErr: io.EOF,
		info: capture.StreamInfo{
			Role:      media.RoleVideo,
			Codec:     media.CodecH264,
			TimeBase:  media.NewRational(1, 15),
			Width:     1920,
			Height:    1080,
			FrameRate: 15,
		},
	}
}

func newAudioDevice() *fakeDevice {
	return &fakeDevice{
		role:   media.RoleAudio,
		delay:  time.Millisecond,
		eofErr: io.EOF,
		info: capture.StreamInfo{
			Role:       media.RoleAudio,
			Codec:      media.CodecPCMS16LE,
			TimeBase:   media.NewRational(1, 8000),
			SampleRate: 8000,
			Channels:   1,
			BitDepth:   16,
		},
	}
}

func (d *fakeDevice) Streams() []capture.StreamInfo {
	return []capture.StreamInfo{d.info}
}

func (d *fakeDevice) ReadPacket() (*media.Packet, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return nil, errors.New("read on closed device")
	}
	d.reads++
	if d.notReadyEvery > 0 && d.reads%d.notReadyEvery == 0 {
		return nil, capture.ErrNotReady
	}
	if d.limit > 0 && d.sent >= d.limit {
		return nil, d.eofErr
	}

	i := d.sent
	d.sent++
	pkt := &media.Packet{PTS: int64(i), TimeBase: d.info.TimeBase}
	if d.role == media.RoleVideo {
		if i%15 == 0 {
			pkt.Data = annexB(testAUD, testSPS, testPPS, testIDR)
		} else {
			pkt.Data = annexB(testAUD, testPFrame)
		}
	} else {
		// 20ms of mono audio
		pkt.PTS = int64(i * 160)
		pkt.Data = make([]byte, 320)
	}
	if d.mutate != nil {
		d.mutate(i, pkt)
	}
	return pkt, nil
}

func (d *fakeDevice) Close() error {
	d.closed.Store(true)
	return nil
}

func (d *fakeDevice) Sent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent
}

// fakeBackend hands out the device registered for each role.
type fakeBackend struct {
	mu      sync.Mutex
	devices map[media.Role]*fakeDevice
	sources map[media.Role]capture.Source
	openErr error
}

func newFakeBackend(devices ...*fakeDevice) *fakeBackend {
	b := &fakeBackend{
		devices: make(map[media.Role]*fakeDevice),
		sources: make(map[media.Role]capture.Source),
	}
	for _, d := range devices {
		b.devices[d.role] = d
	}
	return b
}

func (b *fakeBackend) Open(ctx context.Context, src capture.Source) (capture.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	d, ok := b.devices[src.Role]
	if !ok {
		return nil, errors.Wrapf(capture.ErrDeviceNotFound, "no fake %s device", src.Role)
	}
	b.sources[src.Role] = src
	return d, nil
}

func (b *fakeBackend) source(role media.Role) capture.Source {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sources[role]
}

type write struct {
	role media.Role
	pts  int64
	tb   media.Rational
}

// recordingSink records writes and flags any write made while the gate is
// paused or while another write is in flight.
type recordingSink struct {
	mu       sync.Mutex
	declared map[media.Role]media.StreamParams
	writes   []write
	opened   bool
	closed   bool

	gate       atomic.Pointer[PauseGate]
	inFlight   atomic.Int32
	overlaps   atomic.Int32
	whilePause atomic.Int32

	writeErr error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{declared: make(map[media.Role]media.StreamParams)}
}

func (s *recordingSink) factory() sink.Factory {
	return func(string, *slog.Logger) (sink.Sink, error) { return s, nil }
}

func (s *recordingSink) DeclareStream(role media.Role, params media.StreamParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declared[role] = params
	return nil
}

func (s *recordingSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return nil
}

func (s *recordingSink) Write(frame *media.Frame, role media.Role) error {
	if s.inFlight.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	defer s.inFlight.Add(-1)

	// Write runs inside the gate's critical section, so reading paused
	// directly is race free.
	if g := s.gate.Load(); g != nil && g.paused {
		s.whilePause.Add(1)
	}
	// widen the window for overlapping writers
	time.Sleep(50 * time.Microsecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, write{role: role, pts: frame.PTS, tb: frame.TimeBase})
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) count(role media.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.writes {
		if w.role == role {
			n++
		}
	}
	return n
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *recordingSink) timestamps(role media.Role) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, w := range s.writes {
		if w.role == role {
			out = append(out, w.pts)
		}
	}
	return out
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
