package sink

import (
	"log/slog"
	"sync"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
	"github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/media"
)

const videoTimeScale = 90000

// FMP4 writes a fragmented MP4 file. A fragment is cut at every video
// keyframe, or after one second of audio when there is no video track.
type FMP4 struct {
	mu     sync.Mutex
	file   *partFile
	logger *slog.Logger

	tracks         map[media.Role]*fmp4Track
	order          []media.Role
	opened         bool
	closed         bool
	sequenceNumber uint32
}

type fmp4Track struct {
	id        int
	role      media.Role
	codec     mp4.Codec
	timeScale uint32
	params    media.StreamParams

	// the last sample stays pending until the next one gives its duration
	pending    *fmp4.Sample
	pendingDTS int64

	samples  []*fmp4.Sample
	nextBase int64
	started  bool
	written  int
}

// NewFMP4 creates the output file for an fMP4 sink.
func NewFMP4(path string, logger *slog.Logger) (*FMP4, error) {
	file, err := createPartFile(path)
	if err != nil {
		return nil, err
	}
	return &FMP4{
		file:           file,
		logger:         logger.With("component", "fmp4_sink", "path", path),
		tracks:         make(map[media.Role]*fmp4Track),
		sequenceNumber: 1,
	}, nil
}

func (s *FMP4) DeclareStream(role media.Role, params media.StreamParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.opened {
		return ErrAlreadyOpen
	}
	if _, ok := s.tracks[role]; ok {
		return errors.Errorf("%s stream declared twice", role)
	}

	t := &fmp4Track{
		id:     len(s.order) + 1,
		role:   role,
		params: params,
	}
	switch params.Codec {
	case media.CodecH264:
		if len(params.SPS) == 0 || len(params.PPS) == 0 {
			return errors.New("h264 stream needs SPS and PPS")
		}
		t.codec = &mp4.CodecH264{SPS: params.SPS, PPS: params.PPS}
		t.timeScale = videoTimeScale
	case media.CodecAAC:
		if params.AudioConfig == nil {
			return errors.New("aac stream needs an AudioSpecificConfig")
		}
		t.codec = &mp4.CodecMPEG4Audio{Config: *params.AudioConfig}
		t.timeScale = uint32(params.AudioConfig.SampleRate)
	case media.CodecPCMS16LE:
		t.codec = &mp4.CodecLPCM{
			LittleEndian: true,
			BitDepth:     16,
			SampleRate:   params.SampleRate,
			ChannelCount: params.Channels,
		}
		t.timeScale = uint32(params.SampleRate)
	default:
		return errors.Wrapf(ErrUnsupportedCodec, "%s in mp4", params.Codec)
	}
	if t.timeScale == 0 {
		return errors.Errorf("%s stream has no clock rate", role)
	}

	s.tracks[role] = t
	s.order = append(s.order, role)
	s.logger.Debug("Stream declared", "role", role, "codec", params.Codec, "track", t.id, "timescale", t.timeScale)
	return nil
}

// Open writes the initialization segment.
func (s *FMP4) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.opened {
		return ErrAlreadyOpen
	}
	if len(s.order) == 0 {
		return errors.New("no streams declared")
	}

	init := &fmp4.Init{}
	for _, role := range s.order {
		t := s.tracks[role]
		init.Tracks = append(init.Tracks, &fmp4.InitTrack{
			ID:        t.id,
			TimeScale: t.timeScale,
			Codec:     t.codec,
		})
	}

	var buf seekablebuffer.Buffer
	if err := init.Marshal(&buf); err != nil {
		return errors.Wrap(err, "marshal init segment")
	}
	if _, err := s.file.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "write init segment")
	}

	s.opened = true
	s.logger.Info("fMP4 init segment written", "size", len(buf.Bytes()), "tracks", len(s.order))
	return nil
}

func (s *FMP4) Write(frame *media.Frame, role media.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.opened {
		return ErrNotOpen
	}
	t, ok := s.tracks[role]
	if !ok {
		return errors.Wrapf(ErrUnknownStream, "%s", role)
	}
	if len(frame.Units) == 0 {
		return nil
	}

	dts := media.Rescale(frame.PTS, frame.TimeBase, media.NewRational(1, int64(t.timeScale)))

	switch t.params.Codec {
	case media.CodecH264:
		units := frame.Units
		if frame.IsKey {
			// Repeat parameter sets in every keyframe.
			units = append([][]byte{t.params.SPS, t.params.PPS}, units...)
		}
		payload, err := h264.AVCC(units).Marshal()
		if err != nil {
			return errors.Wrap(err, "marshal avcc")
		}
		t.push(dts, &fmp4.Sample{
			Duration:        t.defaultDuration(frame),
			IsNonSyncSample: !frame.IsKey,
			Payload:         payload,
		})
		// The keyframe is pending now, so it opens the next fragment.
		if frame.IsKey {
			return s.flush()
		}

	case media.CodecAAC:
		for i, au := range frame.Units {
			t.push(dts+int64(i*mpeg4audio.SamplesPerAccessUnit), &fmp4.Sample{
				Duration: mpeg4audio.SamplesPerAccessUnit,
				Payload:  au,
			})
		}

	case media.CodecPCMS16LE:
		t.push(dts, &fmp4.Sample{
			Duration: t.defaultDuration(frame),
			Payload:  frame.Units[0],
		})
	}

	if _, hasVideo := s.tracks[media.RoleVideo]; !hasVideo && t.bufferedDuration() >= int64(t.timeScale) {
		return s.flush()
	}
	return nil
}

// flush writes every completed sample as one fragment.
func (s *FMP4) flush() error {
	part := &fmp4.Part{SequenceNumber: s.sequenceNumber}
	for _, role := range s.order {
		t := s.tracks[role]
		if len(t.samples) == 0 {
			continue
		}
		part.Tracks = append(part.Tracks, &fmp4.PartTrack{
			ID:       t.id,
			BaseTime: uint64(t.nextBase),
			Samples:  t.samples,
		})
	}
	if len(part.Tracks) == 0 {
		return nil
	}

	var buf seekablebuffer.Buffer
	if err := part.Marshal(&buf); err != nil {
		return errors.Wrap(err, "marshal fragment")
	}
	if _, err := s.file.Write(buf.Bytes()); err != nil {
		s.logger.Error("Failed to write fragment", "error", err, "size", len(buf.Bytes()))
		return errors.Wrap(err, "write fragment")
	}

	for _, role := range s.order {
		t := s.tracks[role]
		for _, sample := range t.samples {
			t.nextBase += int64(sample.Duration)
		}
		t.written += len(t.samples)
		t.samples = t.samples[:0:0]
	}
	s.sequenceNumber++
	s.logger.Debug("Fragment written", "sequence", part.SequenceNumber, "size", len(buf.Bytes()))
	return nil
}

func (s *FMP4) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if !s.opened {
		s.logger.Debug("Discarding unopened output")
		return s.file.discard()
	}

	for _, role := range s.order {
		s.tracks[role].finish()
	}
	if err := s.flush(); err != nil {
		s.file.discard()
		return err
	}
	if err := s.file.commit(); err != nil {
		return err
	}

	attrs := []any{"path", s.file.final, "fragments", s.sequenceNumber - 1}
	for _, role := range s.order {
		attrs = append(attrs, role.String()+"_samples", s.tracks[role].written)
	}
	s.logger.Info("fMP4 file finalized", attrs...)
	return nil
}

func (t *fmp4Track) push(dts int64, sample *fmp4.Sample) {
	if !t.started {
		t.started = true
		t.nextBase = max(dts, 0)
	}
	if t.pending != nil {
		if d := dts - t.pendingDTS; d > 0 {
			t.pending.Duration = uint32(d)
		}
		t.samples = append(t.samples, t.pending)
	}
	t.pending = sample
	t.pendingDTS = dts
}

// finish moves the pending sample, with its default duration, into the buffer.
func (t *fmp4Track) finish() {
	if t.pending != nil {
		t.samples = append(t.samples, t.pending)
		t.pending = nil
	}
}

func (t *fmp4Track) bufferedDuration() int64 {
	var d int64
	for _, s := range t.samples {
		d += int64(s.Duration)
	}
	return d
}

func (t *fmp4Track) defaultDuration(frame *media.Frame) uint32 {
	if frame.Samples > 0 {
		return uint32(frame.Samples)
	}
	if t.params.FrameRate > 0 {
		return t.timeScale / uint32(t.params.FrameRate)
	}
	return t.timeScale / 30
}
