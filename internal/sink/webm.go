package sink

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/pkg/errors"
	"github.com/vishalkuo/bimap"

	"github.com/babelcloud/screenrec/internal/codec"
	"github.com/babelcloud/screenrec/internal/media"
)

const writerDrainTimeout = 5 * time.Second

// WebM writes a WebM or, with matroska set, a Matroska file. A WebM file
// whose tracks fall outside the WebM codec set is written as Matroska. Block
// timestamps are in milliseconds, the default timecode scale.
type WebM struct {
	mu       sync.Mutex
	file     *partFile
	logger   *slog.Logger
	matroska bool

	entries []webm.TrackEntry
	params  map[media.Role]media.StreamParams
	trackOf *bimap.BiMap[media.Role, uint64]
	writers map[uint64]webm.BlockWriteCloser
	out     *writerCloser

	written map[media.Role]int
	lastTS  map[media.Role]int64
	opened  bool
	closed  bool

	// set from the ebml-go writer goroutine
	fatalMu sync.Mutex
	fatal   error
}

// NewWebM creates the output file for a WebM (or Matroska) sink.
func NewWebM(path string, logger *slog.Logger, matroska bool) (*WebM, error) {
	file, err := createPartFile(path)
	if err != nil {
		return nil, err
	}
	return &WebM{
		file:     file,
		logger:   logger.With("component", "webm_sink", "path", path),
		matroska: matroska,
		params:   make(map[media.Role]media.StreamParams),
		trackOf:  bimap.NewBiMap[media.Role, uint64](),
		written:  make(map[media.Role]int),
		lastTS:   make(map[media.Role]int64),
	}, nil
}

func (s *WebM) DeclareStream(role media.Role, params media.StreamParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.opened {
		return ErrAlreadyOpen
	}
	if s.trackOf.Exists(role) {
		return errors.Errorf("%s stream declared twice", role)
	}

	number := uint64(len(s.entries) + 1)
	entry := webm.TrackEntry{
		TrackNumber: number,
		TrackUID:    number,
	}
	switch params.Codec {
	case media.CodecH264:
		private, err := codec.BuildAVCDecoderConfig(params.SPS, params.PPS)
		if err != nil {
			return err
		}
		entry.Name = "Video"
		entry.CodecID = "V_MPEG4/ISO/AVC"
		entry.CodecPrivate = private
		entry.TrackType = 1
		if params.FrameRate > 0 {
			entry.DefaultDuration = uint64(time.Second) / uint64(params.FrameRate)
		}
		entry.Video = &webm.Video{
			PixelWidth:  uint64(params.Width),
			PixelHeight: uint64(params.Height),
		}
	case media.CodecAAC:
		if params.AudioConfig == nil {
			return errors.New("aac stream needs an AudioSpecificConfig")
		}
		private, err := params.AudioConfig.Marshal()
		if err != nil {
			return errors.Wrap(err, "marshal AudioSpecificConfig")
		}
		entry.Name = "Audio"
		entry.CodecID = "A_AAC"
		entry.CodecPrivate = private
		entry.TrackType = 2
		entry.DefaultDuration = uint64(mpeg4audio.SamplesPerAccessUnit) * uint64(time.Second) / uint64(params.AudioConfig.SampleRate)
		entry.Audio = &webm.Audio{
			SamplingFrequency: float64(params.AudioConfig.SampleRate),
			Channels:          uint64(params.AudioConfig.ChannelCount),
		}
	default:
		return errors.Wrapf(ErrUnsupportedCodec, "%s in webm", params.Codec)
	}

	s.entries = append(s.entries, entry)
	s.params[role] = params
	s.trackOf.Insert(role, number)
	s.logger.Debug("Stream declared", "role", role, "codec", entry.CodecID, "track", number)
	return nil
}

// Open writes the EBML header and track list.
func (s *WebM) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.opened {
		return ErrAlreadyOpen
	}
	if len(s.entries) == 0 {
		return errors.New("no streams declared")
	}

	opts := []mkvcore.BlockWriterOption{
		mkvcore.WithOnFatalHandler(func(err error) {
			s.logger.Error("WebM writer failed", "error", err)
			s.fatalMu.Lock()
			s.fatal = err
			s.fatalMu.Unlock()
		}),
	}
	if !s.matroska && !webmCodecsOnly(s.entries) {
		// H.264 and AAC are not WebM codecs; strict WebM players reject them.
		s.logger.Warn("Tracks are not WebM codecs, writing a Matroska DocType")
		s.matroska = true
	}
	if s.matroska {
		header := *webm.DefaultEBMLHeader
		header.DocType = "matroska"
		opts = append(opts, mkvcore.WithEBMLHeader(&header))
	}

	s.out = &writerCloser{writer: s.file, logger: s.logger, done: make(chan struct{})}
	writers, err := webm.NewSimpleBlockWriter(s.out, s.entries, opts...)
	if err != nil {
		return errors.Wrap(err, "create webm writer")
	}

	s.writers = make(map[uint64]webm.BlockWriteCloser, len(writers))
	for i, w := range writers {
		s.writers[s.entries[i].TrackNumber] = w
	}
	s.opened = true
	s.logger.Info("WebM container initialized", "tracks", len(s.entries), "matroska", s.matroska)
	return nil
}

func (s *WebM) Write(frame *media.Frame, role media.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.opened {
		return ErrNotOpen
	}
	if err := s.fatalErr(); err != nil {
		return errors.Wrap(err, "webm writer failed")
	}
	number, ok := s.trackOf.Get(role)
	if !ok {
		return errors.Wrapf(ErrUnknownStream, "%s", role)
	}
	if len(frame.Units) == 0 {
		return nil
	}
	w := s.writers[number]
	ts := media.Rescale(frame.PTS, frame.TimeBase, media.Milliseconds)

	switch s.params[role].Codec {
	case media.CodecH264:
		payload, err := h264.AVCC(frame.Units).Marshal()
		if err != nil {
			return errors.Wrap(err, "marshal avcc")
		}
		if _, err := w.Write(frame.IsKey, ts, payload); err != nil {
			return errors.Wrap(err, "write video block")
		}
	case media.CodecAAC:
		sampleRate := int64(s.params[role].AudioConfig.SampleRate)
		for i, au := range frame.Units {
			auTS := ts + int64(i*mpeg4audio.SamplesPerAccessUnit)*1000/sampleRate
			if _, err := w.Write(true, auTS, au); err != nil {
				return errors.Wrap(err, "write audio block")
			}
		}
	}

	s.written[role]++
	s.lastTS[role] = ts
	return nil
}

func (s *WebM) Close() error {
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

	for number, w := range s.writers {
		if err := w.Close(); err != nil {
			role, _ := s.trackOf.GetInverse(number)
			s.logger.Warn("Block writer close error", "role", role, "error", err)
		}
	}

	// The writer goroutine closes s.out once every track is closed.
	select {
	case <-s.out.done:
	case <-time.After(writerDrainTimeout):
		s.logger.Warn("WebM writer did not drain in time")
	}

	if err := s.fatalErr(); err != nil {
		s.file.discard()
		return errors.Wrap(err, "webm writer failed")
	}
	if err := s.file.commit(); err != nil {
		return err
	}

	attrs := []any{"path", s.file.final}
	for _, entry := range s.entries {
		role, _ := s.trackOf.GetInverse(entry.TrackNumber)
		attrs = append(attrs, role.String()+"_frames", s.written[role], role.String()+"_last_ms", s.lastTS[role])
	}
	s.logger.Info("WebM file finalized", attrs...)
	return nil
}

func webmCodecsOnly(entries []webm.TrackEntry) bool {
	for _, e := range entries {
		switch e.CodecID {
		case "V_VP8", "V_VP9", "V_AV1", "A_OPUS", "A_VORBIS":
		default:
			return false
		}
	}
	return true
}

func (s *WebM) fatalErr() error {
	s.fatalMu.Lock()
	defer s.fatalMu.Unlock()
	return s.fatal
}

// writerCloser hands the output file to ebml-go without letting it close the
// file; done is closed when ebml-go calls Close.
type writerCloser struct {
	writer    io.Writer
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
	failed    bool
}

func (wc *writerCloser) Write(p []byte) (int, error) {
	if wc.failed {
		return 0, ErrClosed
	}
	n, err := wc.writer.Write(p)
	if err != nil {
		wc.logger.Warn("Write error detected, marking writer as failed", "error", err, "data_size", len(p), "bytes_written", n)
		wc.failed = true
	}
	return n, err
}

func (wc *writerCloser) Close() error {
	wc.closeOnce.Do(func() { close(wc.done) })
	return nil
}
