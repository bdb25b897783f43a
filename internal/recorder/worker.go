package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/capture"
	"github.com/babelcloud/screenrec/internal/codec"
	"github.com/babelcloud/screenrec/internal/media"
	"github.com/babelcloud/screenrec/internal/sink"
	"github.com/babelcloud/screenrec/internal/util"
)

const defaultProbePackets = 256

// WorkerOptions tunes a Worker.
type WorkerOptions struct {
	// ProbePackets bounds the packets read while discovering codec parameters.
	ProbePackets int
	// LogEvery is the number of written frames between progress lines; 0 disables them.
	LogEvery int
	Bitrate  int
	Logger   *slog.Logger
}

// Worker owns one capture device and forwards its decoded frames to a sink.
type Worker struct {
	role     media.Role
	dev      capture.Device
	handle   *StreamHandle
	logger   *slog.Logger
	logEvery int

	// frames decoded while probing, written first by Run
	queued []*media.Frame

	lastPTS int64
	havePTS bool

	written atomic.Int64
	skipped atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// OpenWorker opens src on backend, binds a decoder to the best stream for
// role and reads ahead until the decoder knows the stream parameters.
func OpenWorker(ctx context.Context, role media.Role, backend capture.Backend, src capture.Source, opts WorkerOptions) (*Worker, error) {
	logger := opts.Logger
	if logger == nil {
		logger = util.GetLogger()
	}
	logger = logger.With("component", "capture_worker", "role", role)

	dev, err := backend.Open(ctx, src)
	if err != nil {
		return nil, kindError(ErrDevice, pkgerrors.Wrapf(err, "open %s device %q", role, src.Name))
	}

	info, err := capture.FindBestStream(dev, role)
	if err != nil {
		dev.Close()
		return nil, kindError(ErrStream, err)
	}

	dec, err := codec.New(info.Codec, codec.Hint{
		Width:      info.Width,
		Height:     info.Height,
		FrameRate:  info.FrameRate,
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		Bitrate:    opts.Bitrate,
	})
	if err != nil {
		dev.Close()
		return nil, kindError(ErrStream, err)
	}

	w := &Worker{
		role: role,
		dev:  dev,
		handle: &StreamHandle{
			Role:           role,
			Decoder:        dec,
			NativeTimeBase: info.TimeBase,
		},
		logger:   logger,
		logEvery: opts.LogEvery,
	}

	budget := opts.ProbePackets
	if budget <= 0 {
		budget = defaultProbePackets
	}
	if err := w.probe(ctx, budget); err != nil {
		w.Close()
		return nil, err
	}

	logger.Info("Capture stream ready",
		"codec", info.Codec,
		"native_time_base", info.TimeBase,
		"time_base", dec.TimeBase(),
		"probed_frames", len(w.queued),
	)
	return w, nil
}

// probe feeds packets to the decoder until it reports its parameters.
func (w *Worker) probe(ctx context.Context, budget int) error {
	for read := 0; ; {
		if params, ok := w.handle.Decoder.Params(); ok {
			w.handle.Params = params
			return nil
		}
		if read >= budget {
			return kindError(ErrStream, pkgerrors.Wrapf(capture.ErrStreamNotFound,
				"no %s parameters after %d packets", w.role, budget))
		}
		if err := ctx.Err(); err != nil {
			return kindError(ErrDevice, err)
		}

		pkt, err := w.dev.ReadPacket()
		switch {
		case errors.Is(err, capture.ErrNotReady):
			continue
		case errors.Is(err, io.EOF):
			return kindError(ErrStream, pkgerrors.Wrapf(capture.ErrStreamNotFound,
				"%s stream ended before its parameters were known", w.role))
		case err != nil:
			return kindError(ErrDevice, pkgerrors.Wrap(err, "probe read"))
		}
		read++

		frame, err := w.handle.Decoder.Decode(pkt)
		switch {
		case errors.Is(err, codec.ErrNeedMoreInput):
		case err != nil:
			return kindError(ErrStream, pkgerrors.Wrap(err, "probe decode"))
		default:
			w.queued = append(w.queued, frame)
		}
	}
}

// Role is the media kind this worker captures.
func (w *Worker) Role() media.Role { return w.role }

// Handle returns the stream handle bound at open time.
func (w *Worker) Handle() *StreamHandle { return w.handle }

// Written is the number of frames handed to the sink so far.
func (w *Worker) Written() int64 { return w.written.Load() }

// Run reads, decodes and writes frames until the gate is stopped or a fatal
// error occurs. A fatal error requests a stop on the gate so sibling workers
// wind down too. End of stream is not an error. The device is closed on return.
func (w *Worker) Run(gate *PauseGate, s sink.Sink) error {
	defer w.Close()

	for {
		if gate.Stopped() {
			w.logger.Debug("Stop observed", "written", w.written.Load(), "skipped", w.skipped.Load())
			return nil
		}
		if !gate.WaitWhilePaused() {
			w.logger.Debug("Stop observed while paused", "written", w.written.Load())
			return nil
		}

		frame, err := w.next()
		if errors.Is(err, io.EOF) {
			w.logger.Info("End of stream, stopping session", "written", w.written.Load())
			gate.RequestStop()
			return nil
		}
		if err != nil {
			w.logger.Error("Capture failed, stopping session", "error", err)
			gate.RequestStop()
			return err
		}
		if frame == nil {
			continue
		}

		frame.Role = w.role
		w.handle.rescale(frame)
		if w.havePTS && frame.PTS < w.lastPTS {
			w.logger.Debug("Clamping non-monotonic timestamp", "pts", frame.PTS, "last", w.lastPTS)
			frame.PTS = w.lastPTS
		}
		w.lastPTS, w.havePTS = frame.PTS, true

		wrote, err := gate.WriteIfRunning(func() error {
			return s.Write(frame, w.role)
		})
		if err != nil {
			w.logger.Error("Sink write failed, stopping session", "error", err)
			gate.RequestStop()
			return kindError(ErrIO, pkgerrors.Wrapf(err, "write %s frame", w.role))
		}
		if !wrote {
			w.skipped.Add(1)
			continue
		}

		if n := w.written.Add(1); w.logEvery > 0 && n%int64(w.logEvery) == 0 {
			w.logger.Debug("Frames written", "count", n, "pts", frame.PTS, "time_base", frame.TimeBase)
		}
	}
}

// next returns the next decoded frame, or nil when the read or the decoder
// produced nothing this iteration.
func (w *Worker) next() (*media.Frame, error) {
	if len(w.queued) > 0 {
		frame := w.queued[0]
		w.queued = w.queued[1:]
		return frame, nil
	}

	pkt, err := w.dev.ReadPacket()
	switch {
	case errors.Is(err, capture.ErrNotReady):
		return nil, nil
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case err != nil:
		return nil, kindError(ErrIO, pkgerrors.Wrapf(err, "read %s packet", w.role))
	}

	frame, err := w.handle.Decoder.Decode(pkt)
	switch {
	case errors.Is(err, codec.ErrNeedMoreInput):
		return nil, nil
	case err != nil:
		return nil, kindError(ErrDecode, pkgerrors.Wrapf(err, "decode %s packet", w.role))
	}
	return frame, nil
}

// Close releases the device. It is safe to call more than once.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.dev.Close()
		w.logger.Debug("Capture device closed", "written", w.written.Load(), "skipped", w.skipped.Load())
	})
	return w.closeErr
}
