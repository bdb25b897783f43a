package recorder

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/babelcloud/screenrec/internal/capture"
	"github.com/babelcloud/screenrec/internal/media"
	"github.com/babelcloud/screenrec/internal/sink"
	"github.com/babelcloud/screenrec/internal/util"
)

// Session drives one recording: it owns the sink, the workers and the pause
// gate they share, and moves through
// Idle -> Configured -> Recording <-> Paused -> Stopped.
//
// Control methods may be called from any goroutine.
type Session struct {
	registry *capture.Registry
	newSink  sink.Factory
	logger   *slog.Logger
	goos     string

	// serializes Configure, Start, Pause, Resume and Stop
	mu    sync.Mutex
	state atomic.Int32
	cur   atomic.Pointer[run]
}

// run is everything built by one successful Configure.
type run struct {
	id      string
	cfg     SessionConfig
	logger  *slog.Logger
	gate    *PauseGate
	sink    sink.Sink
	workers []*Worker

	spawned  atomic.Int32
	wg       sync.WaitGroup
	done     chan struct{}
	finalize sync.Once

	errMu    sync.Mutex
	firstErr error
	result   error
	reported bool
}

// Option configures a Session.
type Option func(*Session)

// WithRegistry sets the capture backends the session opens devices from.
func WithRegistry(r *capture.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithSinkFactory replaces sink.New.
func WithSinkFactory(f sink.Factory) Option {
	return func(s *Session) { s.newSink = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithGOOS overrides the platform used for capture option names.
func WithGOOS(goos string) Option {
	return func(s *Session) { s.goos = goos }
}

// NewSession returns an Idle session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		newSink: sink.New,
		goos:    runtime.GOOS,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = capture.NewDefaultRegistry("ffmpeg", nil)
	}
	if s.logger == nil {
		s.logger = util.GetLogger()
	}
	s.state.Store(int32(StateIdle))
	return s
}

// State is a lock-free snapshot of the lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// IsPaused is a lock-free snapshot; it may lag by one transition.
func (s *Session) IsPaused() bool {
	return s.State() == StatePaused
}

// ID identifies the current configuration. It is empty before the first
// successful Configure.
func (s *Session) ID() string {
	if r := s.cur.Load(); r != nil {
		return r.id
	}
	return ""
}

// Done is closed once the session reaches Stopped, including a stop caused
// by a worker failure. It returns nil before the first successful Configure.
func (s *Session) Done() <-chan struct{} {
	if r := s.cur.Load(); r != nil {
		return r.done
	}
	return nil
}

// Err returns the final error of a stopped session.
func (s *Session) Err() error {
	r := s.cur.Load()
	if r == nil {
		return nil
	}
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.result
}

// Configure builds the sink and the workers for cfg. It is valid from Idle
// or Stopped; on failure everything opened so far is released and the
// session is left Idle with no previous recording attached.
func (s *Session) Configure(ctx context.Context, cfg SessionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch st := s.State(); st {
	case StateIdle, StateStopped:
	default:
		return pkgerrors.Wrapf(ErrInvalidState, "configure while %s", st)
	}

	r, err := s.build(ctx, cfg)
	if err != nil {
		s.cur.Store(nil)
		s.state.Store(int32(StateIdle))
		s.logger.Warn("Configure failed", "error", err)
		return err
	}

	s.cur.Store(r)
	s.state.Store(int32(StateConfigured))
	r.logger.Info("Session configured",
		"output", cfg.OutputPath,
		"region", cfg.Region,
		"audio", cfg.AudioEnabled,
		"workers", len(r.workers),
	)
	return nil
}

func (s *Session) build(ctx context.Context, cfg SessionConfig) (_ *run, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		id:   uuid.NewString(),
		cfg:  cfg,
		gate: NewPauseGate(),
		done: make(chan struct{}),
	}
	r.logger = s.logger.With("session", r.id)

	defer func() {
		if err == nil {
			return
		}
		for _, w := range r.workers {
			w.Close()
		}
		if r.sink != nil {
			if cerr := r.sink.Close(); cerr != nil {
				r.logger.Warn("Failed to discard output", "error", cerr)
			}
		}
	}()

	r.sink, err = s.newSink(cfg.OutputPath, r.logger)
	if err != nil {
		return nil, kindError(ErrConfig, pkgerrors.Wrapf(err, "create output %s", cfg.OutputPath))
	}

	video, err := s.openWorker(ctx, r, media.RoleVideo, cfg.Video, cfg.videoSource(s.goos))
	if err != nil {
		return nil, err
	}
	r.workers = append(r.workers, video)

	if cfg.AudioEnabled {
		audio, err := s.openWorker(ctx, r, media.RoleAudio, cfg.Audio, cfg.audioSource())
		if err != nil {
			return nil, err
		}
		r.workers = append(r.workers, audio)
	}

	for _, w := range r.workers {
		params := w.Handle().Params
		if w.role == media.RoleAudio {
			params.Bitrate = cfg.Audio.Bitrate
		}
		if err := r.sink.DeclareStream(w.role, params); err != nil {
			return nil, kindError(ErrStream, pkgerrors.Wrapf(err, "declare %s stream", w.role))
		}
	}
	if err := r.sink.Open(); err != nil {
		return nil, kindError(ErrIO, pkgerrors.Wrap(err, "open output"))
	}
	return r, nil
}

func (s *Session) openWorker(ctx context.Context, r *run, role media.Role, dc DeviceConfig, src capture.Source) (*Worker, error) {
	backend, err := s.registry.Lookup(dc.Backend)
	if err != nil {
		return nil, kindError(ErrDevice, err)
	}
	return OpenWorker(ctx, role, backend, src, WorkerOptions{
		ProbePackets: r.cfg.ProbePackets,
		LogEvery:     dc.LogEvery,
		Bitrate:      dc.Bitrate,
		Logger:       r.logger,
	})
}

// Start spawns one goroutine per worker and returns immediately. Calling it
// on a running session does nothing.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch st := s.State(); st {
	case StateRecording, StatePaused:
		return nil
	case StateConfigured:
	default:
		return pkgerrors.Wrapf(ErrInvalidState, "start while %s", st)
	}

	r := s.cur.Load()
	s.state.Store(int32(StateRecording))

	for _, w := range r.workers {
		r.wg.Add(1)
		r.spawned.Add(1)
		go func() {
			defer r.wg.Done()
			if err := w.Run(r.gate, r.sink); err != nil {
				r.recordErr(err)
			}
		}()
	}

	// Finalizes the sink when every worker is gone, whether Stop asked for it
	// or a worker hit a fatal condition on its own.
	go func() {
		r.wg.Wait()
		s.finalize(r)
	}()

	r.logger.Info("Recording started", "workers", len(r.workers))
	return nil
}

// Pause stops frames from reaching the sink. It does nothing unless the
// session is Recording.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(int32(StateRecording), int32(StatePaused)) {
		return
	}
	r := s.cur.Load()
	r.gate.Pause()
	r.logger.Info("Recording paused")
}

// Resume undoes Pause. It does nothing unless the session is Paused.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(int32(StatePaused), int32(StateRecording)) {
		return
	}
	r := s.cur.Load()
	r.gate.Resume()
	r.logger.Info("Recording resumed")
}

// Stop asks the workers to exit, waits for them and finalizes the output.
// It returns the first fatal worker error combined with the finalization
// error; the error is returned once, later calls return nil.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.cur.Load()
	switch s.State() {
	case StateIdle:
		return nil
	case StateConfigured:
		s.finalize(r)
	case StateRecording, StatePaused:
		r.gate.RequestStop()
		<-r.done
	case StateStopped:
	}
	return r.takeResult()
}

// finalize closes every device and the sink, then moves the session to
// Stopped. Only the first call has an effect.
func (s *Session) finalize(r *run) {
	r.finalize.Do(func() {
		for _, w := range r.workers {
			w.Close()
		}
		sinkErr := r.sink.Close()

		r.errMu.Lock()
		r.result = multierr.Append(r.firstErr, kindError(ErrIO, sinkErr))
		result := r.result
		r.errMu.Unlock()

		s.state.Store(int32(StateStopped))
		close(r.done)

		attrs := []any{"spawned", r.spawned.Load()}
		for _, w := range r.workers {
			attrs = append(attrs, w.role.String()+"_frames", w.Written())
		}
		if result != nil {
			r.logger.Error("Recording stopped with error", append(attrs, "error", result)...)
			return
		}
		r.logger.Info("Recording stopped", attrs...)
	})
}

func (r *run) recordErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.firstErr == nil {
		r.firstErr = err
	}
}

func (r *run) takeResult() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.reported {
		return nil
	}
	r.reported = true
	return r.result
}
