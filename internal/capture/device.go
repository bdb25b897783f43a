package capture

import (
	"context"
	"errors"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/babelcloud/screenrec/internal/media"
)

var (
	// ErrDeviceNotFound is returned when a backend cannot open the requested source.
	ErrDeviceNotFound = errors.New("capture device not found")
	// ErrStreamNotFound is returned when an opened device has no stream for a role.
	ErrStreamNotFound = errors.New("no compatible stream")
	// ErrNotReady is a transient condition; the caller retries the read immediately.
	ErrNotReady = errors.New("device not ready")
)

// Source describes what to capture. Format, Name and Options are passed to
// the backend verbatim; their meaning is backend defined.
type Source struct {
	Role    media.Role
	Format  string            // input format, e.g. x11grab, gdigrab, alsa, dshow
	Name    string            // device or file name, e.g. ":0.0", "default"
	Options map[string]string // input options, e.g. video_size, framerate, grab_x
	Encode  map[string]string // output options applied by encoding backends

	FrameRate  int
	SampleRate int
}

// StreamInfo describes one stream exposed by an opened device.
type StreamInfo struct {
	Index    int
	Role     media.Role
	Codec    media.Codec
	TimeBase media.Rational

	Width      int
	Height     int
	FrameRate  int
	SampleRate int
	Channels   int
	BitDepth   int
}

// Device is an opened capture source.
type Device interface {
	// Streams lists the streams the device produces.
	Streams() []StreamInfo

	// ReadPacket returns the next raw packet. It returns ErrNotReady when
	// nothing is available yet, io.EOF at end of stream, or a hard I/O error.
	ReadPacket() (*media.Packet, error)

	// Close releases the device. It is safe to call more than once.
	Close() error
}

// Backend opens devices of one kind (an ffmpeg grabber, a WAV file, ...).
type Backend interface {
	Open(ctx context.Context, src Source) (Device, error)
}

// FindBestStream returns the first stream of the device matching role.
func FindBestStream(dev Device, role media.Role) (StreamInfo, error) {
	for _, s := range dev.Streams() {
		if s.Role == role {
			return s, nil
		}
	}
	return StreamInfo{}, pkgerrors.Wrapf(ErrStreamNotFound, "no %s stream", role)
}

// Registry maps backend names to backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds or replaces a backend.
func (r *Registry) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
}

// Lookup returns the backend registered under name.
func (r *Registry) Lookup(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return nil, pkgerrors.Wrapf(ErrDeviceNotFound, "no capture backend %q", name)
	}
	return b, nil
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDefaultRegistry returns a registry holding the "ffmpeg" and "wav" backends.
func NewDefaultRegistry(ffmpegPath string, c clock.Clock) *Registry {
	r := NewRegistry()
	r.Register("ffmpeg", NewFFmpegBackend(ffmpegPath))
	r.Register("wav", NewWAVBackend(c))
	return r
}
