package sink

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/media"
)

var (
	ErrUnsupportedContainer = errors.New("unsupported container")
	ErrUnsupportedCodec     = errors.New("codec not supported by container")
	ErrAlreadyOpen          = errors.New("sink already open")
	ErrNotOpen              = errors.New("sink not open")
	ErrUnknownStream        = errors.New("stream not declared")
	ErrClosed               = errors.New("sink closed")
)

// Sink multiplexes decoded frames of up to one video and one audio stream
// into a container file.
//
// Streams are declared before Open. Write may be called from several
// goroutines; each call is written atomically. Close finalizes the file and
// moves it to its final path; closing a sink that was never opened discards
// the output.
type Sink interface {
	DeclareStream(role media.Role, params media.StreamParams) error
	Open() error
	Write(frame *media.Frame, role media.Role) error
	Close() error
}

// Factory creates the sink for an output path.
type Factory func(path string, logger *slog.Logger) (Sink, error)

// New creates a sink for path, choosing the container by file extension.
func New(path string, logger *slog.Logger) (Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".mov":
		return NewFMP4(path, logger)
	case ".webm":
		return NewWebM(path, logger, false)
	case ".mkv":
		return NewWebM(path, logger, true)
	default:
		return nil, pkgerrors.Wrapf(ErrUnsupportedContainer, "%q", filepath.Ext(path))
	}
}
