package recorder

import (
	"github.com/babelcloud/screenrec/internal/codec"
	"github.com/babelcloud/screenrec/internal/media"
)

// StreamHandle binds a discovered device stream to its decoder. It is
// immutable after OpenWorker and lives exactly as long as its worker.
type StreamHandle struct {
	Role           media.Role
	Decoder        codec.Decoder
	NativeTimeBase media.Rational
	Params         media.StreamParams
}

// rescale moves frame into the decoder time base.
func (h *StreamHandle) rescale(frame *media.Frame) {
	from := frame.TimeBase
	if !from.Valid() {
		from = h.NativeTimeBase
	}
	to := h.Decoder.TimeBase()
	if !to.Valid() {
		frame.TimeBase = from
		return
	}
	frame.PTS = media.Rescale(frame.PTS, from, to)
	frame.TimeBase = to
}
