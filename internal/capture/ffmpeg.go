package capture

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/media"
	"github.com/babelcloud/screenrec/internal/util"
)

const (
	maxPacketSize  = 16 << 20
	stderrTailSize = 4096
	quitTimeout    = 3 * time.Second
)

// FFmpegBackend captures through an ffmpeg child process. The grabber named by
// Source.Format reads Source.Name; the result is re-encoded to H.264 Annex-B
// (video) or ADTS AAC (audio) and read back from the child's stdout.
type FFmpegBackend struct {
	Path string
}

// NewFFmpegBackend returns a backend running the ffmpeg binary at path.
func NewFFmpegBackend(path string) *FFmpegBackend {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegBackend{Path: path}
}

// Open starts ffmpeg for src.
func (b *FFmpegBackend) Open(ctx context.Context, src Source) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bin, err := exec.LookPath(b.Path)
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceNotFound, "ffmpeg binary %q: %v", b.Path, err)
	}

	info, err := streamInfoFor(src)
	if err != nil {
		return nil, err
	}

	args := BuildArgs(src)
	cmd := exec.Command(bin, args...)
	// A terminal Ctrl-C must not reach ffmpeg before Close asks it to quit.
	setProcGroup(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stdout")
	}
	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr

	logger := util.GetLogger().With("component", "ffmpeg", "role", src.Role.String())
	logger.Debug("Starting ffmpeg", "args", args)
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(ErrDeviceNotFound, "start ffmpeg: %v", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxPacketSize)
	if src.Role == media.RoleVideo {
		scanner.Split(SplitAccessUnits)
	} else {
		scanner.Split(SplitADTSFrames)
	}

	return &ffmpegDevice{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		scanner: scanner,
		info:    info,
		logger:  logger,
	}, nil
}

func streamInfoFor(src Source) (StreamInfo, error) {
	switch src.Role {
	case media.RoleVideo:
		if src.FrameRate <= 0 {
			return StreamInfo{}, errors.Errorf("invalid frame rate %d", src.FrameRate)
		}
		info := StreamInfo{
			Role:      media.RoleVideo,
			Codec:     media.CodecH264,
			TimeBase:  media.NewRational(1, int64(src.FrameRate)),
			FrameRate: src.FrameRate,
		}
		if w, h, ok := parseVideoSize(src.Options["video_size"]); ok {
			info.Width, info.Height = w, h
		}
		return info, nil
	case media.RoleAudio:
		if src.SampleRate <= 0 {
			return StreamInfo{}, errors.Errorf("invalid sample rate %d", src.SampleRate)
		}
		return StreamInfo{
			Role:       media.RoleAudio,
			Codec:      media.CodecAAC,
			TimeBase:   media.NewRational(1, int64(src.SampleRate)),
			SampleRate: src.SampleRate,
		}, nil
	default:
		return StreamInfo{}, errors.Errorf("unsupported role %s", src.Role)
	}
}

// BuildArgs returns the ffmpeg command line for src.
func BuildArgs(src Source) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, "-f", src.Format)
	args = appendOptions(args, src.Options)
	args = append(args, "-i", src.Name)

	switch src.Role {
	case media.RoleVideo:
		fps := strconv.Itoa(src.FrameRate)
		args = append(args,
			"-map", "0:v:0", "-an",
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-r", fps,
			"-g", strconv.Itoa(src.FrameRate*2),
			"-bf", "0",
		)
		args = appendOptions(args, src.Encode)
		args = append(args, "-bsf:v", "h264_metadata=aud=insert", "-f", "h264", "pipe:1")
	case media.RoleAudio:
		args = append(args,
			"-map", "0:a:0", "-vn",
			"-c:a", "aac",
			"-ar", strconv.Itoa(src.SampleRate),
		)
		args = appendOptions(args, src.Encode)
		args = append(args, "-f", "adts", "pipe:1")
	}
	return args
}

func appendOptions(args []string, opts map[string]string) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-"+k, opts[k])
	}
	return args
}

type ffmpegDevice struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  *tailBuffer
	scanner *bufio.Scanner
	info    StreamInfo
	logger  *slog.Logger

	packets int64
	samples int64

	closeOnce sync.Once
	closeErr  error
}

func (d *ffmpegDevice) Streams() []StreamInfo {
	return []StreamInfo{d.info}
}

func (d *ffmpegDevice) ReadPacket() (*media.Packet, error) {
	if !d.scanner.Scan() {
		if err := d.scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "read ffmpeg output")
		}
		if d.packets == 0 {
			// The grabber failed before producing anything.
			_ = d.cmd.Wait()
			return nil, errors.Wrapf(ErrDeviceNotFound, "ffmpeg exited: %s", bytes.TrimSpace(d.stderr.Bytes()))
		}
		return nil, io.EOF
	}

	data := append([]byte(nil), d.scanner.Bytes()...)
	pkt := &media.Packet{
		StreamIndex: d.info.Index,
		Data:        data,
		TimeBase:    d.info.TimeBase,
	}
	if d.info.Role == media.RoleVideo {
		pkt.PTS = d.packets
	} else {
		pkt.PTS = d.samples
		d.samples += int64(adtsSamples(data))
	}
	d.packets++
	return pkt, nil
}

// Close asks ffmpeg to quit and kills it if it does not within quitTimeout.
// Output flushed while quitting is discarded.
func (d *ffmpegDevice) Close() error {
	d.closeOnce.Do(func() {
		drained := make(chan struct{})
		go func() {
			_, _ = io.Copy(io.Discard, d.stdout)
			close(drained)
		}()

		_, _ = d.stdin.Write([]byte("q"))
		_ = d.stdin.Close()

		done := make(chan error, 1)
		go func() {
			// Wait closes stdout, so reads must finish first.
			<-drained
			done <- d.cmd.Wait()
		}()
		select {
		case <-done:
		case <-time.After(quitTimeout):
			d.logger.Warn("ffmpeg did not quit, killing", "pid", d.cmd.Process.Pid)
			if err := d.cmd.Process.Kill(); err != nil {
				d.closeErr = errors.Wrap(err, "kill ffmpeg")
			}
			<-done
		}
		d.logger.Debug("ffmpeg closed", "packets", d.packets)
	})
	return d.closeErr
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.buf...)
}
