package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// MaxGOPBytes bounds the buffered group of pictures. A longer GOP is
// dropped until the next keyframe.
const MaxGOPBytes = 8 << 20

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FastDecoder decodes H264 to JPEG through ffmpeg with pipe I/O. It keeps
// the stream since the last keyframe so any unit can be decoded, and rate
// limits decoding to minInterval.
type FastDecoder struct {
	mu          sync.Mutex
	gop         bytes.Buffer
	synced      bool
	lastDecode  time.Time
	minInterval time.Duration
	timeout     time.Duration
	quality     int

	frameMu     sync.RWMutex
	latestFrame []byte
}

// NewFastDecoder creates a decoder. decodeInterval controls how often we
// decode (e.g., 50ms = 20 FPS max).
func NewFastDecoder(decodeInterval time.Duration) *FastDecoder {
	return &FastDecoder{
		minInterval: decodeInterval,
		timeout:     500 * time.Millisecond,
		quality:     3,
	}
}

// DecodeUnit appends an access unit and, when the rate limit allows,
// returns the newest picture as JPEG. It returns nil until a keyframe
// has been seen.
func (d *FastDecoder) DecodeUnit(unit []byte) ([]byte, error) {
	d.mu.Lock()
	if IsKeyframe(unit) {
		d.gop.Reset()
		d.synced = true
	}
	if !d.synced {
		d.mu.Unlock()
		return nil, nil
	}
	if d.gop.Len()+len(unit) > MaxGOPBytes {
		d.gop.Reset()
		d.synced = false
		d.mu.Unlock()
		return nil, fmt.Errorf("gop exceeds %d bytes, waiting for keyframe", MaxGOPBytes)
	}
	d.gop.Write(unit)

	if time.Since(d.lastDecode) < d.minInterval {
		d.mu.Unlock()
		return nil, nil
	}
	d.lastDecode = time.Now()
	stream := make([]byte, d.gop.Len())
	copy(stream, d.gop.Bytes())
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	out, err := d.run(ctx, stream)
	if err != nil {
		return nil, err
	}

	jpeg := LastJPEG(out)
	if jpeg == nil {
		return nil, errors.New("ffmpeg produced no picture")
	}
	d.frameMu.Lock()
	d.latestFrame = jpeg
	d.frameMu.Unlock()
	return jpeg, nil
}

func (d *FastDecoder) run(ctx context.Context, stream []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-f", "h264", // Input format
		"-i", "pipe:0", // Read from stdin
		"-f", "image2pipe", // Output as pipe
		"-vcodec", "mjpeg", // Output as JPEG
		"-q:v", fmt.Sprint(d.quality), // Quality (1-31, lower is better)
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(stream)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// ffmpeg exits non-zero on a truncated tail but still emits
		// the pictures before it
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("ffmpeg: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
	}
	return stdout.Bytes(), nil
}

// LastJPEG returns the last complete JPEG in a concatenated image2pipe
// stream, or nil
func LastJPEG(stream []byte) []byte {
	start := bytes.LastIndex(stream, jpegSOI)
	for start >= 0 {
		end := bytes.LastIndex(stream[start:], jpegEOI)
		if end >= 0 {
			out := make([]byte, end+len(jpegEOI))
			copy(out, stream[start:start+end+len(jpegEOI)])
			return out
		}
		start = bytes.LastIndex(stream[:start], jpegSOI)
	}
	return nil
}

// LatestFrame returns the most recently decoded frame
func (d *FastDecoder) LatestFrame() []byte {
	d.frameMu.RLock()
	defer d.frameMu.RUnlock()
	if d.latestFrame == nil {
		return nil
	}
	frame := make([]byte, len(d.latestFrame))
	copy(frame, d.latestFrame)
	return frame
}
