package video

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

const (
	// minNALBytes skips batches too small to hold a decodable picture.
	minNALBytes = 100
	// minJPEGBytes rejects ffmpeg output that is an error stub rather than a frame.
	minJPEGBytes  = 1000
	ffmpegTimeout = time.Second
)

var jpegSOI = []byte{0xFF, 0xD8, 0xFF}

// decoder turns an Annex-B H264 batch into the JPEG of its last picture
// using a piped ffmpeg process.
type decoder struct {
	binary  string
	timeout time.Duration
}

func newDecoder() *decoder {
	return &decoder{binary: "ffmpeg", timeout: ffmpegTimeout}
}

// decode returns nil, nil when the batch holds no complete picture yet.
func (d *decoder) decode(annexB []byte) ([]byte, error) {
	if len(annexB) < minNALBytes {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary,
		"-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(annexB)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		// ffmpeg exits non-zero when the batch starts mid-GOP
		if stdout.Len() == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("video: ffmpeg: %w: %s", err, stderr.String())
	}

	return lastJPEG(stdout.Bytes()), nil
}

// lastJPEG returns the final image of an MJPEG stream, or nil if it is too
// short to be a frame.
func lastJPEG(stream []byte) []byte {
	i := bytes.LastIndex(stream, jpegSOI)
	if i < 0 || len(stream)-i < minJPEGBytes {
		return nil
	}
	return stream[i:]
}
