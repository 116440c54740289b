package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/shelfscan/internal/httpc"
	"github.com/teslashibe/shelfscan/internal/log"
	"github.com/teslashibe/shelfscan/pkg/debug"
	"github.com/teslashibe/shelfscan/pkg/video"
)

// ErrNoSource is returned when neither the primary nor the fallback source opens.
var ErrNoSource = errors.New("camera: no frame source available")

// webrtcConnectTimeout bounds signalling + first video track for webrtc:// sources.
const webrtcConnectTimeout = 20 * time.Second

// Capture is a blocking frame reader. *gocv.VideoCapture satisfies it.
type Capture interface {
	// Read fills m with the next frame; false means end of stream.
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener opens a capture for a device: a string address or an int index.
type Opener func(device any) (Capture, error)

// Source is an opened frame source. It must be closed on every exit path.
type Source struct {
	capture  Capture
	name     string
	fallback bool
	closed   bool
}

// Open tries cfg.StreamURL first and cfg.FallbackDevice second.
// If both fail it returns ErrNoSource and nothing is left open.
func Open(cfg Config, open Opener) (*Source, error) {
	var primaryErr error
	if cfg.StreamURL != "" {
		log.Info("Connecting to stream", "address", cfg.StreamURL)
		capture, err := open(cfg.StreamURL)
		if err == nil {
			return &Source{capture: capture, name: cfg.StreamURL}, nil
		}
		primaryErr = err
		log.Warn("Stream not available, trying local camera",
			"address", cfg.StreamURL, "device", cfg.FallbackDevice, "error", err.Error())
	} else {
		debug.Log("No stream address configured, opening local camera", "device", cfg.FallbackDevice)
	}

	capture, err := open(cfg.FallbackDevice)
	if err != nil {
		if primaryErr != nil {
			return nil, fmt.Errorf("%w: primary %q: %v; fallback %d: %v",
				ErrNoSource, cfg.StreamURL, primaryErr, cfg.FallbackDevice, err)
		}
		return nil, fmt.Errorf("%w: fallback %d: %v", ErrNoSource, cfg.FallbackDevice, err)
	}
	debug.Log("Fallback source selected", "device", cfg.FallbackDevice, "primary_failed", primaryErr != nil)
	return &Source{
		capture:  capture,
		name:     fmt.Sprintf("device:%d", cfg.FallbackDevice),
		fallback: true,
	}, nil
}

// Read fills m with the next frame. It returns false at end of stream or after Close.
func (s *Source) Read(m *gocv.Mat) bool {
	if s.closed {
		return false
	}
	return s.capture.Read(m)
}

// Close releases the underlying device. Safe to call more than once.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.capture.Close()
}

// Name identifies the opened source for logs and the dashboard.
func (s *Source) Name() string { return s.name }

// UsedFallback reports whether the local fallback device was opened.
func (s *Source) UsedFallback() bool { return s.fallback }

// DefaultOpener opens webrtc:// addresses through the video package and
// everything else through OpenCV. HTTP addresses are probed first, since
// OpenCV can block for a long time on an unreachable host.
func DefaultOpener(cfg Config) Opener {
	cv := OpenCV(cfg.BufferSize)
	return func(device any) (Capture, error) {
		addr, ok := device.(string)
		switch {
		case ok && strings.HasPrefix(addr, video.Scheme):
			ctx, cancel := context.WithTimeout(context.Background(), webrtcConnectTimeout)
			defer cancel()
			client, err := video.Dial(ctx, addr)
			if err != nil {
				return nil, err
			}
			return client, nil
		case ok && (strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://")):
			ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultProbeTimeout)
			defer cancel()
			if err := httpc.Probe(ctx, nil, addr); err != nil {
				return nil, err
			}
		}
		return cv(device)
	}
}

// OpenCV returns an Opener backed by gocv.VideoCapture.
func OpenCV(bufferSize int) Opener {
	return func(device any) (Capture, error) {
		vc, err := gocv.OpenVideoCapture(device)
		if err != nil {
			return nil, err
		}
		if !vc.IsOpened() {
			vc.Close()
			return nil, fmt.Errorf("capture %v: not opened", device)
		}
		if bufferSize > 0 {
			vc.Set(gocv.VideoCaptureBufferSize, float64(bufferSize))
		}
		return vc, nil
	}
}
