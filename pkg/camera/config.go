// Package camera opens the frame source for a scanning session.
package camera

import "fmt"

// Display limits.
const (
	MinDisplayWidth  = 160
	MinDisplayHeight = 120
	MaxDisplayWidth  = 3840
	MaxDisplayHeight = 2160
)

// Config holds frame source and display sizing parameters.
type Config struct {
	// StreamURL is the primary source: a network stream locator
	// (http://, rtsp://, webrtc://) or anything OpenCV accepts.
	StreamURL string `json:"stream_url"`

	// FallbackDevice is the local capture index tried when StreamURL fails.
	FallbackDevice int `json:"fallback_device"`

	// Frames are resized to DisplayWidth x DisplayHeight before detection.
	DisplayWidth  int `json:"display_width"`
	DisplayHeight int `json:"display_height"`

	// BufferSize is the requested capture queue length. 1 keeps only the
	// latest frame so annotations track the live scene.
	BufferSize int `json:"buffer_size"`
}

// DefaultConfig returns the phone IP-webcam setup with the laptop webcam as fallback.
func DefaultConfig() Config {
	return Config{
		StreamURL:      "http://192.0.0.4:8080/video",
		FallbackDevice: 0,
		DisplayWidth:   900,
		DisplayHeight:  600,
		BufferSize:     1,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.DisplayWidth < MinDisplayWidth || c.DisplayWidth > MaxDisplayWidth {
		errors = append(errors, fmt.Sprintf("display_width must be between %d and %d", MinDisplayWidth, MaxDisplayWidth))
	}
	if c.DisplayHeight < MinDisplayHeight || c.DisplayHeight > MaxDisplayHeight {
		errors = append(errors, fmt.Sprintf("display_height must be between %d and %d", MinDisplayHeight, MaxDisplayHeight))
	}
	if c.FallbackDevice < 0 {
		errors = append(errors, "fallback_device must be >= 0")
	}
	if c.BufferSize < 0 {
		errors = append(errors, "buffer_size must be >= 0")
	}

	return errors
}
