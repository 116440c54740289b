// Package debug provides global debug logging flags
package debug

import "github.com/teslashibe/shelfscan/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls whether per-frame detection logs are shown.
// These fire many times a second, so they have their own flag (--debug-frames).
var Frames bool

// Log emits a debug message only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// FrameLog emits a debug message only if frame debug mode is enabled
func FrameLog(msg string, args ...any) {
	if Frames {
		log.Debug(msg, args...)
	}
}
