// Package detection finds and decodes machine-readable codes in frames.
// Decoding itself is done by OpenCV; this package adapts its output.
package detection

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when Detect is given a frame without pixels.
var ErrEmptyFrame = errors.New("detection: empty frame")

// Region is one decoded code and where it sits in the frame.
type Region struct {
	// Text is the decoded payload.
	Text string `json:"text"`
	// Polygon is the code outline in frame pixels, usually four corners.
	Polygon []image.Point `json:"polygon"`
	// Rect is the axis-aligned bounding box of Polygon.
	Rect image.Rectangle `json:"rect"`
}

// Detector is the interface for code detection backends.
type Detector interface {
	// Detect returns every decoded code in frame.
	Detect(frame gocv.Mat) ([]Region, error)

	// Close releases resources
	Close() error
}

// NewRegion builds a Region from its outline, computing the bounding box.
func NewRegion(text string, polygon []image.Point) Region {
	return Region{Text: text, Polygon: polygon, Rect: bounds(polygon)}
}

func bounds(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}
