// Package overlay draws the live-feed annotations onto frames.
package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Title is the banner text drawn across the top of every frame.
const Title = "INTELLIGENT MANAGEMENT SYSTEM - LIVE FEED"

const (
	bannerHeight  = 50
	bannerOpacity = 0.6

	labelWidth  = 250
	labelHeight = 30
	outline     = 3
)

// Colors are RGBA; gocv converts them to BGR scalars.
var (
	ColorAccepted = color.RGBA{G: 255}
	ColorRejected = color.RGBA{R: 255}
	colorBanner   = color.RGBA{}
	colorTitle    = color.RGBA{R: 255, G: 255}
	colorText     = color.RGBA{}
)

// Mark is one outlined, labelled code on the frame.
type Mark struct {
	Polygon  []image.Point
	Rect     image.Rectangle
	Text     string
	Positive bool
}

// Color returns the outline and label color for the mark.
func (m Mark) Color() color.RGBA {
	if m.Positive {
		return ColorAccepted
	}
	return ColorRejected
}

// Banner darkens the top strip of frame and writes Title over it.
func Banner(frame *gocv.Mat) {
	if frame.Empty() {
		return
	}
	shade := frame.Clone()
	defer shade.Close()

	gocv.Rectangle(&shade, image.Rect(0, 0, frame.Cols(), bannerHeight), colorBanner, -1)
	gocv.AddWeighted(shade, bannerOpacity, *frame, 1-bannerOpacity, 0, frame)
	gocv.PutText(frame, Title, image.Pt(20, 35), gocv.FontHersheySimplex, 0.7, colorTitle, 2)
}

// Draw outlines every mark and writes its label above it.
func Draw(frame *gocv.Mat, marks []Mark) {
	for _, m := range marks {
		c := m.Color()
		if len(m.Polygon) > 1 {
			pv := gocv.NewPointsVectorFromPoints([][]image.Point{m.Polygon})
			gocv.Polylines(frame, pv, true, c, outline)
			pv.Close()
		}

		box, origin := LabelBox(m.Rect)
		gocv.Rectangle(frame, box, c, -1)
		gocv.PutText(frame, m.Text, origin, gocv.FontHersheySimplex, 0.6, colorText, 2)
	}
}

// LabelBox returns the filled label rectangle sitting on top of rect and the
// text origin inside it. Labels that would leave the frame are pushed down.
func LabelBox(rect image.Rectangle) (image.Rectangle, image.Point) {
	top := max(rect.Min.Y, labelHeight)
	box := image.Rect(rect.Min.X, top-labelHeight, rect.Min.X+labelWidth, top)
	return box, image.Pt(box.Min.X+5, box.Max.Y-8)
}
