package detection

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"gocv.io/x/gocv"

	"github.com/teslashibe/shelfscan/pkg/debug"
)

// barHalfHeight is how far above and below the scan line a 1D code's outline
// is drawn; the decoder only reports the line's end points.
const barHalfHeight = 30

// BarcodeDetector decodes one-dimensional product codes (EAN-8/13, UPC-A/E,
// Code 39/93/128, ITF, Codabar) with ZXing's multi-format 1D reader.
// It finds at most one code per frame.
type BarcodeDetector struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
	mu     sync.Mutex
}

// NewBarcode creates a 1D barcode detector.
func NewBarcode() *BarcodeDetector {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return &BarcodeDetector{
		reader: oned.NewMultiFormatOneDReader(hints),
		hints:  hints,
	}
}

// Detect implements Detector.
func (d *BarcodeDetector) Detect(frame gocv.Mat) ([]Region, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("detection: frame to image: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("detection: binarize: %w", err)
	}

	d.mu.Lock()
	result, err := d.reader.Decode(bmp, d.hints)
	d.mu.Unlock()
	if err != nil {
		// Not found, checksum and format failures all mean nothing readable.
		return nil, nil
	}
	if result.GetText() == "" {
		return nil, nil
	}

	debug.FrameLog("Barcode decoded", "format", result.GetBarcodeFormat().String())
	return []Region{NewRegion(result.GetText(), scanlineOutline(result.GetResultPoints(), img.Bounds()))}, nil
}

// Close implements Detector.
func (d *BarcodeDetector) Close() error { return nil }

// scanlineOutline turns the decoder's scan-line end points into a box around
// the bars, clipped to bounds.
func scanlineOutline(points []gozxing.ResultPoint, bounds image.Rectangle) []image.Point {
	if len(points) == 0 {
		return nil
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		minX, maxX = math.Min(minX, p.GetX()), math.Max(maxX, p.GetX())
		minY, maxY = math.Min(minY, p.GetY()), math.Max(maxY, p.GetY())
	}

	r := image.Rect(
		int(math.Round(minX)), int(math.Round(minY))-barHalfHeight,
		int(math.Round(maxX)), int(math.Round(maxY))+barHalfHeight,
	).Intersect(bounds)
	return []image.Point{r.Min, {r.Max.X, r.Min.Y}, r.Max, {r.Min.X, r.Max.Y}}
}
