package detection

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/shelfscan/pkg/debug"
)

// cornersPerCode is the number of outline points OpenCV reports per QR code.
const cornersPerCode = 4

// QRDetector decodes QR codes with OpenCV's QRCodeDetector.
type QRDetector struct {
	detector gocv.QRCodeDetector
	mu       sync.Mutex // Protects the native detector
}

// NewQR creates a QR code detector.
func NewQR() *QRDetector {
	return &QRDetector{detector: gocv.NewQRCodeDetector()}
}

// Detect locates every QR code in frame and decodes each one. Codes that are
// located but cannot be decoded are left out.
func (d *QRDetector) Detect(frame gocv.Mat) ([]Region, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	points := gocv.NewMat()
	defer points.Close()

	if !d.detector.DetectMulti(frame, &points) || points.Empty() {
		return nil, nil
	}

	coords, err := points.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("detection: read corners: %w", err)
	}

	polys := polygonsFrom(coords)
	texts := make([]string, len(polys))
	for i := range polys {
		texts[i] = d.decode(frame, coords[i*cornersPerCode*2:(i+1)*cornersPerCode*2])
	}

	regions := regionsFrom(texts, polys)
	if len(regions) > 0 {
		debug.FrameLog("QR decoded", "located", len(polys), "decoded", len(regions))
	}
	return regions, nil
}

// decode reads the code whose outline is corners (x,y pairs).
func (d *QRDetector) decode(frame gocv.Mat, corners []float32) string {
	data := float32Bytes(corners)
	quad, err := gocv.NewMatFromBytes(1, cornersPerCode, gocv.MatTypeCV32FC2, data)
	if err != nil {
		return ""
	}
	defer quad.Close()

	straight := gocv.NewMat()
	defer straight.Close()

	return d.detector.Decode(frame, quad, &straight)
}

// Close releases the detector resources
func (d *QRDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detector.Close()
}

// float32Bytes lays out f in native byte order for NewMatFromBytes.
func float32Bytes(f []float32) []byte {
	b := make([]byte, 4*len(f))
	for i, v := range f {
		binary.NativeEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

// polygonsFrom groups flat x,y corner coordinates into one polygon per code.
func polygonsFrom(coords []float32) [][]image.Point {
	const stride = cornersPerCode * 2
	polys := make([][]image.Point, 0, len(coords)/stride)
	for i := 0; i+stride <= len(coords); i += stride {
		poly := make([]image.Point, cornersPerCode)
		for j := range poly {
			poly[j] = image.Pt(
				int(math.Round(float64(coords[i+2*j]))),
				int(math.Round(float64(coords[i+2*j+1]))),
			)
		}
		polys = append(polys, poly)
	}
	return polys
}

// regionsFrom pairs decoded texts with outlines, dropping undecoded codes.
func regionsFrom(texts []string, polys [][]image.Point) []Region {
	n := min(len(texts), len(polys))
	regions := make([]Region, 0, n)
	for i := 0; i < n; i++ {
		if texts[i] == "" {
			continue
		}
		regions = append(regions, NewRegion(texts[i], polys[i]))
	}
	return regions
}
