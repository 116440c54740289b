package detection

import (
	"errors"

	"gocv.io/x/gocv"
)

// Combined runs several detectors over each frame and merges their regions.
// A code decoded by more than one detector is reported once.
type Combined struct {
	detectors []Detector
}

// NewCombined wraps detectors, which are run in order.
func NewCombined(detectors ...Detector) *Combined {
	return &Combined{detectors: detectors}
}

// Detect implements Detector. It fails only when every detector fails.
func (c *Combined) Detect(frame gocv.Mat) ([]Region, error) {
	var (
		regions []Region
		errs    []error
		seen    = make(map[string]bool)
	)
	for _, d := range c.detectors {
		found, err := d.Detect(frame)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, r := range found {
			if !seen[r.Text] {
				seen[r.Text] = true
				regions = append(regions, r)
			}
		}
	}
	if len(errs) > 0 && len(errs) == len(c.detectors) {
		return nil, errors.Join(errs...)
	}
	return regions, nil
}

// Close implements Detector.
func (c *Combined) Close() error {
	var errs []error
	for _, d := range c.detectors {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
