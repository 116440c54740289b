package detection

import (
	"sync"

	"gocv.io/x/gocv"
)

// Mock is a scripted Detector for tests. Each Detect call consumes the next
// entry of Frames and Errs; once exhausted it returns nothing.
type Mock struct {
	mu     sync.Mutex
	Frames [][]Region
	Errs   []error
	calls  int
	closed bool
}

// NewMock creates a mock that returns the given regions frame by frame.
func NewMock(frames ...[]Region) *Mock {
	return &Mock{Frames: frames}
}

// Detect implements Detector.
func (m *Mock) Detect(frame gocv.Mat) ([]Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.calls
	m.calls++
	if i < len(m.Errs) && m.Errs[i] != nil {
		return nil, m.Errs[i]
	}
	if i < len(m.Frames) {
		return m.Frames[i], nil
	}
	return nil, nil
}

// Close implements Detector.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Detect ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
