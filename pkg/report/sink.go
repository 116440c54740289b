package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/teslashibe/shelfscan/pkg/catalog"
)

// Sink appends verified scans to a CSV report. It assumes a single writer.
type Sink struct {
	path string
	now  func() time.Time
}

// Option configures a Sink.
type Option func(*Sink)

// WithClock overrides the time source used for the Date and Time columns.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// NewSink creates a sink for the report at path. Nothing is written until
// EnsureInitialized or Append.
func NewSink(path string, opts ...Option) *Sink {
	s := &Sink{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the report file path.
func (s *Sink) Path() string { return s.path }

// Exists reports whether the report file is present.
func (s *Sink) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// EnsureInitialized creates the report with its header if it does not exist.
// An existing file is never touched.
func (s *Sink) EnsureInitialized() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("report: create dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("report: create %s: %w", s.path, err)
	}

	data, err := encodeRow(Header)
	if err == nil {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	return nil
}

// Append writes one row for entry and returns it. The row is encoded up
// front and written with a single append so a failure cannot leave half a
// row behind earlier ones. A report removed since the session started is
// recreated with its header first.
func (s *Sink) Append(code string, entry catalog.Entry) (Record, error) {
	rec := NewRecord(code, entry, s.now())

	data, err := encodeRow(rec.Row())
	if err != nil {
		return Record{}, fmt.Errorf("report: encode row: %w", err)
	}

	if err := s.EnsureInitialized(); err != nil {
		return Record{}, err
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return Record{}, fmt.Errorf("report: open %s: %w", s.path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return Record{}, fmt.Errorf("report: append: %w", err)
	}
	if err := f.Close(); err != nil {
		return Record{}, fmt.Errorf("report: close: %w", err)
	}
	return rec, nil
}

func encodeRow(row []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ReadRecords parses a report file, skipping the header.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", path, err)
	}
	defer f.Close()
	return readRecords(f)
}

func readRecords(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("report: parse: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, recordFromRow(row))
	}
	return records, nil
}
