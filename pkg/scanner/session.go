// Package scanner runs the scan loop: it pulls frames, classifies decoded
// codes against the catalog and logs each verified code once per session.
package scanner

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/shelfscan/internal/log"
	"github.com/teslashibe/shelfscan/pkg/catalog"
	"github.com/teslashibe/shelfscan/pkg/detection"
	"github.com/teslashibe/shelfscan/pkg/notify"
	"github.com/teslashibe/shelfscan/pkg/overlay"
	"github.com/teslashibe/shelfscan/pkg/report"
)

// UnregisteredLabel is shown over codes missing from the catalog.
const UnregisteredLabel = "UNREGISTERED ITEM"

// Verdict classifies one sighting of a code.
type Verdict int

const (
	// Unregistered codes are not in the catalog and never recorded.
	Unregistered Verdict = iota
	// Known codes are in the catalog and were already handled this session.
	Known
	// Accepted marks the first sighting of a catalog code; a record was appended.
	Accepted
)

func (v Verdict) String() string {
	switch v {
	case Known:
		return "known"
	case Accepted:
		return "accepted"
	default:
		return "unregistered"
	}
}

// MarshalText renders the verdict by name in JSON.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Appender persists verified scans. *report.Sink implements it.
type Appender interface {
	Append(code string, entry catalog.Entry) (report.Record, error)
}

// Annotation is the outcome of processing one detected region.
type Annotation struct {
	Region  detection.Region
	Verdict Verdict
	Label   string
	Entry   catalog.Entry

	// First is set on the first sighting of the code this session.
	First bool
	// Record is set when Verdict is Accepted.
	Record *report.Record
	// Err holds the append failure for a known code that could not be recorded.
	Err error
}

// Positive reports whether the code is in the catalog.
func (a Annotation) Positive() bool {
	return a.Verdict != Unregistered
}

// Mark converts the annotation for drawing.
func (a Annotation) Mark() overlay.Mark {
	return overlay.Mark{
		Polygon:  a.Region.Polygon,
		Rect:     a.Region.Rect,
		Text:     a.Label,
		Positive: a.Positive(),
	}
}

// Stats counts what a session has processed.
type Stats struct {
	Frames       int `json:"frames"`
	Detections   int `json:"detections"`
	Accepted     int `json:"accepted"`
	Unregistered int `json:"unregistered"`
	AppendErrors int `json:"append_errors"`
}

// Session is the per-run state owned by the scan loop: which codes have been
// verified and the records appended for them.
type Session struct {
	ID      string
	Started time.Time

	catalog  *catalog.Catalog
	sink     Appender
	notifier notify.Notifier
	console  io.Writer

	seen    map[string]struct{}
	unknown map[string]struct{}
	records []report.Record
	stats   Stats
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithNotifier sets the hook told about each accepted scan.
func WithNotifier(n notify.Notifier) SessionOption {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithConsole sets where operator lines are printed (stdout by default).
func WithConsole(w io.Writer) SessionOption {
	return func(s *Session) {
		if w != nil {
			s.console = w
		}
	}
}

// NewSession starts a session classifying against cat and recording to sink.
// A nil catalog classifies everything as unregistered.
func NewSession(cat *catalog.Catalog, sink Appender, opts ...SessionOption) *Session {
	if cat == nil {
		cat = catalog.Empty()
	}
	s := &Session{
		ID:       uuid.NewString(),
		Started:  time.Now(),
		catalog:  cat,
		sink:     sink,
		notifier: notify.Nop{},
		console:  os.Stdout,
		seen:     make(map[string]struct{}),
		unknown:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process classifies the regions of one frame, appending a record for every
// catalog code not yet seen this session.
func (s *Session) Process(regions []detection.Region) []Annotation {
	s.stats.Frames++
	if len(regions) == 0 {
		return nil
	}

	out := make([]Annotation, 0, len(regions))
	for _, r := range regions {
		s.stats.Detections++
		out = append(out, s.classify(r))
	}
	return out
}

func (s *Session) classify(r detection.Region) Annotation {
	code := r.Text
	entry, ok := s.catalog.Lookup(code)
	if !ok {
		_, dup := s.unknown[code]
		if !dup {
			s.unknown[code] = struct{}{}
			s.stats.Unregistered++
			log.Info("Unregistered code", "code", code)
		}
		return Annotation{Region: r, Verdict: Unregistered, Label: UnregisteredLabel, First: !dup}
	}

	a := Annotation{
		Region:  r,
		Verdict: Known,
		Label:   fmt.Sprintf("%s | Rs.%s", entry.Name, entry.Price),
		Entry:   entry,
	}
	if _, dup := s.seen[code]; dup {
		return a
	}

	a.First = true
	rec, err := s.sink.Append(code, entry)
	if err != nil {
		// Left unseen so the next sighting retries.
		s.stats.AppendErrors++
		a.Err = err
		log.Error("Failed to record scan", "code", code, "error", err)
		return a
	}

	s.seen[code] = struct{}{}
	s.records = append(s.records, rec)
	s.stats.Accepted++
	a.Verdict = Accepted
	a.Record = &rec

	s.notifier.Accepted(rec)
	fmt.Fprintf(s.console, "[ACCEPTED] %s: %s\n", entry.Genre, entry.Name)
	return a
}

// Seen reports whether code has been verified this session.
func (s *Session) Seen(code string) bool {
	_, ok := s.seen[code]
	return ok
}

// SeenCodes returns the verified codes in sorted order.
func (s *Session) SeenCodes() []string {
	codes := make([]string, 0, len(s.seen))
	for c := range s.seen {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Records returns a copy of the records appended this session.
func (s *Session) Records() []report.Record {
	return append([]report.Record(nil), s.records...)
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// CatalogSize returns the number of catalog entries.
func (s *Session) CatalogSize() int {
	return s.catalog.Len()
}
