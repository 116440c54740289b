package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/shelfscan/internal/log"
	"github.com/teslashibe/shelfscan/pkg/debug"
	"github.com/teslashibe/shelfscan/pkg/detection"
	"github.com/teslashibe/shelfscan/pkg/notify"
	"github.com/teslashibe/shelfscan/pkg/overlay"
	"github.com/teslashibe/shelfscan/pkg/report"
)

// State is the lifecycle of a Loop.
type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Reason tells why a run ended.
type Reason string

const (
	ReasonQuit        Reason = "quit"
	ReasonEndOfStream Reason = "end-of-stream"
	ReasonCancelled   Reason = "cancelled"
)

// Source produces frames. *camera.Source implements it.
type Source interface {
	Read(m *gocv.Mat) bool
	Close() error
	Name() string
}

// Info describes a session as it starts.
type Info struct {
	SessionID   string    `json:"session_id"`
	Source      string    `json:"source"`
	Started     time.Time `json:"started"`
	CatalogSize int       `json:"catalog_size"`
	ReportPath  string    `json:"report_path"`
}

// Event is published for the first sighting of each code in a session.
type Event struct {
	Time    time.Time      `json:"time"`
	Code    string         `json:"code"`
	Verdict Verdict        `json:"verdict"`
	Label   string         `json:"label"`
	Record  *report.Record `json:"record,omitempty"`
	Error   string         `json:"error,omitempty"`
	Stats   Stats          `json:"stats"`
}

// Summary is the final state of a session.
type Summary struct {
	Info
	Ended   time.Time       `json:"ended"`
	Stats   Stats           `json:"stats"`
	Seen    []string        `json:"seen"`
	Records []report.Record `json:"records"`
}

// Result is returned by Run.
type Result struct {
	Reason  Reason  `json:"reason"`
	Summary Summary `json:"summary"`
	// SummaryPath is set when a summary PDF was written.
	SummaryPath string `json:"summary_path,omitempty"`
	// Viewed is set when the report was handed to the viewer.
	Viewed bool `json:"viewed"`
}

// Observer receives copies of what the loop does. Calls are made from the
// loop goroutine and must not block.
type Observer interface {
	SessionStarted(info Info)
	Scanned(ev Event)
	FrameRendered(frame gocv.Mat)
	SessionEnded(res Result)
}

// Config holds loop settings.
type Config struct {
	// Frames are resized to Width x Height before detection.
	Width  int
	Height int
	// ReportPath is handed to the viewer once the run ends.
	ReportPath string
	// SummaryPDF writes a PDF next to the report when the run ends.
	SummaryPDF bool
}

// Loop is the single-threaded scan loop. It owns the source, detector,
// display and session for the duration of Run.
type Loop struct {
	cfg      Config
	source   Source
	detector detection.Detector
	display  Display
	session  *Session
	viewer   notify.Viewer

	observers []Observer
	state     atomic.Int32
	release   sync.Once
}

// NewLoop wires a loop. The loop closes source, detector and display when
// Run returns.
func NewLoop(cfg Config, source Source, detector detection.Detector, display Display, session *Session) *Loop {
	if display == nil {
		display = Headless{}
	}
	return &Loop{
		cfg:      cfg,
		source:   source,
		detector: detector,
		display:  display,
		session:  session,
		viewer:   notify.Nop{},
	}
}

// SetViewer sets the hook that opens the finished report.
func (l *Loop) SetViewer(v notify.Viewer) {
	if v != nil {
		l.viewer = v
	}
}

// AddObserver registers an observer. Must be called before Run.
func (l *Loop) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Session returns the loop's session. Only safe to use once Run has returned.
func (l *Loop) Session() *Session {
	return l.session
}

// Run processes frames until the operator quits, the source ends or ctx is
// cancelled. Resources are released on every path.
func (l *Loop) Run(ctx context.Context) Result {
	l.state.Store(int32(Running))
	defer l.Close()

	info := Info{
		SessionID:   l.session.ID,
		Source:      l.source.Name(),
		Started:     l.session.Started,
		CatalogSize: l.session.CatalogSize(),
		ReportPath:  l.cfg.ReportPath,
	}
	for _, o := range l.observers {
		o.SessionStarted(info)
	}
	log.Info("Scan loop started", "session", info.SessionID, "source", info.Source, "catalog", info.CatalogSize)

	reason := l.loop(ctx)

	l.state.Store(int32(Stopping))
	l.Close()

	res := l.finish(info, reason)
	l.state.Store(int32(Stopped))

	for _, o := range l.observers {
		o.SessionEnded(res)
	}
	log.Info("Scan loop stopped", "reason", string(reason), "accepted", res.Summary.Stats.Accepted)
	return res
}

func (l *Loop) loop(ctx context.Context) Reason {
	frame := gocv.NewMat()
	defer frame.Close()
	view := gocv.NewMat()
	defer view.Close()

	size := image.Pt(l.cfg.Width, l.cfg.Height)

	for {
		select {
		case <-ctx.Done():
			return ReasonCancelled
		default:
		}

		if !l.source.Read(&frame) {
			return ReasonEndOfStream
		}
		if frame.Empty() {
			// A source stuck on empty frames must still honour quit.
			if l.display.QuitRequested() {
				return ReasonQuit
			}
			continue
		}

		if size.X > 0 && size.Y > 0 {
			gocv.Resize(frame, &view, size, 0, 0, gocv.InterpolationLinear)
		} else {
			frame.CopyTo(&view)
		}

		l.step(view)

		if l.display.QuitRequested() {
			return ReasonQuit
		}
	}
}

// step handles one resized frame: detect, classify, draw, show, publish.
func (l *Loop) step(view gocv.Mat) {
	regions, err := l.detector.Detect(view)
	if err != nil {
		debug.FrameLog("Detection failed, frame skipped", "error", err)
		regions = nil
	}

	anns := l.session.Process(regions)

	marks := make([]overlay.Mark, len(anns))
	for i, a := range anns {
		marks[i] = a.Mark()
	}
	overlay.Banner(&view)
	overlay.Draw(&view, marks)

	l.display.Show(view)
	l.publish(anns, view)
}

func (l *Loop) publish(anns []Annotation, view gocv.Mat) {
	if len(l.observers) == 0 {
		return
	}
	now := time.Now()
	for _, a := range anns {
		if !a.First {
			continue
		}
		ev := Event{
			Time:    now,
			Code:    a.Region.Text,
			Verdict: a.Verdict,
			Label:   a.Label,
			Record:  a.Record,
			Stats:   l.session.Stats(),
		}
		if a.Err != nil {
			ev.Error = a.Err.Error()
		}
		for _, o := range l.observers {
			o.Scanned(ev)
		}
	}
	for _, o := range l.observers {
		o.FrameRendered(view)
	}
}

// Close releases source, display and detector. Run calls it on every exit
// path; it only needs calling directly when Run never starts.
func (l *Loop) Close() {
	l.release.Do(func() {
		if err := l.source.Close(); err != nil {
			log.Warn("Closing frame source", "error", err)
		}
		if err := l.display.Close(); err != nil {
			log.Warn("Closing display", "error", err)
		}
		if err := l.detector.Close(); err != nil {
			log.Warn("Closing detector", "error", err)
		}
	})
}

// finish writes the optional PDF summary and hands the report to the viewer.
func (l *Loop) finish(info Info, reason Reason) Result {
	res := Result{
		Reason: reason,
		Summary: Summary{
			Info:    info,
			Ended:   time.Now(),
			Stats:   l.session.Stats(),
			Seen:    l.session.SeenCodes(),
			Records: l.session.Records(),
		},
	}

	path := l.cfg.ReportPath
	if path == "" {
		return res
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Report not accessible", "path", path, "error", err)
		}
		return res
	}

	if l.cfg.SummaryPDF {
		pdf := report.SummaryPath(path)
		err := report.WriteSummary(pdf, report.SummaryInput{
			SessionID: info.SessionID,
			Source:    info.Source,
			Started:   info.Started,
			Ended:     res.Summary.Ended,
			Records:   res.Summary.Records,
		})
		if err != nil {
			log.Warn("Session summary not written", "error", err)
		} else {
			res.SummaryPath = pdf
		}
	}

	fmt.Println("Generating Report...")
	if err := l.viewer.Open(path); err != nil {
		log.Warn("Could not open report", "path", path, "error", err)
	} else {
		res.Viewed = true
	}
	return res
}
