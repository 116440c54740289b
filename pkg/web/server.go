// Package web provides a real-time dashboard for a scanning session
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"gocv.io/x/gocv"

	"github.com/teslashibe/shelfscan/internal/log"
	"github.com/teslashibe/shelfscan/pkg/catalog"
	"github.com/teslashibe/shelfscan/pkg/hub"
	"github.com/teslashibe/shelfscan/pkg/report"
	"github.com/teslashibe/shelfscan/pkg/scanner"
)

const (
	maxLogs = 500

	// DefaultFrameInterval throttles the camera feed to about 5 fps.
	DefaultFrameInterval = 200 * time.Millisecond
)

// Status is the dashboard's view of the running session
type Status struct {
	SessionID   string         `json:"session_id"`
	State       string         `json:"state"`
	Source      string         `json:"source"`
	Started     time.Time      `json:"started"`
	Ended       *time.Time     `json:"ended,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	CatalogSize int            `json:"catalog_size"`
	Stats       scanner.Stats  `json:"stats"`
	LastScan    *scanner.Event `json:"last_scan,omitempty"`
}

// LogEntry represents a scan event line for the dashboard
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, accepted, unregistered, error
	Message string `json:"message"`
}

// Server is the web dashboard server. It implements scanner.Observer and
// keeps its own copy of session state.
type Server struct {
	app  *fiber.App
	port string

	catalog    *catalog.Catalog
	reportPath string

	// State
	status  Status
	scans   []report.Record
	stateMu sync.RWMutex

	// Log buffer (last 500 entries)
	logs   []LogEntry
	logsMu sync.RWMutex

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	logHub    *hub.Hub
	cameraHub *hub.Hub

	// Camera throttling; only touched from the scan loop goroutine
	frameInterval time.Duration
	lastFrame     time.Time
}

// NewServer creates a new web dashboard server
func NewServer(port string, cat *catalog.Catalog, reportPath string) *Server {
	if cat == nil {
		cat = catalog.Empty()
	}
	s := &Server{
		port:          port,
		catalog:       cat,
		reportPath:    reportPath,
		status:        Status{State: scanner.Idle.String(), CatalogSize: cat.Len()},
		logs:          make([]LogEntry, 0, maxLogs),
		statusHub:     hub.New("status"),
		logHub:        hub.New("logs"),
		cameraHub:     hub.New("camera"),
		frameInterval: DefaultFrameInterval,
	}

	app := fiber.New(fiber.Config{
		AppName:               "shelfscan",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/scans", s.handleScans)
	api.Get("/catalog/:code", s.handleCatalogLookup)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/report", s.handleReport)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// SetFrameInterval sets the minimum gap between camera frames sent to clients.
func (s *Server) SetFrameInterval(d time.Duration) {
	s.frameInterval = d
}

// Start starts the web server and blocks until it stops
func (s *Server) Start() error {
	log.Info("Web dashboard listening", "url", "http://localhost:"+s.port)

	go s.statusHub.Run()
	go s.logHub.Run()
	go s.cameraHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Warn("Web server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the web server and its hubs
func (s *Server) Shutdown() error {
	s.statusHub.Stop()
	s.logHub.Stop()
	s.cameraHub.Stop()
	return s.app.Shutdown()
}

// updateStatus applies update under the lock and broadcasts the result
func (s *Server) updateStatus(update func(*Status)) {
	s.stateMu.Lock()
	update(&s.status)
	status := s.status
	s.stateMu.Unlock()

	s.statusHub.BroadcastJSON(status)
}

// AddLog adds a log entry and broadcasts to clients
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format(time.TimeOnly),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// SessionStarted implements scanner.Observer.
func (s *Server) SessionStarted(info scanner.Info) {
	s.updateStatus(func(st *Status) {
		st.SessionID = info.SessionID
		st.State = scanner.Running.String()
		st.Source = info.Source
		st.Started = info.Started
		st.CatalogSize = info.CatalogSize
	})
	s.AddLog("info", "Session started on "+info.Source)
}

// Scanned implements scanner.Observer.
func (s *Server) Scanned(ev scanner.Event) {
	s.updateStatus(func(st *Status) {
		st.Stats = ev.Stats
		st.LastScan = &ev
		if ev.Record != nil {
			s.scans = append(s.scans, *ev.Record)
		}
	})

	switch {
	case ev.Error != "":
		s.AddLog("error", ev.Code+": "+ev.Error)
	case ev.Verdict == scanner.Accepted:
		s.AddLog(ev.Verdict.String(), ev.Code+" "+ev.Label)
	default:
		s.AddLog(ev.Verdict.String(), ev.Code)
	}
}

// FrameRendered implements scanner.Observer. Frames are JPEG-encoded only
// when a camera client is connected, at most once per frame interval.
func (s *Server) FrameRendered(frame gocv.Mat) {
	if s.cameraHub.ClientCount() == 0 || time.Since(s.lastFrame) < s.frameInterval {
		return
	}
	s.lastFrame = time.Now()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		log.Debug("Frame encode failed", "error", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	s.cameraHub.BroadcastBinary(data)
}

// SessionEnded implements scanner.Observer.
func (s *Server) SessionEnded(res scanner.Result) {
	ended := res.Summary.Ended
	s.updateStatus(func(st *Status) {
		st.State = scanner.Stopped.String()
		st.Ended = &ended
		st.Reason = string(res.Reason)
		st.Stats = res.Summary.Stats
	})
	s.AddLog("info", "Session ended: "+string(res.Reason))
}
