// Package app wires the scanning components together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/shelfscan/internal/config"
	"github.com/teslashibe/shelfscan/internal/log"
	"github.com/teslashibe/shelfscan/pkg/camera"
	"github.com/teslashibe/shelfscan/pkg/catalog"
	"github.com/teslashibe/shelfscan/pkg/debug"
	"github.com/teslashibe/shelfscan/pkg/detection"
	"github.com/teslashibe/shelfscan/pkg/notify"
	"github.com/teslashibe/shelfscan/pkg/report"
	"github.com/teslashibe/shelfscan/pkg/scanner"
	"github.com/teslashibe/shelfscan/pkg/web"
)

// ErrNotInitialized is returned by Run before a successful Init.
var ErrNotInitialized = errors.New("app: not initialized")

// App is the scanning application orchestrator.
type App struct {
	config *config.Config

	// Pluggable for tests
	opener      camera.Opener
	newDetector func() detection.Detector
	newDisplay  func() scanner.Display
	viewer      notify.Viewer
	notifier    notify.Notifier

	catalog   *catalog.Catalog
	sink      *report.Sink
	loop      *scanner.Loop
	webServer *web.Server
}

// Option customizes an App.
type Option func(*App)

// WithOpener replaces the frame source opener.
func WithOpener(o camera.Opener) Option {
	return func(a *App) { a.opener = o }
}

// WithDetector replaces the code detector factory.
func WithDetector(f func() detection.Detector) Option {
	return func(a *App) { a.newDetector = f }
}

// WithDisplay replaces the display factory.
func WithDisplay(f func() scanner.Display) Option {
	return func(a *App) { a.newDisplay = f }
}

// WithViewer replaces the report viewer.
func WithViewer(v notify.Viewer) Option {
	return func(a *App) { a.viewer = v }
}

// WithNotifier replaces the acceptance notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// New creates an application from a loaded configuration.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	debug.Enabled = cfg.Debug

	a := &App{
		config:      cfg,
		opener:      camera.DefaultOpener(cfg.Camera),
		newDetector: func() detection.Detector { return detection.NewCombined(detection.NewQR(), detection.NewBarcode()) },
		viewer:      notify.Nop{},
		notifier:    notify.Nop{},
	}
	if cfg.Headless {
		a.newDisplay = func() scanner.Display { return scanner.Headless{} }
	} else {
		a.newDisplay = func() scanner.Display { return scanner.NewWindow(scanner.WindowTitle) }
	}
	if cfg.OpenReport {
		a.viewer = notify.SystemViewer{}
	}
	if cfg.Beep {
		a.notifier = notify.NewBell(nil)
	}

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Init loads the catalog, prepares the report and opens the frame source.
// Call this after New() and before Run().
func (a *App) Init() error {
	fmt.Println("\n--- INTELLIGENT INVENTORY SYSTEM ---")

	cat, err := catalog.Load(a.config.CatalogPath)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		fmt.Printf("Error: Master database %s not found. Every code will show as unregistered.\n", a.config.CatalogPath)
	case err != nil:
		log.Warn("Catalog unusable, continuing with an empty one", "path", a.config.CatalogPath, "error", err)
	default:
		log.Info("Catalog loaded", "path", a.config.CatalogPath, "entries", cat.Len())
	}
	a.catalog = cat
	debug.Log("Session setup",
		"catalog", a.config.CatalogPath, "entries", cat.Len(),
		"report", a.config.ReportPath, "headless", a.config.Headless,
		"stream", a.config.Camera.StreamURL, "fallback_device", a.config.Camera.FallbackDevice,
		"display", fmt.Sprintf("%dx%d", a.config.Camera.DisplayWidth, a.config.Camera.DisplayHeight))

	a.sink = report.NewSink(a.config.ReportPath)
	if err := a.sink.EnsureInitialized(); err != nil {
		return fmt.Errorf("report init: %w", err)
	}

	source, err := camera.Open(a.config.Camera, a.opener)
	if err != nil {
		fmt.Println("Error: Could not access camera.")
		return err
	}
	if source.UsedFallback() {
		log.Warn("Using local fallback camera", "device", source.Name())
	}
	debug.Log("Frame source ready", "source", source.Name(), "fallback", source.UsedFallback())

	session := scanner.NewSession(a.catalog, a.sink, scanner.WithNotifier(a.notifier))
	a.loop = scanner.NewLoop(scanner.Config{
		Width:      a.config.Camera.DisplayWidth,
		Height:     a.config.Camera.DisplayHeight,
		ReportPath: a.config.ReportPath,
		SummaryPDF: a.config.SummaryPDF,
	}, source, a.newDetector(), a.newDisplay(), session)
	a.loop.SetViewer(a.viewer)

	if a.config.WebPort != "" {
		a.webServer = web.NewServer(a.config.WebPort, a.catalog, a.config.ReportPath)
		a.loop.AddObserver(a.webServer)
		a.webServer.StartAsync()
	}
	return nil
}

// Run starts the scan loop and blocks until it stops.
func (a *App) Run(ctx context.Context) (scanner.Result, error) {
	if a.loop == nil {
		return scanner.Result{}, ErrNotInitialized
	}
	if a.config.Headless {
		fmt.Println("Running headless. Press Ctrl+C to finish and generate the report.")
	} else {
		fmt.Println("Press 'q' to Finish and Generate Report.")
	}

	res := a.loop.Run(ctx)

	fmt.Printf("Session %s: %d item(s) verified, %d unregistered code(s).\n",
		res.Summary.SessionID, res.Summary.Stats.Accepted, res.Summary.Stats.Unregistered)
	if res.SummaryPath != "" {
		fmt.Printf("Summary: %s\n", res.SummaryPath)
	}
	fmt.Println("Done.")
	return res, nil
}

// Shutdown stops the dashboard and releases anything Run did not.
func (a *App) Shutdown() {
	if a.loop != nil {
		a.loop.Close()
	}
	if a.webServer != nil {
		if err := a.webServer.Shutdown(); err != nil {
			log.Warn("Web server shutdown", "error", err)
		}
	}
}
