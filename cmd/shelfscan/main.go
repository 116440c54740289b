// shelfscan - point-of-scan inventory logger
// Reads codes from a camera feed, checks them against the master catalog and
// appends each verified item once per session to the inventory report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/shelfscan/internal/config"
	"github.com/teslashibe/shelfscan/internal/log"
	"github.com/teslashibe/shelfscan/pkg/app"
	"github.com/teslashibe/shelfscan/pkg/debug"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	log.Init(cfg.LogLevel)

	a, err := app.New(cfg)
	if err != nil {
		log.Error("Configuration error", "error", err)
		return 1
	}
	defer a.Shutdown()

	if err := a.Init(); err != nil {
		log.Error("Initialization failed", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := a.Run(ctx); err != nil {
		log.Error("Runtime error", "error", err)
		return 1
	}
	return 0
}

// loadConfig reads the config file and environment, then applies any flags
// that were set explicitly.
func loadConfig() (*config.Config, error) {
	configFile := flag.String("config", "", "Config file (default: shelfscan.yaml in . or ./config)")
	streamURL := flag.String("url", "", "Primary stream address (http://, rtsp:// or webrtc://host:port/producer)")
	device := flag.Int("device", 0, "Local fallback camera index")
	catalogPath := flag.String("catalog", "", "Master catalog CSV")
	reportPath := flag.String("report", "", "Inventory report CSV")
	dataDir := flag.String("data-dir", "", "Base directory for the default catalog and report files")
	headless := flag.Bool("headless", false, "Run without a display window (stop with Ctrl+C)")
	webPort := flag.String("web-port", "", "Serve the live dashboard on this port")
	noSummary := flag.Bool("no-summary", false, "Do not write the PDF session summary")
	noOpen := flag.Bool("no-open", false, "Do not open the report when the session ends")
	noBeep := flag.Bool("no-beep", false, "Do not ring the terminal bell on accepted scans")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugFrames := flag.Bool("debug-frames", false, "Log every detection (very verbose)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["data-dir"] {
		cfg.DataDir = *dataDir
		cfg.CatalogPath = config.DefaultCatalogFile
		cfg.ReportPath = config.DefaultReportFile
		cfg.Resolve()
	}
	if set["url"] {
		cfg.Camera.StreamURL = *streamURL
	}
	if set["device"] {
		cfg.Camera.FallbackDevice = *device
	}
	if set["catalog"] {
		cfg.CatalogPath = *catalogPath
	}
	if set["report"] {
		cfg.ReportPath = *reportPath
	}
	if set["headless"] {
		cfg.Headless = *headless
	}
	if set["web-port"] {
		cfg.WebPort = *webPort
	}
	if *noSummary {
		cfg.SummaryPDF = false
	}
	if *noOpen {
		cfg.OpenReport = false
	}
	if *noBeep {
		cfg.Beep = false
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *debugFlag {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if *debugFrames {
		debug.Frames = true
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
