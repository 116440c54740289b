// Scan test - measure source frame rate and print every decoded code
//
// Opens the configured frame source (or a single image with -image), runs the
// QR and barcode detectors and reports what the catalog says about each code.
// Nothing is written to the report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/shelfscan/internal/config"
	"github.com/teslashibe/shelfscan/pkg/camera"
	"github.com/teslashibe/shelfscan/pkg/catalog"
	"github.com/teslashibe/shelfscan/pkg/detection"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run returns the process exit code so every deferred Close runs first.
func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("scan-test", flag.ContinueOnError)
	fs.SetOutput(out)
	configFile := fs.String("config", "", "Config file (default: ./shelfscan.* if present)")
	catalogPath := fs.String("catalog", "", "Catalog CSV (overrides config)")
	image := fs.String("image", "", "Decode a single image file instead of the camera")
	save := fs.String("save", "test_frame.jpg", "Where to save the first frame (empty to skip)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(out, "Config error: %v\n", err)
		return 1
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		fmt.Fprintf(out, "Catalog: %v (continuing with %d entries)\n", err, cat.Len())
	}

	det := detection.NewCombined(detection.NewQR(), detection.NewBarcode())
	defer det.Close()

	if *image != "" {
		return decodeImage(out, *image, det, cat)
	}

	fmt.Fprintln(out, "Scan Source Test")
	fmt.Fprintln(out, "================")
	fmt.Fprintf(out, "Source: %s (fallback device %d)\n\n", cfg.Camera.StreamURL, cfg.Camera.FallbackDevice)

	src, err := camera.Open(cfg.Camera, camera.DefaultOpener(cfg.Camera))
	if err != nil {
		fmt.Fprintf(out, "Connection failed: %v\n", err)
		return 1
	}
	defer src.Close()
	fmt.Fprintf(out, "Opened %s\n", src.Name())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	frame := gocv.NewMat()
	defer frame.Close()

	frameCount := 0
	startTime := time.Now()
	lastReport := time.Now()
	seen := map[string]bool{}

	for ctx.Err() == nil {
		if !src.Read(&frame) {
			fmt.Fprintln(out, "\nEnd of stream")
			break
		}
		if frame.Empty() {
			continue
		}
		frameCount++

		if frameCount == 1 && *save != "" {
			gocv.IMWrite(*save, frame)
			fmt.Fprintf(out, "First frame saved: %s (%dx%d)\n", *save, frame.Cols(), frame.Rows())
		}

		regions, err := det.Detect(frame)
		if err != nil {
			continue
		}
		for _, r := range regions {
			if !seen[r.Text] {
				seen[r.Text] = true
				fmt.Fprintf(out, "\n%s\n", describe(cat, r))
			}
		}

		if time.Since(lastReport) >= time.Second {
			elapsed := time.Since(startTime).Seconds()
			fmt.Fprintf(out, "\rFrames: %d | FPS: %.2f | Codes: %d    ", frameCount, float64(frameCount)/elapsed, len(seen))
			lastReport = time.Now()
		}
	}

	elapsed := time.Since(startTime).Seconds()
	fmt.Fprintf(out, "\nFinal: %d frames in %.1fs = %.2f fps, %d distinct code(s)\n",
		frameCount, elapsed, float64(frameCount)/elapsed, len(seen))
	return 0
}

func decodeImage(out io.Writer, path string, det detection.Detector, cat *catalog.Catalog) int {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		fmt.Fprintf(out, "%s: cannot read image\n", path)
		return 1
	}

	regions, err := det.Detect(img)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", path, err)
		return 1
	}
	if len(regions) == 0 {
		fmt.Fprintf(out, "%s: no codes found\n", path)
		return 1
	}
	for _, r := range regions {
		fmt.Fprintln(out, describe(cat, r))
	}
	return 0
}

func describe(cat *catalog.Catalog, r detection.Region) string {
	if e, ok := cat.Lookup(r.Text); ok {
		return fmt.Sprintf("  %-16s %s | Rs.%s (%s) at %v", r.Text, e.Name, e.Price, e.Genre, r.Rect)
	}
	return fmt.Sprintf("  %-16s UNREGISTERED at %v", r.Text, r.Rect)
}
