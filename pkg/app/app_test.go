package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/teslashibe/shelfscan/internal/config"
	"github.com/teslashibe/shelfscan/internal/log"
	"github.com/teslashibe/shelfscan/pkg/camera"
	"github.com/teslashibe/shelfscan/pkg/debug"
	"github.com/teslashibe/shelfscan/pkg/detection"
	"github.com/teslashibe/shelfscan/pkg/report"
	"github.com/teslashibe/shelfscan/pkg/scanner"
)

type fakeCapture struct {
	frames int
	closed bool
}

func (f *fakeCapture) Read(m *gocv.Mat) bool {
	if f.frames == 0 {
		return false
	}
	f.frames--
	src := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer src.Close()
	src.CopyTo(m)
	return true
}

func (f *fakeCapture) Close() error { f.closed = true; return nil }

type recordingViewer struct{ opened []string }

func (v *recordingViewer) Open(path string) error {
	v.opened = append(v.opened, path)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, config.DefaultCatalogFile)
	require.NoError(t, os.WriteFile(catalogPath, []byte("Code,Name,Price,Genre\n111,Rice,50,Grocery\n"), 0644))

	return &config.Config{
		DataDir:     dir,
		CatalogPath: catalogPath,
		ReportPath:  filepath.Join(dir, config.DefaultReportFile),
		Camera:      camera.DefaultConfig(),
		Headless:    true,
		LogLevel:    "info",
	}
}

func code(text string) detection.Region {
	return detection.NewRegion(text, []image.Point{{100, 100}, {200, 100}, {200, 200}, {100, 200}})
}

func TestApp_RunRecordsScans(t *testing.T) {
	cfg := testConfig(t)
	capture := &fakeCapture{frames: 3}
	viewer := &recordingViewer{}

	a, err := New(cfg,
		WithOpener(func(any) (camera.Capture, error) { return capture, nil }),
		WithDetector(func() detection.Detector {
			return detection.NewMock(
				[]detection.Region{code("111")},
				[]detection.Region{code("111"), code("222")},
			)
		}),
		WithViewer(viewer),
	)
	require.NoError(t, err)
	require.NoError(t, a.Init())
	defer a.Shutdown()

	res, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, scanner.ReasonEndOfStream, res.Reason)
	assert.Equal(t, []string{"111"}, res.Summary.Seen)
	assert.True(t, capture.closed)
	assert.Equal(t, []string{cfg.ReportPath}, viewer.opened)

	records, err := report.ReadRecords(cfg.ReportPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Rice", records[0].Grocery)
}

func TestApp_MissingCatalogIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogPath = filepath.Join(cfg.DataDir, "absent.csv")

	a, err := New(cfg,
		WithOpener(func(any) (camera.Capture, error) { return &fakeCapture{frames: 1}, nil }),
		WithDetector(func() detection.Detector { return detection.NewMock([]detection.Region{code("111")}) }),
	)
	require.NoError(t, err)
	require.NoError(t, a.Init())

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Summary.Seen)
	assert.Equal(t, 1, res.Summary.Stats.Unregistered)
}

func TestApp_NoSourceIsFatal(t *testing.T) {
	cfg := testConfig(t)
	attempts := 0

	a, err := New(cfg, WithOpener(func(any) (camera.Capture, error) {
		attempts++
		return nil, errors.New("unavailable")
	}))
	require.NoError(t, err)

	err = a.Init()
	assert.ErrorIs(t, err, camera.ErrNoSource)
	assert.Equal(t, 2, attempts, "primary then fallback")

	_, err = a.Run(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
	a.Shutdown()
}

func TestApp_ShutdownReleasesUnrunLoop(t *testing.T) {
	cfg := testConfig(t)
	capture := &fakeCapture{frames: 5}

	a, err := New(cfg, WithOpener(func(any) (camera.Capture, error) { return capture, nil }))
	require.NoError(t, err)
	require.NoError(t, a.Init())

	a.Shutdown()
	assert.True(t, capture.closed)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Camera.DisplayWidth = 1

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestApp_DebugLogsSessionSetup(t *testing.T) {
	var buf bytes.Buffer
	prev := *log.L()
	*log.L() = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() {
		*log.L() = prev
		debug.Enabled = false
	})

	tests := []struct {
		name  string
		debug bool
		want  []string
	}{
		{
			name:  "debug on",
			debug: true,
			want: []string{
				`"message":"Session setup"`,
				`"entries":1`,
				`"message":"Fallback source selected"`,
				`"message":"Frame source ready"`,
				`"source":"device:0"`,
				`"fallback":true`,
			},
		},
		{name: "debug off"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			cfg := testConfig(t)
			cfg.Debug = tc.debug

			a, err := New(cfg, WithOpener(func(device any) (camera.Capture, error) {
				if _, ok := device.(string); ok {
					return nil, errors.New("stream down")
				}
				return &fakeCapture{}, nil
			}))
			require.NoError(t, err)
			require.NoError(t, a.Init())
			defer a.Shutdown()

			out := buf.String()
			for _, w := range tc.want {
				assert.Contains(t, out, w)
			}
			if !tc.debug {
				assert.NotContains(t, out, "Session setup")
				assert.NotContains(t, out, "Frame source ready")
			}
		})
	}
}
