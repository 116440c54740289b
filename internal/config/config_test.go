package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultCatalogFile, cfg.CatalogPath)
	assert.Equal(t, DefaultReportFile, cfg.ReportPath)
	assert.Equal(t, "http://192.0.0.4:8080/video", cfg.Camera.StreamURL)
	assert.Equal(t, 0, cfg.Camera.FallbackDevice)
	assert.Equal(t, 900, cfg.Camera.DisplayWidth)
	assert.Equal(t, 600, cfg.Camera.DisplayHeight)
	assert.True(t, cfg.SummaryPDF)
	assert.True(t, cfg.OpenReport)
	assert.False(t, cfg.Headless)
	assert.Empty(t, cfg.WebPort)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHELFSCAN_STREAM_URL", "rtsp://10.0.0.5/live")
	t.Setenv("SHELFSCAN_FALLBACK_DEVICE", "2")
	t.Setenv("SHELFSCAN_DATA_DIR", "/srv/scans")
	t.Setenv("SHELFSCAN_HEADLESS", "true")
	t.Setenv("SHELFSCAN_WEB_PORT", "8090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "rtsp://10.0.0.5/live", cfg.Camera.StreamURL)
	assert.Equal(t, 2, cfg.Camera.FallbackDevice)
	assert.Equal(t, filepath.Join("/srv/scans", DefaultCatalogFile), cfg.CatalogPath)
	assert.Equal(t, filepath.Join("/srv/scans", DefaultReportFile), cfg.ReportPath)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "8090", cfg.WebPort)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shelfscan.yaml")
	content := "catalog_path: /data/catalog.csv\nreport_path: report.csv\ndata_dir: " + dir + "\nbeep: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/catalog.csv", cfg.CatalogPath, "absolute paths are kept")
	assert.Equal(t, filepath.Join(dir, "report.csv"), cfg.ReportPath)
	assert.False(t, cfg.Beep)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.ReportPath = ""
	cfg.Camera.DisplayWidth = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report path is required")
	assert.Contains(t, err.Error(), "display_width")
}
