// Package config loads shelfscan runtime configuration.
//
// Values come from (highest priority first) command-line flags applied by the
// caller, SHELFSCAN_* environment variables, an optional shelfscan.{yaml,env}
// file, and the defaults below.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teslashibe/shelfscan/pkg/camera"
)

// EnvPrefix is prepended to every environment variable, e.g. SHELFSCAN_STREAM_URL.
const EnvPrefix = "SHELFSCAN"

// Default file names, resolved against DataDir when relative.
const (
	DefaultCatalogFile = "Master_Database.csv"
	DefaultReportFile  = "Final_Inventory_Report.csv"
)

// Config holds all configuration for a scanning session.
type Config struct {
	// DataDir is the base directory for relative catalog/report paths.
	DataDir     string
	CatalogPath string
	ReportPath  string

	Camera camera.Config

	// Headless runs without a display window; stop with Ctrl+C.
	Headless bool

	// WebPort enables the live dashboard when non-empty.
	WebPort string

	// SummaryPDF writes <report>.summary.pdf when the session ends.
	SummaryPDF bool

	// OpenReport hands the report to the system viewer when the session ends.
	OpenReport bool

	// Beep rings the terminal bell on accepted scans.
	Beep bool

	LogLevel string
	Debug    bool
}

// Load reads configuration. configFile may be empty, in which case
// shelfscan.* is searched for in "." and "./config" and skipped if absent.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("shelfscan")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	cfg := &Config{
		DataDir:     v.GetString("data_dir"),
		CatalogPath: v.GetString("catalog_path"),
		ReportPath:  v.GetString("report_path"),
		Camera: camera.Config{
			StreamURL:      v.GetString("stream_url"),
			FallbackDevice: v.GetInt("fallback_device"),
			DisplayWidth:   v.GetInt("display_width"),
			DisplayHeight:  v.GetInt("display_height"),
			BufferSize:     v.GetInt("buffer_size"),
		},
		Headless:   v.GetBool("headless"),
		WebPort:    v.GetString("web_port"),
		SummaryPDF: v.GetBool("summary_pdf"),
		OpenReport: v.GetBool("open_report"),
		Beep:       v.GetBool("beep"),
		LogLevel:   v.GetString("log_level"),
		Debug:      v.GetBool("debug"),
	}
	cfg.Resolve()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := camera.DefaultConfig()
	v.SetDefault("data_dir", ".")
	v.SetDefault("catalog_path", DefaultCatalogFile)
	v.SetDefault("report_path", DefaultReportFile)
	v.SetDefault("stream_url", def.StreamURL)
	v.SetDefault("fallback_device", def.FallbackDevice)
	v.SetDefault("display_width", def.DisplayWidth)
	v.SetDefault("display_height", def.DisplayHeight)
	v.SetDefault("buffer_size", def.BufferSize)
	v.SetDefault("headless", false)
	v.SetDefault("web_port", "")
	v.SetDefault("summary_pdf", true)
	v.SetDefault("open_report", true)
	v.SetDefault("beep", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("debug", false)
}

// Resolve joins relative catalog and report paths onto DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		return
	}
	if c.CatalogPath != "" && !filepath.IsAbs(c.CatalogPath) {
		c.CatalogPath = filepath.Join(c.DataDir, c.CatalogPath)
	}
	if c.ReportPath != "" && !filepath.IsAbs(c.ReportPath) {
		c.ReportPath = filepath.Join(c.DataDir, c.ReportPath)
	}
}

// Validate checks the configuration and returns all problems found.
func (c *Config) Validate() error {
	var problems []string
	if c.CatalogPath == "" {
		problems = append(problems, "catalog path is required")
	}
	if c.ReportPath == "" {
		problems = append(problems, "report path is required")
	}
	problems = append(problems, c.Camera.Validate()...)
	if len(problems) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}
