// Package config centralizes configuration for the doclens service,
// loaded from config files, environment variables, and command-line flags.
package config

import (
	"errors"
	"fmt"
)

// Config represents the complete configuration for the doclens service.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Mounted storage paths
	Mount MountConfig `mapstructure:"mount" yaml:"mount" json:"mount"`

	// OCR engine configuration
	Engine EngineConfig `mapstructure:"engine" yaml:"engine" json:"engine"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// MountConfig contains the object-storage-backed local paths.
type MountConfig struct {
	// Dir is the read/write mount extracted assets are written under.
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`

	// UploadsDir is the mount referenced input files are read from.
	UploadsDir string `mapstructure:"uploads_dir" yaml:"uploads_dir" json:"uploads_dir"`

	// ModelCacheDir is the mount the serving side caches model weights in.
	// Passed through to the platform; unused by request handling.
	ModelCacheDir string `mapstructure:"model_cache_dir" yaml:"model_cache_dir" json:"model_cache_dir"`
}

// EngineConfig contains OCR serving endpoint settings.
type EngineConfig struct {
	URL                       string `mapstructure:"url" yaml:"url" json:"url"`
	AuthToken                 string `mapstructure:"auth_token" yaml:"auth_token" json:"auth_token"`
	RequestTimeoutSec         int    `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec" json:"request_timeout_sec"`
	UseDocOrientationClassify bool   `mapstructure:"use_doc_orientation_classify" yaml:"use_doc_orientation_classify" json:"use_doc_orientation_classify"`
	UseDocUnwarping           bool   `mapstructure:"use_doc_unwarping" yaml:"use_doc_unwarping" json:"use_doc_unwarping"`
	UseLayoutDetection        bool   `mapstructure:"use_layout_detection" yaml:"use_layout_detection" json:"use_layout_detection"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Mount: MountConfig{
			Dir:           "/mnt/ocr-outputs",
			UploadsDir:    "/mnt/ocr-uploads",
			ModelCacheDir: "/mnt/model-cache",
		},
		Engine: EngineConfig{
			URL:                       "http://localhost:9292/predict",
			RequestTimeoutSec:         300,
			UseDocOrientationClassify: true,
			UseDocUnwarping:           true,
			UseLayoutDetection:        true,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      600,
			ShutdownTimeout: 30,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d MB", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid server timeout: %d", c.Server.TimeoutSec)
	}
	if c.Mount.Dir == "" {
		return errors.New("mount.dir must not be empty")
	}
	if c.Mount.UploadsDir == "" {
		return errors.New("mount.uploads_dir must not be empty")
	}
	if c.Engine.URL == "" {
		return errors.New("engine.url must not be empty")
	}
	if c.Engine.RequestTimeoutSec < 0 {
		return fmt.Errorf("invalid engine request timeout: %d", c.Engine.RequestTimeoutSec)
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}
