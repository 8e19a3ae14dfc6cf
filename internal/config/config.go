// Package config provides the configuration schema and loader for the
// roiconf gateway.
//
// The guarded document path is resolved exactly once at startup via
// [Config.ResolveDocumentPath] and passed by reference into every operation;
// nothing reads it from ambient state at call time.
package config

import (
	"os"
	"path/filepath"
)

// DefaultDocumentPath is the fallback config-document path used when neither
// the ROI_CONFIG_PATH environment variable nor the YAML file names one.
const DefaultDocumentPath = "roi-config.json"

// EnvDocumentPath is the single environment variable that overrides the
// config-document path.
const EnvDocumentPath = "ROI_CONFIG_PATH"

// LogLevel controls log verbosity for the gateway.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the roiconf gateway.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Document DocumentConfig `yaml:"document"`
}

// ServerConfig holds logging and observability settings for the gateway.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the optional TCP address for the Prometheus /metrics
	// and health endpoints (e.g. ":9091"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DocumentConfig holds settings for the guarded configuration document.
type DocumentConfig struct {
	// Path is the YAML-level document path. The ROI_CONFIG_PATH environment
	// variable takes precedence; see [Config.ResolveDocumentPath].
	Path string `yaml:"path"`
}

// ResolveDocumentPath returns the absolute path of the guarded document,
// applying the precedence env var > yaml > [DefaultDocumentPath]. Call it
// once at startup.
func (c *Config) ResolveDocumentPath() (string, error) {
	path := os.Getenv(EnvDocumentPath)
	if path == "" {
		path = c.Document.Path
	}
	if path == "" {
		path = DefaultDocumentPath
	}
	return filepath.Abs(path)
}
