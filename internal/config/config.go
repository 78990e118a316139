// Package config provides configuration loading and structs for the erm service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blockgoats/erm-sub000/internal/confidence"
	"github.com/blockgoats/erm-sub000/internal/riskmatch"
)

// Config holds all configuration for the application.
type Config struct {
	Debug        bool               `yaml:"debug"`
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	RiskRegister RiskRegisterConfig `yaml:"risk_register"`
	Watch        WatchConfig        `yaml:"watch"`
}

// WatchConfig holds inbox directory settings. Files dropped into Directories are
// uploaded on behalf of OrganizationID and UploadedBy.
type WatchConfig struct {
	Directories    []string `yaml:"directories"`
	Extensions     []string `yaml:"extensions"`
	Recursive      *bool    `yaml:"recursive"`
	OrganizationID string   `yaml:"organization_id"`
	UploadedBy     string   `yaml:"uploaded_by"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	MaxUploadBytes        int64  `yaml:"max_upload_bytes"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`

	// CORSAllowedOrigins enables CORS for browser clients. Empty disables it.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// RequestTimeout returns the per-request timeout.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// StorageConfig holds paths for the database and uploaded content.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ContentDir   string `yaml:"content_dir"`
}

// PipelineConfig holds segmentation gates, scoring policy and processing limits.
type PipelineConfig struct {
	MinRiskLength            int               `yaml:"min_risk_length"`
	MinClauseLength          int               `yaml:"min_clause_length"`
	ClauseTextMaxLength      int               `yaml:"clause_text_max_length"`
	PromotionThreshold       float64           `yaml:"promotion_threshold"`
	Workers                  int               `yaml:"workers"`
	ExtractionTimeoutSeconds int               `yaml:"extraction_timeout_seconds"`
	AnalysisTimeoutSeconds   int               `yaml:"analysis_timeout_seconds"`
	PromotionTimeoutSeconds  int               `yaml:"promotion_timeout_seconds"`
	DefaultOwnerRole         string            `yaml:"default_owner_role"`
	RiskOwnerRole            string            `yaml:"risk_owner_role"`
	Confidence               confidence.Policy `yaml:"confidence"`
	RiskConfidence           riskmatch.Config  `yaml:"risk_confidence"`
}

// ExtractionTimeout returns the text extraction bound.
func (p PipelineConfig) ExtractionTimeout() time.Duration {
	return time.Duration(p.ExtractionTimeoutSeconds) * time.Second
}

// AnalysisTimeout returns the bound on segmenting and classifying one document.
func (p PipelineConfig) AnalysisTimeout() time.Duration {
	return time.Duration(p.AnalysisTimeoutSeconds) * time.Second
}

// PromotionTimeout returns the bound on a single risk promotion.
func (p PipelineConfig) PromotionTimeout() time.Duration {
	return time.Duration(p.PromotionTimeoutSeconds) * time.Second
}

// RiskRegisterConfig holds the Risk Register client settings. An empty BaseURL
// disables remote promotion.
type RiskRegisterConfig struct {
	BaseURL        string  `yaml:"base_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
}

// Timeout returns the HTTP client timeout.
func (r RiskRegisterConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.ContentDir = expandPath(cfg.Storage.ContentDir, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate rejects thresholds outside [0, 1] and inconsistent segmentation gates.
func Validate(cfg *Config) error {
	p := cfg.Pipeline
	unit := map[string]float64{
		"pipeline.promotion_threshold":          p.PromotionThreshold,
		"pipeline.confidence.review_threshold":  p.Confidence.ReviewThreshold,
		"pipeline.confidence.ambiguity_cap":     p.Confidence.AmbiguityCap,
		"pipeline.risk_confidence.security":     p.RiskConfidence.Security,
		"pipeline.risk_confidence.compliance":   p.RiskConfidence.Compliance,
		"pipeline.risk_confidence.privacy":      p.RiskConfidence.Privacy,
		"pipeline.risk_confidence.availability": p.RiskConfidence.Availability,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("invalid config: %s must be within [0, 1], got %v", name, v)
		}
	}
	if p.MinRiskLength > p.MinClauseLength {
		return fmt.Errorf("invalid config: pipeline.min_risk_length (%d) exceeds min_clause_length (%d)",
			p.MinRiskLength, p.MinClauseLength)
	}
	if len(cfg.Watch.Directories) > 0 && (cfg.Watch.OrganizationID == "" || cfg.Watch.UploadedBy == "") {
		return fmt.Errorf("invalid config: watch.organization_id and watch.uploaded_by are required with watch.directories")
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
