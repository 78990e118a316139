package config

import (
	"github.com/blockgoats/erm-sub000/internal/confidence"
	"github.com/blockgoats/erm-sub000/internal/riskmatch"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 50 << 20
	}
	if cfg.Server.RequestTimeoutSeconds == 0 {
		cfg.Server.RequestTimeoutSeconds = 300
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/erm/data/db/documents.db"
	}
	if cfg.Storage.ContentDir == "" {
		cfg.Storage.ContentDir = "/usr/local/var/erm/data/content"
	}

	p := &cfg.Pipeline
	if p.MinRiskLength == 0 {
		p.MinRiskLength = 20
	}
	if p.MinClauseLength == 0 {
		p.MinClauseLength = 30
	}
	if p.ClauseTextMaxLength == 0 {
		p.ClauseTextMaxLength = 2000
	}
	if p.PromotionThreshold == 0 {
		p.PromotionThreshold = 0.7
	}
	if p.Workers == 0 {
		p.Workers = 4
	}
	if p.ExtractionTimeoutSeconds == 0 {
		p.ExtractionTimeoutSeconds = 120
	}
	if p.AnalysisTimeoutSeconds == 0 {
		p.AnalysisTimeoutSeconds = 60
	}
	if p.PromotionTimeoutSeconds == 0 {
		p.PromotionTimeoutSeconds = 30
	}
	if p.DefaultOwnerRole == "" {
		p.DefaultOwnerRole = "Compliance Officer"
	}
	if p.RiskOwnerRole == "" {
		p.RiskOwnerRole = "Risk Manager"
	}

	defPolicy := confidence.DefaultPolicy()
	if p.Confidence.ReviewThreshold == 0 {
		p.Confidence.ReviewThreshold = defPolicy.ReviewThreshold
	}
	if p.Confidence.ActorBoost == 0 {
		p.Confidence.ActorBoost = defPolicy.ActorBoost
	}
	if p.Confidence.DeadlineBoost == 0 {
		p.Confidence.DeadlineBoost = defPolicy.DeadlineBoost
	}
	if p.Confidence.DependencyBoost == 0 {
		p.Confidence.DependencyBoost = defPolicy.DependencyBoost
	}
	if p.Confidence.AmbiguityCap == 0 {
		p.Confidence.AmbiguityCap = defPolicy.AmbiguityCap
	}

	defRisk := riskmatch.DefaultConfig()
	if p.RiskConfidence.Security == 0 {
		p.RiskConfidence.Security = defRisk.Security
	}
	if p.RiskConfidence.Compliance == 0 {
		p.RiskConfidence.Compliance = defRisk.Compliance
	}
	if p.RiskConfidence.Privacy == 0 {
		p.RiskConfidence.Privacy = defRisk.Privacy
	}
	if p.RiskConfidence.Availability == 0 {
		p.RiskConfidence.Availability = defRisk.Availability
	}

	if cfg.RiskRegister.TimeoutSeconds == 0 {
		cfg.RiskRegister.TimeoutSeconds = 10
	}
	if cfg.RiskRegister.RatePerSecond == 0 {
		cfg.RiskRegister.RatePerSecond = 5
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx", ".pptx", ".odt", ".odp", ".ods"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
