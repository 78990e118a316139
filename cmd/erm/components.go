package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/blockgoats/erm-sub000/internal/config"
	"github.com/blockgoats/erm-sub000/internal/extract"
	"github.com/blockgoats/erm-sub000/internal/pipeline"
	"github.com/blockgoats/erm-sub000/internal/register"
	"github.com/blockgoats/erm-sub000/internal/riskmatch"
	"github.com/blockgoats/erm-sub000/internal/segment"
	"github.com/blockgoats/erm-sub000/internal/storage"
	"github.com/blockgoats/erm-sub000/pkg/utils"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Components holds initialized services.
type Components struct {
	Storage   *storage.SQLiteStorage
	Content   *storage.ContentStore
	Register  register.Register
	Processor *pipeline.Processor
}

// Close releases the database.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	content, err := storage.NewContentStore(cfg.Storage.ContentDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize content store: %w", err)
	}
	reg, err := buildRegister(cfg.RiskRegister, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	p := cfg.Pipeline
	analyzer := pipeline.NewAnalyzer(
		segment.New(p.MinRiskLength, p.MinClauseLength),
		p.Confidence,
		riskmatch.NewMatcher(p.RiskConfidence, p.Confidence.ReviewGate),
		pipeline.WithWorkers(p.Workers),
	)
	proc := pipeline.NewProcessor(store, content, extract.NewExtractor(), analyzer, reg, pipeline.Options{
		ExtractionTimeout:   p.ExtractionTimeout(),
		AnalysisTimeout:     p.AnalysisTimeout(),
		PromotionTimeout:    p.PromotionTimeout(),
		PromotionThreshold:  p.PromotionThreshold,
		ClauseTextMaxLength: p.ClauseTextMaxLength,
		ObligationOwnerRole: p.DefaultOwnerRole,
		RiskOwnerRole:       p.RiskOwnerRole,
	}, pipeline.WithLogger(logger))

	logger.Debug("components initialized",
		zap.String("database_path", cfg.Storage.DatabasePath),
		zap.String("content_dir", content.Dir()),
		zap.Bool("risk_register", cfg.RiskRegister.BaseURL != ""),
		zap.Int("workers", p.Workers))

	return &Components{Storage: store, Content: content, Register: reg, Processor: proc}, nil
}

// buildRegister returns the HTTP Risk Register client, or a local no-op register
// when no base URL is configured.
func buildRegister(cfg config.RiskRegisterConfig, logger *zap.Logger) (register.Register, error) {
	if cfg.BaseURL == "" {
		return register.Noop{Logger: logger}, nil
	}
	client, err := register.NewHTTPClient(cfg.BaseURL, cfg.Timeout(),
		register.WithLogger(logger),
		register.WithRateLimit(cfg.RatePerSecond, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize risk register client: %w", err)
	}
	return client, nil
}

// setup loads config and builds the logger. debug forces debug logging on.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, resolved, logger, nil
}
