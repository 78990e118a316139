package models

// Status summarizes the store for the status endpoint and CLI.
type Status struct {
	Documents          int64            `json:"documents"`
	Clauses            int64            `json:"clauses"`
	ByStatus           map[string]int64 `json:"documents_by_status"`
	DiskUsageBytes     *int64           `json:"disk_usage_bytes,omitempty"`
	WatchedDirectories []string         `json:"watched_directories,omitempty"`
	Config             *StatusConfig    `json:"config,omitempty"`
}

// StatusConfig is the policy summary included in Status.
type StatusConfig struct {
	DatabasePath       string  `json:"database_path"`
	ContentDir         string  `json:"content_dir"`
	PromotionThreshold float64 `json:"promotion_threshold"`
	ReviewThreshold    float64 `json:"review_threshold"`
	Workers            int     `json:"workers"`
	RiskRegister       string  `json:"risk_register,omitempty"`
}
