package models

import "time"

// SyncRunResult captures the outcome of a single search configuration
// within a run. Never mutated after creation.
type SyncRunResult struct {
	ConfigName       string `json:"name"`
	Status           string `json:"status"` // "ok", "error", "skipped"
	RecordCount      *int   `json:"record_count,omitempty"`
	Error            string `json:"error,omitempty"`
	StrategyKind     string `json:"strategy"`
	RelatedProjectID string `json:"related_project_id,omitempty"`
	TargetCategory   string `json:"target_category,omitempty"`
}

const (
	RunResultOK      = "ok"
	RunResultError   = "error"
	RunResultSkipped = "skipped"
)

// SyncSummary is the aggregate view of a completed run, returned by the
// trigger endpoints.
type SyncSummary struct {
	TotalFetched              int       `json:"totalFetched"`
	TotalProcessed            int       `json:"totalProcessed"`
	TotalValid                int       `json:"totalValid"`
	TotalImported             int       `json:"totalImported"`
	StrategiesUsed            []string  `json:"strategiesUsed"`
	TotalSearchConfigurations int       `json:"totalSearchConfigurations"`
	Source                    string    `json:"source"`
	LastSync                  time.Time `json:"lastSync"`
}
