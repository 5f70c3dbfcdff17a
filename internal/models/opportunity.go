package models

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity is the canonical, provider-agnostic funding record stored
// long-term. Uniquely identified by (ExternalID, Source).
type Opportunity struct {
	ID                  uuid.UUID              `json:"id"`
	ExternalID          string                 `json:"external_id"`
	Source              string                 `json:"source"`
	Title               string                 `json:"title"`
	Sponsor             string                 `json:"sponsor"`
	Agency              string                 `json:"agency"`
	Description         string                 `json:"description"`
	AmountMin           *float64               `json:"amount_min"`
	AmountMax           *float64               `json:"amount_max"`
	DeadlineDate        *time.Time             `json:"deadline_date"`
	DeadlineType        string                 `json:"deadline_type"` // "fixed" or "rolling"
	MatchRequirementPct float64                `json:"match_requirement_pct"`
	EligibilityCriteria []string               `json:"eligibility_criteria"`
	Geography           []string               `json:"geography"`
	ProjectTypes        []string               `json:"project_types"`
	OrganizationTypes   []string               `json:"organization_types"`
	MinorityFlag        bool                   `json:"minority_flag"`
	WomanOwnedFlag      bool                   `json:"woman_owned_flag"`
	VeteranFlag         bool                   `json:"veteran_flag"`
	SmallBusinessFlag   bool                   `json:"small_business_flag"`
	SourceURL           string                 `json:"source_url"`
	RawData             map[string]interface{} `json:"raw_data,omitempty"`
	ClassifierMetadata  map[string]interface{} `json:"classifier_metadata,omitempty"`
	Embedding           []float32              `json:"-"`
	CreatedAt           time.Time              `json:"created_at"`
	LastUpdated         time.Time              `json:"last_updated"`
}

const (
	DeadlineFixed   = "fixed"
	DeadlineRolling = "rolling"
)

// ProjectProfile is the user/project pairing that drives personalized
// search-strategy generation. Profile management itself lives outside
// this service; we only read the table.
type ProjectProfile struct {
	ProjectID        string   `json:"project_id"`
	ProjectName      string   `json:"project_name"`
	Description      string   `json:"description"`
	OrganizationType string   `json:"organization_type"`
	Industry         string   `json:"industry"`
	Certifications   []string `json:"certifications"`
	ProjectType      string   `json:"project_type"`
	State            string   `json:"state"`
}
