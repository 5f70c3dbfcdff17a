package sync

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/fundsync/fundsync/internal/models"
)

// StrategyKind tags where a search configuration came from, for later
// attribution in run results.
type StrategyKind string

const (
	StrategyAISubject    StrategyKind = "ai-subject"
	StrategyAIPopulation StrategyKind = "ai-population"
	StrategyAISupport    StrategyKind = "ai-support"
	StrategyRuleBased    StrategyKind = "rule-based"
	StrategyEmergency    StrategyKind = "emergency"
)

// SearchConfiguration is one parameterized query to issue against a
// provider. Immutable once created; consumed exactly once per run.
type SearchConfiguration struct {
	Name             string
	Endpoint         string // optional provider endpoint override
	Params           map[string]string
	StrategyKind     StrategyKind
	RelatedProjectID string
	TargetCategory   string
}

// Generic parameter keys understood by every adapter. Adapters translate
// them into their provider's own query syntax.
const (
	ParamKeyword  = "keyword"
	ParamLimit    = "limit"
	ParamDaysBack = "days_back"
)

// ExternalRecord is the opaque, provider-shaped payload. Only the unique-id
// field and the fields needed for normalization are assumed stable.
type ExternalRecord map[string]interface{}

// ProviderAdapter is the per-provider request/response contract.
type ProviderAdapter interface {
	// Source is the provider identity stored on canonical records.
	Source() string
	// DailyLimit is the provider's request budget per day; 0 means
	// effectively unlimited.
	DailyLimit() int
	// BuildRequest translates a generic configuration into a
	// provider-specific HTTP request.
	BuildRequest(ctx context.Context, config SearchConfiguration) (*http.Request, error)
	// ParseResponse extracts records from the provider's response envelope.
	ParseResponse(body []byte) ([]ExternalRecord, error)
	// UniqueID returns the provider-native unique id of a record, or ""
	// when the record carries none.
	UniqueID(rec ExternalRecord) string
	// Normalize maps a record into the canonical representation. An error
	// means the record fails validation and is dropped from the batch.
	Normalize(rec ExternalRecord) (models.Opportunity, error)
}

var (
	// ErrRateLimited marks an HTTP 429 from the provider; consumed by the
	// rate limiter to trigger backoff-and-retry.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrBackoffExhausted means the backoff cap was reached; the run
	// abandons its remaining configurations rather than retry forever.
	ErrBackoffExhausted = errors.New("backoff cap exceeded")
	// ErrQuotaExceeded means the provider's daily budget is spent before
	// any request was issued.
	ErrQuotaExceeded = errors.New("daily request quota exceeded")
)

// recStr reads a string field from a record, tolerating absent keys and
// numeric ids.
func recStr(rec ExternalRecord, key string) string {
	switch v := rec[key].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return ""
	default:
		return ""
	}
}

// recFloat reads a numeric field, accepting JSON numbers and numeric strings.
func recFloat(rec ExternalRecord, key string) (float64, bool) {
	switch v := rec[key].(type) {
	case float64:
		return v, true
	case string:
		return parseAmountString(v)
	default:
		return 0, false
	}
}

// recMap descends into a nested object field.
func recMap(rec ExternalRecord, key string) ExternalRecord {
	if m, ok := rec[key].(map[string]interface{}); ok {
		return ExternalRecord(m)
	}
	return nil
}
