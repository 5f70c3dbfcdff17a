package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fundsync/fundsync/internal/models"
)

// GrantsGovAdapter talks to the Grants.gov search2 API: POST with a JSON
// body, MM/DD/YYYY dates, rows/startRecordNum pagination, no auth, and a
// response wrapped in a "data" envelope.
type GrantsGovAdapter struct {
	BaseURL    string
	PageSize   int
	DailyQuota int
}

func NewGrantsGovAdapter(cfg ProviderConfig) *GrantsGovAdapter {
	a := &GrantsGovAdapter{
		BaseURL:    cfg.BaseURL,
		PageSize:   cfg.PageSize,
		DailyQuota: cfg.DailyLimit,
	}
	if a.BaseURL == "" {
		a.BaseURL = "https://api.grants.gov/v1/api/search2"
	}
	if a.PageSize <= 0 {
		a.PageSize = 25
	}
	return a
}

func (a *GrantsGovAdapter) Source() string { return "grants.gov" }

// Grants.gov imposes no cap of its own; a registry daily_limit still applies.
func (a *GrantsGovAdapter) DailyLimit() int { return a.DailyQuota }

type grantsGovSearchRequest struct {
	Keyword        string `json:"keyword"`
	OppStatuses    string `json:"oppStatuses"`
	SortBy         string `json:"sortBy"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
}

func (a *GrantsGovAdapter) BuildRequest(ctx context.Context, config SearchConfiguration) (*http.Request, error) {
	rows := a.PageSize
	if v, err := strconv.Atoi(config.Params[ParamLimit]); err == nil && v > 0 {
		rows = v
	}

	searchReq := grantsGovSearchRequest{
		Keyword:        config.Params[ParamKeyword],
		OppStatuses:    "posted",
		SortBy:         "openDate|desc",
		Rows:           rows,
		StartRecordNum: 0,
	}

	jsonBody, err := json.Marshal(searchReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := a.BaseURL
	if config.Endpoint != "" {
		endpoint = config.Endpoint
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

type grantsGovResponse struct {
	Data struct {
		HitCount int              `json:"hitCount"`
		OppHits  []ExternalRecord `json:"oppHits"`
	} `json:"data"`
	ErrorCode int    `json:"errorcode"`
	Msg       string `json:"msg"`
}

func (a *GrantsGovAdapter) ParseResponse(body []byte) ([]ExternalRecord, error) {
	var apiResp grantsGovResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if apiResp.ErrorCode != 0 {
		return nil, fmt.Errorf("API error: %s", apiResp.Msg)
	}
	return apiResp.Data.OppHits, nil
}

func (a *GrantsGovAdapter) UniqueID(rec ExternalRecord) string {
	return recStr(rec, "id")
}

func (a *GrantsGovAdapter) Normalize(rec ExternalRecord) (models.Opportunity, error) {
	agencyCode := recStr(rec, "agencyCode")
	sponsor := recStr(rec, "agency")
	if sponsor == "" {
		// Provider-specific generic label when the hit omits the agency.
		sponsor = "Grants.gov Federal Sponsor"
	}

	opp := models.Opportunity{
		ExternalID:  recStr(rec, "id"),
		Source:      a.Source(),
		Title:       recStr(rec, "title"),
		Sponsor:     sponsor,
		Agency:      expandAgency(topLevelAgencyCode(agencyCode)),
		Description: grantsGovDescription(rec),
		SourceURL:   fmt.Sprintf("https://www.grants.gov/search-results-detail/%s", recStr(rec, "id")),
		RawData:     rec,
	}

	// closeDate is strictly a date (MM/DD/YYYY); absent means rolling.
	opp.DeadlineDate = parseProviderDate(recStr(rec, "closeDate"), layoutUSSlash)

	finalizeOpportunity(&opp)
	if err := validateOpportunity(opp, false); err != nil {
		return models.Opportunity{}, err
	}
	return opp, nil
}

func grantsGovDescription(rec ExternalRecord) string {
	var parts []string
	if agency := recStr(rec, "agency"); agency != "" {
		parts = append(parts, fmt.Sprintf("Federal grant opportunity from %s.", agency))
	}
	if number := recStr(rec, "number"); number != "" {
		parts = append(parts, fmt.Sprintf("Opportunity number %s.", number))
	}
	if cfda, ok := rec["cfdaList"].([]interface{}); ok && len(cfda) > 0 {
		codes := make([]string, 0, len(cfda))
		for _, c := range cfda {
			if s, ok := c.(string); ok {
				codes = append(codes, s)
			}
		}
		if len(codes) > 0 {
			parts = append(parts, "CFDA: "+strings.Join(codes, ", ")+".")
		}
	}
	return strings.Join(parts, " ")
}

// topLevelAgencyCode reduces "HHS-NIH" style codes to the department code.
func topLevelAgencyCode(code string) string {
	if idx := strings.Index(code, "-"); idx > 0 {
		return code[:idx]
	}
	return code
}
