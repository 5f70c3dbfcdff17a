package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fundsync/fundsync/internal/models"
)

// NIHReporterAdapter queries the NIH RePORTER projects API: POST with a
// JSON criteria object, ISO dates, offset/limit pagination, and a flat
// "results" envelope. RePORTER publishes award totals, so records without
// an amount fail validation.
type NIHReporterAdapter struct {
	BaseURL    string
	PageSize   int
	DailyQuota int
}

func NewNIHReporterAdapter(cfg ProviderConfig) *NIHReporterAdapter {
	a := &NIHReporterAdapter{
		BaseURL:    cfg.BaseURL,
		PageSize:   cfg.PageSize,
		DailyQuota: cfg.DailyLimit,
	}
	if a.BaseURL == "" {
		a.BaseURL = "https://api.reporter.nih.gov/v2/projects/search"
	}
	if a.PageSize <= 0 {
		a.PageSize = 50
	}
	return a
}

func (a *NIHReporterAdapter) Source() string { return "nih-reporter" }

func (a *NIHReporterAdapter) DailyLimit() int { return a.DailyQuota }

type nihSearchRequest struct {
	Criteria  nihCriteria `json:"criteria"`
	Offset    int         `json:"offset"`
	Limit     int         `json:"limit"`
	SortField string      `json:"sort_field"`
	SortOrder string      `json:"sort_order"`
}

type nihCriteria struct {
	AdvancedTextSearch *nihTextSearch `json:"advanced_text_search,omitempty"`
}

type nihTextSearch struct {
	SearchText  string `json:"search_text"`
	SearchField string `json:"search_field"`
	Operator    string `json:"operator"`
}

func (a *NIHReporterAdapter) BuildRequest(ctx context.Context, config SearchConfiguration) (*http.Request, error) {
	limit := a.PageSize
	if v, err := strconv.Atoi(config.Params[ParamLimit]); err == nil && v > 0 {
		limit = v
	}

	searchReq := nihSearchRequest{
		Offset:    0,
		Limit:     limit,
		SortField: "project_start_date",
		SortOrder: "desc",
	}
	if kw := config.Params[ParamKeyword]; kw != "" {
		searchReq.Criteria.AdvancedTextSearch = &nihTextSearch{
			SearchText:  kw,
			SearchField: "projecttitle,terms,abstracttext",
			Operator:    "and",
		}
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

type nihResponse struct {
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
	Results []ExternalRecord `json:"results"`
}

func (a *NIHReporterAdapter) ParseResponse(body []byte) ([]ExternalRecord, error) {
	var apiResp nihResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return apiResp.Results, nil
}

func (a *NIHReporterAdapter) UniqueID(rec ExternalRecord) string {
	if id := recStr(rec, "project_num"); id != "" {
		return id
	}
	return recStr(rec, "appl_id")
}

func (a *NIHReporterAdapter) Normalize(rec ExternalRecord) (models.Opportunity, error) {
	opp := models.Opportunity{
		ExternalID:  a.UniqueID(rec),
		Source:      a.Source(),
		Title:       recStr(rec, "project_title"),
		Sponsor:     "National Institutes of Health",
		Agency:      nihAdminAgency(rec),
		Description: recStr(rec, "abstract_text"),
		RawData:     rec,
	}

	if applID := recStr(rec, "appl_id"); applID != "" {
		opp.SourceURL = fmt.Sprintf("https://reporter.nih.gov/project-details/%s", applID)
	}

	// RePORTER ships award totals; a missing amount fails validation below.
	if amount, ok := recFloat(rec, "award_amount"); ok {
		opp.AmountMin = floatPtr(amount)
		opp.AmountMax = floatPtr(amount)
	}

	// ISO timestamps, e.g. "2026-08-31T00:08:00Z" or "2026-08-31".
	opp.DeadlineDate = parseProviderDate(recStr(rec, "project_end_date"), layoutRFC3339D, layoutISO)

	if org := recMap(rec, "organization"); org != nil {
		if state := recStr(org, "org_state"); state != "" {
			opp.Geography = []string{state}
		}
	}

	finalizeOpportunity(&opp)
	if err := validateOpportunity(opp, true); err != nil {
		return models.Opportunity{}, err
	}
	return opp, nil
}

func nihAdminAgency(rec ExternalRecord) string {
	if ic := recMap(rec, "agency_ic_admin"); ic != nil {
		if name := recStr(ic, "name"); name != "" {
			return name
		}
		if abbr := recStr(ic, "abbreviation"); abbr != "" {
			return abbr
		}
	}
	return "National Institutes of Health"
}
