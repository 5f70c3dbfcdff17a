package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fundsync/fundsync/internal/models"
)

// SamGovAdapter covers the SAM.gov contract-opportunity API: GET with the
// API key as a query parameter, MM/dd/yyyy dates, limit/offset pagination,
// an "opportunitiesData" envelope, and a hard daily request cap on
// personal keys. This is the provider that actually returns 429s.
type SamGovAdapter struct {
	BaseURL    string
	APIKey     string
	PageSize   int
	DailyQuota int

	// now is overridable so the posted-date window is testable.
	now func() time.Time
}

func NewSamGovAdapter(cfg ProviderConfig) *SamGovAdapter {
	a := &SamGovAdapter{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		PageSize:   cfg.PageSize,
		DailyQuota: cfg.DailyLimit,
		now:        time.Now,
	}
	if a.BaseURL == "" {
		a.BaseURL = "https://api.sam.gov/opportunities/v2/search"
	}
	if a.PageSize <= 0 {
		a.PageSize = 25
	}
	if a.DailyQuota <= 0 {
		a.DailyQuota = 10
	}
	return a
}

func (a *SamGovAdapter) Source() string { return "sam.gov" }

func (a *SamGovAdapter) DailyLimit() int { return a.DailyQuota }

func (a *SamGovAdapter) BuildRequest(ctx context.Context, config SearchConfiguration) (*http.Request, error) {
	limit := a.PageSize
	if v, err := strconv.Atoi(config.Params[ParamLimit]); err == nil && v > 0 {
		limit = v
	}
	daysBack := 90
	if v, err := strconv.Atoi(config.Params[ParamDaysBack]); err == nil && v > 0 {
		daysBack = v
	}

	now := a.now().UTC()
	q := url.Values{}
	q.Set("api_key", a.APIKey)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", "0")
	q.Set("postedFrom", now.AddDate(0, 0, -daysBack).Format("01/02/2006"))
	q.Set("postedTo", now.Format("01/02/2006"))
	q.Set("ptype", "o") // solicitations only
	if kw := config.Params[ParamKeyword]; kw != "" {
		q.Set("title", kw)
	}

	endpoint := a.BaseURL
	if config.Endpoint != "" {
		endpoint = config.Endpoint
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

type samGovResponse struct {
	TotalRecords      int              `json:"totalRecords"`
	OpportunitiesData []ExternalRecord `json:"opportunitiesData"`
}

func (a *SamGovAdapter) ParseResponse(body []byte) ([]ExternalRecord, error) {
	var apiResp samGovResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return apiResp.OpportunitiesData, nil
}

func (a *SamGovAdapter) UniqueID(rec ExternalRecord) string {
	return recStr(rec, "noticeId")
}

func (a *SamGovAdapter) Normalize(rec ExternalRecord) (models.Opportunity, error) {
	sponsor, agency := samGovHierarchy(recStr(rec, "fullParentPathName"))
	if sponsor == "" {
		// Generic label: contract notices occasionally omit the hierarchy.
		sponsor = "U.S. Federal Government"
	}

	opp := models.Opportunity{
		ExternalID:  recStr(rec, "noticeId"),
		Source:      a.Source(),
		Title:       recStr(rec, "title"),
		Sponsor:     sponsor,
		Agency:      agency,
		Description: samGovDescription(rec),
		SourceURL:   recStr(rec, "uiLink"),
		RawData:     rec,
	}
	if opp.SourceURL == "" && opp.ExternalID != "" {
		opp.SourceURL = fmt.Sprintf("https://sam.gov/opp/%s/view", opp.ExternalID)
	}

	// responseDeadLine arrives as RFC3339 or a bare MM/dd/yyyy.
	opp.DeadlineDate = parseProviderDate(recStr(rec, "responseDeadLine"), layoutRFC3339D, layoutUSSlash)

	if award := recMap(rec, "award"); award != nil {
		if amount, ok := recFloat(award, "amount"); ok {
			opp.AmountMin = floatPtr(amount)
			opp.AmountMax = floatPtr(amount)
		}
	}

	if code := recStr(rec, "typeOfSetAside"); code != "" {
		if profile, ok := setAsideFlags[strings.ToUpper(code)]; ok {
			opp.MinorityFlag = profile.Minority
			opp.WomanOwnedFlag = profile.WomanOwned
			opp.VeteranFlag = profile.Veteran
			opp.SmallBusinessFlag = profile.SmallBusiness
			opp.EligibilityCriteria = append(opp.EligibilityCriteria, profile.Description)
		}
	}
	if desc := recStr(rec, "typeOfSetAsideDescription"); desc != "" {
		opp.EligibilityCriteria = appendUnique(opp.EligibilityCriteria, desc)
	}

	if pop := recMap(rec, "placeOfPerformance"); pop != nil {
		if state := recMap(pop, "state"); state != nil {
			if code := recStr(state, "code"); code != "" {
				opp.Geography = []string{code}
			}
		}
	}

	finalizeOpportunity(&opp)
	if err := validateOpportunity(opp, false); err != nil {
		return models.Opportunity{}, err
	}
	return opp, nil
}

// samGovHierarchy splits "DEPT.SUBTIER.OFFICE" into the owning department
// and the most specific office.
func samGovHierarchy(fullPath string) (sponsor, agency string) {
	parts := strings.Split(fullPath, ".")
	cleaned := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return "", ""
	}
	sponsor = cleaned[0]
	agency = cleaned[len(cleaned)-1]
	return sponsor, agency
}

func samGovDescription(rec ExternalRecord) string {
	var parts []string
	if t := recStr(rec, "type"); t != "" {
		parts = append(parts, fmt.Sprintf("Federal contract opportunity (%s).", t))
	}
	if naics := recStr(rec, "naicsCode"); naics != "" {
		parts = append(parts, fmt.Sprintf("NAICS %s.", naics))
	}
	if desc := recStr(rec, "typeOfSetAsideDescription"); desc != "" {
		parts = append(parts, desc+".")
	}
	return strings.Join(parts, " ")
}

func appendUnique(list []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return list
	}
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return list
		}
	}
	return append(list, v)
}
