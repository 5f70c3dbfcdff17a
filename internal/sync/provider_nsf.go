package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fundsync/fundsync/internal/models"
)

// nsfPrintFields limits the award payload to the fields we map; the NSF
// API returns almost nothing without an explicit field list.
const nsfPrintFields = "id,title,agency,awardeeName,awardeeStateCode,fundsObligatedAmt,date,startDate,expDate,abstractText,fundProgramName"

// NSFAdapter queries the NSF award search API: plain GET, rpp/offset
// pagination, MM/dd/yyyy dates, and a "response.award" envelope. Obligated
// funds arrive as strings and are mandatory.
type NSFAdapter struct {
	BaseURL    string
	PageSize   int
	DailyQuota int
}

func NewNSFAdapter(cfg ProviderConfig) *NSFAdapter {
	a := &NSFAdapter{
		BaseURL:    cfg.BaseURL,
		PageSize:   cfg.PageSize,
		DailyQuota: cfg.DailyLimit,
	}
	if a.BaseURL == "" {
		a.BaseURL = "https://api.nsf.gov/services/v1/awards.json"
	}
	if a.PageSize <= 0 {
		a.PageSize = 25
	}
	return a
}

func (a *NSFAdapter) Source() string { return "nsf" }

func (a *NSFAdapter) DailyLimit() int { return a.DailyQuota }

func (a *NSFAdapter) BuildRequest(ctx context.Context, config SearchConfiguration) (*http.Request, error) {
	rpp := a.PageSize
	if v, err := strconv.Atoi(config.Params[ParamLimit]); err == nil && v > 0 {
		rpp = v
	}

	q := url.Values{}
	q.Set("rpp", strconv.Itoa(rpp))
	q.Set("offset", "1") // NSF offsets are 1-based
	q.Set("printFields", nsfPrintFields)
	if kw := config.Params[ParamKeyword]; kw != "" {
		q.Set("keyword", kw)
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

type nsfResponse struct {
	Response struct {
		Award []ExternalRecord `json:"award"`
	} `json:"response"`
}

func (a *NSFAdapter) ParseResponse(body []byte) ([]ExternalRecord, error) {
	var apiResp nsfResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return apiResp.Response.Award, nil
}

func (a *NSFAdapter) UniqueID(rec ExternalRecord) string {
	return recStr(rec, "id")
}

func (a *NSFAdapter) Normalize(rec ExternalRecord) (models.Opportunity, error) {
	opp := models.Opportunity{
		ExternalID:  recStr(rec, "id"),
		Source:      a.Source(),
		Title:       recStr(rec, "title"),
		Sponsor:     "National Science Foundation",
		Agency:      recStr(rec, "fundProgramName"),
		Description: nsfDescription(rec),
		RawData:     rec,
	}
	if opp.ExternalID != "" {
		opp.SourceURL = fmt.Sprintf("https://www.nsf.gov/awardsearch/showAward?AWD_ID=%s", opp.ExternalID)
	}

	// fundsObligatedAmt is a string amount and mandatory for NSF records.
	if amount, ok := recFloat(rec, "fundsObligatedAmt"); ok {
		opp.AmountMin = floatPtr(amount)
		opp.AmountMax = floatPtr(amount)
	}

	// expDate is MM/dd/yyyy.
	opp.DeadlineDate = parseProviderDate(recStr(rec, "expDate"), layoutUSSlash)

	if state := recStr(rec, "awardeeStateCode"); state != "" {
		opp.Geography = []string{state}
	}

	finalizeOpportunity(&opp)
	if err := validateOpportunity(opp, true); err != nil {
		return models.Opportunity{}, err
	}
	return opp, nil
}

func nsfDescription(rec ExternalRecord) string {
	if abstract := recStr(rec, "abstractText"); abstract != "" {
		return abstract
	}
	var out string
	if prog := recStr(rec, "fundProgramName"); prog != "" {
		out = fmt.Sprintf("NSF award under the %s program.", prog)
	}
	if awardee := recStr(rec, "awardeeName"); awardee != "" {
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("Awarded to %s.", awardee)
	}
	return out
}
