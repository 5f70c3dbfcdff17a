package sync

import (
	"context"
	"testing"
)

const nsfFixture = `{
	"response": {
		"award": [
			{
				"id": "2412345",
				"title": "Collaborative Research: Scalable Sensor Networks",
				"agency": "NSF",
				"awardeeName": "University of Example",
				"awardeeStateCode": "CO",
				"fundsObligatedAmt": "749999",
				"expDate": "08/31/2028",
				"fundProgramName": "CPS-Cyber-Physical Systems",
				"abstractText": "This award supports research into sensor network scalability."
			}
		]
	}
}`

func TestNSFParseResponse(t *testing.T) {
	a := NewNSFAdapter(ProviderConfig{})
	recs, err := a.ParseResponse([]byte(nsfFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if got := a.UniqueID(recs[0]); got != "2412345" {
		t.Errorf("expected award id, got %q", got)
	}
}

func TestNSFBuildRequest(t *testing.T) {
	a := NewNSFAdapter(ProviderConfig{})
	req, err := a.BuildRequest(context.Background(), SearchConfiguration{
		Params: map[string]string{ParamKeyword: "sensor networks", ParamLimit: "10"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("expected GET, got %s", req.Method)
	}

	q := req.URL.Query()
	if q.Get("keyword") != "sensor networks" {
		t.Errorf("expected keyword param, got %q", q.Get("keyword"))
	}
	if q.Get("rpp") != "10" {
		t.Errorf("expected rpp 10, got %q", q.Get("rpp"))
	}
	if q.Get("printFields") == "" {
		t.Error("expected explicit printFields list")
	}
}

func TestNSFNormalize(t *testing.T) {
	a := NewNSFAdapter(ProviderConfig{})
	recs, err := a.ParseResponse([]byte(nsfFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opp, err := a.Normalize(recs[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if opp.Sponsor != "National Science Foundation" {
		t.Errorf("expected fixed NSF sponsor, got %q", opp.Sponsor)
	}
	if opp.AmountMin == nil || *opp.AmountMin != 749999 {
		t.Errorf("expected obligated funds parsed from string, got %v", opp.AmountMin)
	}
	if opp.DeadlineDate == nil || opp.DeadlineDate.Year() != 2028 {
		t.Errorf("expected 2028 expiration, got %v", opp.DeadlineDate)
	}
	if len(opp.Geography) != 1 || opp.Geography[0] != "CO" {
		t.Errorf("expected geography [CO], got %v", opp.Geography)
	}
	if opp.SourceURL != "https://www.nsf.gov/awardsearch/showAward?AWD_ID=2412345" {
		t.Errorf("unexpected source URL %q", opp.SourceURL)
	}
}

func TestNSFNormalizeRequiresAmount(t *testing.T) {
	a := NewNSFAdapter(ProviderConfig{})
	_, err := a.Normalize(ExternalRecord{
		"id":    "2499999",
		"title": "Award Without Funds",
	})
	if err == nil {
		t.Error("expected record without obligated funds to be dropped")
	}
}
