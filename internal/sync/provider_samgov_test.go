package sync

import (
	"context"
	"testing"
	"time"
)

const samGovFixture = `{
	"totalRecords": 1,
	"opportunitiesData": [
		{
			"noticeId": "a1b2c3d4",
			"title": "Janitorial Services for Federal Building",
			"fullParentPathName": "GENERAL SERVICES ADMINISTRATION.PUBLIC BUILDINGS SERVICE.R9 FACILITIES",
			"typeOfSetAside": "WOSB",
			"typeOfSetAsideDescription": "Women-Owned Small Business Set-Aside",
			"responseDeadLine": "2026-11-01T17:00:00-05:00",
			"uiLink": "https://sam.gov/opp/a1b2c3d4/view",
			"type": "Solicitation",
			"naicsCode": "561720",
			"placeOfPerformance": {"state": {"code": "CA"}},
			"award": {"amount": "150000"}
		}
	]
}`

func TestSamGovParseResponse(t *testing.T) {
	a := NewSamGovAdapter(ProviderConfig{})
	recs, err := a.ParseResponse([]byte(samGovFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if got := a.UniqueID(recs[0]); got != "a1b2c3d4" {
		t.Errorf("expected noticeId, got %q", got)
	}
}

func TestSamGovBuildRequest(t *testing.T) {
	a := NewSamGovAdapter(ProviderConfig{APIKey: "test-key"})
	a.now = func() time.Time {
		return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	}

	req, err := a.BuildRequest(context.Background(), SearchConfiguration{
		Params: map[string]string{ParamKeyword: "janitorial", ParamDaysBack: "30"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := req.URL.Query()
	if q.Get("api_key") != "test-key" {
		t.Errorf("expected api key in query, got %q", q.Get("api_key"))
	}
	if q.Get("postedFrom") != "07/29/2026" {
		t.Errorf("expected postedFrom 30 days back, got %q", q.Get("postedFrom"))
	}
	if q.Get("postedTo") != "08/28/2026" {
		t.Errorf("expected postedTo today, got %q", q.Get("postedTo"))
	}
	if q.Get("title") != "janitorial" {
		t.Errorf("expected keyword as title filter, got %q", q.Get("title"))
	}
}

func TestSamGovNormalize(t *testing.T) {
	a := NewSamGovAdapter(ProviderConfig{})
	recs, err := a.ParseResponse([]byte(samGovFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opp, err := a.Normalize(recs[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if opp.Sponsor != "GENERAL SERVICES ADMINISTRATION" {
		t.Errorf("expected department from hierarchy, got %q", opp.Sponsor)
	}
	if opp.Agency != "R9 FACILITIES" {
		t.Errorf("expected most specific office, got %q", opp.Agency)
	}
	if !opp.WomanOwnedFlag || !opp.SmallBusinessFlag {
		t.Error("expected WOSB set-aside to raise woman-owned and small-business flags")
	}
	if opp.MinorityFlag || opp.VeteranFlag {
		t.Error("expected other flags to stay false for WOSB")
	}
	if opp.AmountMin == nil || *opp.AmountMin != 150000 {
		t.Errorf("expected award amount 150000, got %v", opp.AmountMin)
	}
	if len(opp.Geography) != 1 || opp.Geography[0] != "CA" {
		t.Errorf("expected geography [CA], got %v", opp.Geography)
	}
	if opp.DeadlineDate == nil || opp.DeadlineDate.Month() != 11 {
		t.Errorf("expected November deadline, got %v", opp.DeadlineDate)
	}
}

func TestSamGovHierarchy(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		sponsor string
		agency  string
	}{
		{"three levels", "DEPT.SUBTIER.OFFICE", "DEPT", "OFFICE"},
		{"single level", "DEPT", "DEPT", "DEPT"},
		{"empty", "", "", ""},
		{"stray dots", ".DEPT..OFFICE.", "DEPT", "OFFICE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sponsor, agency := samGovHierarchy(tt.path)
			if sponsor != tt.sponsor || agency != tt.agency {
				t.Errorf("got (%q, %q), want (%q, %q)", sponsor, agency, tt.sponsor, tt.agency)
			}
		})
	}
}

func TestSamGovNormalizeSponsorDefault(t *testing.T) {
	a := NewSamGovAdapter(ProviderConfig{})
	opp, err := a.Normalize(ExternalRecord{"noticeId": "x1", "title": "Unattributed Notice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opp.Sponsor != "U.S. Federal Government" {
		t.Errorf("expected generic sponsor label, got %q", opp.Sponsor)
	}
}

func TestSamGovUnknownSetAsideIgnored(t *testing.T) {
	a := NewSamGovAdapter(ProviderConfig{})
	opp, err := a.Normalize(ExternalRecord{
		"noticeId":       "x2",
		"title":          "Open Competition Notice",
		"typeOfSetAside": "NOTACODE",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opp.MinorityFlag || opp.WomanOwnedFlag || opp.VeteranFlag || opp.SmallBusinessFlag {
		t.Error("expected no flags for unknown set-aside code")
	}
}
