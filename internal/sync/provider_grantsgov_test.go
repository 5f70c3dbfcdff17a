package sync

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

const grantsGovFixture = `{
	"errorcode": 0,
	"msg": "Success",
	"data": {
		"hitCount": 2,
		"oppHits": [
			{
				"id": "359687",
				"number": "USDA-FS-2026-UCF",
				"title": "Urban and Community Forestry Program",
				"agency": "Forest Service",
				"agencyCode": "USDA-FS",
				"closeDate": "10/15/2026",
				"cfdaList": ["10.675"]
			},
			{
				"id": "360120",
				"number": "EPA-OW-2026-01",
				"title": "Water Infrastructure Improvements",
				"agency": "Environmental Protection Agency",
				"agencyCode": "EPA"
			}
		]
	}
}`

func TestGrantsGovParseResponse(t *testing.T) {
	a := NewGrantsGovAdapter(ProviderConfig{})
	recs, err := a.ParseResponse([]byte(grantsGovFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if got := a.UniqueID(recs[0]); got != "359687" {
		t.Errorf("expected id 359687, got %q", got)
	}
}

func TestGrantsGovParseResponseAPIError(t *testing.T) {
	a := NewGrantsGovAdapter(ProviderConfig{})
	_, err := a.ParseResponse([]byte(`{"errorcode": 1, "msg": "invalid keyword"}`))
	if err == nil || !strings.Contains(err.Error(), "invalid keyword") {
		t.Errorf("expected API error with message, got %v", err)
	}
}

func TestGrantsGovBuildRequest(t *testing.T) {
	a := NewGrantsGovAdapter(ProviderConfig{})
	cfg := SearchConfiguration{
		Name:   "rule-based-clean-energy",
		Params: map[string]string{ParamKeyword: "clean energy", ParamLimit: "10"},
	}

	req, err := a.BuildRequest(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "POST" {
		t.Errorf("expected POST, got %s", req.Method)
	}

	body, _ := io.ReadAll(req.Body)
	var sent grantsGovSearchRequest
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
	if sent.Keyword != "clean energy" {
		t.Errorf("expected keyword in body, got %q", sent.Keyword)
	}
	if sent.Rows != 10 {
		t.Errorf("expected rows 10, got %d", sent.Rows)
	}
	if sent.OppStatuses != "posted" {
		t.Errorf("expected posted-only filter, got %q", sent.OppStatuses)
	}
}

func TestGrantsGovNormalize(t *testing.T) {
	a := NewGrantsGovAdapter(ProviderConfig{})
	recs, err := a.ParseResponse([]byte(grantsGovFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opp, err := a.Normalize(recs[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if opp.Source != "grants.gov" {
		t.Errorf("expected source grants.gov, got %q", opp.Source)
	}
	if opp.Sponsor != "Forest Service" {
		t.Errorf("expected sponsor from agency field, got %q", opp.Sponsor)
	}
	if opp.Agency != "Department of Agriculture" {
		t.Errorf("expected expanded department, got %q", opp.Agency)
	}
	if opp.DeadlineType != "fixed" || opp.DeadlineDate == nil {
		t.Errorf("expected fixed deadline, got %s / %v", opp.DeadlineType, opp.DeadlineDate)
	}
	if opp.DeadlineDate.Month() != 10 || opp.DeadlineDate.Day() != 15 {
		t.Errorf("expected Oct 15 deadline, got %v", opp.DeadlineDate)
	}
	if !strings.Contains(opp.SourceURL, "359687") {
		t.Errorf("expected detail URL with id, got %q", opp.SourceURL)
	}
}

func TestGrantsGovNormalizeRollingAndSponsorDefault(t *testing.T) {
	a := NewGrantsGovAdapter(ProviderConfig{})

	opp, err := a.Normalize(ExternalRecord{"id": "1", "title": "No Deadline Grant"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opp.DeadlineType != "rolling" {
		t.Errorf("expected rolling deadline, got %q", opp.DeadlineType)
	}
	if opp.Sponsor != "Grants.gov Federal Sponsor" {
		t.Errorf("expected generic sponsor label, got %q", opp.Sponsor)
	}
}

func TestGrantsGovNormalizeDropsMissingTitle(t *testing.T) {
	a := NewGrantsGovAdapter(ProviderConfig{})
	if _, err := a.Normalize(ExternalRecord{"id": "1", "agency": "EPA"}); err == nil {
		t.Error("expected record without title to be dropped")
	}
}
