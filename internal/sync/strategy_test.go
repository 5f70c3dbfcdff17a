package sync

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fundsync/fundsync/internal/ai"
	"github.com/fundsync/fundsync/internal/models"
)

// oracleFunc adapts a function to the ai.Oracle interface for tests.
type oracleFunc func(ctx context.Context, promptContext string) (*ai.Categories, error)

func (f oracleFunc) Classify(ctx context.Context, promptContext string) (*ai.Categories, error) {
	return f(ctx, promptContext)
}

func healthProfile() models.ProjectProfile {
	return models.ProjectProfile{
		ProjectID:        "proj-1",
		ProjectName:      "Community Clinic Expansion",
		Description:      "Expanding rural health services",
		OrganizationType: "nonprofit",
		Industry:         "healthcare",
		ProjectType:      "expansion",
	}
}

func TestGenerateAITier(t *testing.T) {
	oracle := oracleFunc(func(ctx context.Context, prompt string) (*ai.Categories, error) {
		return &ai.Categories{
			SubjectAreas: []string{"rural health", "community medicine"},
			Populations:  []string{"underserved communities"},
			SupportTypes: []string{"facility construction"},
		}, nil
	})

	g := &Generator{Oracle: oracle}
	configs := g.Generate(context.Background(), []models.ProjectProfile{healthProfile()})

	var subjects, populations, supports int
	for _, c := range configs {
		switch c.StrategyKind {
		case StrategyAISubject:
			subjects++
		case StrategyAIPopulation:
			populations++
		case StrategyAISupport:
			supports++
		}
	}
	if subjects != 2 || populations != 1 || supports != 1 {
		t.Errorf("expected 2/1/1 AI configs, got %d/%d/%d", subjects, populations, supports)
	}

	first := configs[0]
	if first.StrategyKind != StrategyAISubject {
		t.Errorf("expected AI subject configs ranked first, got %s", first.StrategyKind)
	}
	if first.TargetCategory != "rural health" {
		t.Errorf("expected target category carried through, got %q", first.TargetCategory)
	}
	if first.RelatedProjectID != "proj-1" {
		t.Errorf("expected project attribution, got %q", first.RelatedProjectID)
	}
	if first.Params[ParamKeyword] != "rural health" {
		t.Errorf("expected keyword param, got %q", first.Params[ParamKeyword])
	}
}

func TestGenerateCapsPerCategoryFamily(t *testing.T) {
	oracle := oracleFunc(func(ctx context.Context, prompt string) (*ai.Categories, error) {
		return &ai.Categories{
			SubjectAreas: []string{"a", "b", "c", "d", "e"},
		}, nil
	})

	g := &Generator{Oracle: oracle, MinConfigurations: 1}
	configs := g.Generate(context.Background(), []models.ProjectProfile{healthProfile()})

	subjects := 0
	for _, c := range configs {
		if c.StrategyKind == StrategyAISubject {
			subjects++
		}
	}
	if subjects != maxSubjectConfigs {
		t.Errorf("expected subject configs capped at %d, got %d", maxSubjectConfigs, subjects)
	}
}

func TestGenerateFallsBackToRulesWithoutOracle(t *testing.T) {
	g := &Generator{}
	configs := g.Generate(context.Background(), []models.ProjectProfile{healthProfile()})

	if len(configs) == 0 {
		t.Fatal("expected rule-based configs without an oracle")
	}
	for _, c := range configs {
		if c.StrategyKind != StrategyRuleBased {
			t.Errorf("expected only rule-based configs, got %s for %s", c.StrategyKind, c.Name)
		}
	}

	// The healthcare profile should surface the health-services keyword.
	found := false
	for _, c := range configs {
		if c.Params[ParamKeyword] == "health services" {
			found = true
		}
	}
	if !found {
		t.Error("expected industry keyword from the healthcare table")
	}
}

func TestGenerateOracleFailureFallsThrough(t *testing.T) {
	oracle := oracleFunc(func(ctx context.Context, prompt string) (*ai.Categories, error) {
		return nil, errors.New("oracle unreachable")
	})

	g := &Generator{Oracle: oracle}
	configs := g.Generate(context.Background(), []models.ProjectProfile{healthProfile()})

	if len(configs) == 0 {
		t.Fatal("expected rule-based fallback when oracle fails")
	}
	for _, c := range configs {
		if c.StrategyKind != StrategyRuleBased {
			t.Errorf("expected rule-based config, got %s", c.StrategyKind)
		}
	}
}

func TestGenerateDefaultsWithNoProfiles(t *testing.T) {
	g := &Generator{}
	configs := g.Generate(context.Background(), nil)

	if len(configs) != len(defaultKeywords) {
		t.Fatalf("expected %d default configs, got %d", len(defaultKeywords), len(configs))
	}
	for i, c := range configs {
		if c.Params[ParamKeyword] != defaultKeywords[i] {
			t.Errorf("config %d: expected keyword %q, got %q", i, defaultKeywords[i], c.Params[ParamKeyword])
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	oracle := oracleFunc(func(ctx context.Context, prompt string) (*ai.Categories, error) {
		return &ai.Categories{SubjectAreas: []string{"clean energy"}}, nil
	})

	profiles := []models.ProjectProfile{healthProfile()}
	g := &Generator{Oracle: oracle}

	first := g.Generate(context.Background(), profiles)
	second := g.Generate(context.Background(), profiles)

	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical output for identical input")
	}
}

func TestRuleTierSkipsKeywordsAlreadyCovered(t *testing.T) {
	existing := []SearchConfiguration{
		{Params: map[string]string{ParamKeyword: "Health Services"}},
	}

	g := &Generator{}
	configs := g.ruleTier([]models.ProjectProfile{healthProfile()}, existing)

	for _, c := range configs {
		if c.Params[ParamKeyword] == "health services" {
			t.Error("expected case-insensitive dedup against existing keywords")
		}
	}
}

func TestEmergencyConfiguration(t *testing.T) {
	g := &Generator{}
	cfg := g.emergencyConfiguration()

	if cfg.StrategyKind != StrategyEmergency {
		t.Errorf("expected emergency kind, got %s", cfg.StrategyKind)
	}
	if cfg.Params[ParamKeyword] != "" {
		t.Errorf("expected unfiltered keyword, got %q", cfg.Params[ParamKeyword])
	}
	if cfg.Params[ParamLimit] != "100" {
		t.Errorf("expected high limit, got %q", cfg.Params[ParamLimit])
	}
	if cfg.Params[ParamDaysBack] != "30" {
		t.Errorf("expected recency window, got %q", cfg.Params[ParamDaysBack])
	}
}
