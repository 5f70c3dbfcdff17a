package sync

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fundsync/fundsync/internal/ai"
	"github.com/fundsync/fundsync/internal/models"
)

// Per-project caps on AI-tier fan-out.
const (
	maxSubjectConfigs    = 3
	maxPopulationConfigs = 2
	maxSupportConfigs    = 2
)

// defaultMinConfigurations is the threshold below which the rule-based
// tier supplements the AI tier.
const defaultMinConfigurations = 5

// Generator produces the ranked list of search configurations for a run.
// Three tiers: AI-personalized queries per project, rule-based fallbacks
// from static tables, and a single emergency catch-all. For fixed inputs
// and a deterministic oracle the output order is stable; the only allowed
// nondeterminism lives inside the oracle call itself.
type Generator struct {
	Oracle            ai.Oracle // nil disables the AI tier
	MinConfigurations int       // defaults to 5
	PageSize          int       // defaults to 25
}

func (g *Generator) Generate(ctx context.Context, profiles []models.ProjectProfile) []SearchConfiguration {
	minConfigs := g.MinConfigurations
	if minConfigs <= 0 {
		minConfigs = defaultMinConfigurations
	}

	configs := g.aiTier(ctx, profiles)

	if len(configs) < minConfigs {
		configs = append(configs, g.ruleTier(profiles, configs)...)
	}

	if len(configs) == 0 {
		configs = append(configs, g.emergencyConfiguration())
	}

	return configs
}

// aiTier asks the categorization oracle for keyword sets per project and
// emits a capped number of configurations per category family. A nil or
// failing oracle simply contributes nothing; fallback handling belongs to
// the caller, not to exception flow.
func (g *Generator) aiTier(ctx context.Context, profiles []models.ProjectProfile) []SearchConfiguration {
	if g.Oracle == nil {
		return nil
	}

	var configs []SearchConfiguration
	for _, p := range profiles {
		cats, err := g.Oracle.Classify(ctx, profilePrompt(p))
		if err != nil {
			log.Printf("[Strategy] Oracle classify failed for project %s: %v", p.ProjectID, err)
			continue
		}
		if cats.Empty() {
			continue
		}

		configs = append(configs, g.categoryConfigs(StrategyAISubject, cats.SubjectAreas, maxSubjectConfigs, p)...)
		configs = append(configs, g.categoryConfigs(StrategyAIPopulation, cats.Populations, maxPopulationConfigs, p)...)
		configs = append(configs, g.categoryConfigs(StrategyAISupport, cats.SupportTypes, maxSupportConfigs, p)...)
	}
	return configs
}

func (g *Generator) categoryConfigs(kind StrategyKind, categories []string, limit int, p models.ProjectProfile) []SearchConfiguration {
	if len(categories) > limit {
		categories = categories[:limit]
	}
	var configs []SearchConfiguration
	for _, cat := range categories {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		configs = append(configs, SearchConfiguration{
			Name: fmt.Sprintf("%s-%s-%s", kind, slug(cat), p.ProjectID),
			Params: map[string]string{
				ParamKeyword: cat,
				ParamLimit:   g.pageSize(),
			},
			StrategyKind:     kind,
			RelatedProjectID: p.ProjectID,
			TargetCategory:   cat,
		})
	}
	return configs
}

// ruleTier derives configurations from the static keyword tables. Keywords
// already covered by existing configurations are skipped so the two tiers
// never issue the same query twice.
func (g *Generator) ruleTier(profiles []models.ProjectProfile, existing []SearchConfiguration) []SearchConfiguration {
	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		if kw := c.Params[ParamKeyword]; kw != "" {
			seen[strings.ToLower(kw)] = struct{}{}
		}
	}

	var configs []SearchConfiguration
	add := func(keyword, projectID string) {
		key := strings.ToLower(strings.TrimSpace(keyword))
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		configs = append(configs, SearchConfiguration{
			Name: fmt.Sprintf("%s-%s", StrategyRuleBased, slug(keyword)),
			Params: map[string]string{
				ParamKeyword: keyword,
				ParamLimit:   g.pageSize(),
			},
			StrategyKind:     StrategyRuleBased,
			RelatedProjectID: projectID,
		})
	}

	for _, p := range profiles {
		for _, kw := range organizationTypeKeywords[normKey(p.OrganizationType)] {
			add(kw, p.ProjectID)
		}
		for _, kw := range industryKeywords[normKey(p.Industry)] {
			add(kw, p.ProjectID)
		}
		for _, cert := range p.Certifications {
			for _, kw := range certificationKeywords[normKey(cert)] {
				add(kw, p.ProjectID)
			}
		}
		for _, kw := range projectTypeKeywords[normKey(p.ProjectType)] {
			add(kw, p.ProjectID)
		}
	}

	// Organization-agnostic defaults when no profile produced anything
	// (including the no-profiles-at-all case).
	if len(configs) == 0 {
		for _, kw := range defaultKeywords {
			add(kw, "")
		}
	}

	return configs
}

// emergencyConfiguration is the single broad, high-limit query emitted when
// both tiers above came up empty: no filters beyond a recency window.
func (g *Generator) emergencyConfiguration() SearchConfiguration {
	return SearchConfiguration{
		Name: "emergency-catchall",
		Params: map[string]string{
			ParamKeyword:  "",
			ParamLimit:    "100",
			ParamDaysBack: "30",
		},
		StrategyKind: StrategyEmergency,
	}
}

func (g *Generator) pageSize() string {
	if g.PageSize > 0 {
		return fmt.Sprintf("%d", g.PageSize)
	}
	return "25"
}

// profilePrompt renders the project/profile pairing into the oracle's
// prompt context. Field order is fixed for determinism.
func profilePrompt(p models.ProjectProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", p.ProjectName)
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", truncateText(p.Description, 2000))
	}
	if p.OrganizationType != "" {
		fmt.Fprintf(&b, "Organization type: %s\n", p.OrganizationType)
	}
	if p.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", p.Industry)
	}
	if len(p.Certifications) > 0 {
		fmt.Fprintf(&b, "Certifications: %s\n", strings.Join(p.Certifications, ", "))
	}
	if p.ProjectType != "" {
		fmt.Fprintf(&b, "Project type: %s\n", p.ProjectType)
	}
	if p.State != "" {
		fmt.Fprintf(&b, "State: %s\n", p.State)
	}
	return b.String()
}

func normKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "(", "")
	s = strings.ReplaceAll(s, ")", "")
	return s
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
