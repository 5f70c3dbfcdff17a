package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Classify implements Oracle using the Ollama generation endpoint. The
// prompt context is free text describing a project and its organization
// profile; the model returns keyword sets per category family.
func (c *OllamaClient) Classify(ctx context.Context, promptContext string) (*Categories, error) {
	prompt := fmt.Sprintf(`You are an expert in funding opportunity research. Given the project and organization profile below, produce search keywords for funding databases.

PROFILE:
%s

Return a JSON object with this format:
{
  "subject_areas": ["keyword phrase", ...],
  "populations": ["keyword phrase", ...],
  "support_types": ["keyword phrase", ...]
}

Rules:
1. subject_areas are the fields or topics the project works in (e.g. "rural health", "clean energy").
2. populations are the groups served (e.g. "veterans", "low-income families").
3. support_types are the kind of funding needed (e.g. "equipment", "research", "capacity building").
4. Keep each keyword phrase under 5 words. At most 5 entries per list.
5. RESPOND ONLY WITH JSON.`, promptContext)

	resp, err := c.GenerateCompletion(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	var result Categories
	if err := json.Unmarshal([]byte(resp), &result); err != nil {
		return nil, fmt.Errorf("failed to parse classification json: %w. Response: %s", err, resp)
	}

	result.SubjectAreas = cleanKeywords(result.SubjectAreas)
	result.Populations = cleanKeywords(result.Populations)
	result.SupportTypes = cleanKeywords(result.SupportTypes)

	if result.Empty() {
		return nil, nil
	}
	return &result, nil
}

// cleanKeywords trims, lowercases and dedupes model output so identical
// inputs always map to identical configurations downstream.
func cleanKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.Join(strings.Fields(k), " "))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
