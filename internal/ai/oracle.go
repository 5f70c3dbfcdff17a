package ai

import "context"

// Categories is what the categorization oracle returns for one
// project/profile pairing: keyword sets grouped by family.
type Categories struct {
	SubjectAreas []string `json:"subject_areas"`
	Populations  []string `json:"populations"`
	SupportTypes []string `json:"support_types"`
}

// Empty reports whether the oracle produced nothing usable.
func (c *Categories) Empty() bool {
	return c == nil || (len(c.SubjectAreas) == 0 && len(c.Populations) == 0 && len(c.SupportTypes) == 0)
}

// Oracle is the external categorization service that turns project context
// into search keywords. Callers must treat a nil result or an error as
// "no categories" and fall through to rule-based strategies. An oracle
// outage must never abort a sync run.
type Oracle interface {
	Classify(ctx context.Context, promptContext string) (*Categories, error)
}

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}
