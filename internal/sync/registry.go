package sync

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/providers.yaml
var providersYAML embed.FS

// ProviderConfig is one provider entry from providers.yaml.
type ProviderConfig struct {
	ID         string `yaml:"id"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key,omitempty"`
	DailyLimit int    `yaml:"daily_limit,omitempty"` // 0 = unlimited
	PageSize   int    `yaml:"page_size,omitempty"`
}

// Registry holds the configuration for all providers.
type Registry struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// LoadRegistry reads the embedded providers.yaml, expanding ${VAR}
// environment references (API keys).
func LoadRegistry() (*Registry, error) {
	data, err := providersYAML.ReadFile("config/providers.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded providers.yaml: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse providers.yaml: %w", err)
	}
	return &reg, nil
}

func (r *Registry) Get(id string) (ProviderConfig, bool) {
	for _, p := range r.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.Providers))
	for _, p := range r.Providers {
		ids = append(ids, p.ID)
	}
	return ids
}

// NewAdapter constructs the adapter for a registry entry.
func NewAdapter(cfg ProviderConfig) (ProviderAdapter, error) {
	switch cfg.ID {
	case "grants.gov":
		return NewGrantsGovAdapter(cfg), nil
	case "sam.gov":
		return NewSamGovAdapter(cfg), nil
	case "nih-reporter":
		return NewNIHReporterAdapter(cfg), nil
	case "nsf":
		return NewNSFAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.ID)
	}
}
