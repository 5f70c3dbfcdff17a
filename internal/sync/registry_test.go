package sync

import "testing"

func TestLoadRegistry(t *testing.T) {
	t.Setenv("SAM_API_KEY", "secret-key")

	reg, err := LoadRegistry()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []string{"grants.gov", "sam.gov", "nih-reporter", "nsf"} {
		if _, ok := reg.Get(id); !ok {
			t.Errorf("expected provider %s in registry", id)
		}
	}

	sam, _ := reg.Get("sam.gov")
	if sam.APIKey != "secret-key" {
		t.Errorf("expected env-expanded API key, got %q", sam.APIKey)
	}
	if sam.DailyLimit != 10 {
		t.Errorf("expected sam.gov daily limit 10, got %d", sam.DailyLimit)
	}

	gg, _ := reg.Get("grants.gov")
	if gg.DailyLimit != 0 {
		t.Errorf("expected grants.gov unlimited, got %d", gg.DailyLimit)
	}
}

func TestNewAdapterForEveryRegisteredProvider(t *testing.T) {
	reg, err := LoadRegistry()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, cfg := range reg.Providers {
		adapter, err := NewAdapter(cfg)
		if err != nil {
			t.Errorf("provider %s: %v", cfg.ID, err)
			continue
		}
		if adapter.Source() != cfg.ID {
			t.Errorf("adapter source %q does not match registry id %q", adapter.Source(), cfg.ID)
		}
		if adapter.DailyLimit() != cfg.DailyLimit {
			t.Errorf("provider %s: daily limit %d does not match registry %d", cfg.ID, adapter.DailyLimit(), cfg.DailyLimit)
		}
	}
}

func TestAdapterDailyLimitPassthrough(t *testing.T) {
	tests := []struct {
		name    string
		adapter ProviderAdapter
		want    int
	}{
		{"grants.gov configured", NewGrantsGovAdapter(ProviderConfig{DailyLimit: 7}), 7},
		{"grants.gov default unlimited", NewGrantsGovAdapter(ProviderConfig{}), 0},
		{"nih-reporter configured", NewNIHReporterAdapter(ProviderConfig{DailyLimit: 5}), 5},
		{"nsf configured", NewNSFAdapter(ProviderConfig{DailyLimit: 5}), 5},
		{"sam.gov default cap", NewSamGovAdapter(ProviderConfig{}), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.adapter.DailyLimit(); got != tt.want {
				t.Errorf("expected daily limit %d, got %d", tt.want, got)
			}
		})
	}
}

func TestNewAdapterUnknownProvider(t *testing.T) {
	if _, err := NewAdapter(ProviderConfig{ID: "usaspending"}); err == nil {
		t.Error("expected error for unregistered provider")
	}
}
