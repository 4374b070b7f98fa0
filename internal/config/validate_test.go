package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Storage:   StorageConfig{Root: "/srv/media"},
		Downloads: DownloadsConfig{MaxConcurrent: 2, Quality: "best"},
		Quota:     QuotaConfig{Limit: "10 GB", WarningThreshold: 0.8, CleanupThreshold: 0.95},
		Modules: map[string]ModuleConfig{
			"demo": {BaseURL: "https://demo.example", StreamAsync: true, Selector: "video"},
		},
	}
}

func TestValidate_MinimalValid(t *testing.T) {
	errs := validConfig().Validate()
	assert.Empty(t, errs, "expected no errors for minimal valid config")
}

func TestValidate_NoRoot(t *testing.T) {
	errs := (&Config{}).Validate()
	assert.True(t, containsError(errs, "storage.root"), "expected root error, got %v", errs)
}

func TestValidate_LegacyRootEqualsRoot(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.LegacyRoots = []string{"/srv/media"}
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "storage.legacy_roots[0]"), "got %v", errs)
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "verbose"
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "log.level"), "expected log level error, got %v", errs)
}

func TestValidate_InvalidQuality(t *testing.T) {
	cfg := validConfig()
	cfg.Downloads.Quality = "4k"
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "downloads.quality"), "got %v", errs)
}

func TestValidate_NegativeConcurrency(t *testing.T) {
	cfg := validConfig()
	cfg.Downloads.MaxConcurrent = -1
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "downloads.max_concurrent"), "got %v", errs)
}

func TestValidate_Quota(t *testing.T) {
	tests := []struct {
		name  string
		quota QuotaConfig
		want  string
	}{
		{"bad limit", QuotaConfig{Limit: "lots"}, "quota.limit"},
		{"threshold above one", QuotaConfig{CleanupThreshold: 1.5}, "quota.cleanup_threshold"},
		{"warning above cleanup", QuotaConfig{WarningThreshold: 0.9, CleanupThreshold: 0.5}, "must not exceed"},
		{"negative watched", QuotaConfig{WatchedThreshold: -0.1}, "quota.watched_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Quota = tt.quota
			errs := cfg.Validate()
			assert.True(t, containsError(errs, tt.want), "expected %q, got %v", tt.want, errs)
		})
	}
}

func TestValidate_Modules(t *testing.T) {
	cfg := validConfig()
	cfg.Modules = map[string]ModuleConfig{
		"relative": {BaseURL: "demo.example"},
		"async":    {BaseURL: "https://a.example", Async: true},
		"stream":   {BaseURL: "https://s.example", StreamAsync: true},
	}
	errs := cfg.Validate()
	assert.True(t, containsErrorBoth(errs, "modules.relative", "base_url"), "got %v", errs)
	assert.True(t, containsErrorBoth(errs, "modules.async", "stream_api"), "got %v", errs)
	assert.True(t, containsErrorBoth(errs, "modules.stream", "selector"), "got %v", errs)
	assert.Len(t, errs, 3)
}

// Helper functions to check for errors containing specific strings
func containsError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func containsErrorBoth(errs []string, substr1, substr2 string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr1) && strings.Contains(e, substr2) {
			return true
		}
	}
	return false
}
