package config

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/vmunix/stowaway/internal/hls"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level: must be one of debug, info, warn, error; got %q", c.Log.Level))
	}

	if c.Storage.Root == "" {
		errs = append(errs, "storage.root: required")
	}
	for i, legacy := range c.Storage.LegacyRoots {
		if legacy == c.Storage.Root {
			errs = append(errs, fmt.Sprintf("storage.legacy_roots[%d]: must differ from storage.root", i))
		}
	}

	if c.Downloads.MaxConcurrent < 0 {
		errs = append(errs, fmt.Sprintf("downloads.max_concurrent: must be at least 1, got %d", c.Downloads.MaxConcurrent))
	}
	if c.Downloads.Quality != "" {
		if _, err := hls.ParsePreference(c.Downloads.Quality); err != nil {
			errs = append(errs, fmt.Sprintf("downloads.quality: %v", err))
		}
	}

	if c.HLS.RequestTimeout < 0 {
		errs = append(errs, "hls.request_timeout: must not be negative")
	}

	errs = append(errs, c.Quota.validate()...)

	ids := make([]string, 0, len(c.Modules))
	for id := range c.Modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		errs = append(errs, c.Modules[id].validate(id)...)
	}

	return errs
}

func (q QuotaConfig) validate() []string {
	var errs []string
	if _, err := q.LimitBytes(); err != nil {
		errs = append(errs, fmt.Sprintf("quota.limit: %v", err))
	}
	for _, th := range []struct {
		name  string
		value float64
	}{
		{"warning_threshold", q.WarningThreshold},
		{"cleanup_threshold", q.CleanupThreshold},
		{"watched_threshold", q.WatchedThreshold},
	} {
		if th.value < 0 || th.value > 1 {
			errs = append(errs, fmt.Sprintf("quota.%s: must be between 0 and 1, got %v", th.name, th.value))
		}
	}
	if q.WarningThreshold > 0 && q.CleanupThreshold > 0 && q.WarningThreshold > q.CleanupThreshold {
		errs = append(errs, "quota.warning_threshold: must not exceed quota.cleanup_threshold")
	}
	if q.Interval < 0 {
		errs = append(errs, "quota.interval: must not be negative")
	}
	return errs
}

func (m ModuleConfig) validate(id string) []string {
	var errs []string
	if m.BaseURL != "" {
		if u, err := url.Parse(m.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("modules.%s.base_url: must be an absolute URL, got %q", id, m.BaseURL))
		}
	}
	if m.Async && m.StreamAPI == "" {
		errs = append(errs, fmt.Sprintf("modules.%s.stream_api: required when async is enabled", id))
	}
	if m.StreamAsync && m.Selector == "" {
		errs = append(errs, fmt.Sprintf("modules.%s.selector: required when stream_async is enabled", id))
	}
	return errs
}
