package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want []string
	}{
		{
			name: "missing vars",
			err:  ConfigError{Path: "/etc/stowaway/config.toml", Missing: []string{"STOWAWAY_ROOT", "UA"}},
			want: []string{"/etc/stowaway/config.toml: ", "missing environment variables: STOWAWAY_ROOT, UA"},
		},
		{
			name: "validation",
			err:  ConfigError{Errors: []string{"quota.limit: invalid size", "downloads.quality: unknown"}},
			want: []string{"validation failed:", "\n  - quota.limit: invalid size", "\n  - downloads.quality: unknown"},
		},
		{
			name: "both",
			err:  ConfigError{Missing: []string{"UA"}, Errors: []string{"log.level: invalid"}},
			want: []string{"missing environment variables: UA; validation failed:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.err.HasErrors())
			got := tt.err.Error()
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}

func TestConfigError_Empty(t *testing.T) {
	e := &ConfigError{Path: "/etc/stowaway/config.toml"}
	assert.False(t, e.HasErrors())
	assert.Empty(t, e.Error())
}
