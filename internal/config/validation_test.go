package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name          string
		config        string
		wantErrors    []string
		wantWarnings  []string
		wantErrCount  int
		wantWarnCount int
	}{
		{
			name: "valid_sqlite_config",
			config: `{
				"version": "v0.0.1",
				"provider": {
					"authorizationUrl": "https://idp.example.com/auth",
					"clientId": {"$env": "OAUTH_CLIENT_ID"},
					"redirectUri": "http://localhost:8080/",
					"scopes": ["openid"]
				},
				"bff": {"baseUrl": "https://localhost:8902", "timeout": "15s"},
				"store": {"kind": "sqlite", "path": "flags.db"}
			}`,
		},
		{
			name: "missing_version",
			config: `{
				"provider": {"authorizationUrl": "x", "clientId": "c", "redirectUri": "r", "scopes": ["openid"]},
				"bff": {"baseUrl": "https://localhost:8902"},
				"store": {"kind": "sqlite", "path": "flags.db"}
			}`,
			wantErrors:   []string{"version field is required"},
			wantErrCount: 1,
		},
		{
			name: "missing_sections",
			config: `{
				"version": "v0.0.1"
			}`,
			wantErrors:    []string{"provider field is required", "bff field is required"},
			wantWarnings:  []string{"store not set"},
			wantErrCount:  2,
			wantWarnCount: 1,
		},
		{
			name: "missing_provider_fields",
			config: `{
				"version": "v0.0.1",
				"provider": {"scopes": ["openid"]},
				"bff": {"baseUrl": "https://localhost:8902"},
				"store": {"kind": "sqlite", "path": "flags.db"}
			}`,
			wantErrors:   []string{"authorizationUrl is required", "clientId is required", "redirectUri is required"},
			wantErrCount: 3,
		},
		{
			name: "bash_style_and_memory_store",
			config: `{
				"version": "v0.0.1",
				"provider": {
					"authorizationUrl": "https://idp.example.com/auth",
					"clientId": "$CLIENT_ID",
					"redirectUri": "http://localhost:8080/",
					"scopes": ["openid"]
				},
				"bff": {"baseUrl": "https://localhost:8902"},
				"store": {"kind": "memory"}
			}`,
			wantWarnings:  []string{"bash-style syntax '$CLIENT_ID'", "memory store does not survive"},
			wantWarnCount: 2,
		},
		{
			name: "bad_store_and_agent",
			config: `{
				"version": "v0.0.1",
				"provider": {"authorizationUrl": "x", "clientId": "c", "redirectUri": "r", "scopes": ["openid"]},
				"bff": {"baseUrl": "https://localhost:8902", "timeout": "eventually"},
				"store": {"kind": "redis", "redisAddr": "localhost:6379", "redisPassword": "plain"},
				"agent": {"maxLoads": 0, "stateLength": 10}
			}`,
			wantErrors:   []string{"invalid duration", "redisPassword must use", "maxLoads must be a positive integer", "stateLength must be at least 24"},
			wantErrCount: 4,
		},
		{
			name:         "invalid_json",
			config:       `{"version": `,
			wantErrors:   []string{"invalid JSON"},
			wantErrCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.config), 0600))

			result, err := ValidateFile(path)
			require.NoError(t, err)

			assert.Len(t, result.Errors, tt.wantErrCount, "errors: %+v", result.Errors)
			assert.Len(t, result.Warnings, tt.wantWarnCount, "warnings: %+v", result.Warnings)
			assert.Equal(t, tt.wantErrCount == 0, result.IsValid())

			for _, want := range tt.wantErrors {
				assert.True(t, containsMessage(result.Errors, want), "missing error %q in %+v", want, result.Errors)
			}
			for _, want := range tt.wantWarnings {
				assert.True(t, containsMessage(result.Warnings, want), "missing warning %q in %+v", want, result.Warnings)
			}
		})
	}
}

func TestValidateFile_Missing(t *testing.T) {
	_, err := ValidateFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func containsMessage(list []ValidationError, substr string) bool {
	for _, v := range list {
		if strings.Contains(v.Message, substr) {
			return true
		}
	}
	return false
}
