package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgellow/bff-front/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `{
	"version": "v0.0.1",
	"provider": {
		"authorizationUrl": "https://idp.example.com/realms/todo/protocol/openid-connect/auth",
		"clientId": "todoapp-client",
		"redirectUri": "http://localhost:8080/"
	},
	"bff": {"baseUrl": "https://localhost:8902"}
}`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"openid"}, cfg.Provider.Scopes)
	assert.Equal(t, StoreKindMemory, cfg.Store.Kind)
	assert.Equal(t, "http://localhost:8080/", cfg.Agent.AppURL)
	assert.Equal(t, DefaultMaxLoads, cfg.Agent.MaxLoads)
	assert.Equal(t, crypto.DefaultStateLength, cfg.Agent.StateLength)
	assert.Zero(t, cfg.BFF.Timeout, "zero leaves the client default in place")
}

func TestLoad_Full(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "hunter2")

	cfg, err := Load(writeConfig(t, `{
		"version": "v0.0.1",
		"provider": {
			"authorizationUrl": "https://idp.example.com/auth",
			"clientId": "todoapp-client",
			"redirectUri": "http://127.0.0.1:8080/callback",
			"scopes": ["openid", "offline_access"]
		},
		"bff": {"baseUrl": "https://localhost:8902", "timeout": "5s"},
		"store": {
			"kind": "redis",
			"redisAddr": "localhost:6379",
			"redisPassword": {"$env": "REDIS_PASSWORD"},
			"keyPrefix": "todo:"
		},
		"agent": {"appUrl": "http://127.0.0.1:8080/", "maxLoads": 3, "stateLength": 40}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.BFF.Timeout)
	assert.Equal(t, Secret("hunter2"), cfg.Store.RedisPassword)
	assert.Equal(t, "http://127.0.0.1:8080/", cfg.Agent.AppURL)
	assert.Equal(t, 3, cfg.Agent.MaxLoads)
	assert.Equal(t, 40, cfg.Agent.StateLength)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{name: "invalid json", config: `{`, wantErr: "parsing config JSON"},
		{name: "no version", config: `{"provider": {}}`, wantErr: "version is required"},
		{name: "wrong version", config: `{"version": "v9"}`, wantErr: "unsupported config version"},
		{
			name: "inline redis password",
			config: `{"version": "v0.0.1", "provider": {"authorizationUrl": "https://idp.example.com/auth", "clientId": "c", "redirectUri": "http://localhost:8080/"},
				"bff": {"baseUrl": "https://localhost:8902"},
				"store": {"kind": "redis", "redisAddr": "localhost:6379", "redisPassword": "plain"}}`,
			wantErr: "must use environment variable reference",
		},
		{
			name: "non-loopback redirect",
			config: `{"version": "v0.0.1", "provider": {"authorizationUrl": "https://idp.example.com/auth", "clientId": "c", "redirectUri": "https://app.example.com/"},
				"bff": {"baseUrl": "https://localhost:8902"}}`,
			wantErr: "loopback",
		},
		{
			name: "redirect without port",
			config: `{"version": "v0.0.1", "provider": {"authorizationUrl": "https://idp.example.com/auth", "clientId": "c", "redirectUri": "http://localhost/"},
				"bff": {"baseUrl": "https://localhost:8902"}}`,
			wantErr: "explicit port",
		},
		{
			name: "missing bff",
			config: `{"version": "v0.0.1", "provider": {"authorizationUrl": "https://idp.example.com/auth", "clientId": "c", "redirectUri": "http://localhost:8080/"}}`,
			wantErr: "bff: baseUrl is required",
		},
		{
			name: "sqlite without path",
			config: `{"version": "v0.0.1", "provider": {"authorizationUrl": "https://idp.example.com/auth", "clientId": "c", "redirectUri": "http://localhost:8080/"},
				"bff": {"baseUrl": "https://localhost:8902"}, "store": {"kind": "sqlite"}}`,
			wantErr: "path is required",
		},
		{
			name: "short state",
			config: `{"version": "v0.0.1", "provider": {"authorizationUrl": "https://idp.example.com/auth", "clientId": "c", "redirectUri": "http://localhost:8080/"},
				"bff": {"baseUrl": "https://localhost:8902"}, "agent": {"stateLength": 8}}`,
			wantErr: "stateLength must be at least",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidateConfig_StoreKinds(t *testing.T) {
	base := func() *Config {
		cfg, err := Parse([]byte(minimalConfig))
		require.NoError(t, err)
		return &cfg
	}

	tests := []struct {
		name    string
		store   StoreConfig
		wantErr string
	}{
		{name: "memory", store: StoreConfig{Kind: StoreKindMemory}},
		{name: "sqlite", store: StoreConfig{Kind: StoreKindSQLite, Path: "flags.db"}},
		{name: "redis", store: StoreConfig{Kind: StoreKindRedis, RedisAddr: "localhost:6379"}},
		{name: "redis without addr", store: StoreConfig{Kind: StoreKindRedis}, wantErr: "redisAddr is required"},
		{name: "firestore", store: StoreConfig{Kind: StoreKindFirestore, GCPProject: "todo"}},
		{name: "firestore without project", store: StoreConfig{Kind: StoreKindFirestore}, wantErr: "gcpProject is required"},
		{name: "unknown", store: StoreConfig{Kind: "postgres"}, wantErr: "unknown store kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			cfg.Store = tt.store
			err := ValidateConfig(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
