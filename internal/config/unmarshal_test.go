package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigValue(t *testing.T) {
	t.Setenv("BFF_CLIENT_ID", "todoapp-client")
	t.Setenv("QUOTED_VALUE", `"quoted"`)
	t.Setenv("SINGLE_QUOTED", `'single'`)
	t.Setenv("HALF_QUOTED", `"half`)

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr string
	}{
		{name: "plain string", raw: `"https://idp.example.com"`, want: "https://idp.example.com"},
		{name: "env reference", raw: `{"$env": "BFF_CLIENT_ID"}`, want: "todoapp-client"},
		{name: "strips double quotes", raw: `{"$env": "QUOTED_VALUE"}`, want: "quoted"},
		{name: "strips single quotes", raw: `{"$env": "SINGLE_QUOTED"}`, want: "single"},
		{name: "keeps unmatched quote", raw: `{"$env": "HALF_QUOTED"}`, want: `"half`},
		{name: "unset env", raw: `{"$env": "BFF_FRONT_DOES_NOT_EXIST"}`, wantErr: "not set"},
		{name: "unknown reference", raw: `{"$userToken": "x"}`, wantErr: "unknown reference"},
		{name: "number", raw: `42`, wantErr: "string or reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigValue(json.RawMessage(tt.raw))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value())
		})
	}
}

func TestProviderConfig_UnmarshalJSON(t *testing.T) {
	t.Setenv("OAUTH_CLIENT_ID", "todoapp-client")

	var p ProviderConfig
	err := json.Unmarshal([]byte(`{
		"authorizationUrl": "https://idp.example.com/auth",
		"clientId": {"$env": "OAUTH_CLIENT_ID"},
		"redirectUri": "http://localhost:8080/",
		"scopes": ["openid", "profile"]
	}`), &p)
	require.NoError(t, err)

	assert.Equal(t, "https://idp.example.com/auth", p.AuthorizationURL)
	assert.Equal(t, "todoapp-client", p.ClientID)
	assert.Equal(t, "http://localhost:8080/", p.RedirectURI)
	assert.Equal(t, []string{"openid", "profile"}, p.Scopes)
}

func TestBFFConfig_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		json        string
		wantTimeout time.Duration
		wantErr     string
	}{
		{name: "with timeout", json: `{"baseUrl": "https://localhost:8902", "timeout": "30s"}`, wantTimeout: 30 * time.Second},
		{name: "without timeout", json: `{"baseUrl": "https://localhost:8902"}`},
		{name: "bad timeout", json: `{"baseUrl": "https://localhost:8902", "timeout": "soon"}`, wantErr: "parsing timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b BFFConfig
			err := json.Unmarshal([]byte(tt.json), &b)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://localhost:8902", b.BaseURL)
			assert.Equal(t, tt.wantTimeout, b.Timeout)
		})
	}
}

func TestStoreConfig_UnmarshalJSON(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("GCP_PROJECT", "todo-prod")

	t.Run("redis", func(t *testing.T) {
		var s StoreConfig
		err := json.Unmarshal([]byte(`{
			"kind": "redis",
			"redisAddr": "localhost:6379",
			"redisPassword": {"$env": "REDIS_PASSWORD"},
			"keyPrefix": "todo:"
		}`), &s)
		require.NoError(t, err)
		assert.Equal(t, StoreKindRedis, s.Kind)
		assert.Equal(t, "localhost:6379", s.RedisAddr)
		assert.Equal(t, Secret("hunter2"), s.RedisPassword)
		assert.Equal(t, "todo:", s.KeyPrefix)
	})

	t.Run("firestore", func(t *testing.T) {
		var s StoreConfig
		err := json.Unmarshal([]byte(`{
			"kind": "firestore",
			"gcpProject": {"$env": "GCP_PROJECT"},
			"firestoreDatabase": "flags",
			"firestoreCollection": "todo_flags"
		}`), &s)
		require.NoError(t, err)
		assert.Equal(t, "todo-prod", s.GCPProject)
		assert.Equal(t, "flags", s.FirestoreDatabase)
		assert.Equal(t, "todo_flags", s.FirestoreCollection)
	})

	t.Run("missing env", func(t *testing.T) {
		var s StoreConfig
		err := json.Unmarshal([]byte(`{"kind": "redis", "redisAddr": {"$env": "BFF_FRONT_NO_SUCH_ADDR"}}`), &s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing redisAddr")
	})
}
