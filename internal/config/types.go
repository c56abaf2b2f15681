package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StoreKind selects the flag store backend
type StoreKind string

const (
	StoreKindMemory    StoreKind = "memory"
	StoreKindSQLite    StoreKind = "sqlite"
	StoreKindRedis     StoreKind = "redis"
	StoreKindFirestore StoreKind = "firestore"
)

// Defaults applied by Load for omitted fields
const (
	DefaultMaxLoads = 5
	DefaultScope    = "openid"
)

// supportedVersion is the config schema version this build reads
const supportedVersion = "v0.0.1"

// ProviderConfig is the client registration at the identity provider.
//
// clientId and redirectUri accept {"$env": "VAR"} references.
type ProviderConfig struct {
	AuthorizationURL string   `json:"authorizationUrl"`
	ClientID         string   `json:"clientId"`
	RedirectURI      string   `json:"redirectUri"`
	Scopes           []string `json:"scopes,omitempty"`
}

// BFFConfig locates the Backend-For-Frontend
type BFFConfig struct {
	BaseURL string        `json:"baseUrl"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// StoreConfig selects and configures where flags persist between runs
type StoreConfig struct {
	Kind StoreKind `json:"kind"`

	// sqlite
	Path string `json:"path,omitempty"`

	// redis
	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword Secret `json:"redisPassword,omitempty"`
	KeyPrefix     string `json:"keyPrefix,omitempty"`

	// firestore
	GCPProject          string `json:"gcpProject,omitempty"`
	FirestoreDatabase   string `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string `json:"firestoreCollection,omitempty"`
}

// AgentConfig tunes the command-line user agent
type AgentConfig struct {
	// AppURL is the page loaded first; defaults to the redirect URI
	AppURL string `json:"appUrl,omitempty"`

	// MaxLoads bounds the page loads of a single run
	MaxLoads int `json:"maxLoads,omitempty"`

	// StateLength is the CSRF state length
	StateLength int `json:"stateLength,omitempty"`
}

// Config is the whole bff-front configuration after env resolution
type Config struct {
	Version  string         `json:"version"`
	Provider ProviderConfig `json:"provider"`
	BFF      BFFConfig      `json:"bff"`
	Store    StoreConfig    `json:"store"`
	Agent    AgentConfig    `json:"agent"`
}

// RawConfigValue is a config value before reference resolution
type RawConfigValue struct {
	value string
}

// Value returns the resolved value
func (r *RawConfigValue) Value() string {
	return r.value
}

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "VAR"} reference. Env references are resolved immediately and an
// unset variable is an error.
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return nil, fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return &RawConfigValue{value: value}, nil
}

// parseOptional resolves raw when present and returns "" otherwise
func parseOptional(raw json.RawMessage, field string) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	parsed, err := ParseConfigValue(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", field, err)
	}
	return parsed.value, nil
}
