package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/dgellow/bff-front/internal/crypto"
	"github.com/dgellow/bff-front/internal/log"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse processes config file contents the same way Load does
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, supportedVersion) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig rejects secrets written inline before env resolution
func validateRawConfig(rawConfig map[string]any) error {
	store, ok := rawConfig["store"].(map[string]any)
	if !ok {
		return nil
	}
	value, exists := store["redisPassword"]
	if !exists {
		return nil
	}
	if _, isString := value.(string); isString {
		return fmt.Errorf("redisPassword must use environment variable reference for security")
	}
	if refMap, isMap := value.(map[string]any); isMap {
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return fmt.Errorf("redisPassword must use {\"$env\": \"VAR_NAME\"} format")
		}
	}
	return nil
}

func applyDefaults(config *Config) {
	if len(config.Provider.Scopes) == 0 {
		config.Provider.Scopes = []string{DefaultScope}
	}
	if config.Store.Kind == "" {
		config.Store.Kind = StoreKindMemory
	}
	if config.Agent.AppURL == "" {
		config.Agent.AppURL = config.Provider.RedirectURI
	}
	if config.Agent.MaxLoads == 0 {
		config.Agent.MaxLoads = DefaultMaxLoads
	}
	if config.Agent.StateLength == 0 {
		config.Agent.StateLength = crypto.DefaultStateLength
	}
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if err := validateProvider(&config.Provider); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := validateBFF(&config.BFF); err != nil {
		return fmt.Errorf("bff: %w", err)
	}
	if err := validateStore(&config.Store); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if config.Agent.MaxLoads < 1 {
		return fmt.Errorf("agent.maxLoads must be at least 1")
	}
	if config.Agent.StateLength < crypto.MinStateLength {
		return fmt.Errorf("agent.stateLength must be at least %d (got %d)", crypto.MinStateLength, config.Agent.StateLength)
	}
	if config.Agent.AppURL != "" {
		if _, err := parseHTTPURL(config.Agent.AppURL); err != nil {
			return fmt.Errorf("agent.appUrl: %w", err)
		}
	}

	return nil
}

func validateProvider(p *ProviderConfig) error {
	if p.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if p.AuthorizationURL == "" {
		return fmt.Errorf("authorizationUrl is required")
	}
	if _, err := parseHTTPURL(p.AuthorizationURL); err != nil {
		return fmt.Errorf("authorizationUrl: %w", err)
	}
	if p.RedirectURI == "" {
		return fmt.Errorf("redirectUri is required")
	}
	redirect, err := parseHTTPURL(p.RedirectURI)
	if err != nil {
		return fmt.Errorf("redirectUri: %w", err)
	}
	if !IsLoopback(redirect) {
		return fmt.Errorf("redirectUri must point at a loopback address the agent can listen on, got %q", p.RedirectURI)
	}
	if redirect.Port() == "" {
		return fmt.Errorf("redirectUri must include an explicit port")
	}
	return nil
}

func validateBFF(b *BFFConfig) error {
	if b.BaseURL == "" {
		return fmt.Errorf("baseUrl is required")
	}
	base, err := parseHTTPURL(b.BaseURL)
	if err != nil {
		return fmt.Errorf("baseUrl: %w", err)
	}
	if b.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if base.Scheme == "http" && !IsLoopback(base) {
		log.LogWarnWithFields("config", "BFF is reached over plain HTTP; Secure cookies will not be sent", map[string]any{
			"baseUrl": b.BaseURL,
		})
	}
	return nil
}

func validateStore(s *StoreConfig) error {
	switch s.Kind {
	case StoreKindMemory:
	case StoreKindSQLite:
		if s.Path == "" {
			return fmt.Errorf("path is required when using sqlite store")
		}
	case StoreKindRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("redisAddr is required when using redis store")
		}
	case StoreKindFirestore:
		if s.GCPProject == "" {
			return fmt.Errorf("gcpProject is required when using firestore store")
		}
	default:
		return fmt.Errorf("unknown store kind %q (memory, sqlite, redis or firestore)", s.Kind)
	}
	if s.Kind == StoreKindMemory {
		log.LogWarn("Using memory flag store; the refresh hint is lost when the process exits")
	}
	return nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("must be an http or https URL, got %q", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("must include a host, got %q", raw)
	}
	return u, nil
}

// IsLoopback reports whether u names this machine
func IsLoopback(u *url.URL) bool {
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
