package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dgellow/bff-front/internal/crypto"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateBytes(data), nil
}

// ValidateBytes validates config contents without resolving env vars
func ValidateBytes(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", supportedVersion)
	} else if !strings.HasPrefix(version, supportedVersion) {
		result.addError("version", "unsupported version '%s' - use '%s'", version, supportedVersion)
	}

	validateProviderStructure(rawConfig, result)
	validateBFFStructure(rawConfig, result)
	validateStoreStructure(rawConfig, result)
	validateAgentStructure(rawConfig, result)

	return result
}

func validateProviderStructure(rawConfig map[string]any, result *ValidationResult) {
	provider, ok := rawConfig["provider"].(map[string]any)
	if !ok {
		result.addError("provider", "provider field is required and must be an object")
		return
	}

	required := []struct {
		key     string
		example string
	}{
		{"authorizationUrl", "\"https://idp.example.com/realms/todo/protocol/openid-connect/auth\""},
		{"clientId", "\"todoapp-client\""},
		{"redirectUri", "\"http://localhost:8080/\""},
	}
	for _, field := range required {
		if _, ok := provider[field.key]; !ok {
			result.addError("provider."+field.key, "%s is required. Example: %s", field.key, field.example)
		}
	}

	if scopes, exists := provider["scopes"]; exists {
		list, ok := scopes.([]any)
		if !ok {
			result.addError("provider.scopes", "scopes must be an array of strings")
		} else {
			for i, s := range list {
				if _, ok := s.(string); !ok {
					result.addError(fmt.Sprintf("provider.scopes[%d]", i), "scope must be a string")
				}
			}
		}
	} else {
		result.addWarning("provider.scopes", "scopes not set, defaulting to [%q]", DefaultScope)
	}
}

func validateBFFStructure(rawConfig map[string]any, result *ValidationResult) {
	bff, ok := rawConfig["bff"].(map[string]any)
	if !ok {
		result.addError("bff", "bff field is required and must be an object")
		return
	}
	if _, ok := bff["baseUrl"]; !ok {
		result.addError("bff.baseUrl", "baseUrl is required. Example: \"https://localhost:8902\"")
	}
	if raw, exists := bff["timeout"]; exists {
		s, ok := raw.(string)
		if !ok {
			result.addError("bff.timeout", "timeout must be a duration string such as \"15s\"")
		} else if d, err := time.ParseDuration(s); err != nil {
			result.addError("bff.timeout", "invalid duration %q: %v", s, err)
		} else if d < 0 {
			result.addError("bff.timeout", "timeout cannot be negative")
		}
	}
}

func validateStoreStructure(rawConfig map[string]any, result *ValidationResult) {
	store, ok := rawConfig["store"].(map[string]any)
	if !ok {
		result.addWarning("store", "store not set, defaulting to memory; the refresh hint will not survive restarts")
		return
	}

	kind, _ := store["kind"].(string)
	switch StoreKind(kind) {
	case "", StoreKindMemory:
		result.addWarning("store.kind", "memory store does not survive restarts. Hint: use \"sqlite\" for a local file")
	case StoreKindSQLite:
		if _, ok := store["path"]; !ok {
			result.addError("store.path", "path is required when using sqlite store")
		}
	case StoreKindRedis:
		if _, ok := store["redisAddr"]; !ok {
			result.addError("store.redisAddr", "redisAddr is required when using redis store")
		}
		if pw, exists := store["redisPassword"]; exists {
			if _, isString := pw.(string); isString {
				result.addError("store.redisPassword", "redisPassword must use {\"$env\": \"VAR_NAME\"} format")
			}
		}
	case StoreKindFirestore:
		if _, ok := store["gcpProject"]; !ok {
			result.addError("store.gcpProject", "gcpProject is required when using firestore store")
		}
	default:
		result.addError("store.kind", "unknown store kind '%s' - use memory, sqlite, redis or firestore", kind)
	}
}

func validateAgentStructure(rawConfig map[string]any, result *ValidationResult) {
	agent, ok := rawConfig["agent"].(map[string]any)
	if !ok {
		return
	}
	if raw, exists := agent["maxLoads"]; exists {
		if n, ok := raw.(float64); !ok || n < 1 || n != float64(int(n)) {
			result.addError("agent.maxLoads", "maxLoads must be a positive integer")
		}
	}
	if raw, exists := agent["stateLength"]; exists {
		if n, ok := raw.(float64); !ok || n != float64(int(n)) {
			result.addError("agent.stateLength", "stateLength must be an integer")
		} else if int(n) < crypto.MinStateLength {
			result.addError("agent.stateLength", "stateLength must be at least %d (got %d)", crypto.MinStateLength, int(n))
		}
	}
}

var bashStyleRegex = regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName)
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
