package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON resolves env references in the provider registration
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type rawProvider struct {
		AuthorizationURL json.RawMessage `json:"authorizationUrl"`
		ClientID         json.RawMessage `json:"clientId"`
		RedirectURI      json.RawMessage `json:"redirectUri"`
		Scopes           []string        `json:"scopes,omitempty"`
	}

	var raw rawProvider
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if p.AuthorizationURL, err = parseOptional(raw.AuthorizationURL, "authorizationUrl"); err != nil {
		return err
	}
	if p.ClientID, err = parseOptional(raw.ClientID, "clientId"); err != nil {
		return err
	}
	if p.RedirectURI, err = parseOptional(raw.RedirectURI, "redirectUri"); err != nil {
		return err
	}
	p.Scopes = raw.Scopes
	return nil
}

// UnmarshalJSON parses the timeout duration and resolves the base URL
func (b *BFFConfig) UnmarshalJSON(data []byte) error {
	type rawBFF struct {
		BaseURL json.RawMessage `json:"baseUrl"`
		Timeout string          `json:"timeout,omitempty"`
	}

	var raw rawBFF
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	baseURL, err := parseOptional(raw.BaseURL, "baseUrl")
	if err != nil {
		return err
	}
	b.BaseURL = baseURL

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		b.Timeout = timeout
	}
	return nil
}

// UnmarshalJSON resolves env references in the store settings
func (s *StoreConfig) UnmarshalJSON(data []byte) error {
	type rawStore struct {
		Kind                StoreKind       `json:"kind"`
		Path                json.RawMessage `json:"path,omitempty"`
		RedisAddr           json.RawMessage `json:"redisAddr,omitempty"`
		RedisPassword       json.RawMessage `json:"redisPassword,omitempty"`
		KeyPrefix           string          `json:"keyPrefix,omitempty"`
		GCPProject          json.RawMessage `json:"gcpProject,omitempty"`
		FirestoreDatabase   string          `json:"firestoreDatabase,omitempty"`
		FirestoreCollection string          `json:"firestoreCollection,omitempty"`
	}

	var raw rawStore
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Kind = raw.Kind
	s.KeyPrefix = raw.KeyPrefix
	s.FirestoreDatabase = raw.FirestoreDatabase
	s.FirestoreCollection = raw.FirestoreCollection

	var err error
	if s.Path, err = parseOptional(raw.Path, "path"); err != nil {
		return err
	}
	if s.RedisAddr, err = parseOptional(raw.RedisAddr, "redisAddr"); err != nil {
		return err
	}
	password, err := parseOptional(raw.RedisPassword, "redisPassword")
	if err != nil {
		return err
	}
	s.RedisPassword = Secret(password)
	if s.GCPProject, err = parseOptional(raw.GCPProject, "gcpProject"); err != nil {
		return err
	}
	return nil
}
