package flow

import (
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

// ProviderConfig describes the client registration at the identity provider
type ProviderConfig struct {
	AuthorizationURL string
	ClientID         string
	RedirectURI      string
	Scopes           []string
}

// Authorizer builds authorization requests for the provider
type Authorizer struct {
	config oauth2.Config
}

// NewAuthorizer validates the registration and creates an Authorizer
func NewAuthorizer(cfg ProviderConfig) (*Authorizer, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if err := requireAbsolute("authorization URL", cfg.AuthorizationURL); err != nil {
		return nil, err
	}
	if err := requireAbsolute("redirect URI", cfg.RedirectURI); err != nil {
		return nil, err
	}

	return &Authorizer{
		config: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL: cfg.AuthorizationURL,
			},
		},
	}, nil
}

// AuthorizationURL returns the front-channel authorization request carrying
// response_type=code, client_id, redirect_uri, scope and state.
func (a *Authorizer) AuthorizationURL(state string) string {
	return a.config.AuthCodeURL(state)
}

// RedirectURI is where the provider sends the user back
func (a *Authorizer) RedirectURI() string {
	return a.config.RedirectURL
}

func requireAbsolute(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be absolute, got %q", name, raw)
	}
	return nil
}
