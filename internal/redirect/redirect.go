// Package redirect recognises the identity provider's return navigation and
// consumes its one-time query parameters.
package redirect

import (
	"net/url"

	"github.com/dgellow/bff-front/internal/log"
)

// Query parameters the provider appends to redirect_uri
const (
	ParamCode             = "code"
	ParamState            = "state"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
)

var oneTimeParams = []string{ParamCode, ParamState, ParamError, ParamErrorDescription}

// Navigation is the current page's address bar
type Navigation interface {
	// URL returns a copy of the current location
	URL() *url.URL
	// ReplaceURL rewrites the current history entry without navigating
	ReplaceURL(u *url.URL)
}

// Params is an authorization response read from the current navigation
type Params struct {
	Code  string
	State string
}

// Detect returns the authorization response carried by the current
// navigation, or false for an ordinary page load. When a response is found the
// one-time parameters are stripped from the visible URL before Detect
// returns, so a reload of the page cannot submit the same code again.
//
// An error return from the provider carries no code and is not a response:
// its parameters are stripped and the load proceeds as an ordinary one.
func Detect(nav Navigation) (*Params, bool) {
	current := nav.URL()
	query := current.Query()

	params := &Params{
		Code:  query.Get(ParamCode),
		State: query.Get(ParamState),
	}
	providerErr := query.Get(ParamError)
	description := query.Get(ParamErrorDescription)
	if params.Code == "" && providerErr == "" {
		return nil, false
	}

	for _, name := range oneTimeParams {
		query.Del(name)
	}
	stripped := *current
	stripped.RawQuery = query.Encode()
	nav.ReplaceURL(&stripped)

	if params.Code == "" {
		log.LogWarnWithFields("redirect", "Provider returned an error instead of a code", map[string]any{
			"error":       providerErr,
			"description": description,
			"remaining":   stripped.RawQuery,
		})
		return nil, false
	}

	log.LogDebugWithFields("redirect", "Consumed authorization response", map[string]any{
		"state":     log.Redact(params.State),
		"remaining": stripped.RawQuery,
	})

	return params, true
}
