// Package flow decides, once per page load, how the client obtains access to
// the protected resource: resume an authorization response, renew silently
// with the refresh cookie, or start a fresh authorization at the provider.
//
// Nothing survives between page loads except the flag store and the BFF's
// cookies. Each call to Orchestrator.Run re-derives its starting state from
// those and the page URL.
package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dgellow/bff-front/internal/bff"
	"github.com/dgellow/bff-front/internal/redirect"
)

// State is a step of the per-load state machine
type State int

const (
	Init State = iota
	AwaitingRedirect
	RenewingSilently
	RedirectingToProvider
	ExchangingCode
	FetchingResource
	Settled
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case AwaitingRedirect:
		return "awaiting_redirect"
	case RenewingSilently:
		return "renewing_silently"
	case RedirectingToProvider:
		return "redirecting_to_provider"
	case ExchangingCode:
		return "exchanging_code"
	case FetchingResource:
		return "fetching_resource"
	case Settled:
		return "settled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Page is the navigation context of one page instance
type Page interface {
	redirect.Navigation

	// Navigate performs a full top-level navigation. The current page's
	// lifetime ends with it.
	Navigate(target string)

	// Credentials are the ambient cookies sent with BFF requests
	Credentials() bff.Credentials
}

// Backend is the BFF contract the orchestrator drives
type Backend interface {
	ExchangeCode(ctx context.Context, creds bff.Credentials, code string) error
	Refresh(ctx context.Context, creds bff.Credentials) error
	FetchResource(ctx context.Context, creds bff.Credentials) (string, error)
	Logout(ctx context.Context, creds bff.Credentials) error
}

var _ Backend = (*bff.Client)(nil)

// OutcomeKind says how a page load ended
type OutcomeKind int

const (
	// Rendered means the resource payload is ready to display
	Rendered OutcomeKind = iota + 1
	// ProviderRedirect means the page navigated to the authorization endpoint
	ProviderRedirect
	// Reset means the session was logged out and the page navigated to the root
	Reset
	// Failed means the load stopped without navigating
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Rendered:
		return "rendered"
	case ProviderRedirect:
		return "provider_redirect"
	case Reset:
		return "reset"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one page load
type Outcome struct {
	Kind OutcomeKind

	// Payload is the resource data when Kind is Rendered
	Payload string

	// Target is the navigation target for ProviderRedirect and Reset
	Target string

	// Err is the reason when Kind is Failed
	Err error
}

// ErrRecoveryExhausted means the resource kept failing after a refresh
var ErrRecoveryExhausted = errors.New("resource access failed after refresh")

// rootOf resolves the application root against the page's current location
func rootOf(page Page) string {
	return page.URL().ResolveReference(&url.URL{Path: "/"}).String()
}
