// Package flagstore persists the small, non-sensitive hints the login flow
// needs across page loads: whether a refresh cookie is believed to exist and
// the state value of the authorization request currently in flight.
//
// Values are hints, not authority. Nothing here is shared safely between
// concurrently open tabs (or agents) using the same namespace: two tabs that
// start an authorization at the same time overwrite each other's pending state
// and the slower one will see a mismatch and restart.
package flagstore

import (
	"context"
	"errors"
	"fmt"
)

const (
	// KeyRefreshHint marks that a refresh cookie was issued by the BFF
	KeyRefreshHint = "USE_RT"

	// KeyPendingState holds the CSRF state of the outstanding authorization request
	KeyPendingState = "ST"
)

// ErrClosed is returned by stores used after Close
var ErrClosed = errors.New("flag store closed")

// Store is a durable string key/value store scoped to one origin.
// Get reports absence with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Taker is implemented by stores that can read and delete a key in one step
type Taker interface {
	Take(ctx context.Context, key string) (value string, ok bool, err error)
}

// Flags gives the login flow typed access to its two keys
type Flags struct {
	store Store
}

// NewFlags wraps a store
func NewFlags(store Store) *Flags {
	return &Flags{store: store}
}

// Store returns the underlying store
func (f *Flags) Store() Store {
	return f.store
}

// RefreshHint reports whether a refresh cookie is believed to exist
func (f *Flags) RefreshHint(ctx context.Context) (bool, error) {
	v, ok, err := f.store.Get(ctx, KeyRefreshHint)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", KeyRefreshHint, err)
	}
	return ok && v == "true", nil
}

// SetRefreshHint records a successful token acquisition
func (f *Flags) SetRefreshHint(ctx context.Context) error {
	if err := f.store.Set(ctx, KeyRefreshHint, "true"); err != nil {
		return fmt.Errorf("writing %s: %w", KeyRefreshHint, err)
	}
	return nil
}

// ClearRefreshHint forgets the refresh cookie
func (f *Flags) ClearRefreshHint(ctx context.Context) error {
	if err := f.store.Remove(ctx, KeyRefreshHint); err != nil {
		return fmt.Errorf("removing %s: %w", KeyRefreshHint, err)
	}
	return nil
}

// SavePendingState records the state of a new authorization request,
// replacing any earlier one
func (f *Flags) SavePendingState(ctx context.Context, state string) error {
	if err := f.store.Set(ctx, KeyPendingState, state); err != nil {
		return fmt.Errorf("writing %s: %w", KeyPendingState, err)
	}
	return nil
}

// ConsumePendingState returns the pending state and deletes it.
// An absent request is returned as "".
func (f *Flags) ConsumePendingState(ctx context.Context) (string, error) {
	if t, ok := f.store.(Taker); ok {
		v, _, err := t.Take(ctx, KeyPendingState)
		if err != nil {
			return "", fmt.Errorf("taking %s: %w", KeyPendingState, err)
		}
		return v, nil
	}

	v, _, err := f.store.Get(ctx, KeyPendingState)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", KeyPendingState, err)
	}
	if err := f.store.Remove(ctx, KeyPendingState); err != nil {
		return "", fmt.Errorf("removing %s: %w", KeyPendingState, err)
	}
	return v, nil
}

// DiscardPendingState drops the pending state without reading it
func (f *Flags) DiscardPendingState(ctx context.Context) error {
	if err := f.store.Remove(ctx, KeyPendingState); err != nil {
		return fmt.Errorf("removing %s: %w", KeyPendingState, err)
	}
	return nil
}

// Reset removes both keys, as logout does
func (f *Flags) Reset(ctx context.Context) error {
	return errors.Join(f.ClearRefreshHint(ctx), f.DiscardPendingState(ctx))
}
