package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgellow/bff-front/internal/bff"
	"github.com/dgellow/bff-front/internal/crypto"
	"github.com/dgellow/bff-front/internal/flagstore"
	"github.com/dgellow/bff-front/internal/log"
	"github.com/dgellow/bff-front/internal/redirect"
)

// maxRecoveries is how many refresh-and-retry cycles one load may spend on
// structured resource errors
const maxRecoveries = 1

// Options configures an Orchestrator
type Options struct {
	Flags      *flagstore.Flags
	Backend    Backend
	Authorizer *Authorizer

	// StateLength is the CSRF state length; zero means crypto.DefaultStateLength
	StateLength int

	// OnTransition, when set, observes every state change
	OnTransition func(from, to State)
}

// Orchestrator runs the login state machine
type Orchestrator struct {
	flags        *flagstore.Flags
	backend      Backend
	authorizer   *Authorizer
	stateLength  int
	onTransition func(from, to State)
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Flags == nil {
		return nil, fmt.Errorf("flag store is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("bff backend is required")
	}
	if opts.Authorizer == nil {
		return nil, fmt.Errorf("provider authorizer is required")
	}

	stateLength := opts.StateLength
	if stateLength == 0 {
		stateLength = crypto.DefaultStateLength
	}
	if stateLength < crypto.MinStateLength {
		return nil, fmt.Errorf("state length must be at least %d, got %d", crypto.MinStateLength, stateLength)
	}

	return &Orchestrator{
		flags:        opts.Flags,
		backend:      opts.Backend,
		authorizer:   opts.Authorizer,
		stateLength:  stateLength,
		onTransition: opts.OnTransition,
	}, nil
}

// evaluation is the session context of a single page load. It is created by
// Run and dropped when Run returns.
type evaluation struct {
	page       Page
	creds      bff.Credentials
	state      State
	recoveries int
}

// Run evaluates one page load. The returned error is non-nil exactly when the
// outcome is Failed.
func (o *Orchestrator) Run(ctx context.Context, page Page) (Outcome, error) {
	ev := &evaluation{
		page:  page,
		creds: page.Credentials(),
		state: Init,
	}

	// The one-time parameters are gone from the URL before any request is made
	if params, ok := redirect.Detect(page); ok {
		o.transition(ev, AwaitingRedirect)
		return o.resume(ctx, ev, params)
	}

	hint, err := o.flags.RefreshHint(ctx)
	if err != nil {
		return o.fail(ev, err)
	}
	if hint {
		o.transition(ev, RenewingSilently)
		return o.renew(ctx, ev)
	}
	return o.redirectToProvider(ctx, ev)
}

// Logout ends the session on user request and resets the page to the root
func (o *Orchestrator) Logout(ctx context.Context, page Page) (Outcome, error) {
	ev := &evaluation{
		page:  page,
		creds: page.Credentials(),
		state: Init,
	}
	return o.reset(ctx, ev, nil)
}

func (o *Orchestrator) resume(ctx context.Context, ev *evaluation, params *redirect.Params) (Outcome, error) {
	// Consuming removes the pending request whichever way verification goes
	expected, err := o.flags.ConsumePendingState(ctx)
	if err != nil {
		return o.fail(ev, err)
	}

	if !crypto.VerifyState(params.State, expected) {
		log.LogWarnWithFields("flow", "State mismatch on authorization response, restarting", map[string]any{
			"returned": log.Redact(params.State),
			"pending":  log.Redact(expected),
		})
		return o.redirectToProvider(ctx, ev)
	}

	o.transition(ev, ExchangingCode)
	if err := o.backend.ExchangeCode(ctx, ev.creds, params.Code); err != nil {
		if errors.Is(err, bff.ErrRejected) {
			log.LogWarnWithFields("flow", "Code exchange rejected, restarting", map[string]any{
				"error": err.Error(),
			})
			return o.redirectToProvider(ctx, ev)
		}
		return o.fail(ev, err)
	}

	if err := o.flags.SetRefreshHint(ctx); err != nil {
		return o.fail(ev, err)
	}
	return o.fetch(ctx, ev)
}

func (o *Orchestrator) renew(ctx context.Context, ev *evaluation) (Outcome, error) {
	if err := o.backend.Refresh(ctx, ev.creds); err != nil {
		if errors.Is(err, bff.ErrRejected) {
			log.LogInfoWithFields("flow", "Silent renewal rejected, resetting session", map[string]any{
				"error": err.Error(),
			})
			return o.reset(ctx, ev, err)
		}
		return o.fail(ev, err)
	}

	if err := o.flags.SetRefreshHint(ctx); err != nil {
		return o.fail(ev, err)
	}
	return o.fetch(ctx, ev)
}

func (o *Orchestrator) fetch(ctx context.Context, ev *evaluation) (Outcome, error) {
	o.transition(ev, FetchingResource)

	payload, err := o.backend.FetchResource(ctx, ev.creds)
	if err == nil {
		o.transition(ev, Settled)
		return Outcome{Kind: Rendered, Payload: payload}, nil
	}

	var resErr *bff.ResourceError
	if !errors.As(err, &resErr) {
		return o.fail(ev, err)
	}
	return o.recover(ctx, ev, resErr)
}

func (o *Orchestrator) recover(ctx context.Context, ev *evaluation, resErr *bff.ResourceError) (Outcome, error) {
	log.LogInfoWithFields("flow", "Resource access failed", map[string]any{
		"type":   resErr.Type,
		"status": resErr.StatusCode,
	})

	if ev.recoveries >= maxRecoveries {
		return o.fail(ev, fmt.Errorf("%w: %w", ErrRecoveryExhausted, resErr))
	}

	hint, err := o.flags.RefreshHint(ctx)
	if err != nil {
		return o.fail(ev, err)
	}
	if !hint {
		return o.redirectToProvider(ctx, ev)
	}

	ev.recoveries++
	o.transition(ev, RenewingSilently)
	return o.renew(ctx, ev)
}

func (o *Orchestrator) redirectToProvider(ctx context.Context, ev *evaluation) (Outcome, error) {
	o.transition(ev, RedirectingToProvider)

	state, err := crypto.GenerateState(o.stateLength)
	if err != nil {
		return o.fail(ev, err)
	}
	if err := o.flags.SavePendingState(ctx, state); err != nil {
		return o.fail(ev, err)
	}

	target := o.authorizer.AuthorizationURL(state)
	ev.page.Navigate(target)
	o.transition(ev, Settled)

	log.LogDebugWithFields("flow", "Navigated to provider", map[string]any{
		"state": log.Redact(state),
	})
	return Outcome{Kind: ProviderRedirect, Target: target}, nil
}

// reset clears local flags, ends the BFF session and navigates to the root.
// A rejected logout still resets; only a transport failure stops the load.
func (o *Orchestrator) reset(ctx context.Context, ev *evaluation, cause error) (Outcome, error) {
	if err := o.flags.Reset(ctx); err != nil {
		return o.fail(ev, err)
	}

	if err := o.backend.Logout(ctx, ev.creds); err != nil {
		if !errors.Is(err, bff.ErrRejected) {
			return o.fail(ev, err)
		}
		log.LogWarnWithFields("flow", "Logout rejected by BFF", map[string]any{
			"error": err.Error(),
		})
	}

	target := rootOf(ev.page)
	ev.page.Navigate(target)
	o.transition(ev, Settled)

	fields := map[string]any{"target": target}
	if cause != nil {
		fields["cause"] = cause.Error()
	}
	log.LogInfoWithFields("flow", "Session reset", fields)
	return Outcome{Kind: Reset, Target: target}, nil
}

func (o *Orchestrator) fail(ev *evaluation, err error) (Outcome, error) {
	log.LogErrorWithFields("flow", "Page load failed", map[string]any{
		"state": ev.state.String(),
		"error": err.Error(),
	})
	o.transition(ev, Settled)
	return Outcome{Kind: Failed, Err: err}, err
}

func (o *Orchestrator) transition(ev *evaluation, to State) {
	from := ev.state
	ev.state = to
	log.LogDebugWithFields("flow", "Transition", map[string]any{
		"from": from.String(),
		"to":   to.String(),
	})
	if o.onTransition != nil {
		o.onTransition(from, to)
	}
}
