// Package agent is a command-line user agent for the login flow. It plays
// the part of a browser tab: it loads the application page, lets the flow
// orchestrator evaluate it, hands provider URLs to the user and feeds the
// provider's redirect back into the tab as the next page load.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/dgellow/bff-front/internal/flow"
	"github.com/dgellow/bff-front/internal/log"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxLoads bounds a run that never settles
const DefaultMaxLoads = 5

// ErrTooManyLoads means the flow kept navigating without rendering
var ErrTooManyLoads = errors.New("page load limit reached")

// Flow evaluates page loads
type Flow interface {
	Run(ctx context.Context, page flow.Page) (flow.Outcome, error)
	Logout(ctx context.Context, page flow.Page) (flow.Outcome, error)
}

var _ Flow = (*flow.Orchestrator)(nil)

// Opener presents the authorization URL to the user
type Opener func(ctx context.Context, target string) error

// PrintOpener asks the user to open the URL themselves
func PrintOpener(w io.Writer) Opener {
	return func(_ context.Context, target string) error {
		_, err := fmt.Fprintf(w, "Open the following URL in your browser to sign in:\n\n  %s\n\n", target)
		return err
	}
}

// Options configures an Agent
type Options struct {
	Flow Flow

	// AppURL is the first page loaded
	AppURL string

	// Receiver accepts the provider's redirect. Only Run needs it.
	Receiver *Receiver

	// MaxLoads bounds the page loads of one Run; zero means DefaultMaxLoads
	MaxLoads int

	// Open defaults to PrintOpener(Out)
	Open Opener
	Out  io.Writer
}

// Result is what a successful run rendered
type Result struct {
	Payload string
	Loads   int
}

// Agent drives page loads in one tab
type Agent struct {
	flow     Flow
	appURL   string
	receiver *Receiver
	maxLoads int
	open     Opener
	tab      *Tab
}

// New creates an Agent with a fresh tab
func New(opts Options) (*Agent, error) {
	if opts.Flow == nil {
		return nil, fmt.Errorf("flow is required")
	}
	if _, err := url.Parse(opts.AppURL); err != nil || opts.AppURL == "" {
		return nil, fmt.Errorf("invalid app URL %q", opts.AppURL)
	}

	maxLoads := opts.MaxLoads
	if maxLoads == 0 {
		maxLoads = DefaultMaxLoads
	}
	if maxLoads < 0 {
		return nil, fmt.Errorf("max loads cannot be negative")
	}

	open := opts.Open
	if open == nil {
		if opts.Out == nil {
			return nil, fmt.Errorf("either an opener or an output writer is required")
		}
		open = PrintOpener(opts.Out)
	}

	tab, err := NewTab()
	if err != nil {
		return nil, err
	}

	return &Agent{
		flow:     opts.Flow,
		appURL:   opts.AppURL,
		receiver: opts.Receiver,
		maxLoads: maxLoads,
		open:     open,
		tab:      tab,
	}, nil
}

// Tab is the agent's browser tab
func (a *Agent) Tab() *Tab {
	return a.tab
}

// Run loads the application and follows navigations until the resource is
// rendered. The receiver serves only for the duration of the call and a
// receiver cannot be reused, so Run is called at most once per Agent.
func (a *Agent) Run(ctx context.Context) (*Result, error) {
	if a.receiver == nil {
		return nil, fmt.Errorf("redirect receiver is required to run the flow")
	}

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		return a.receiver.Serve(loopCtx)
	})

	var result *Result
	g.Go(func() error {
		defer stop()
		r, err := a.browse(loopCtx)
		result = r
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Logout ends the session from the application page
func (a *Agent) Logout(ctx context.Context) error {
	if err := a.tab.Load(a.appURL); err != nil {
		return err
	}
	_, err := a.flow.Logout(ctx, a.tab)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (a *Agent) browse(ctx context.Context) (*Result, error) {
	if err := a.tab.Load(a.appURL); err != nil {
		return nil, err
	}

	for load := 1; load <= a.maxLoads; load++ {
		outcome, err := a.flow.Run(ctx, a.tab)
		log.LogDebugWithFields("agent", "Page load settled", map[string]any{
			"load":    load,
			"outcome": outcome.Kind.String(),
		})

		switch outcome.Kind {
		case flow.Rendered:
			return &Result{Payload: outcome.Payload, Loads: load}, nil

		case flow.ProviderRedirect:
			target, ok := a.tab.TakeNavigation()
			if !ok {
				target = outcome.Target
			}
			if err := a.open(ctx, target); err != nil {
				return nil, fmt.Errorf("opening authorization URL: %w", err)
			}
			query, err := a.receiver.Wait(ctx)
			if err != nil {
				return nil, fmt.Errorf("waiting for authorization response: %w", err)
			}
			next := *a.receiver.redirectURI
			next.RawQuery = query.Encode()
			if err := a.tab.Load(next.String()); err != nil {
				return nil, err
			}

		case flow.Reset:
			target, ok := a.tab.TakeNavigation()
			if !ok {
				target = outcome.Target
			}
			if err := a.tab.Load(target); err != nil {
				return nil, err
			}

		default:
			if err == nil {
				err = fmt.Errorf("unexpected outcome %s", outcome.Kind)
			}
			return nil, fmt.Errorf("page load %d: %w", load, err)
		}
	}

	return nil, fmt.Errorf("%w (%d)", ErrTooManyLoads, a.maxLoads)
}
