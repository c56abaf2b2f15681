package agent

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/dgellow/bff-front/internal/bff"
	"github.com/dgellow/bff-front/internal/flow"
)

// Tab is a single browser tab: an address bar, a history of in-place URL
// rewrites, and the cookie jar shared by every page it loads.
type Tab struct {
	mu       sync.Mutex
	location *url.URL
	history  []string
	pending  string
	creds    *bff.JarCredentials
}

var _ flow.Page = (*Tab)(nil)

// NewTab creates an empty tab with a fresh cookie jar
func NewTab() (*Tab, error) {
	creds, err := bff.NewJarCredentials()
	if err != nil {
		return nil, err
	}
	return &Tab{creds: creds}, nil
}

// Load starts a new page at raw, dropping any navigation requested by the
// previous page
func (t *Tab) Load(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid page URL %q: %w", raw, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.location = u
	t.pending = ""
	t.history = append(t.history, u.String())
	return nil
}

func (t *Tab) URL() *url.URL {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.location == nil {
		return &url.URL{}
	}
	u := *t.location
	return &u
}

func (t *Tab) ReplaceURL(u *url.URL) {
	t.mu.Lock()
	defer t.mu.Unlock()
	replaced := *u
	t.location = &replaced
	if n := len(t.history); n > 0 {
		t.history[n-1] = replaced.String()
	} else {
		t.history = append(t.history, replaced.String())
	}
}

func (t *Tab) Navigate(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = target
}

func (t *Tab) Credentials() bff.Credentials {
	return t.creds
}

// TakeNavigation returns and clears the navigation the current page requested
func (t *Tab) TakeNavigation() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	target := t.pending
	t.pending = ""
	return target, target != ""
}

// History lists the URLs of loaded pages as they currently read
func (t *Tab) History() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.history...)
}
