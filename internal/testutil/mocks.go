package testutil

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/dgellow/bff-front/internal/bff"
	"github.com/stretchr/testify/mock"
)

// MockBackend is a testify mock of the BFF contract
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ExchangeCode(ctx context.Context, creds bff.Credentials, code string) error {
	args := m.Called(ctx, creds, code)
	return args.Error(0)
}

func (m *MockBackend) Refresh(ctx context.Context, creds bff.Credentials) error {
	args := m.Called(ctx, creds)
	return args.Error(0)
}

func (m *MockBackend) FetchResource(ctx context.Context, creds bff.Credentials) (string, error) {
	args := m.Called(ctx, creds)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) Logout(ctx context.Context, creds bff.Credentials) error {
	args := m.Called(ctx, creds)
	return args.Error(0)
}

// CallOrder lists the mocked method names in call order
func (m *MockBackend) CallOrder() []string {
	names := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		names = append(names, c.Method)
	}
	return names
}

// Rejected builds a non-2xx BFF error
func Rejected(op string, status int) error {
	return &bff.StatusError{Op: op, StatusCode: status}
}

// Unauthorized builds the structured resource error the resource server sends
// for an expired access token
func Unauthorized() error {
	return &bff.ResourceError{StatusCode: http.StatusUnauthorized, Type: "Unauthorized", Body: `{"type":"Unauthorized"}`}
}

// FakePage is an in-memory page. It records history rewrites and
// navigations instead of performing them.
type FakePage struct {
	mu          sync.Mutex
	current     *url.URL
	creds       bff.Credentials
	Replaced    []string
	Navigations []string
}

// NewFakePage creates a page loaded at raw. It panics on an unparseable URL.
func NewFakePage(raw string) *FakePage {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return &FakePage{current: u, creds: bff.NoCredentials{}}
}

// WithCredentials sets the credentials the page hands to the BFF client
func (p *FakePage) WithCredentials(creds bff.Credentials) *FakePage {
	p.creds = creds
	return p
}

func (p *FakePage) URL() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := *p.current
	return &u
}

func (p *FakePage) ReplaceURL(u *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Replaced = append(p.Replaced, u.String())
	p.current = u
}

func (p *FakePage) Navigate(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, target)
}

func (p *FakePage) Credentials() bff.Credentials {
	return p.creds
}

// LastNavigation returns the most recent navigation target or ""
func (p *FakePage) LastNavigation() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Navigations) == 0 {
		return ""
	}
	return p.Navigations[len(p.Navigations)-1]
}
