package agent

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dgellow/bff-front/internal/bff"
	"github.com/dgellow/bff-front/internal/flagstore"
	"github.com/dgellow/bff-front/internal/flow"
	"github.com/dgellow/bff-front/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLoopback reserves a port and returns a receiver bound to it
func newLoopback(t *testing.T) (*Receiver, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	redirectURI := "http://" + ln.Addr().String() + "/"

	r, err := NewReceiver(redirectURI, ln)
	require.NoError(t, err)
	return r, redirectURI
}

func newTestAgent(t *testing.T, fake *testutil.FakeBFF, flags *flagstore.Flags, open Opener, maxLoads int) *Agent {
	t.Helper()
	receiver, redirectURI := newLoopback(t)

	client, err := bff.New(bff.Config{BaseURL: fake.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	authorizer, err := flow.NewAuthorizer(flow.ProviderConfig{
		AuthorizationURL: "https://idp.example.com/auth",
		ClientID:         "todoapp-client",
		RedirectURI:      redirectURI,
		Scopes:           []string{"openid"},
	})
	require.NoError(t, err)

	orch, err := flow.NewOrchestrator(flow.Options{
		Flags:      flags,
		Backend:    client,
		Authorizer: authorizer,
	})
	require.NoError(t, err)

	a, err := New(Options{
		Flow:     orch,
		AppURL:   redirectURI,
		Receiver: receiver,
		MaxLoads: maxLoads,
		Open:     open,
	})
	require.NoError(t, err)
	return a
}

// providerOpener plays the identity provider and the user: it approves the
// authorization request and follows the redirect back to the receiver.
// rewrite may tamper with the response before it is delivered.
func providerOpener(t *testing.T, fake *testutil.FakeBFF, rewrite func(url.Values)) (Opener, *[]string) {
	var opened []string
	return func(ctx context.Context, target string) error {
		opened = append(opened, target)

		u, err := url.Parse(target)
		if err != nil {
			return err
		}
		q := u.Query()
		callback, err := url.Parse(q.Get("redirect_uri"))
		if err != nil {
			return err
		}

		response := url.Values{
			"code":  {fake.IssueCode()},
			"state": {q.Get("state")},
		}
		if rewrite != nil {
			rewrite(response)
		}
		callback.RawQuery = response.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, callback.String(), nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		return nil
	}, &opened
}

func TestAgent_FirstLogin(t *testing.T) {
	fake := testutil.NewFakeBFF(t)
	flags := flagstore.NewFlags(flagstore.NewMemoryStore())
	open, opened := providerOpener(t, fake, nil)
	a := newTestAgent(t, fake, flags, open, 0)

	result, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fake.Payload, result.Payload)
	assert.Equal(t, 2, result.Loads)
	assert.Len(t, *opened, 1)

	assert.Equal(t, []string{"/bff/token", "/bff/data"}, fake.Requests())

	history := a.Tab().History()
	require.Len(t, history, 2)
	returned, err := url.Parse(history[1])
	require.NoError(t, err)
	assert.Empty(t, returned.Query().Get("code"), "the code never stays in the address bar")
	assert.Empty(t, returned.Query().Get("state"))

	hint, err := flags.RefreshHint(context.Background())
	require.NoError(t, err)
	assert.True(t, hint)
}

func TestAgent_StaleHintFromPreviousRun(t *testing.T) {
	fake := testutil.NewFakeBFF(t)
	flags := flagstore.NewFlags(flagstore.NewMemoryStore())

	open, _ := providerOpener(t, fake, nil)
	first := newTestAgent(t, fake, flags, open, 0)
	_, err := first.Run(context.Background())
	require.NoError(t, err)

	// the hint survives but the new tab has no refresh cookie
	open, opened := providerOpener(t, fake, nil)
	second := newTestAgent(t, fake, flags, open, 0)
	result, err := second.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fake.Payload, result.Payload)
	assert.Equal(t, 3, result.Loads, "reset, provider redirect, rendered")
	assert.Len(t, *opened, 1)
	assert.Equal(t, []string{
		"/bff/token", "/bff/data",
		"/bff/newaccesstoken", "/bff/logout", "/bff/token", "/bff/data",
	}, fake.Requests())
}

func TestAgent_ProviderDenied(t *testing.T) {
	fake := testutil.NewFakeBFF(t)
	flags := flagstore.NewFlags(flagstore.NewMemoryStore())
	open, opened := providerOpener(t, fake, func(q url.Values) {
		q.Del("code")
		q.Set("error", "access_denied")
	})
	a := newTestAgent(t, fake, flags, open, 2)

	_, err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyLoads)
	assert.Len(t, *opened, 2, "every denial restarts the authorization request")
	assert.Empty(t, fake.Requests())

	for _, entry := range a.Tab().History() {
		returned, err := url.Parse(entry)
		require.NoError(t, err)
		assert.Empty(t, returned.Query().Get("error"))
	}
}

func TestAgent_LoadLimit(t *testing.T) {
	fake := testutil.NewFakeBFF(t)
	flags := flagstore.NewFlags(flagstore.NewMemoryStore())
	open, opened := providerOpener(t, fake, func(q url.Values) {
		q.Set("state", "forged-state-value")
	})
	a := newTestAgent(t, fake, flags, open, 3)

	_, err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyLoads)
	assert.Len(t, *opened, 3)
	assert.Empty(t, fake.Requests(), "a forged state never reaches the BFF")
}

func TestAgent_Logout(t *testing.T) {
	fake := testutil.NewFakeBFF(t)
	flags := flagstore.NewFlags(flagstore.NewMemoryStore())
	open, _ := providerOpener(t, fake, nil)
	a := newTestAgent(t, fake, flags, open, 0)

	_, err := a.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.Logout(context.Background()))
	assert.Equal(t, "/bff/logout", fake.Requests()[len(fake.Requests())-1])

	hint, err := flags.RefreshHint(context.Background())
	require.NoError(t, err)
	assert.False(t, hint)
}

func TestAgent_CancelWhileWaiting(t *testing.T) {
	fake := testutil.NewFakeBFF(t)
	flags := flagstore.NewFlags(flagstore.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	open := func(_ context.Context, target string) error {
		out.WriteString(target)
		cancel()
		return nil
	}
	a := newTestAgent(t, fake, flags, open, 0)

	_, err := a.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Contains(t, out.String(), "https://idp.example.com/auth?")
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "no flow", opts: Options{AppURL: "http://localhost:8080/", Out: &bytes.Buffer{}}, wantErr: "flow is required"},
		{name: "no app url", opts: Options{Flow: &flow.Orchestrator{}, Out: &bytes.Buffer{}}, wantErr: "invalid app URL"},
		{name: "no output", opts: Options{Flow: &flow.Orchestrator{}, AppURL: "http://localhost:8080/"}, wantErr: "opener or an output"},
		{name: "negative loads", opts: Options{Flow: &flow.Orchestrator{}, AppURL: "http://localhost:8080/", Out: &bytes.Buffer{}, MaxLoads: -1}, wantErr: "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_RequiresReceiver(t *testing.T) {
	a, err := New(Options{Flow: &flow.Orchestrator{}, AppURL: "http://localhost:8080/", Out: &bytes.Buffer{}})
	require.NoError(t, err)
	_, err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "receiver is required")
}

func TestPrintOpener(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, PrintOpener(&out)(context.Background(), "https://idp.example.com/auth?state=x"))
	assert.Contains(t, out.String(), "https://idp.example.com/auth?state=x")
}
