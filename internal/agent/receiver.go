package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dgellow/bff-front/internal/log"
	"github.com/dgellow/bff-front/internal/redirect"
	"github.com/gorilla/mux"
)

const callbackPage = `<!DOCTYPE html>
<html><head><title>Signed in</title></head>
<body><p>Authorization received. You can close this window and return to the terminal.</p></body>
</html>
`

// Receiver listens on the redirect URI and hands authorization responses to
// the waiting agent
type Receiver struct {
	redirectURI *url.URL
	listener    net.Listener
	server      *http.Server

	mu        sync.Mutex
	callbacks chan url.Values
}

// NewReceiver binds the redirect URI's host and port. When ln is non-nil it
// is used instead of opening a new listener.
func NewReceiver(redirectURI string, ln net.Listener) (*Receiver, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect URI must use http for a loopback receiver, got %q", u.Scheme)
	}

	if ln == nil {
		ln, err = net.Listen("tcp", u.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", u.Host, err)
		}
	}

	r := &Receiver{
		redirectURI: u,
		listener:    ln,
		callbacks:   make(chan url.Values, 1),
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	router := mux.NewRouter()
	router.HandleFunc(path, r.handleCallback).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	r.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return r, nil
}

// Addr is the bound listener address
func (r *Receiver) Addr() net.Addr {
	return r.listener.Addr()
}

// Serve handles callbacks until ctx is cancelled
func (r *Receiver) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.server.Serve(r.listener)
	}()

	log.LogDebugWithFields("agent", "Redirect receiver listening", map[string]any{
		"addr": r.listener.Addr().String(),
		"path": r.redirectURI.Path,
	})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("redirect receiver: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down redirect receiver: %w", err)
		}
		return nil
	}
}

// Wait blocks until an authorization response arrives and returns its query
func (r *Receiver) Wait(ctx context.Context) (url.Values, error) {
	select {
	case q := <-r.callbacks:
		return q, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Receiver) handleCallback(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	if query.Get(redirect.ParamCode) == "" && query.Get(redirect.ParamError) == "" {
		http.Error(w, "not an authorization response", http.StatusBadRequest)
		return
	}

	// Only the latest response matters; an older undelivered one is dropped
	r.mu.Lock()
	select {
	case <-r.callbacks:
	default:
	}
	r.callbacks <- query
	r.mu.Unlock()

	log.LogDebugWithFields("agent", "Received authorization response", map[string]any{
		"has_code": query.Get(redirect.ParamCode) != "",
		"error":    query.Get(redirect.ParamError),
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(callbackPage))
}
