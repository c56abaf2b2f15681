package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// Cookie names used by FakeBFF
const (
	AccessCookie  = "bff_at"
	RefreshCookie = "bff_rt"
)

// FakeBFF is an in-process BFF. It accepts codes handed out by IssueCode,
// keeps tokens in cookies and serves Payload to holders of a live access
// token.
type FakeBFF struct {
	*httptest.Server

	mu       sync.Mutex
	Payload  string
	codes    map[string]bool
	access   map[string]bool
	refresh  map[string]bool
	counter  int
	requests []string
}

// NewFakeBFF starts a fake BFF that is closed with the test
func NewFakeBFF(t *testing.T) *FakeBFF {
	t.Helper()
	f := &FakeBFF{
		Payload: "todo: write tests",
		codes:   make(map[string]bool),
		access:  make(map[string]bool),
		refresh: make(map[string]bool),
	}

	router := mux.NewRouter()
	router.HandleFunc("/bff/token", f.handleToken).Methods(http.MethodPost)
	router.HandleFunc("/bff/newaccesstoken", f.handleRefresh).Methods(http.MethodGet)
	router.HandleFunc("/bff/data", f.handleData).Methods(http.MethodGet)
	router.HandleFunc("/bff/logout", f.handleLogout).Methods(http.MethodGet)

	f.Server = httptest.NewServer(f.record(router))
	t.Cleanup(f.Server.Close)
	return f
}

// IssueCode returns a fresh single-use authorization code
func (f *FakeBFF) IssueCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	code := fmt.Sprintf("code-%d", f.counter)
	f.codes[code] = true
	return code
}

// ExpireAccess invalidates every access token, as if they all timed out
func (f *FakeBFF) ExpireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = make(map[string]bool)
}

// RevokeRefresh invalidates every refresh token
func (f *FakeBFF) RevokeRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh = make(map[string]bool)
}

// Requests returns the endpoint paths hit so far, in order
func (f *FakeBFF) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeBFF) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL.Path)
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *FakeBFF) handleToken(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	code := strings.TrimSpace(string(body))

	f.mu.Lock()
	valid := f.codes[code]
	delete(f.codes, code)
	f.mu.Unlock()

	if !valid {
		http.Error(w, "invalid_grant", http.StatusBadRequest)
		return
	}
	f.issueTokens(w, true)
}

func (f *FakeBFF) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !f.hasToken(r, RefreshCookie, f.refresh) {
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}
	f.issueTokens(w, false)
}

func (f *FakeBFF) handleData(w http.ResponseWriter, r *http.Request) {
	if !f.hasToken(r, AccessCookie, f.access) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"type": "Unauthorized"})
		return
	}
	f.mu.Lock()
	payload := f.Payload
	f.mu.Unlock()
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, payload)
}

func (f *FakeBFF) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(RefreshCookie); err == nil {
		f.mu.Lock()
		delete(f.refresh, c.Value)
		f.mu.Unlock()
	}
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
	w.WriteHeader(http.StatusOK)
}

func (f *FakeBFF) issueTokens(w http.ResponseWriter, withRefresh bool) {
	f.mu.Lock()
	f.counter++
	at := fmt.Sprintf("at-%d", f.counter)
	f.access[at] = true
	var rt string
	if withRefresh {
		rt = fmt.Sprintf("rt-%d", f.counter)
		f.refresh[rt] = true
	}
	f.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: at, Path: "/", HttpOnly: true})
	if rt != "" {
		http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: rt, Path: "/", HttpOnly: true})
	}
	w.WriteHeader(http.StatusOK)
}

func (f *FakeBFF) hasToken(r *http.Request, name string, valid map[string]bool) bool {
	c, err := r.Cookie(name)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return valid[c.Value]
}
