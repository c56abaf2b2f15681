// Package bff is the typed HTTP contract of the Backend-For-Frontend that
// performs the OAuth token exchange on the client's behalf.
//
// Every operation is a single request/response exchange. Success is any 2xx
// status; the BFF sets or clears its token cookies server-side and the client
// observes nothing but the status. Failures are reported as:
//
//   - ErrTransport (wrapped): the request never produced a response
//   - *StatusError: the BFF answered with a non-2xx status
//   - *ResourceError: FetchResource got a structured error with a "type" field
//   - ErrPayloadTooLarge (wrapped): FetchResource got more data than it will read
//
// Both typed errors match ErrRejected with errors.Is.
package bff

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dgellow/bff-front/internal/log"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds each BFF request
	DefaultTimeout = 15 * time.Second

	PathToken          = "/bff/token"
	PathNewAccessToken = "/bff/newaccesstoken"
	PathData           = "/bff/data"
	PathLogout         = "/bff/logout"

	maxPayloadBytes = 4 << 20
	maxErrorBytes   = 4 << 10
)

const (
	opExchangeCode  = "exchange code"
	opRefresh       = "refresh"
	opFetchResource = "fetch resource"
	opLogout        = "logout"
)

// Config configures a Client
type Config struct {
	// BaseURL is the BFF origin, e.g. https://localhost:8902. Endpoint paths
	// are joined onto it.
	BaseURL string

	// Timeout bounds each request; zero means DefaultTimeout
	Timeout time.Duration

	// HTTPClient is used for requests when set. Its Jar must be nil:
	// cookies travel through Credentials.
	HTTPClient *http.Client
}

// Client talks to the BFF
type Client struct {
	baseURL    *url.URL
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a BFF client
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("bff base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bff base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("bff base URL must be http or https, got %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// Set-Cookie on a redirect hop would bypass Credentials.Capture
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if httpClient.Jar != nil {
		return nil, fmt.Errorf("http client must not have a cookie jar; pass credentials per call")
	}

	return &Client{
		baseURL:    base,
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

// ExchangeCode posts the authorization code. On success the BFF has stored
// the new tokens in its cookies.
func (c *Client) ExchangeCode(ctx context.Context, creds Credentials, code string) error {
	_, err := c.do(ctx, creds, opExchangeCode, http.MethodPost, PathToken, code)
	return err
}

// Refresh asks the BFF to renew tokens with the refresh cookie
func (c *Client) Refresh(ctx context.Context, creds Credentials) error {
	_, err := c.do(ctx, creds, opRefresh, http.MethodGet, PathNewAccessToken, "")
	return err
}

// FetchResource returns the protected resource payload as text
func (c *Client) FetchResource(ctx context.Context, creds Credentials) (string, error) {
	return c.do(ctx, creds, opFetchResource, http.MethodGet, PathData, "")
}

// Logout asks the BFF to end the server-side session. No identifiers are
// sent: the BFF derives everything from its cookies.
func (c *Client) Logout(ctx context.Context, creds Credentials) error {
	_, err := c.do(ctx, creds, opLogout, http.MethodGet, PathLogout, "")
	return err
}

func (c *Client) endpoint(p string) string {
	u := *c.baseURL
	u.Path = path.Join("/", u.Path, p)
	u.RawQuery = ""
	return u.String()
}

func (c *Client) do(ctx context.Context, creds Credentials, op, method, p, body string) (string, error) {
	if creds == nil {
		creds = NoCredentials{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	target := c.endpoint(p)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", fmt.Errorf("%s: building request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if body != "" {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	if op == opFetchResource {
		req.Header.Set("Accept", "text/plain, application/json")
	}
	creds.Attach(req)

	log.LogTraceWithFields("bff", "Sending request", map[string]any{
		"op":         op,
		"method":     method,
		"url":        target,
		"request_id": requestID,
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogErrorWithFields("bff", "Request failed", map[string]any{
			"op":         op,
			"request_id": requestID,
			"error":      err.Error(),
		})
		return "", fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
	}
	defer resp.Body.Close()
	creds.Capture(resp)

	fields := map[string]any{
		"op":         op,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"duration":   time.Since(start).String(),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody := readLimited(resp.Body, maxErrorBytes)
		log.LogDebugWithFields("bff", "Request rejected", fields)
		if op == opFetchResource {
			return "", parseResourceError(resp.StatusCode, errBody)
		}
		return "", &StatusError{Op: op, StatusCode: resp.StatusCode, Body: errBody}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return "", fmt.Errorf("%s: reading response: %w: %w", op, ErrTransport, err)
	}
	if len(payload) > maxPayloadBytes {
		log.LogErrorWithFields("bff", "Response exceeds payload limit", fields)
		return "", fmt.Errorf("%s: %w: more than %d bytes", op, ErrPayloadTooLarge, maxPayloadBytes)
	}
	log.LogDebugWithFields("bff", "Request succeeded", fields)
	return string(payload), nil
}

// readLimited reads up to limit bytes for inclusion in errors and logs. A read
// failure is described rather than silenced.
func readLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return strings.TrimSpace(string(body))
}
