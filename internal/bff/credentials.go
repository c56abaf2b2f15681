package bff

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
)

// Credentials carries the ambient session credentials of one page instance.
// The BFF keeps tokens in HTTP-only cookies; the client only ever replays
// them, so every request is decorated by Attach and every response is offered
// to Capture.
type Credentials interface {
	Attach(req *http.Request)
	Capture(resp *http.Response)
}

// JarCredentials stores BFF cookies in a cookie jar
type JarCredentials struct {
	jar http.CookieJar
}

var _ Credentials = (*JarCredentials)(nil)

// NewJarCredentials creates credentials backed by an empty in-memory jar
func NewJarCredentials() (*JarCredentials, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &JarCredentials{jar: jar}, nil
}

// NewJarCredentialsFrom wraps an existing jar
func NewJarCredentialsFrom(jar http.CookieJar) *JarCredentials {
	return &JarCredentials{jar: jar}
}

// Jar exposes the underlying jar
func (j *JarCredentials) Jar() http.CookieJar {
	return j.jar
}

func (j *JarCredentials) Attach(req *http.Request) {
	for _, c := range j.jar.Cookies(req.URL) {
		req.AddCookie(c)
	}
}

func (j *JarCredentials) Capture(resp *http.Response) {
	if resp.Request == nil {
		return
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		j.jar.SetCookies(resp.Request.URL, cookies)
	}
}

// NoCredentials sends requests without cookies
type NoCredentials struct{}

func (NoCredentials) Attach(*http.Request)    {}
func (NoCredentials) Capture(*http.Response) {}
