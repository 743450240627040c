// Package credential decides whether a request carries a session credential.
//
// Each Source inspects one kind of credential. A Chain combines sources with a
// logical OR: any source reporting presence makes the request authenticated.
// A source that fails counts as absent, so errors can only ever make a request
// less privileged.
package credential

import (
	"context"
	"errors"
	"net/http"
)

// ErrInvalidCredential is wrapped by sources when a credential is present but fails verification.
var ErrInvalidCredential = errors.New("invalid credential")

// Request carries the parts of an HTTP request that sources may inspect.
type Request struct {
	Headers http.Header
	Cookies []*http.Cookie
}

// FromHTTP captures the credential-bearing parts of r.
func FromHTTP(r *http.Request) Request {
	return Request{Headers: r.Header, Cookies: r.Cookies()}
}

// Cookie returns the value of the first cookie called name.
func (r Request) Cookie(name string) (string, bool) {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Source reports whether one kind of credential is present.
//
// Return values:
//   - (true, nil): credential present
//   - (false, nil): credential not present, try the next source
//   - (false, error): credential could not be evaluated or is invalid
type Source interface {
	Name() string
	Present(ctx context.Context, req Request) (bool, error)
}

// CookieSource treats a non-empty cookie as a credential. The value is never read.
type CookieSource struct {
	cookie string
}

// NewCookieSource returns a presence check for the named cookie.
func NewCookieSource(cookie string) *CookieSource {
	return &CookieSource{cookie: cookie}
}

func (s *CookieSource) Name() string { return "cookie:" + s.cookie }

func (s *CookieSource) Present(_ context.Context, req Request) (bool, error) {
	v, ok := req.Cookie(s.cookie)
	return ok && v != "", nil
}

// OnboardingComplete reports whether the onboarding cookie holds exactly "true".
func OnboardingComplete(req Request, cookie string) bool {
	v, ok := req.Cookie(cookie)
	return ok && v == "true"
}
