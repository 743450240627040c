// Package client builds the HTTP clients flowctl talks to the gate and API with.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/oauth2"
)

// Provider yields an HTTP client carrying the caller's dashboard credentials.
type Provider struct {
	serverURL   string
	bearerToken string
	cookies     map[string]string
	timeout     time.Duration

	httpOnce sync.Once
	httpCli  *http.Client
	httpErr  error
	warnOnce sync.Once
}

// NewProvider constructs a Provider bound to the gate's base URL.
func NewProvider(serverURL string) *Provider {
	return &Provider{
		serverURL: strings.TrimRight(serverURL, "/"),
		cookies:   make(map[string]string),
		timeout:   30 * time.Second,
	}
}

// ServerURL returns the gate base URL without a trailing slash.
func (p *Provider) ServerURL() string { return p.serverURL }

// SetBearerToken sends token as an Authorization bearer on every request.
func (p *Provider) SetBearerToken(token string) {
	p.bearerToken = token
}

// SetCookie sends a cookie to the server on every request, the way the
// browser would for the dashboard's origin.
func (p *Provider) SetCookie(name, value string) {
	if name == "" || value == "" {
		return
	}
	p.cookies[name] = value
}

// SetTimeout bounds each request.
func (p *Provider) SetTimeout(d time.Duration) {
	if d > 0 {
		p.timeout = d
	}
}

// HTTPClient returns the configured client. Redirects are not followed so
// gate verdicts stay visible. Without any credential a warning is printed once.
func (p *Provider) HTTPClient(ctx context.Context) (*http.Client, error) {
	p.httpOnce.Do(func() {
		u, err := url.Parse(p.serverURL)
		if err != nil || u.Host == "" {
			p.httpErr = fmt.Errorf("invalid server URL %q", p.serverURL)
			return
		}

		jar, err := cookiejar.New(nil)
		if err != nil {
			p.httpErr = fmt.Errorf("create cookie jar: %w", err)
			return
		}
		if len(p.cookies) > 0 {
			cookies := make([]*http.Cookie, 0, len(p.cookies))
			for name, value := range p.cookies {
				cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
			}
			jar.SetCookies(u, cookies)
		}

		var cli *http.Client
		if p.bearerToken != "" {
			token := &oauth2.Token{AccessToken: p.bearerToken, TokenType: "Bearer"}
			cli = oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
		} else {
			cli = &http.Client{}
			if len(p.cookies) == 0 {
				p.warnOnce.Do(func() {
					pterm.Warning.Println("No token or cookies configured; requests are anonymous.")
				})
			}
		}
		cli.Jar = jar
		cli.Timeout = p.timeout
		cli.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		p.httpCli = cli
	})
	return p.httpCli, p.httpErr
}
