package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// DefaultRetryAttempts bounds /me attempts for transient failures.
const DefaultRetryAttempts = 3

// maxRetryAfter caps how long a 429 Retry-After may stall a fetch.
const maxRetryAfter = 30 * time.Second

// Fetcher loads the Current User. It returns ErrUnauthenticated when there is
// no session; any error means "no user".
type Fetcher interface {
	FetchCurrentUser(ctx context.Context) (*User, error)
}

// Client fetches the Current User from the /me endpoint.
type Client struct {
	meURL      string
	httpClient *http.Client
	attempts   uint
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the transport, typically an oauth2 client that attaches the session.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetryAttempts sets the total number of attempts. 1 disables retry.
func WithRetryAttempts(n int) ClientOption {
	return func(cl *Client) {
		if n >= 1 {
			cl.attempts = uint(n)
		}
	}
}

// WithBackOff overrides the delay schedule between attempts.
func WithBackOff(newBackOff func() backoff.BackOff) ClientOption {
	return func(cl *Client) { cl.newBackOff = newBackOff }
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *zap.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// NewClient returns a Client for meURL.
func NewClient(meURL string, opts ...ClientOption) (*Client, error) {
	if meURL == "" {
		return nil, errors.New("identity: me url is required")
	}
	if _, err := compiledMeSchema(); err != nil {
		return nil, err
	}

	c := &Client{
		meURL:      meURL,
		httpClient: http.DefaultClient,
		attempts:   DefaultRetryAttempts,
		newBackOff: defaultBackOff,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// FetchCurrentUser calls /me. Transient failures are retried up to the
// configured attempt count; 401 and 403 are never retried.
func (c *Client) FetchCurrentUser(ctx context.Context) (*User, error) {
	user, err := backoff.Retry(ctx, func() (*User, error) {
		return c.fetchOnce(ctx)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("identity_fetch_retry",
				zap.String("url", c.meURL),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (c *Client) fetchOnce(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.meURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		user, err := DecodeUser(resp.Body)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return user, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrUnauthenticated, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		err := fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
		if secs, ok := retryAfterSeconds(resp.Header.Get("Retry-After")); ok {
			return nil, errors.Join(err, backoff.RetryAfter(secs))
		}
		return nil, err
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}
}

func retryAfterSeconds(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	if time.Duration(secs)*time.Second > maxRetryAfter {
		secs = int(maxRetryAfter / time.Second)
	}
	return secs, true
}
