// Package snowball is the HTTP call surface for the Xueqiu (Snowball) and
// Danjuan data APIs. Client implements gateway.Upstream: the session token is
// passed per call and sent as the xq_a_token cookie.
package snowball

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/snowball-gateway/pkg/gateway"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	// DefaultUserAgent mimics a desktop browser; Snowball rejects obvious bots.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 30 * time.Second

	// TokenCookie carries the session token.
	TokenCookie = "xq_a_token"

	maxBodyBytes = 16 << 20
)

// HTTPClient is the subset of *http.Client used by Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls Snowball endpoints described by the operation catalog.
type Client struct {
	httpClient HTTPClient
	baseURLs   map[Host]string
	userAgent  string
	now        func() time.Time
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBaseURL overrides the base URL for one host.
func WithBaseURL(host Host, base string) Option {
	return func(cl *Client) { cl.baseURLs[host] = strings.TrimRight(base, "/") }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if hc, ok := cl.httpClient.(*http.Client); ok {
			hc.Timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// WithClock sets the time source used for computed query values.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURLs:   make(map[Host]string, len(DefaultBaseURLs)),
		userAgent:  DefaultUserAgent,
		now:        time.Now,
		logger:     log.With().Str("component", "snowball-client").Logger(),
	}
	for h, u := range DefaultBaseURLs {
		c.baseURLs[h] = u
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the full request URL for op.
func (c *Client) URL(op gateway.Operation) (string, error) {
	spec, ok := catalog[op.Name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, op.Name)
	}
	base, ok := c.baseURLs[spec.Host]
	if !ok {
		return "", fmt.Errorf("no base URL for host %q", spec.Host)
	}

	path, query := spec.request(op.Params, c.now())
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, nil
}

// Validate reports ErrUnknownOperation for names outside the catalog. The
// gateway calls it before pacing, so a typo never costs a credential.
func (c *Client) Validate(op gateway.Operation) error {
	_, err := c.URL(op)
	return err
}

// Call performs op with credential. A non-2xx status, or a 2xx body that
// carries a non-zero error code, yields a *gateway.UpstreamError holding the body.
func (c *Client) Call(ctx context.Context, credential string, op gateway.Operation) ([]byte, error) {
	target, err := c.URL(op)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if credential != "" {
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: credential})
	}

	c.logger.Debug().
		Str("operation", op.Name).
		Str("url", redact(target)).
		Bool("authenticated", credential != "").
		Msg("Executing Snowball request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &gateway.UpstreamError{Operation: op.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &gateway.UpstreamError{Operation: op.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &gateway.UpstreamError{
			Operation:  op.Name,
			StatusCode: resp.StatusCode,
			Payload:    body,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if code, failed := embeddedError(body); failed {
		return nil, &gateway.UpstreamError{
			Operation:  op.Name,
			StatusCode: resp.StatusCode,
			Payload:    body,
			Err:        fmt.Errorf("error code %s", code),
		}
	}

	return body, nil
}

// embeddedError detects Snowball's error_code and Danjuan's result_code
// envelopes. Zero, empty and null codes mean success.
func embeddedError(body []byte) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	for _, key := range []string{"error_code", "result_code"} {
		v := gjson.GetBytes(body, key)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if code := v.String(); code != "" && code != "0" {
			return code, true
		}
	}
	return "", false
}

// redact drops the query of a URL for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}
