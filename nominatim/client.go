package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrStatus wraps non-2xx responses; callers treat it as "no result".
var ErrStatus = errors.New("nominatim: unexpected status")

// Waiter gates outbound requests.
type Waiter interface {
	Wait(ctx context.Context) error
}

type Client struct {
	baseURL   string
	userAgent string
	gate      Waiter
	http      *retryablehttp.Client
}

type Option func(*Client)

// WithLogger accepts a retryablehttp Logger or LeveledLogger.
func WithLogger(l interface{}) Option {
	return func(c *Client) { c.http.Logger = l }
}

// WithGate passes every retry attempt through w. The first attempt is gated by the
// caller, so w should be the same gate the caller waits on.
func WithGate(w Waiter) Option {
	return func(c *Client) { c.gate = w }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http.HTTPClient = hc }
}

// NewClient targets a Nominatim deployment. Retries wait at least minInterval so a
// retry never breaks the upstream fair-use limit.
func NewClient(baseURL, userAgent string, minInterval time.Duration, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = minInterval
	rc.RetryWaitMax = 4 * minInterval
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      rc,
	}
	rc.RequestLogHook = c.gateRetry
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) gateRetry(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 || c.gate == nil {
		return
	}
	// a cancelled wait surfaces as the request's own context error
	_ = c.gate.Wait(req.Context())
}

func (c *Client) Search(ctx context.Context, p SearchParams) ([]Place, error) {
	q := url.Values{}
	q.Set("q", p.Query)
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	limit := p.Limit
	if limit <= 0 {
		limit = 1
	}
	q.Set("limit", strconv.Itoa(limit))
	if p.CountryCodes != "" {
		q.Set("countrycodes", p.CountryCodes)
	}

	u := fmt.Sprintf("%s/search?%s", c.baseURL, q.Encode())
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("user-agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}

	var places []Place
	if err := json.NewDecoder(io.LimitReader(resp.Body, 2<<20)).Decode(&places); err != nil {
		return nil, fmt.Errorf("nominatim decode: %w", err)
	}
	return places, nil
}
