package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var ErrNoEndpoints = errors.New("overpass: no endpoints configured")

// Waiter gates outbound requests; every endpoint attempt passes through it.
type Waiter interface {
	Wait(ctx context.Context) error
}

type Client struct {
	endpoints []string
	gate      Waiter
	http      *retryablehttp.Client
}

type Option func(*Client)

// WithLogger accepts a retryablehttp Logger or LeveledLogger.
func WithLogger(l interface{}) Option {
	return func(c *Client) { c.http.Logger = l }
}

func WithRetry(max int, waitMin time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = max
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = 4 * waitMin
	}
}

// NewClient tries endpoints in order on every query; the first success wins.
func NewClient(endpoints []string, gate Waiter, timeout time.Duration, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 2 * time.Second
	rc.RetryWaitMax = 8 * time.Second
	rc.RetryMax = 1
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	c := &Client{
		endpoints: append([]string(nil), endpoints...),
		gate:      gate,
		http:      rc,
	}
	rc.RequestLogHook = c.gateRetry
	for _, o := range opts {
		o(c)
	}
	return c
}

// gateRetry holds retries of an endpoint to the same gate as first attempts.
func (c *Client) gateRetry(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 || c.gate == nil {
		return
	}
	_ = c.gate.Wait(req.Context())
}

func (c *Client) Endpoints() []string { return append([]string(nil), c.endpoints...) }

// Query runs an Overpass QL query. If every endpoint fails, the last error is returned.
func (c *Client) Query(ctx context.Context, query string) ([]Element, error) {
	if len(c.endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	var lastErr error
	for _, ep := range c.endpoints {
		if c.gate != nil {
			if err := c.gate.Wait(ctx); err != nil {
				return nil, err
			}
		}
		els, err := c.queryEndpoint(ctx, ep, query)
		if err == nil {
			return els, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = fmt.Errorf("overpass %s: %w", ep, err)
	}
	return nil, lastErr
}

func (c *Client) queryEndpoint(ctx context.Context, endpoint, query string) ([]Element, error) {
	form := url.Values{}
	form.Set("data", query)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	raw, err := ioReadAllLimit(resp.Body, 64<<20)
	if err != nil {
		return nil, err
	}
	return DecodeElements(raw)
}

// DecodeElements parses an Overpass JSON payload. A runtime remark without elements
// (query timeout, memory exhaustion) is reported as an error.
func DecodeElements(raw []byte) ([]Element, error) {
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(r.Elements) == 0 && strings.Contains(strings.ToLower(r.Remark), "error") {
		return nil, fmt.Errorf("remark: %s", r.Remark)
	}
	return r.Elements, nil
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
