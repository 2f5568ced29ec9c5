package rpc

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"
)

// TransportError is a transient failure surfaced after the per-call retry
// budget is exhausted. The runner applies its own per-height retries on top.
type TransportError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on %s after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RPCError is a non-retryable failure: HTTP 4xx (except 429) or a body that
// does not parse as JSON.
type RPCError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *RPCError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rpc error on %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("rpc error on %s: %v", e.Endpoint, e.Err)
}

func (e *RPCError) Unwrap() error { return e.Err }

// Config controls the transport budget.
type Config struct {
	BaseURL       string
	Timeout       time.Duration // per attempt
	RPS           float64
	Retries       int
	Backoff       time.Duration
	BackoffJitter float64 // in [0, 1]
}

// Client is a rate-limited HTTP JSON client for a CometBFT RPC endpoint.
// All calls route through a process-local token bucket refilling at RPS
// tokens/second with capacity ceil(RPS * 2).
type Client struct {
	base     *url.URL
	http     *http.Client
	limiter  *rate.Limiter
	cfg      Config
	requests atomic.Uint64
}

// NewClient validates the base URL and builds the client.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid rpc url %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid rpc url scheme %q (want http or https)", u.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 150
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}

	burst := int(math.Ceil(cfg.RPS * 2))
	return &Client{
		base:    u,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		cfg:     cfg,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        128,
				MaxIdleConnsPerHost: 128,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Host returns the RPC host for log lines.
func (c *Client) Host() string { return c.base.Host }

// Requests returns the total number of HTTP attempts issued so far.
func (c *Client) Requests() uint64 { return c.requests.Load() }

// Status fetches chain sync info.
func (c *Client) Status(ctx context.Context) (*ChainStatus, error) {
	var out ChainStatus
	if err := c.getJSON(ctx, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Block fetches the consensus block at the given height.
func (c *Client) Block(ctx context.Context, height uint64) (*BlockResponse, error) {
	var out BlockResponse
	q := url.Values{"height": []string{strconv.FormatUint(height, 10)}}
	if err := c.getJSON(ctx, "/block", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BlockResults fetches the ABCI execution results at the given height.
func (c *Client) BlockResults(ctx context.Context, height uint64) (*BlockResultsResponse, error) {
	var out BlockResultsResponse
	q := url.Values{"height": []string{strconv.FormatUint(height, 10)}}
	if err := c.getJSON(ctx, "/block_results", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// resultEnvelope unwraps the optional JSON-RPC {result: ...} wrapper.
type resultEnvelope struct {
	Result json.RawMessage `json:"result"`
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoffDelay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
			log.Printf("[rpc] retrying %s (attempt %d/%d): %v", path, attempt, c.cfg.Retries, lastErr)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, retryable, err := c.doOnce(ctx, path, query)
		if err == nil {
			raw := body
			var env resultEnvelope
			if jsonErr := json.Unmarshal(body, &env); jsonErr == nil && len(env.Result) > 0 {
				raw = env.Result
			}
			if jsonErr := json.Unmarshal(raw, out); jsonErr != nil {
				return &RPCError{Endpoint: path, Err: fmt.Errorf("decode response: %w", jsonErr)}
			}
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}
	return &TransportError{Endpoint: path, Attempts: c.cfg.Retries + 1, Err: lastErr}
}

// doOnce performs a single attempt. The bool reports whether the failure is
// transient (5xx, 429, connect/read timeout, aborted connection).
func (c *Client) doOnce(ctx context.Context, path string, query url.Values) ([]byte, bool, error) {
	u := *c.base
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, &RPCError{Endpoint: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Connection", "keep-alive")

	c.requests.Add(1)
	resp, err := c.http.Do(req)
	if err != nil {
		// Connect/read timeouts and aborted connections are transient.
		// A canceled parent context is not.
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("read %s: %w", path, err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("status %d from %s", resp.StatusCode, path)
	case resp.StatusCode >= 400:
		return nil, false, &RPCError{Endpoint: path, StatusCode: resp.StatusCode}
	}
	return body, false, nil
}

// readBody drains the response, decompressing per Content-Encoding. Setting
// Accept-Encoding by hand disables net/http's transparent gzip handling, so
// both advertised encodings are decoded here.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	case "br":
		r = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(r)
}

// backoffDelay returns backoff * 2^attempt scaled by (1 ± jitter).
func (c *Client) backoffDelay(attempt int) time.Duration {
	d := float64(c.cfg.Backoff) * math.Pow(2, float64(attempt))
	j := c.cfg.BackoffJitter
	if j > 0 {
		d *= 1 - j + 2*j*rand.Float64()
	}
	return time.Duration(d)
}
