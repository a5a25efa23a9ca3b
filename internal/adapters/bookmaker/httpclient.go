package bookmaker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// JSONClient is the HTTP client plug-ins share: JSON in and out, retries
// with exponential backoff on 429 and 5xx, and a *StatusError for every
// other non-2xx response so the session can spot 401/403. Request pacing
// belongs to the session, not to the client.
type JSONClient struct {
	http    *http.Client
	baseURL string
	headers map[string]string
	wait    func(ctx context.Context, attempt int)
}

// NewJSONClient returns a client rooted at baseURL. A nil hc gets a 30s
// timeout client.
func NewJSONClient(hc *http.Client, baseURL string) *JSONClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &JSONClient{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: map[string]string{},
		wait:    backoff,
	}
}

// SetHeader adds a header sent with every request.
func (c *JSONClient) SetHeader(key, value string) {
	c.headers[key] = value
}

// Get decodes the JSON response of GET path?params into out.
func (c *JSONClient) Get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		c.decorate(req)
		return c.http.Do(req)
	}, out)
}

// Post sends body as JSON and decodes the response into out.
func (c *JSONClient) Post(ctx context.Context, path string, body, out any) error {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("bookmaker.Post: marshal body: %w", err)
	}
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.decorate(req)
		return c.http.Do(req)
	}, out)
}

func (c *JSONClient) decorate(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

func (c *JSONClient) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := fn()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.wait(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return &StatusError{Code: resp.StatusCode, Body: fmt.Sprintf("after %d retries", maxRetries)}
			}
			slog.Warn("bookmaker: retrying", "status", resp.StatusCode, "attempt", attempt+1)
			c.wait(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		defer resp.Body.Close()
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// backoff sleeps for an exponentially growing delay or until ctx is done.
func backoff(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
