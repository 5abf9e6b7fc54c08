// Package vast is the REST client for the GPU rental provider. Every
// method issues a single request against the v0 API with Bearer auth; the
// API key is never logged.
package vast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gpurig/rig/internal/logging"
)

const (
	// DefaultBaseURL is the provider API root including the version prefix.
	DefaultBaseURL = "https://console.vast.ai/api/v0"

	// DefaultTimeout bounds every provider request.
	DefaultTimeout = 30 * time.Second
)

// ErrNoAPIKey is returned when a client is constructed without credentials.
var ErrNoAPIKey = errors.New("no provider API key configured")

// APIError is a non-2xx response from the provider.
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("provider API error: status %d", e.Status)
	}
	return fmt.Sprintf("provider API error: status %d: %s", e.Status, e.Msg)
}

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the default client, used by tests.
	HTTPClient *http.Client
}

// Client talks to the provider REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient builds a provider client. The API key is required up front so
// that a misconfigured daemon fails at startup rather than on first use.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		logger:  logging.Component("vast"),
	}, nil
}

// opResult is the success/msg envelope most mutation endpoints return.
type opResult struct {
	Success   bool   `json:"success"`
	Msg       string `json:"msg"`
	ErrorMsg  string `json:"error"`
	ResultURL string `json:"result_url"`

	// NewContract carries the instance id on instance creation.
	NewContract int `json:"new_contract"`

	// WriteablePath is echoed by the constrained command endpoint and
	// stripped from its output.
	WriteablePath string `json:"writeable_path"`
}

// err converts an unsuccessful envelope into an error.
func (r *opResult) err() error {
	if r.Success {
		return nil
	}
	msg := r.Msg
	if msg == "" {
		msg = r.ErrorMsg
	}
	if msg == "" {
		msg = "unknown provider error"
	}
	return &APIError{Status: http.StatusOK, Msg: msg}
}

// do issues one request and decodes the JSON response into out (when out
// is non-nil). Non-2xx responses become an APIError carrying a bounded
// slice of the body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("provider request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding provider response: %w", err)
	}
	return nil
}

// fetchText downloads a result URL handed back by the provider. These URLs
// are pre-signed and do not take the Bearer header.
func (c *Client) fetchText(ctx context.Context, resultURL string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", false, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
