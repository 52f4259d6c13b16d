package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// Default client settings.
const (
	DefaultTimeout    = 120 * time.Second
	DefaultBackoff    = 500 * time.Millisecond
	DefaultMaxRetries = 1
)

// ErrNoEndpoint is returned by Generate when the client has no endpoint.
var ErrNoEndpoint = errors.New("image generation endpoint not configured")

// StatusError is a non-2xx reply from the service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("image service returned status %d", e.Code)
	}
	return fmt.Sprintf("image service returned status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client calls an image-generation service over HTTP.
type Client struct {
	endpoint   string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	backoff    time.Duration
	maxRetries uint64
	parameters map[string]any
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request, including retries of it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetries sets how often temporary failures are retried and the fixed
// wait between attempts.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
		if wait > 0 {
			c.backoff = wait
		}
	}
}

// WithThrottle spaces requests at least d apart. Zero disables throttling.
func WithThrottle(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithParameters sets the extra parameters sent with every prompt.
func WithParameters(params map[string]any) Option {
	return func(c *Client) { c.parameters = params }
}

// WithLogger sets the logger retries are reported to.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		http:       &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		backoff:    DefaultBackoff,
		maxRetries: DefaultMaxRetries,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	Prompt     string         `json:"prompt"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Generate asks the service for an image matching prompt. It returns nil
// bytes and no error when the service answered without an image.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if c.endpoint == "" {
		return nil, ErrNoEndpoint
	}
	body, err := json.Marshal(request{Prompt: prompt, Parameters: c.parameters})
	if err != nil {
		return nil, err
	}

	var image []byte
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		data, err := c.generateOnce(ctx, body)
		if err != nil {
			return err
		}
		image = data
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.backoff), c.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("image generation failed, retrying", "err", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	return image, nil
}

func (c *Client) generateOnce(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/*, application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	payload, contentType, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(contentType, "image/") {
		return payload, nil
	}

	ref, ok, err := findImageReference(payload)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if !ok {
		return nil, nil
	}
	return c.resolve(ctx, ref)
}

// resolve turns a reference from a JSON reply into image bytes: URLs are
// downloaded, data URLs and bare base64 are decoded.
func (c *Client) resolve(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return c.Download(ctx, ref)
	case strings.HasPrefix(ref, "data:"):
		comma := strings.IndexByte(ref, ',')
		if comma < 0 || !strings.Contains(ref[:comma], ";base64") {
			return nil, backoff.Permanent(errors.New("unsupported data URL"))
		}
		ref = ref[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(ref)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("image reference is neither a URL nor base64: %w", err))
	}
	return data, nil
}

// Download fetches an image produced by the service.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	data, _, err := c.do(req)
	return data, err
}

// do performs req. Network failures and temporary statuses are returned
// as plain errors so they are retried; everything else is permanent.
func (c *Client) do(req *http.Request) ([]byte, string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, "", backoff.Permanent(err)
		}
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 200)}
		if statusErr.Temporary() {
			return nil, "", statusErr
		}
		return nil, "", backoff.Permanent(statusErr)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// resultKeys are the reply fields searched for an image, most specific first.
var resultKeys = []string{"url", "output", "urls", "b64_json", "image", "images", "data", "result"}

// findImageReference digs the first image URL or base64 payload out of a
// JSON reply. Fields holding JSON-encoded strings are decoded in turn.
func findImageReference(payload []byte) (string, bool, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return "", false, nil
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return "", false, err
	}
	ref, ok := extractReference(v)
	return ref, ok, nil
}

func extractReference(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
			var inner any
			if err := json.Unmarshal([]byte(s), &inner); err == nil {
				return extractReference(inner)
			}
		}
		return s, s != ""
	case []any:
		for _, item := range x {
			if ref, ok := extractReference(item); ok {
				return ref, true
			}
		}
	case map[string]any:
		for _, key := range resultKeys {
			if val, found := x[key]; found {
				if ref, ok := extractReference(val); ok {
					return ref, true
				}
			}
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
