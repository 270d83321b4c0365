package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"

	"landing/internal/api"
)

const (
	defaultTimeout   = 30 * time.Second
	maxErrorBodySize = 64 << 10
)

// Error is a non-2xx reply from the daemon.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("daemon returned %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsExpired reports whether err is a 410 from the daemon.
func IsExpired(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusGone
}

// Client issues requests against one daemon address.
type Client struct {
	baseURL string
	token   string
	owner   int64
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithOwner sets the owner id sent as X-Owner-Id.
func WithOwner(owner int64) Option {
	return func(c *Client) {
		c.owner = owner
	}
}

// New builds a client for addr, which may be host:port or a full URL.
func New(addr, token string, opts ...Option) (*Client, error) {
	base, err := normalizeBaseURL(addr)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the daemon root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Owner returns the owner id sent with each request.
func (c *Client) Owner() int64 {
	return c.owner
}

// Health pings the unauthenticated health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, "/health", &map[string]string{})
}

// Status retrieves daemon runtime information.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var resp api.DaemonStatus
	if err := c.getJSON(ctx, "/api/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns the owner's landings.
func (c *Client) List(ctx context.Context) ([]api.LandingSummary, error) {
	var resp api.LandingListResponse
	if err := c.getJSON(ctx, "/api/landings", &resp); err != nil {
		return nil, err
	}
	return resp.Landings, nil
}

// Show returns one landing.
func (c *Client) Show(ctx context.Context, landingID string) (*api.LandingSummary, error) {
	var resp api.LandingResponse
	if err := c.getJSON(ctx, landingPath(landingID, ""), &resp); err != nil {
		return nil, err
	}
	return &resp.Landing, nil
}

// LandingStatus queries live or durable status for a landing.
func (c *Client) LandingStatus(ctx context.Context, landingID string) (*api.LandingStatus, error) {
	var resp api.LandingStatus
	if err := c.getJSON(ctx, landingPath(landingID, "/status"), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Create starts a generation job.
func (c *Client) Create(ctx context.Context, req api.CreateLandingRequest) (*api.CreateLandingResponse, error) {
	body, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpResp, err := c.do(ctx, http.MethodPost, "/api/landings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	var resp api.CreateLandingResponse
	if err := decode(httpResp.Body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a landing and reports whether anything existed.
func (c *Client) Delete(ctx context.Context, landingID string) (bool, error) {
	httpResp, err := c.do(ctx, http.MethodDelete, landingPath(landingID, ""), nil)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	defer httpResp.Body.Close()
	var resp api.DeleteResponse
	if err := decode(httpResp.Body, &resp); err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

// Zip streams the landing archive into w and returns the byte count.
func (c *Client) Zip(ctx context.Context, landingID string, w io.Writer) (int64, error) {
	httpResp, err := c.do(ctx, http.MethodGet, landingPath(landingID, "/zip"), nil)
	if err != nil {
		return 0, err
	}
	defer httpResp.Body.Close()
	n, err := io.Copy(w, httpResp.Body)
	if err != nil {
		return n, fmt.Errorf("download archive: %w", err)
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp.Body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.owner > 0 {
		req.Header.Set("X-Owner-Id", strconv.FormatInt(c.owner, 10))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapDialError(err, c.baseURL)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, readError(resp)
}

func readError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	apiErr := &Error{Status: resp.StatusCode}
	var payload api.ErrorResponse
	if err := sonic.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Error
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func decode(r io.Reader, out any) error {
	if err := sonic.ConfigStd.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func landingPath(landingID, suffix string) string {
	return "/api/landings/" + url.PathEscape(landingID) + suffix
}

func normalizeBaseURL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", errors.New("daemon address is required")
	}
	if !strings.Contains(addr, "://") {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return "", fmt.Errorf("daemon address %q: %w", addr, err)
		}
		// A wildcard bind is reachable on loopback.
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		addr = "http://" + net.JoinHostPort(host, port)
	}
	parsed, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("daemon address %q: %w", addr, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("daemon address %q: unsupported scheme", addr)
	}
	return strings.TrimRight(parsed.String(), "/"), nil
}

func wrapDialError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `landing daemon`", base)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}
