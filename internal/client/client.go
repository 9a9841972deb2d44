// Package client talks to the study application's HTTP API: identity,
// progress snapshot, batch persistence and aggregate statistics.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/studysync/internal/store"
)

const (
	currentUserPath = "/api/current-user"
	progressPath    = "/api/progress/"
	batchPath       = "/api/progress/batch-update"
	statsPath       = "/api/progress-stats"

	maxBodyBytes   = 8 << 20
	defaultTimeout = 15 * time.Second
)

// Waiter gates outbound requests; *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// IDGenerator produces request IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the application origin, e.g. https://study.example.com.
	BaseURL string
	// Timeout bounds each request when no HTTPClient is supplied.
	Timeout time.Duration
	// SessionCookie is the cookie name carrying the session; SessionToken its value.
	SessionCookie string
	SessionToken  string
	// UserAgent is sent on every request when set.
	UserAgent string

	HTTPClient *http.Client
	Limiter    Waiter
	IDs        IDGenerator
	Logger     *zap.Logger
}

// Client implements store.Identity and store.ProgressStore over HTTP.
type Client struct {
	base   *url.URL
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

var (
	_ store.Identity      = (*Client)(nil)
	_ store.ProgressStore = (*Client)(nil)
)

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", base.Scheme)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{base: base, http: httpClient, cfg: cfg, logger: logger}, nil
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type currentUserResponse struct {
	envelope
	User store.User `json:"user"`
}

type progressResponse struct {
	envelope
	Progress []store.Record `json:"progress"`
}

type statsResponse struct {
	envelope
	store.StatsSummary
}

// CurrentUser resolves the session's user. A {success:false} body is treated
// as unauthenticated.
func (c *Client) CurrentUser(ctx context.Context) (store.User, error) {
	var resp currentUserResponse
	if err := c.do(ctx, http.MethodGet, currentUserPath, nil, &resp); err != nil {
		return store.User{}, fmt.Errorf("current user: %w", err)
	}
	if !resp.Success || resp.User.ID == "" {
		return store.User{}, fmt.Errorf("current user: %w", store.ErrUnauthenticated)
	}
	return resp.User, nil
}

// FetchProgress loads the flat progress snapshot for userID.
func (c *Client) FetchProgress(ctx context.Context, userID store.UserID) ([]store.Record, error) {
	if userID == "" {
		return nil, errors.New("fetch progress: user id is required")
	}
	var resp progressResponse
	path := progressPath + url.PathEscape(string(userID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("fetch progress: %w", bodyError(resp.envelope))
	}
	return resp.Progress, nil
}

// BatchUpdate posts all updates in a single request.
func (c *Client) BatchUpdate(ctx context.Context, userID store.UserID, updates []store.Update) error {
	if len(updates) == 0 {
		return nil
	}
	body := store.BatchRequest{UserID: string(userID), Updates: updates}
	var resp envelope
	if err := c.do(ctx, http.MethodPost, batchPath, body, &resp); err != nil {
		return fmt.Errorf("batch update: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("batch update: %w", bodyError(resp))
	}
	return nil
}

// FetchStats loads aggregate identifier and goal totals.
func (c *Client) FetchStats(ctx context.Context) (store.StatsSummary, error) {
	var resp statsResponse
	if err := c.do(ctx, http.MethodGet, statsPath, nil, &resp); err != nil {
		return store.StatsSummary{}, fmt.Errorf("fetch stats: %w", err)
	}
	if !resp.Success {
		return store.StatsSummary{}, fmt.Errorf("fetch stats: %w", bodyError(resp.envelope))
	}
	return resp.StatsSummary, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	target := c.base.JoinPath(path).String()
	var payload io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.decorate(req, in != nil)

	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx, target); err != nil {
			return fmt.Errorf("%w: %w", store.ErrNetwork, err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("close response body", zap.Error(closeErr))
		}
	}()
	c.logger.Debug("store request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return classifyTransport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env envelope
		_ = json.Unmarshal(raw, &env)
		return &store.StatusError{Code: resp.StatusCode, Message: env.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", store.ErrServer, err)
	}
	return nil
}

func (c *Client) decorate(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.IDs != nil {
		if id, err := c.cfg.IDs.NewID(); err == nil {
			req.Header.Set("X-Request-ID", id)
		}
	}
	if c.cfg.SessionCookie != "" && c.cfg.SessionToken != "" {
		req.AddCookie(&http.Cookie{Name: c.cfg.SessionCookie, Value: c.cfg.SessionToken})
	}
}

func bodyError(env envelope) error {
	if env.Error == "" {
		return store.ErrServer
	}
	return fmt.Errorf("%w: %s", store.ErrServer, env.Error)
}

// classifyTransport maps a transport failure onto the store taxonomy. Dial and
// DNS failures are the connectivity signal: the store was never reached.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", store.ErrNetwork, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %w", store.ErrOffline, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %w", store.ErrOffline, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENETUNREACH) {
		return fmt.Errorf("%w: %w", store.ErrOffline, err)
	}
	return fmt.Errorf("%w: %w", store.ErrNetwork, err)
}
