package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/GrahamLi/TDDC/internal/model"
)

// VerifyPolicy controls TLS identity verification of the source.
type VerifyPolicy string

const (
	// VerifyAlways uses the system trust store. The default.
	VerifyAlways VerifyPolicy = "always"
	// VerifyCAPath trusts only the CA bundle at Config.TLSCAPath.
	VerifyCAPath VerifyPolicy = "ca-path"
	// VerifyDisabled skips verification entirely. Test-mode only; the
	// client logs a warning when constructed with it.
	VerifyDisabled VerifyPolicy = "disabled"
)

const (
	queryPath        = "/api/v1/opendata/smWeb/qryStock"
	defaultUserAgent = "tddc-crawler"
)

// Config holds fetch client settings.
type Config struct {
	BaseURL        string        // Source root (default: https://openapi.tdcc.com.tw)
	Timeout        time.Duration // Per-request timeout (default: 30s)
	MaxConcurrency int           // Global in-flight request cap (default: 4)
	MinInterval    time.Duration // Minimum spacing between requests (default: 1s)
	MaxAttempts    int           // Total attempts per fetch (default: 3)
	BackoffBase    time.Duration // First retry delay (default: 1s, doubles per retry)
	BackoffJitter  float64       // Random fraction added to each delay (default: 0.5)
	TLSVerify      VerifyPolicy  // Identity verification policy (default: always)
	TLSCAPath      string        // CA bundle, required for VerifyCAPath
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://openapi.tdcc.com.tw",
		Timeout:        30 * time.Second,
		MaxConcurrency: 4,
		MinInterval:    time.Second,
		MaxAttempts:    3,
		BackoffBase:    time.Second,
		BackoffJitter:  0.5,
		TLSVerify:      VerifyAlways,
	}
}

// Client fetches ownership-distribution snapshots from the TDCC open
// data endpoint. It is safe for concurrent use; the rate gate and the
// in-flight semaphore are shared across all callers.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	limiter *rate.Limiter
	sem     chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client, bypassing the TLS policy.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a fetch client. Zero config fields fall back to
// DefaultConfig values.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.TLSVerify == "" {
		cfg.TLSVerify = def.TLSVerify
	}

	c := &Client{
		cfg:       cfg,
		logger:    slog.Default(),
		userAgent: defaultUserAgent,
		sem:       make(chan struct{}, cfg.MaxConcurrency),
	}

	if cfg.MinInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		tlsCfg, err := tlsConfig(cfg.TLSVerify, cfg.TLSCAPath)
		if err != nil {
			return nil, err
		}
		c.httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		}
	}

	if cfg.TLSVerify == VerifyDisabled {
		c.logger.Warn("tls verification disabled; upstream identity is unchecked")
	}

	return c, nil
}

// tlsConfig builds the TLS client config for the given policy.
func tlsConfig(policy VerifyPolicy, caPath string) (*tls.Config, error) {
	switch policy {
	case VerifyAlways:
		return nil, nil
	case VerifyCAPath:
		if caPath == "" {
			return nil, errors.New("tls verify policy ca-path requires a ca path")
		}
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("read ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", caPath)
		}
		return &tls.Config{RootCAs: pool}, nil
	case VerifyDisabled:
		return &tls.Config{InsecureSkipVerify: true}, nil
	default:
		return nil, fmt.Errorf("unknown tls verify policy %q", policy)
	}
}

// Fetch retrieves the snapshot for one (security, date). The caller
// decides which dates should have data; Fetch reports ErrNoData when
// the source confirms none exists. Transient failures are retried up
// to the attempt budget; the returned error is always classified as
// ErrNoData, *PermanentError, *TransientError, or a context error.
func (c *Client) Fetch(ctx context.Context, security model.SecurityID, date model.Date) (*model.OwnershipSnapshot, error) {
	if err := security.Validate(); err != nil {
		return nil, &PermanentError{Err: err}
	}

	// Acquire an in-flight slot.
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var lastErr error
	backoff := c.cfg.BackoffBase

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoff + time.Duration(rand.Float64()*c.cfg.BackoffJitter*float64(backoff))
			c.logger.Debug("retrying fetch",
				"security", security,
				"date", date.String(),
				"attempt", attempt,
				"backoff", delay,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			backoff *= 2
		}

		// Rate gate: one token per MinInterval, shared across workers.
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// Wait refuses up front when the remaining deadline cannot
			// cover the next token, before the context itself expires.
			return nil, context.DeadlineExceeded
		}

		snapshot, err := c.fetchOnce(ctx, security, date)
		if err == nil {
			return snapshot, nil
		}
		if errors.Is(err, ErrNoData) || IsPermanent(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, &TransientError{Err: fmt.Errorf("max attempts (%d) exceeded: %w", c.cfg.MaxAttempts, lastErr)}
}

// fetchOnce performs a single request and decodes its body.
func (c *Client) fetchOnce(ctx context.Context, security model.SecurityID, date model.Date) (*model.OwnershipSnapshot, error) {
	query := url.Values{}
	query.Set("scaDate", date.Compact())
	query.Set("stockNo", string(security))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+queryPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: body}
		if httpErr.IsRetryable() {
			return nil, &TransientError{Err: httpErr}
		}
		return nil, &PermanentError{Err: httpErr}
	}

	return decodeSnapshot(body, security, date)
}
