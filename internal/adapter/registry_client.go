// Package adapter holds the clients of external services the filters call.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/listing-trust/internal/circuitbreaker"
	"github.com/listing-trust/internal/config"
	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/metrics"
	"github.com/listing-trust/internal/retry"
)

const registryProvider = "company-registry"

// DefaultRegistryTimeout bounds one lookup, retry included
const DefaultRegistryTimeout = 3 * time.Second

// errRejected marks 4xx answers other than 404; they are not retried
var errRejected = fmt.Errorf("registry rejected the request")

// Company is what the registry knows about a business identifier
type Company struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Active       bool       `json:"active"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
}

// CompanyLookup resolves a business identifier
type CompanyLookup interface {
	Lookup(ctx context.Context, id string) (*Company, error)
}

// Quota gates outgoing calls against a shared request budget
type Quota interface {
	Wait(ctx context.Context) error
}

// RegistryOption customizes a RegistryClient
type RegistryOption func(*RegistryClient)

// WithQuota makes every attempt take one call from q first
func WithQuota(q Quota) RegistryOption {
	return func(c *RegistryClient) { c.quota = q }
}

// RegistryClient calls the company registry over HTTP
type RegistryClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.RetryConfig
	quota   Quota
	logger  *logging.Logger
}

func isRateLimited(err error) bool {
	cat := errors.Categorize(err)
	return cat != nil && cat.Category == errors.CategoryRateLimit
}

// NewRegistryClient creates a client for cfg.BaseURL
func NewRegistryClient(cfg config.RegistryConfig, opts ...RegistryOption) *RegistryClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRegistryTimeout
	}

	breakerCfg := circuitbreaker.DefaultConfig(registryProvider)
	breakerCfg.IsFailure = func(err error) bool {
		return !errors.IsNotFound(err) && !errors.Is(err, errRejected)
	}

	retryCfg := retry.DefaultRetryConfig()
	retryCfg.Retryable = func(err error) bool {
		return !errors.IsNotFound(err) && !errors.Is(err, errRejected) && !isRateLimited(err) &&
			!errors.Is(err, circuitbreaker.ErrCircuitOpen) &&
			!errors.Is(err, circuitbreaker.ErrTooManyRequests)
	}

	c := &RegistryClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
		breaker: circuitbreaker.NewCircuitBreaker(breakerCfg),
		retry:   retryCfg,
		logger:  logging.GetGlobalLogger().WithComponent("registry-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches one company. Unknown identifiers return a not-found error.
func (c *RegistryClient) Lookup(ctx context.Context, id string) (*Company, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var company *Company
	result := retry.WithExponentialBackoff(ctx, c.retry, func(ctx context.Context, attempt int) error {
		if c.quota != nil {
			if err := c.quota.Wait(ctx); err != nil {
				return err
			}
		}
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			found, err := c.fetch(ctx, id)
			if err != nil {
				return err
			}
			company = found
			return nil
		})
	})

	err := result.LastError
	switch {
	case result.Success:
		metrics.RegistryLookups.WithLabelValues("found").Inc()
		return company, nil
	case errors.IsNotFound(err):
		metrics.RegistryLookups.WithLabelValues("not_found").Inc()
		return nil, err
	case isRateLimited(err):
		metrics.RegistryLookups.WithLabelValues("throttled").Inc()
		c.logger.Debug("Company registry quota spent")
		return nil, err
	case errors.Is(err, context.DeadlineExceeded):
		err = errors.NewProviderTimeoutError(registryProvider)
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		err = errors.NewProviderError(registryProvider, err)
	}

	metrics.RegistryLookups.WithLabelValues("error").Inc()
	c.logger.WithError(err).WithFields(map[string]interface{}{
		"attempts": result.Attempts,
		"duration": result.TotalDuration.String(),
	}).Warn("Company registry lookup failed")
	return nil, err
}

func (c *RegistryClient) fetch(ctx context.Context, id string) (*Company, error) {
	endpoint := fmt.Sprintf("%s/companies/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, context.DeadlineExceeded
		}
		return nil, errors.NewProviderError(registryProvider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.NewNotFoundError("company", id)
	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.NewProviderError(registryProvider, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.NewProviderError(registryProvider, fmt.Errorf("%w: status %d", errRejected, resp.StatusCode))
	}

	var company Company
	if err := json.NewDecoder(resp.Body).Decode(&company); err != nil {
		return nil, errors.NewProviderError(registryProvider, fmt.Errorf("failed to decode response: %w", err))
	}
	if company.ID == "" {
		company.ID = id
	}
	return &company, nil
}

// BreakerState reports the registry circuit state for health checks
func (c *RegistryClient) BreakerState() circuitbreaker.State {
	return c.breaker.GetState()
}
