package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// StatusError marks a 5xx response that the breaker counted as a failure
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: %d", e.StatusCode)
}

// HTTPClient wraps an HTTP client with circuit breaker protection
type HTTPClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewHTTPClient creates a new HTTP client with circuit breaker. A nil breaker
// disables protection.
func NewHTTPClient(client *http.Client, breaker *gobreaker.CircuitBreaker, log *zap.Logger) *HTTPClient {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPClient{
		client:  client,
		breaker: breaker,
		log:     log,
	}
}

// Do executes an HTTP request with circuit breaker protection.
// 5xx responses count against the breaker but are still returned to the
// caller, which may want to read an error body.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.client.Do(req)
	}

	var resp *http.Response
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var err error
		resp, err = c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, &StatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})

	var statusErr *StatusError
	if errors.As(err, &statusErr) && resp != nil {
		return resp, nil
	}
	if err != nil {
		if IsCircuitOpen(err) {
			c.log.Warn("Circuit breaker open, request blocked",
				zap.String("url", req.URL.String()),
				zap.String("breaker", c.breaker.Name()),
			)
		}
		return nil, err
	}
	return resp, nil
}

// Get performs a GET request with circuit breaker protection
func (c *HTTPClient) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(req)
}

// State returns the breaker state, closed when protection is disabled
func (c *HTTPClient) State() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

// HTTPClientSettings configures the HTTP client with circuit breaker
type HTTPClientSettings struct {
	// HTTP client settings. Zero means no timeout.
	Timeout time.Duration

	// Circuit breaker settings
	Enabled          bool
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	BreakerTimeout   time.Duration
	FailureThreshold uint32
}

// DefaultHTTPClientSettings returns default settings
func DefaultHTTPClientSettings(name string) HTTPClientSettings {
	return HTTPClientSettings{
		Name:             name,
		Enabled:          true,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		BreakerTimeout:   30 * time.Second,
		FailureThreshold: 5,
	}
}

// NewHTTPClientWithSettings creates a new HTTP client with the given settings
func NewHTTPClientWithSettings(settings HTTPClientSettings, log *zap.Logger) *HTTPClient {
	client := &http.Client{
		Timeout: settings.Timeout,
	}
	if !settings.Enabled {
		return NewHTTPClient(client, nil, log)
	}

	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("HTTP client circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return NewHTTPClient(client, breaker, log)
}

// IsCircuitOpen checks if the error is due to an open or saturated circuit
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
