// Package webapp is the client for the backend's mini-app read API.
package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/adapter/telegram"
	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/infrastructure/circuitbreaker"
	"github.com/azimjon-95/totli-webapp/internal/observability/telemetry"
	"github.com/azimjon-95/totli-webapp/internal/ports"
)

const (
	EndpointSummary    = "/api/webapp/summary"
	EndpointTodayList  = "/api/webapp/today/list"
	EndpointComparison = "/api/webapp/chart/today-vs-yesterday"

	maxBodyBytes = 8 << 20
)

// Client issues authenticated GET requests and unwraps the {ok,data,error}
// envelope. It keeps no state between calls and never retries.
type Client struct {
	http    *circuitbreaker.HTTPClient
	baseURL string
	auth    ports.AuthContext
	log     *zap.Logger
}

var _ ports.DashboardAPI = (*Client)(nil)

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, httpClient *circuitbreaker.HTTPClient, auth ports.AuthContext, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = circuitbreaker.NewHTTPClient(nil, nil, log)
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		log:     log,
	}
}

type envelope[T any] struct {
	OK    bool   `json:"ok"`
	Data  *T     `json:"data"`
	Error string `json:"error"`
}

type summaryData struct {
	Cards *domain.SummaryCards `json:"cards"`
}

type todayListData struct {
	Sales    []domain.SalesEvent   `json:"sales"`
	Expenses []domain.ExpenseEvent `json:"expenses"`
}

type comparisonData struct {
	Today     []domain.HourlyPoint `json:"today"`
	Yesterday []domain.HourlyPoint `json:"yesterday"`
}

// FetchSummary returns the summary cards for the inclusive date range
func (c *Client) FetchSummary(ctx context.Context, from, to time.Time) (*domain.SummaryCards, error) {
	query := url.Values{}
	query.Set("from", from.Format(domain.DateLayout))
	query.Set("to", to.Format(domain.DateLayout))

	data, status, err := get[summaryData](ctx, c, EndpointSummary, query)
	if err != nil {
		return nil, err
	}
	if data.Cards == nil {
		return nil, domain.NewMalformedResponseError(EndpointSummary, status)
	}
	return data.Cards, nil
}

// FetchTodayList returns today's sales and expenses. Missing arrays decode
// as empty lists.
func (c *Client) FetchTodayList(ctx context.Context) ([]domain.SalesEvent, []domain.ExpenseEvent, error) {
	data, _, err := get[todayListData](ctx, c, EndpointTodayList, nil)
	if err != nil {
		return nil, nil, err
	}
	sales := data.Sales
	if sales == nil {
		sales = []domain.SalesEvent{}
	}
	expenses := data.Expenses
	if expenses == nil {
		expenses = []domain.ExpenseEvent{}
	}
	return sales, expenses, nil
}

// FetchComparisonSeries returns today's and yesterday's hourly series
func (c *Client) FetchComparisonSeries(ctx context.Context) ([]domain.HourlyPoint, []domain.HourlyPoint, error) {
	data, _, err := get[comparisonData](ctx, c, EndpointComparison, nil)
	if err != nil {
		return nil, nil, err
	}
	today := data.Today
	if today == nil {
		today = []domain.HourlyPoint{}
	}
	yesterday := data.Yesterday
	if yesterday == nil {
		yesterday = []domain.HourlyPoint{}
	}
	return today, yesterday, nil
}

func get[T any](ctx context.Context, c *Client, endpoint string, query url.Values) (*T, int, error) {
	token := c.auth.CurrentToken()
	if token == "" {
		telemetry.APIRequestsTotal.WithLabelValues(endpoint, "auth_unavailable").Inc()
		return nil, 0, domain.ErrAuthUnavailable
	}

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "webapp.get")
	defer span.End()
	span.SetAttributes(attribute.String("webapp.endpoint", endpoint))

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	requestID := uuid.NewString()
	header := http.Header{}
	header.Set(telegram.HeaderInitData, token)
	header.Set("X-Request-ID", requestID)
	header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Get(ctx, target, header)
	telemetry.APIRequestLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Warn("Backend request failed",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, 0, c.fail(span, domain.NewAPIError(endpoint, 0, "", fmt.Errorf("GET %s: %w", endpoint, err)), "transport_error")
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var env envelope[T]
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err != nil {
		c.log.Warn("Failed to decode backend response",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, resp.StatusCode, c.fail(span, domain.NewAPIError(endpoint, resp.StatusCode, "", fmt.Errorf("status %d: %w", resp.StatusCode, err)), "http_error")
		}
		return nil, resp.StatusCode, c.fail(span, domain.NewMalformedResponseError(endpoint, resp.StatusCode), "malformed")
	}

	if !env.OK {
		c.log.Info("Backend returned error envelope",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.String("error", env.Error),
		)
		return nil, resp.StatusCode, c.fail(span, domain.NewAPIError(endpoint, resp.StatusCode, env.Error, nil), "api_error")
	}
	if env.Data == nil {
		return nil, resp.StatusCode, c.fail(span, domain.NewMalformedResponseError(endpoint, resp.StatusCode), "malformed")
	}

	telemetry.APIRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	c.log.Debug("Backend request completed",
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Duration("latency", time.Since(start)),
	)
	return env.Data, resp.StatusCode, nil
}

func (c *Client) fail(span trace.Span, err *domain.APIError, result string) error {
	telemetry.APIRequestsTotal.WithLabelValues(err.Endpoint, result).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Message)
	return err
}
