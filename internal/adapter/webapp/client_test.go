package webapp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/adapter/telegram"
	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/infrastructure/circuitbreaker"
)

const testToken = "query_id=AAHdF6IQ&user=%7B%22id%22%3A1%7D&auth_date=1700000000&hash=abc"

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	bridge := telegram.NewBridge(telegram.StaticSource(testToken))
	return NewClient(server.URL+"/", nil, bridge, zap.NewNop()), &hits
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestFetchSummary_Success(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != EndpointSummary {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("from"); got != "2026-10-01" {
			t.Errorf("expected from=2026-10-01, got %s", got)
		}
		if got := r.URL.Query().Get("to"); got != "2026-10-16" {
			t.Errorf("expected to=2026-10-16, got %s", got)
		}
		if got := r.Header.Get(telegram.HeaderInitData); got != testToken {
			t.Errorf("expected init data header, got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected request id header")
		}
		writeJSON(w, http.StatusOK, `{"ok":true,"data":{"cards":{
			"soldTotal":1500000,"salePaid":1200000,"expenseSum":"250000.50",
			"customerDebt":300000,"supplierDebt":0,"balance":949999.5}}}`)
	})

	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	// Act
	cards, err := client.FetchSummary(context.Background(), from, to)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !cards.SoldTotal.Equal(decimal.NewFromInt(1500000)) {
		t.Errorf("unexpected soldTotal %s", cards.SoldTotal)
	}
	if !cards.ExpenseSum.Equal(decimal.RequireFromString("250000.5")) {
		t.Errorf("unexpected expenseSum %s", cards.ExpenseSum)
	}
	if !cards.Balance.Equal(decimal.RequireFromString("949999.5")) {
		t.Errorf("unexpected balance %s", cards.Balance)
	}
}

func TestFetchSummary_ErrorEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"ok":false,"error":"BAD_INIT_DATA"}`)
	})

	_, err := client.FetchSummary(context.Background(), time.Now(), time.Now())

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "BAD_INIT_DATA" {
		t.Errorf("expected server message, got %q", apiErr.Message)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.Status)
	}
	if err.Error() != "BAD_INIT_DATA" {
		t.Errorf("expected Error() to return the server message, got %q", err.Error())
	}
}

func TestFetchSummary_ErrorEnvelopeWithoutMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ok":false}`)
	})

	_, err := client.FetchSummary(context.Background(), time.Now(), time.Now())

	if err == nil || err.Error() != domain.APIErrorFallback {
		t.Fatalf("expected fallback message %q, got %v", domain.APIErrorFallback, err)
	}
}

func TestFetchSummary_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing data", `{"ok":true}`},
		{"null data", `{"ok":true,"data":null}`},
		{"missing cards", `{"ok":true,"data":{}}`},
		{"not json", `<html>gateway</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})

			_, err := client.FetchSummary(context.Background(), time.Now(), time.Now())

			if !errors.Is(err, domain.ErrMalformedResponse) {
				t.Fatalf("expected malformed response, got %v", err)
			}
			if !domain.IsAPIError(err) {
				t.Error("malformed response must surface as an APIError")
			}
		})
	}
}

func TestFetch_ServerErrorWithEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"ok":false,"error":"DB_DOWN"}`)
	})

	_, _, err := client.FetchTodayList(context.Background())

	if err == nil || err.Error() != "DB_DOWN" {
		t.Fatalf("expected DB_DOWN, got %v", err)
	}
}

func TestFetch_ServerErrorWithoutEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `bad gateway`)
	})

	_, _, err := client.FetchComparisonSeries(context.Background())

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != domain.APIErrorFallback || apiErr.Status != http.StatusBadGateway {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestFetch_NoTokenIssuesNoRequest(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, telegram.NewBridge(telegram.StaticSource("")), zap.NewNop())

	_, err := client.FetchSummary(context.Background(), time.Now(), time.Now())
	if !errors.Is(err, domain.ErrAuthUnavailable) {
		t.Errorf("summary: expected ErrAuthUnavailable, got %v", err)
	}
	_, _, err = client.FetchTodayList(context.Background())
	if !errors.Is(err, domain.ErrAuthUnavailable) {
		t.Errorf("today list: expected ErrAuthUnavailable, got %v", err)
	}
	_, _, err = client.FetchComparisonSeries(context.Background())
	if !errors.Is(err, domain.ErrAuthUnavailable) {
		t.Errorf("comparison: expected ErrAuthUnavailable, got %v", err)
	}

	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("expected no requests, got %d", hits)
	}
}

func TestFetch_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, nil, telegram.NewBridge(telegram.StaticSource(testToken)), zap.NewNop())

	_, _, err := client.FetchTodayList(context.Background())

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != domain.APIErrorFallback {
		t.Errorf("expected generic message, got %q", apiErr.Message)
	}
	if apiErr.Unwrap() == nil {
		t.Error("expected transport cause to be wrapped")
	}
}

func TestFetch_OpenCircuitIsAPIError(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusServiceUnavailable, `{"ok":false,"error":"MAINTENANCE"}`)
	}))
	defer server.Close()

	settings := circuitbreaker.DefaultHTTPClientSettings("webapp-test")
	settings.FailureThreshold = 1
	settings.BreakerTimeout = time.Minute
	httpClient := circuitbreaker.NewHTTPClientWithSettings(settings, zap.NewNop())
	client := NewClient(server.URL, httpClient, telegram.NewBridge(telegram.StaticSource(testToken)), zap.NewNop())

	_, _, err := client.FetchTodayList(context.Background())
	if err == nil || err.Error() != "MAINTENANCE" {
		t.Fatalf("expected MAINTENANCE, got %v", err)
	}

	_, _, err = client.FetchTodayList(context.Background())
	if !circuitbreaker.IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if !domain.IsAPIError(err) {
		t.Error("open circuit must surface as an APIError")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected one request to reach the server, got %d", hits)
	}
}

func TestFetchTodayList_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != EndpointTodayList {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"ok":true,"data":{
			"sales":[{"orderNo":"S-101","createdAt":"2026-10-16T09:15:00.000Z","paidTotal":45000,"items":[{"productId":"p1"},{"productId":"p2"}]}],
			"expenses":[{"orderNo":"E-7","createdAt":"2026-10-16T10:00:00Z","amount":"12000","title":"Un","categoryKey":"raw"}]}}`)
	})

	sales, expenses, err := client.FetchTodayList(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(sales) != 1 || len(expenses) != 1 {
		t.Fatalf("expected 1 sale and 1 expense, got %d and %d", len(sales), len(expenses))
	}
	if sales[0].OrderNo != "S-101" || sales[0].ItemCount() != 2 {
		t.Errorf("unexpected sale %+v", sales[0])
	}
	if !sales[0].CreatedAt.Equal(time.Date(2026, 10, 16, 9, 15, 0, 0, time.UTC)) {
		t.Errorf("unexpected createdAt %s", sales[0].CreatedAt)
	}
	if expenses[0].CategoryKey != "raw" || !expenses[0].Amount.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("unexpected expense %+v", expenses[0])
	}
}

func TestFetchTodayList_MissingArraysAreEmpty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ok":true,"data":{}}`)
	})

	sales, expenses, err := client.FetchTodayList(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sales == nil || expenses == nil || len(sales) != 0 || len(expenses) != 0 {
		t.Errorf("expected empty non-nil lists, got %v %v", sales, expenses)
	}
}

func TestFetchComparisonSeries_MixedHourLabels(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != EndpointComparison {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"ok":true,"data":{
			"today":[{"hour":9,"value":100},{"hour":"10","value":50}],
			"yesterday":[{"hour":"09","value":30}]}}`)
	})

	today, yesterday, err := client.FetchComparisonSeries(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(today) != 2 || len(yesterday) != 1 {
		t.Fatalf("unexpected lengths %d %d", len(today), len(yesterday))
	}
	if today[0].Hour != domain.Hour(9) || today[1].Hour != domain.Hour(10) {
		t.Errorf("unexpected today hours %v %v", today[0].Hour, today[1].Hour)
	}
	if yesterday[0].Hour != domain.Hour(9) {
		t.Errorf("expected \"09\" to canonicalise to 9, got %v", yesterday[0].Hour)
	}
}
