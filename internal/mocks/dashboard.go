package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/ports"
)

// MockAuthContext is a mock implementation of AuthContext
type MockAuthContext struct {
	Token string
}

func (m *MockAuthContext) CurrentToken() string {
	return m.Token
}

func (m *MockAuthContext) IsAvailable() bool {
	return m.Token != ""
}

// MockDashboardAPI is a mock implementation of DashboardAPI
type MockDashboardAPI struct {
	FetchSummaryFunc          func(ctx context.Context, from, to time.Time) (*domain.SummaryCards, error)
	FetchTodayListFunc        func(ctx context.Context) ([]domain.SalesEvent, []domain.ExpenseEvent, error)
	FetchComparisonSeriesFunc func(ctx context.Context) ([]domain.HourlyPoint, []domain.HourlyPoint, error)

	SummaryCalls    int32
	TodayListCalls  int32
	ComparisonCalls int32
}

func (m *MockDashboardAPI) FetchSummary(ctx context.Context, from, to time.Time) (*domain.SummaryCards, error) {
	atomic.AddInt32(&m.SummaryCalls, 1)
	if m.FetchSummaryFunc != nil {
		return m.FetchSummaryFunc(ctx, from, to)
	}
	return &domain.SummaryCards{}, nil
}

func (m *MockDashboardAPI) FetchTodayList(ctx context.Context) ([]domain.SalesEvent, []domain.ExpenseEvent, error) {
	atomic.AddInt32(&m.TodayListCalls, 1)
	if m.FetchTodayListFunc != nil {
		return m.FetchTodayListFunc(ctx)
	}
	return []domain.SalesEvent{}, []domain.ExpenseEvent{}, nil
}

func (m *MockDashboardAPI) FetchComparisonSeries(ctx context.Context) ([]domain.HourlyPoint, []domain.HourlyPoint, error) {
	atomic.AddInt32(&m.ComparisonCalls, 1)
	if m.FetchComparisonSeriesFunc != nil {
		return m.FetchComparisonSeriesFunc(ctx)
	}
	return []domain.HourlyPoint{}, []domain.HourlyPoint{}, nil
}

// TotalCalls returns the number of API calls made across all endpoints
func (m *MockDashboardAPI) TotalCalls() int {
	return int(atomic.LoadInt32(&m.SummaryCalls) + atomic.LoadInt32(&m.TodayListCalls) + atomic.LoadInt32(&m.ComparisonCalls))
}

// MockRealtimeSubscriber is a mock implementation of RealtimeSubscriber.
// Fire delivers a refresh signal to the active callback.
type MockRealtimeSubscriber struct {
	StartFunc func(ctx context.Context, onRefresh func()) (ports.Subscription, error)

	StartCalls int32

	mu        sync.Mutex
	onRefresh func()
	stopped   bool
}

func (m *MockRealtimeSubscriber) Start(ctx context.Context, onRefresh func()) (ports.Subscription, error) {
	atomic.AddInt32(&m.StartCalls, 1)
	if m.StartFunc != nil {
		return m.StartFunc(ctx, onRefresh)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRefresh = onRefresh
	m.stopped = false
	return m, nil
}

func (m *MockRealtimeSubscriber) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.onRefresh = nil
}

// Fire invokes the callback once. It reports false once stopped.
func (m *MockRealtimeSubscriber) Fire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.onRefresh == nil {
		return false
	}
	m.onRefresh()
	return true
}

// Stopped reports whether Stop has been called
func (m *MockRealtimeSubscriber) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
