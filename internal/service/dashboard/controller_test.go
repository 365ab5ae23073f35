package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/mocks"
	"github.com/azimjon-95/totli-webapp/internal/service/reconcile"
)

const testToken = "query_id=AAHdF6IQ&hash=abc"

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func testRange() domain.DateRange {
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	return domain.DateRange{From: day, To: day}
}

func cards(sold int64) *domain.SummaryCards {
	return &domain.SummaryCards{SoldTotal: decimal.NewFromInt(sold)}
}

func happyAPI() *mocks.MockDashboardAPI {
	created := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	return &mocks.MockDashboardAPI{
		FetchSummaryFunc: func(ctx context.Context, from, to time.Time) (*domain.SummaryCards, error) {
			return cards(1500000), nil
		},
		FetchTodayListFunc: func(ctx context.Context) ([]domain.SalesEvent, []domain.ExpenseEvent, error) {
			return []domain.SalesEvent{{OrderNo: "S-1", CreatedAt: created, PaidTotal: decimal.NewFromInt(45000)}},
				[]domain.ExpenseEvent{{OrderNo: "E-1", CreatedAt: created.Add(time.Minute), Amount: decimal.NewFromInt(12000), Title: "Un", CategoryKey: "raw"}},
				nil
		},
		FetchComparisonSeriesFunc: func(ctx context.Context) ([]domain.HourlyPoint, []domain.HourlyPoint, error) {
			return []domain.HourlyPoint{{Hour: domain.Hour(9), Value: decimal.NewFromInt(100)}},
				[]domain.HourlyPoint{{Hour: domain.Hour(10), Value: decimal.NewFromInt(30)}},
				nil
		},
	}
}

func TestRefresh_Success(t *testing.T) {
	// Arrange
	api := happyAPI()
	c := NewController(api, &mocks.MockAuthContext{Token: testToken}, nil, reconcile.DefaultFeedLimit, newTestLogger())

	// Act
	err := c.Refresh(context.Background(), testRange())

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	snap := c.Snapshot()
	if snap.IsLoading {
		t.Error("Expected loading flag cleared")
	}
	if snap.LastError != "" {
		t.Errorf("Expected no error, got %q", snap.LastError)
	}
	if snap.Cards == nil || !snap.Cards.SoldTotal.Equal(decimal.NewFromInt(1500000)) {
		t.Errorf("Unexpected cards %+v", snap.Cards)
	}
	if len(snap.Sales) != 1 || len(snap.Expenses) != 1 {
		t.Errorf("Expected 1 sale and 1 expense, got %d and %d", len(snap.Sales), len(snap.Expenses))
	}
	if len(snap.MergedSeries) != 2 {
		t.Errorf("Expected 2 merged points, got %d", len(snap.MergedSeries))
	}
	if len(snap.ActivityFeed) != 2 || snap.ActivityFeed[0].Kind != domain.ActivityKindExpense {
		t.Errorf("Expected expense first in feed, got %+v", snap.ActivityFeed)
	}
	if snap.Generation != 1 {
		t.Errorf("Expected generation 1, got %d", snap.Generation)
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be set")
	}
}

func TestRefresh_AuthUnavailable(t *testing.T) {
	// Arrange
	api := happyAPI()
	c := NewController(api, &mocks.MockAuthContext{}, nil, reconcile.DefaultFeedLimit, newTestLogger())

	// Act
	err := c.Refresh(context.Background(), testRange())

	// Assert
	if !errors.Is(err, domain.ErrAuthUnavailable) {
		t.Fatalf("Expected ErrAuthUnavailable, got %v", err)
	}
	if api.TotalCalls() != 0 {
		t.Errorf("Expected no network calls, got %d", api.TotalCalls())
	}
	snap := c.Snapshot()
	if snap.LastError != domain.ErrAuthUnavailable.Error() {
		t.Errorf("Unexpected LastError %q", snap.LastError)
	}
	if !errors.Is(snap.Err, domain.ErrAuthUnavailable) {
		t.Errorf("Expected snapshot error to match ErrAuthUnavailable, got %v", snap.Err)
	}
	if snap.IsLoading {
		t.Error("Expected loading flag cleared")
	}
}

func TestRefresh_PartialFailureKeepsEarlierSteps(t *testing.T) {
	// Arrange
	api := happyAPI()
	api.FetchTodayListFunc = func(ctx context.Context) ([]domain.SalesEvent, []domain.ExpenseEvent, error) {
		return nil, nil, domain.NewAPIError("/api/webapp/today/list", 500, "DB_DOWN", nil)
	}
	c := NewController(api, &mocks.MockAuthContext{Token: testToken}, nil, reconcile.DefaultFeedLimit, newTestLogger())

	// Act
	err := c.Refresh(context.Background(), testRange())

	// Assert
	if err == nil || err.Error() != "DB_DOWN" {
		t.Fatalf("Expected DB_DOWN, got %v", err)
	}
	snap := c.Snapshot()
	if snap.Cards == nil {
		t.Error("Expected summary cards from the first step to be kept")
	}
	if snap.LastError != "DB_DOWN" {
		t.Errorf("Expected LastError DB_DOWN, got %q", snap.LastError)
	}
	if snap.IsLoading {
		t.Error("Expected loading flag cleared")
	}
	if api.ComparisonCalls != 0 {
		t.Errorf("Expected comparison step skipped, got %d calls", api.ComparisonCalls)
	}
	if len(snap.ActivityFeed) != 0 || len(snap.MergedSeries) != 0 {
		t.Error("Expected derived data untouched")
	}
}

func TestRefresh_FailurePreservesPreviousData(t *testing.T) {
	api := happyAPI()
	c := NewController(api, &mocks.MockAuthContext{Token: testToken}, nil, reconcile.DefaultFeedLimit, newTestLogger())
	if err := c.Refresh(context.Background(), testRange()); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}

	api.FetchComparisonSeriesFunc = func(ctx context.Context) ([]domain.HourlyPoint, []domain.HourlyPoint, error) {
		return nil, nil, domain.NewMalformedResponseError("/api/webapp/chart/today-vs-yesterday", 200)
	}
	err := c.Refresh(context.Background(), testRange())

	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("Expected malformed response, got %v", err)
	}
	snap := c.Snapshot()
	if len(snap.MergedSeries) != 2 || len(snap.ActivityFeed) != 2 {
		t.Error("Expected previously displayed series and feed to be preserved")
	}
	if snap.LastError != domain.MalformedResponseMessage {
		t.Errorf("Unexpected LastError %q", snap.LastError)
	}

	// a later success clears the error
	api.FetchComparisonSeriesFunc = nil
	if err := c.Refresh(context.Background(), testRange()); err != nil {
		t.Fatalf("third refresh failed: %v", err)
	}
	if c.Snapshot().LastError != "" {
		t.Errorf("Expected error cleared, got %q", c.Snapshot().LastError)
	}
}

func TestRefresh_StaleCompletionDoesNotOverwrite(t *testing.T) {
	// Arrange
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls int32
	var mu sync.Mutex

	api := happyAPI()
	api.FetchSummaryFunc = func(ctx context.Context, from, to time.Time) (*domain.SummaryCards, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(entered)
			<-release
			return cards(1), nil
		}
		return cards(2), nil
	}
	c := NewController(api, &mocks.MockAuthContext{Token: testToken}, nil, reconcile.DefaultFeedLimit, newTestLogger())

	// Act
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.Refresh(context.Background(), testRange())
	}()
	<-entered

	if err := c.Refresh(context.Background(), testRange()); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	close(release)
	firstErr := <-firstDone

	// Assert
	if firstErr != nil {
		t.Errorf("Expected superseded refresh to return nil, got %v", firstErr)
	}
	snap := c.Snapshot()
	if !snap.Cards.SoldTotal.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected newer cards to win, got %s", snap.Cards.SoldTotal)
	}
	if snap.Generation != 2 {
		t.Errorf("Expected generation 2, got %d", snap.Generation)
	}
	if snap.IsLoading {
		t.Error("Expected loading flag cleared by the newer refresh")
	}
	if api.TodayListCalls != 1 {
		t.Errorf("Expected the stale refresh to stop early, got %d today-list calls", api.TodayListCalls)
	}
}

func TestRefresh_StaleErrorIsDropped(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	first := true
	var mu sync.Mutex

	api := happyAPI()
	api.FetchSummaryFunc = func(ctx context.Context, from, to time.Time) (*domain.SummaryCards, error) {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			close(entered)
			<-release
			return nil, domain.NewAPIError("/api/webapp/summary", 0, "", errors.New("timeout"))
		}
		return cards(2), nil
	}
	c := NewController(api, &mocks.MockAuthContext{Token: testToken}, nil, reconcile.DefaultFeedLimit, newTestLogger())

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background(), testRange()) }()
	<-entered
	if err := c.Refresh(context.Background(), testRange()); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	close(release)
	<-done

	if got := c.Snapshot().LastError; got != "" {
		t.Errorf("Expected stale error dropped, got %q", got)
	}
}

func TestOnChange_ReportsLoadingTransitions(t *testing.T) {
	c := NewController(happyAPI(), &mocks.MockAuthContext{Token: testToken}, nil, reconcile.DefaultFeedLimit, newTestLogger())

	var snaps []domain.Snapshot
	c.OnChange(func(s domain.Snapshot) {
		snaps = append(snaps, s)
	})

	if err := c.Refresh(context.Background(), testRange()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	// begin, summary, today list, derived data
	if len(snaps) != 4 {
		t.Fatalf("Expected 4 notifications, got %d", len(snaps))
	}
	if !snaps[0].IsLoading {
		t.Error("Expected first notification to report loading")
	}
	if snaps[len(snaps)-1].IsLoading {
		t.Error("Expected last notification to report loading cleared")
	}
}

func TestTrigger_RefreshesCurrentRange(t *testing.T) {
	var gotFrom time.Time
	var mu sync.Mutex
	api := happyAPI()
	api.FetchSummaryFunc = func(ctx context.Context, from, to time.Time) (*domain.SummaryCards, error) {
		mu.Lock()
		gotFrom = from
		mu.Unlock()
		return cards(1), nil
	}
	c := NewController(api, &mocks.MockAuthContext{Token: testToken}, nil, reconcile.DefaultFeedLimit, newTestLogger())

	rng := domain.DateRange{
		From: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	}
	if err := c.Refresh(context.Background(), rng); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	c.Trigger(context.Background(), "test")
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if !gotFrom.Equal(rng.From) {
		t.Errorf("Expected trigger to reuse range start %s, got %s", rng.From, gotFrom)
	}
	if c.Snapshot().Generation != 2 {
		t.Errorf("Expected generation 2, got %d", c.Snapshot().Generation)
	}
}

func TestTrigger_DefaultsToToday(t *testing.T) {
	var gotFrom time.Time
	var mu sync.Mutex
	api := happyAPI()
	api.FetchSummaryFunc = func(ctx context.Context, from, to time.Time) (*domain.SummaryCards, error) {
		mu.Lock()
		gotFrom = from
		mu.Unlock()
		return cards(1), nil
	}
	c := NewController(api, &mocks.MockAuthContext{Token: testToken}, nil, reconcile.DefaultFeedLimit, newTestLogger())
	c.now = func() time.Time { return time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC) }

	c.Trigger(context.Background(), "test")
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if gotFrom.Format(domain.DateLayout) != "2026-10-16" {
		t.Errorf("Expected today's date, got %s", gotFrom.Format(domain.DateLayout))
	}
}

func TestTrigger_RealtimeSignalsRunFullRefreshes(t *testing.T) {
	// Arrange
	api := happyAPI()
	c := NewController(api, &mocks.MockAuthContext{Token: testToken}, nil, reconcile.DefaultFeedLimit, newTestLogger())
	sub := &mocks.MockRealtimeSubscriber{}
	ctx := context.Background()
	subscription, err := sub.Start(ctx, func() { c.Trigger(ctx, "realtime") })
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Act
	for i := 0; i < 2; i++ {
		if !sub.Fire() {
			t.Fatalf("signal %d not delivered", i)
		}
		c.Wait()
	}

	// Assert
	if api.TotalCalls() != 6 {
		t.Errorf("Expected two full refreshes (6 calls), got %d", api.TotalCalls())
	}
	snap := c.Snapshot()
	if snap.Generation != 2 || snap.IsLoading || snap.LastError != "" {
		t.Errorf("Unexpected snapshot generation=%d loading=%v error=%q", snap.Generation, snap.IsLoading, snap.LastError)
	}

	subscription.Stop()
	if sub.Fire() {
		t.Error("Expected no delivery after Stop")
	}
	c.Wait()
	if api.TotalCalls() != 6 {
		t.Errorf("Expected no calls after Stop, got %d", api.TotalCalls())
	}
}
