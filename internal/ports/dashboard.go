package ports

import (
	"context"
	"time"

	"github.com/azimjon-95/totli-webapp/internal/domain"
)

// AuthContext exposes the host-supplied session token. Implementations must
// read the token fresh on every call.
type AuthContext interface {
	CurrentToken() string
	IsAvailable() bool
}

// DashboardAPI is the backend read API
type DashboardAPI interface {
	FetchSummary(ctx context.Context, from, to time.Time) (*domain.SummaryCards, error)
	FetchTodayList(ctx context.Context) ([]domain.SalesEvent, []domain.ExpenseEvent, error)
	FetchComparisonSeries(ctx context.Context) (today, yesterday []domain.HourlyPoint, err error)
}

// RealtimeSubscriber opens a persistent channel that delivers refresh signals
type RealtimeSubscriber interface {
	Start(ctx context.Context, onRefresh func()) (Subscription, error)
}

// Subscription releases a realtime channel. Stop is idempotent and no
// refresh callback runs after it returns. Stop must not be called from
// inside the refresh callback.
type Subscription interface {
	Stop()
}

// DashboardService is the state controller as seen by the presentation layer
type DashboardService interface {
	Refresh(ctx context.Context, rng domain.DateRange) error
	Snapshot() domain.Snapshot
}
