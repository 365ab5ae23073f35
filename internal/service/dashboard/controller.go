// Package dashboard owns the dashboard state and drives the sync cycle
package dashboard

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/observability/telemetry"
	"github.com/azimjon-95/totli-webapp/internal/ports"
	"github.com/azimjon-95/totli-webapp/internal/service/reconcile"
)

// Controller holds the dashboard state and refreshes it from the backend.
//
// Every Refresh takes a generation number when it starts. Results, errors and
// the loading flag are applied only while that generation is still the newest
// one started, so a slow call finishing late never overwrites a newer one.
type Controller struct {
	api       ports.DashboardAPI
	auth      ports.AuthContext
	formatter *reconcile.Formatter
	feedLimit int
	log       *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	generation uint64
	state      domain.Snapshot
	listeners  []func(domain.Snapshot)

	// held while listeners run so snapshots are delivered in apply order
	notifyMu sync.Mutex

	wg sync.WaitGroup
}

var _ ports.DashboardService = (*Controller)(nil)

// NewController creates a controller. feedLimit is passed to the feed
// builder unchanged; a nil formatter uses reconcile.DefaultFormatter.
func NewController(api ports.DashboardAPI, auth ports.AuthContext, formatter *reconcile.Formatter, feedLimit int, log *zap.Logger) *Controller {
	if formatter == nil {
		formatter = reconcile.DefaultFormatter()
	}
	return &Controller{
		api:       api,
		auth:      auth,
		formatter: formatter,
		feedLimit: feedLimit,
		log:       log,
		now:       time.Now,
		state: domain.Snapshot{
			Sales:        []domain.SalesEvent{},
			Expenses:     []domain.ExpenseEvent{},
			MergedSeries: []domain.MergedHourlyPoint{},
			ActivityFeed: []domain.ActivityItem{},
		},
	}
}

// OnChange registers a listener called with a fresh snapshot after every
// applied state change. Listeners run one at a time in apply order and must
// not call back into the controller.
func (c *Controller) OnChange(fn func(domain.Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Snapshot returns a copy of the current state. Slices in the copy are
// shared with the controller and must not be modified.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Refresh resynchronizes every feed for the given range. It returns the error
// recorded in LastError, or nil when the call succeeded or was superseded by
// a newer one.
func (c *Controller) Refresh(ctx context.Context, rng domain.DateRange) error {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "dashboard.refresh")
	defer span.End()

	start := time.Now()
	telemetry.RefreshInFlight.Inc()
	defer func() {
		telemetry.RefreshInFlight.Dec()
		telemetry.RefreshDuration.Observe(time.Since(start).Seconds())
	}()

	gen := c.begin(rng)
	span.SetAttributes(
		attribute.Int64("dashboard.generation", int64(gen)),
		attribute.String("dashboard.range", rng.String()),
	)

	if !c.auth.IsAvailable() {
		c.log.Warn("Refresh refused: no session token", zap.Uint64("generation", gen))
		span.SetStatus(codes.Error, domain.ErrAuthUnavailable.Error())
		return c.fail(gen, domain.ErrAuthUnavailable)
	}

	cards, err := c.api.FetchSummary(ctx, rng.From, rng.To)
	if err != nil {
		span.RecordError(err)
		return c.fail(gen, err)
	}
	if !c.apply(gen, func(s *domain.Snapshot) { s.Cards = cards }) {
		return c.superseded(gen)
	}

	sales, expenses, err := c.api.FetchTodayList(ctx)
	if err != nil {
		span.RecordError(err)
		return c.fail(gen, err)
	}
	if !c.apply(gen, func(s *domain.Snapshot) {
		s.Sales = sales
		s.Expenses = expenses
	}) {
		return c.superseded(gen)
	}

	today, yesterday, err := c.api.FetchComparisonSeries(ctx)
	if err != nil {
		span.RecordError(err)
		return c.fail(gen, err)
	}

	merged := reconcile.MergeHourly(today, yesterday)
	feed := reconcile.BuildFeed(sales, expenses, c.feedLimit, c.formatter)

	if !c.apply(gen, func(s *domain.Snapshot) {
		s.MergedSeries = merged
		s.ActivityFeed = feed
		s.IsLoading = false
		s.UpdatedAt = c.now()
	}) {
		return c.superseded(gen)
	}

	telemetry.RefreshTotal.WithLabelValues("ok").Inc()
	c.log.Info("Dashboard refreshed",
		zap.Uint64("generation", gen),
		zap.String("range", rng.String()),
		zap.Int("sales", len(sales)),
		zap.Int("expenses", len(expenses)),
		zap.Int("feed", len(feed)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Trigger starts a refresh of the current range in the background. It is
// the callback handed to the realtime subscriber and the resync job.
func (c *Controller) Trigger(ctx context.Context, source string) {
	rng := c.currentRange()
	c.log.Debug("Refresh triggered", zap.String("source", source), zap.String("range", rng.String()))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.Refresh(ctx, rng)
	}()
}

// Wait blocks until every refresh started by Trigger has returned
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) currentRange() domain.DateRange {
	c.mu.Lock()
	rng := c.state.Range
	c.mu.Unlock()

	if rng.From.IsZero() {
		return domain.TodayRange(c.now().In(c.formatter.Location()))
	}
	return rng
}

func (c *Controller) begin(rng domain.DateRange) uint64 {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.state.Generation = gen
	c.state.Range = rng
	c.state.IsLoading = true
	c.state.LastError = ""
	c.state.Err = nil
	c.publishLocked()
	return gen
}

// apply runs fn against the state if gen is still current. It reports false
// when a newer refresh has started.
func (c *Controller) apply(gen uint64, fn func(s *domain.Snapshot)) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	c.publishLocked()
	return true
}

func (c *Controller) fail(gen uint64, err error) error {
	applied := c.apply(gen, func(s *domain.Snapshot) {
		s.LastError = err.Error()
		s.Err = err
		s.IsLoading = false
	})
	if !applied {
		return c.superseded(gen)
	}

	telemetry.RefreshTotal.WithLabelValues("error").Inc()
	c.log.Warn("Dashboard refresh failed",
		zap.Uint64("generation", gen),
		zap.Error(err),
	)
	return err
}

func (c *Controller) superseded(gen uint64) error {
	telemetry.RefreshTotal.WithLabelValues("superseded").Inc()
	c.log.Debug("Refresh superseded by a newer one", zap.Uint64("generation", gen))
	return nil
}

// publishLocked must be called with c.mu held; it releases c.mu.
func (c *Controller) publishLocked() {
	snap := c.state
	listeners := c.listeners
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
