package main

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/infrastructure/scheduler"
	"github.com/azimjon-95/totli-webapp/internal/ports"
	"github.com/azimjon-95/totli-webapp/internal/service/dashboard"
)

const resyncJobName = "dashboard-resync"

// syncLoops owns the background refresh sources: the realtime subscription
// and the periodic resync job. Without a session token the subscription is
// deferred; each resync tick retries it, so a token that shows up later is
// picked up.
type syncLoops struct {
	controller *dashboard.Controller
	auth       ports.AuthContext
	subscriber ports.RealtimeSubscriber // nil when realtime is disabled
	schedule   string
	log        *zap.Logger

	ctx          context.Context
	sched        *scheduler.Service
	mu           sync.Mutex
	subscription ports.Subscription
	stopped      bool
}

// start registers the resync job before anything can trigger a refresh, so
// a failure here leaves nothing running.
func (s *syncLoops) start(ctx context.Context) error {
	s.ctx = ctx

	if s.schedule != "" {
		sched, err := scheduler.NewService(s.log)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		if _, err := sched.AddJob(resyncJobName, s.schedule, s.resync); err != nil {
			_ = sched.Stop()
			return fmt.Errorf("failed to schedule resync: %w", err)
		}
		s.sched = sched
	}

	s.subscribe()
	if s.sched != nil {
		s.sched.Start()
	}
	return nil
}

func (s *syncLoops) resync() {
	s.subscribe()
	s.controller.Trigger(s.ctx, "resync")
}

func (s *syncLoops) subscribe() {
	if s.subscriber == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.subscription != nil {
		return
	}
	if !s.auth.IsAvailable() {
		s.log.Debug("Realtime subscription deferred: no session token")
		return
	}

	sub, err := s.subscriber.Start(s.ctx, func() {
		s.controller.Trigger(s.ctx, "realtime")
	})
	if err != nil {
		s.log.Error("Failed to start realtime subscription", zap.Error(err))
		return
	}
	s.subscription = sub
	s.log.Info("Realtime subscription started")
}

// stop halts both sources, then waits for the refreshes they started
func (s *syncLoops) stop() {
	if s.sched != nil {
		if err := s.sched.Stop(); err != nil {
			s.log.Warn("Scheduler shutdown failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.stopped = true
	sub := s.subscription
	s.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}

	s.controller.Wait()
}
