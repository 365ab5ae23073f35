package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/ports"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness response
type ReadyResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker defines a health check function
type Checker func(ctx context.Context) CheckResult

// Service handles health checks
type Service struct {
	startTime time.Time
	version   string
	checkers  map[string]Checker
	log       *zap.Logger
	mu        sync.RWMutex
}

// NewService creates a new health service
func NewService(version string, log *zap.Logger) *Service {
	return &Service{
		startTime: time.Now(),
		version:   version,
		checkers:  make(map[string]Checker),
		log:       log,
	}
}

// RegisterChecker registers a health checker
func (s *Service) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.log.Info("Registered health checker", zap.String("name", name))
}

// Health performs a basic liveness check
func (s *Service) Health(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now(),
	}
}

// Ready runs every checker concurrently. Degraded checks keep the service
// ready; any unhealthy check makes it not ready.
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for k, v := range s.checkers {
		checkers[k] = v
	}
	s.mu.RUnlock()

	results := make(map[string]CheckResult)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			start := time.Now()
			result := checker(checkCtx)
			result.Name = name
			result.Duration = time.Since(start)
			result.Timestamp = time.Now()

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}

	wg.Wait()

	overallStatus := StatusHealthy
	allReady := true

	for _, result := range results {
		if result.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			allReady = false
		} else if result.Status == StatusDegraded && overallStatus != StatusUnhealthy {
			overallStatus = StatusDegraded
		}
	}

	return &ReadyResponse{
		Ready:     allReady,
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// SessionChecker is unhealthy while no session token is present
func SessionChecker(auth ports.AuthContext) Checker {
	return func(ctx context.Context) CheckResult {
		if !auth.IsAvailable() {
			return CheckResult{Status: StatusUnhealthy, Message: domain.ErrAuthUnavailable.Error()}
		}
		return CheckResult{Status: StatusHealthy, Message: "token present"}
	}
}

// RealtimeChecker is degraded while the push channel is down. Data still
// arrives through manual and scheduled refreshes.
func RealtimeChecker(connected func() bool) Checker {
	return func(ctx context.Context) CheckResult {
		if !connected() {
			return CheckResult{Status: StatusDegraded, Message: "realtime channel disconnected"}
		}
		return CheckResult{Status: StatusHealthy, Message: "connected"}
	}
}

// DashboardChecker reports the outcome of the most recent refresh
func DashboardChecker(snapshot func() domain.Snapshot) Checker {
	return func(ctx context.Context) CheckResult {
		snap := snapshot()
		switch {
		case snap.LastError != "":
			return CheckResult{Status: StatusDegraded, Message: snap.LastError}
		case snap.UpdatedAt.IsZero():
			return CheckResult{Status: StatusDegraded, Message: "no successful refresh yet"}
		default:
			return CheckResult{Status: StatusHealthy, Message: "updated " + snap.UpdatedAt.Format(time.RFC3339)}
		}
	}
}
