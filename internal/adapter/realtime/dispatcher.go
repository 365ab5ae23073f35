// Package realtime delivers backend "refresh" signals over a persistent
// channel. The default transport is Socket.IO over websocket; NATS and
// Redis pub/sub are available for deployments that fan out through a broker.
package realtime

import (
	"sync"

	"github.com/azimjon-95/totli-webapp/internal/observability/telemetry"
)

// dispatcher serializes refresh callbacks and gates them on stop. The
// callback runs under mu, so once stop returns no callback is running and
// none will start.
type dispatcher struct {
	mu        sync.Mutex
	stopped   bool
	onRefresh func()
	transport string
}

func newDispatcher(transport string, onRefresh func()) *dispatcher {
	return &dispatcher{
		onRefresh: onRefresh,
		transport: transport,
	}
}

// fire invokes the callback once. It reports false after stop.
func (d *dispatcher) fire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	telemetry.RealtimeSignalsTotal.WithLabelValues(d.transport).Inc()
	d.onRefresh()
	return true
}

// stop reports whether this call performed the transition
func (d *dispatcher) stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	d.stopped = true
	return true
}
