package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/observability/telemetry"
	"github.com/azimjon-95/totli-webapp/internal/ports"
)

const (
	TransportNATS = "nats"

	DefaultNATSSubject = "webapp.refresh"
)

// ConnectNATS dials the server with unlimited reconnects. Connection state
// changes are logged and exported as the realtime connected gauge.
func ConnectNATS(url, name string, reconnectWait time.Duration, log *zap.Logger) (*nats.Conn, error) {
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			telemetry.RealtimeConnected.WithLabelValues(TransportNATS).Set(0)
			log.Warn("Disconnected from NATS", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			telemetry.RealtimeConnected.WithLabelValues(TransportNATS).Set(1)
			telemetry.RealtimeReconnectsTotal.WithLabelValues(TransportNATS).Inc()
			log.Info("Reconnected to NATS", zap.String("url", c.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			telemetry.RealtimeConnected.WithLabelValues(TransportNATS).Set(0)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	telemetry.RealtimeConnected.WithLabelValues(TransportNATS).Set(1)
	log.Info("Successfully connected to NATS", zap.String("url", url))
	return nc, nil
}

// NATSSubscriber treats every message on a subject as a refresh signal
type NATSSubscriber struct {
	conn    *nats.Conn
	subject string
	auth    ports.AuthContext
	log     *zap.Logger
}

var _ ports.RealtimeSubscriber = (*NATSSubscriber)(nil)

func NewNATSSubscriber(conn *nats.Conn, subject string, auth ports.AuthContext, log *zap.Logger) *NATSSubscriber {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSSubscriber{
		conn:    conn,
		subject: subject,
		auth:    auth,
		log:     log,
	}
}

// Connected reports whether the underlying NATS connection is up
func (s *NATSSubscriber) Connected() bool {
	return s.conn.IsConnected()
}

// Start subscribes to the subject. Messages on one subscription are
// delivered one at a time, so callbacks are serialized.
func (s *NATSSubscriber) Start(ctx context.Context, onRefresh func()) (ports.Subscription, error) {
	if !s.auth.IsAvailable() {
		return nil, domain.ErrAuthUnavailable
	}

	d := newDispatcher(TransportNATS, onRefresh)
	natsSub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		d.fire()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	sub := &natsSubscription{d: d, sub: natsSub, subject: s.subject, log: s.log}
	stopOnDone(ctx, sub)

	s.log.Info("Realtime subscription started",
		zap.String("transport", TransportNATS),
		zap.String("subject", s.subject),
	)
	return sub, nil
}

type natsSubscription struct {
	d        *dispatcher
	sub      *nats.Subscription
	subject  string
	log      *zap.Logger
	stopOnce sync.Once
}

func (n *natsSubscription) Stop() {
	n.stopOnce.Do(func() {
		n.d.stop()
		if err := n.sub.Unsubscribe(); err != nil {
			n.log.Warn("Failed to unsubscribe", zap.String("subject", n.subject), zap.Error(err))
		}
		n.log.Info("Realtime subscription stopped", zap.String("transport", TransportNATS))
	})
}

// stopOnDone stops sub when ctx ends
func stopOnDone(ctx context.Context, sub ports.Subscription) {
	context.AfterFunc(ctx, sub.Stop)
}
