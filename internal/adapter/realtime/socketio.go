package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/adapter/telegram"
	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/observability/telemetry"
	"github.com/azimjon-95/totli-webapp/internal/ports"
)

const (
	TransportSocketIO = "socketio"

	DefaultSocketIOPath = "/socket.io/"
	DefaultRefreshEvent = "refresh"

	writeWait = 10 * time.Second
)

var errServerClosed = errors.New("server closed the connection")

// SocketIOConfig configures the Socket.IO transport
type SocketIOConfig struct {
	BaseURL          string
	Path             string
	Namespace        string
	Event            string
	HandshakeTimeout time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
}

func (c SocketIOConfig) withDefaults() SocketIOConfig {
	if c.Path == "" {
		c.Path = DefaultSocketIOPath
	}
	if c.Namespace == "" {
		c.Namespace = "/"
	}
	if c.Event == "" {
		c.Event = DefaultRefreshEvent
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = 30 * time.Second
		if c.ReconnectMax < c.ReconnectMin {
			c.ReconnectMax = c.ReconnectMin
		}
	}
	return c
}

// SocketIOSubscriber receives refresh events from a Socket.IO server over
// the websocket transport
type SocketIOSubscriber struct {
	cfg       SocketIOConfig
	auth      ports.AuthContext
	dialer    *websocket.Dialer
	log       *zap.Logger
	connected atomic.Bool
}

var _ ports.RealtimeSubscriber = (*SocketIOSubscriber)(nil)

// NewSocketIOSubscriber creates a subscriber for the server at cfg.BaseURL
func NewSocketIOSubscriber(cfg SocketIOConfig, auth ports.AuthContext, log *zap.Logger) *SocketIOSubscriber {
	cfg = cfg.withDefaults()
	return &SocketIOSubscriber{
		cfg:  cfg,
		auth: auth,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log: log,
	}
}

// Connected reports whether the Socket.IO session is currently established
func (s *SocketIOSubscriber) Connected() bool {
	return s.connected.Load()
}

// Start opens the channel and keeps it open, reconnecting with exponential
// backoff, until the returned subscription is stopped or ctx ends. It
// refuses to start without a session token.
func (s *SocketIOSubscriber) Start(ctx context.Context, onRefresh func()) (ports.Subscription, error) {
	if !s.auth.IsAvailable() {
		return nil, domain.ErrAuthUnavailable
	}
	target, err := s.endpoint()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &socketIOSubscription{
		subscriber: s,
		target:     target,
		d:          newDispatcher(TransportSocketIO, onRefresh),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go sub.run(ctx)

	s.log.Info("Realtime subscription started",
		zap.String("transport", TransportSocketIO),
		zap.String("url", target),
		zap.String("event", s.cfg.Event),
	)
	return sub, nil
}

// endpoint converts the API base URL into the Engine.IO websocket URL
func (s *SocketIOSubscriber) endpoint() (string, error) {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid realtime base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid realtime base url %q: unsupported scheme", s.cfg.BaseURL)
	}

	path := s.cfg.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = url.Values{
		"EIO":       {"4"},
		"transport": {"websocket"},
	}.Encode()
	return u.String(), nil
}

type socketIOSubscription struct {
	subscriber *SocketIOSubscriber
	target     string
	d          *dispatcher
	cancel     context.CancelFunc
	done       chan struct{}
	stopOnce   sync.Once
}

// Stop closes the channel and waits for the read loop to exit
func (sub *socketIOSubscription) Stop() {
	sub.stopOnce.Do(func() {
		sub.d.stop()
		sub.cancel()
		<-sub.done
		sub.subscriber.log.Info("Realtime subscription stopped", zap.String("transport", TransportSocketIO))
	})
}

func (sub *socketIOSubscription) run(ctx context.Context) {
	defer close(sub.done)
	s := sub.subscriber
	cfg := s.cfg

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ReconnectMin
	b.MaxInterval = cfg.ReconnectMax
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		if ctx.Err() != nil {
			return
		}

		var err error
		established := false
		if s.auth.IsAvailable() {
			established, err = sub.session(ctx)
		} else {
			err = domain.ErrAuthUnavailable
		}
		if ctx.Err() != nil {
			return
		}
		if established {
			b.Reset()
		}

		wait := b.NextBackOff()
		telemetry.RealtimeReconnectsTotal.WithLabelValues(TransportSocketIO).Inc()
		s.log.Warn("Realtime channel disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("retry_in", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one websocket connection until it fails. It reports whether
// the Socket.IO handshake completed.
func (sub *socketIOSubscription) session(ctx context.Context) (bool, error) {
	s := sub.subscriber
	cfg := s.cfg

	header := http.Header{}
	header.Set(telegram.HeaderInitData, s.auth.CurrentToken())

	conn, _, err := s.dialer.DialContext(ctx, sub.target, header)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	// closing the connection unblocks ReadMessage on Stop
	release := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer release()

	conn.SetReadDeadline(time.Now().Add(cfg.HandshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return false, fmt.Errorf("failed to read open packet: %w", err)
	}
	if len(msg) == 0 || msg[0] != eioOpen {
		return false, fmt.Errorf("unexpected first packet %q", truncate(msg))
	}
	open, err := decodeOpen(msg[1:])
	if err != nil {
		return false, err
	}

	if err := sub.write(conn, encodeConnect(cfg.Namespace)); err != nil {
		return false, fmt.Errorf("failed to send connect: %w", err)
	}

	established := false
	defer func() {
		if established {
			s.connected.Store(false)
			telemetry.RealtimeConnected.WithLabelValues(TransportSocketIO).Set(0)
		}
	}()

	for {
		deadline := open.readTimeout()
		if !established {
			deadline = cfg.HandshakeTimeout
		}
		conn.SetReadDeadline(time.Now().Add(deadline))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return established, fmt.Errorf("read failed: %w", err)
		}
		if len(msg) == 0 {
			continue
		}

		switch msg[0] {
		case eioPing:
			pong := append([]byte{eioPong}, msg[1:]...)
			if err := sub.write(conn, pong); err != nil {
				return established, fmt.Errorf("failed to send pong: %w", err)
			}
		case eioClose:
			return established, errServerClosed
		case eioMessage:
			p, err := decodeSocketPacket(msg[1:])
			if err != nil {
				s.log.Debug("Ignoring undecodable packet", zap.Error(err))
				continue
			}
			if p.Namespace != cfg.Namespace {
				continue
			}
			switch {
			case p.Type == sioConnect:
				if !established {
					established = true
					s.connected.Store(true)
					telemetry.RealtimeConnected.WithLabelValues(TransportSocketIO).Set(1)
					s.log.Info("Realtime channel connected",
						zap.String("sid", open.SID),
						zap.Duration("ping_interval", time.Duration(open.PingInterval)*time.Millisecond),
					)
				}
			case p.Type == sioConnectError:
				return established, fmt.Errorf("connect rejected: %s", string(p.Data))
			case p.Type == sioDisconnect:
				return established, errServerClosed
			case p.isEvent():
				name, err := p.eventName()
				if err != nil {
					s.log.Debug("Ignoring malformed event", zap.Error(err))
					continue
				}
				if name == cfg.Event {
					sub.d.fire()
				}
			}
		}
	}
}

func (sub *socketIOSubscription) write(conn *websocket.Conn, msg []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func truncate(b []byte) string {
	if len(b) > 64 {
		return string(b[:64]) + "..."
	}
	return string(b)
}
