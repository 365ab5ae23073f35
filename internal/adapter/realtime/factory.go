package realtime

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/ports"
)

// Settings selects and configures a transport
type Settings struct {
	Transport string
	SocketIO  SocketIOConfig

	NATSURL           string
	NATSSubject       string
	NATSReconnectWait time.Duration
	ClientName        string

	RedisURL     string
	RedisChannel string
}

// Subscriber is a realtime subscriber owning its connection
type Subscriber interface {
	ports.RealtimeSubscriber
	Connected() bool
	Close() error
}

// New builds the subscriber for settings.Transport. NATS and Redis
// connections are established here; the Socket.IO transport dials on Start.
func New(settings Settings, auth ports.AuthContext, log *zap.Logger) (Subscriber, error) {
	switch settings.Transport {
	case "", TransportSocketIO:
		return socketIOCloser{NewSocketIOSubscriber(settings.SocketIO, auth, log)}, nil

	case TransportNATS:
		nc, err := ConnectNATS(settings.NATSURL, settings.ClientName, settings.NATSReconnectWait, log)
		if err != nil {
			return nil, err
		}
		return natsCloser{NewNATSSubscriber(nc, settings.NATSSubject, auth, log)}, nil

	case TransportRedis:
		client, err := ConnectRedis(settings.RedisURL, log)
		if err != nil {
			return nil, err
		}
		return redisCloser{NewRedisSubscriber(client, settings.RedisChannel, auth, log)}, nil

	default:
		return nil, fmt.Errorf("unknown realtime transport %q", settings.Transport)
	}
}

type socketIOCloser struct {
	*SocketIOSubscriber
}

func (socketIOCloser) Close() error { return nil }

type natsCloser struct {
	*NATSSubscriber
}

func (n natsCloser) Close() error {
	return n.conn.Drain()
}

type redisCloser struct {
	*RedisSubscriber
}

func (r redisCloser) Close() error {
	return r.client.Close()
}
