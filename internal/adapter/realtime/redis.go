package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/observability/telemetry"
	"github.com/azimjon-95/totli-webapp/internal/ports"
)

const (
	TransportRedis = "redis"

	DefaultRedisChannel = "webapp:refresh"
)

// ConnectRedis parses url and verifies the server answers PING
func ConnectRedis(url string, log *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Successfully connected to Redis", zap.String("addr", opts.Addr))
	return client, nil
}

// RedisSubscriber treats every message on a pub/sub channel as a refresh
// signal. go-redis resubscribes on its own after a dropped connection.
type RedisSubscriber struct {
	client  *redis.Client
	channel string
	auth    ports.AuthContext
	log     *zap.Logger
}

var _ ports.RealtimeSubscriber = (*RedisSubscriber)(nil)

func NewRedisSubscriber(client *redis.Client, channel string, auth ports.AuthContext, log *zap.Logger) *RedisSubscriber {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSubscriber{
		client:  client,
		channel: channel,
		auth:    auth,
		log:     log,
	}
}

// Connected reports whether Redis answers PING
func (s *RedisSubscriber) Connected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

func (s *RedisSubscriber) Start(ctx context.Context, onRefresh func()) (ports.Subscription, error) {
	if !s.auth.IsAvailable() {
		return nil, domain.ErrAuthUnavailable
	}

	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	telemetry.RealtimeConnected.WithLabelValues(TransportRedis).Set(1)

	sub := &redisSubscription{
		d:      newDispatcher(TransportRedis, onRefresh),
		pubsub: pubsub,
		log:    s.log,
		done:   make(chan struct{}),
	}
	go sub.run(pubsub.Channel())
	stopOnDone(ctx, sub)

	s.log.Info("Realtime subscription started",
		zap.String("transport", TransportRedis),
		zap.String("channel", s.channel),
	)
	return sub, nil
}

type redisSubscription struct {
	d        *dispatcher
	pubsub   *redis.PubSub
	log      *zap.Logger
	done     chan struct{}
	stopOnce sync.Once
}

func (r *redisSubscription) run(ch <-chan *redis.Message) {
	defer close(r.done)
	for range ch {
		r.d.fire()
	}
}

func (r *redisSubscription) Stop() {
	r.stopOnce.Do(func() {
		r.d.stop()
		if err := r.pubsub.Close(); err != nil {
			r.log.Warn("Failed to close redis subscription", zap.Error(err))
		}
		<-r.done
		telemetry.RealtimeConnected.WithLabelValues(TransportRedis).Set(0)
		r.log.Info("Realtime subscription stopped", zap.String("transport", TransportRedis))
	})
}
