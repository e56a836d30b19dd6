package realtime

import (
	"context"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// Subscription is a live feed of raw messages on one channel.
type Subscription interface {
	Messages() <-chan string
	Close() error
}

// Source opens subscriptions.
type Source interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// RedisSubscriber is the pub/sub surface of pkg/redis.Client.
type RedisSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
}

// RedisSource adapts Redis pub/sub to Source.
type RedisSource struct {
	client RedisSubscriber
}

func NewRedisSource(client RedisSubscriber) *RedisSource {
	return &RedisSource{client: client}
}

func (s *RedisSource) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps, err := s.client.Subscribe(ctx, channel)
	if err != nil {
		return nil, err
	}
	sub := &redisSubscription{ps: ps, out: make(chan string), done: make(chan struct{})}
	go sub.forward()
	return sub, nil
}

type redisSubscription struct {
	ps   *goredis.PubSub
	out  chan string
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) forward() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- msg.Payload:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan string { return s.out }

func (s *redisSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.ps.Close()
}
