package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/FrancoRivero2025/quote-average/internal/adapters/log"
	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "quotes:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Redis stores each snapshot as JSON under <prefix><exchange>.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = DefaultRedisPrefix
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix: opts.Prefix,
		ttl:    opts.TTL,
	}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Key(exchange string) string { return r.prefix + exchange }

func (r *Redis) Publish(ctx context.Context, qs domain.QuoteSet) error {
	data, err := encode(qs)
	if err != nil {
		return fmt.Errorf("redis sink: encode %s: %w", qs.Exchange, err)
	}
	if err := r.client.Set(ctx, r.Key(qs.Exchange), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis sink: set %s: %w", r.Key(qs.Exchange), err)
	}
	return nil
}

// WaitReady pings Redis with exponential backoff until it answers, ctx ends
// or maxRetries pings have failed.
func (r *Redis) WaitReady(ctx context.Context, maxRetries uint64) error {
	op := func() error {
		err := r.client.Ping(ctx).Err()
		if err != nil {
			log.GetInstance().Warn("redis at %s not ready: %v", r.client.Options().Addr, err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)); err != nil {
		return fmt.Errorf("redis sink: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
