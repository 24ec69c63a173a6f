package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
// Commands go through a circuit breaker so an unavailable Redis fails requests fast.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	client.AddHook(NewCircuitBreakerHook())
	return client, nil
}

// CircuitBreakerHook implements redis.Hook. It opens after repeated command
// failures and rejects commands until the timeout elapses.
type CircuitBreakerHook struct {
	cb *gobreaker.CircuitBreaker
}

var _ redis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook trips after 5 consecutive failures and probes again after 30s.
func NewCircuitBreakerHook() *CircuitBreakerHook {
	return newCircuitBreakerHook(5, 30*time.Second)
}

func newCircuitBreakerHook(maxFailures uint32, openTimeout time.Duration) *CircuitBreakerHook {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			redisBreakerState.Set(float64(to))
		},
	})
	return &CircuitBreakerHook{cb: cb}
}

func (h *CircuitBreakerHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *CircuitBreakerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		_, err := h.cb.Execute(func() (interface{}, error) {
			return nil, next(ctx, cmd)
		})
		if isBreakerRejection(err) {
			cmd.SetErr(err)
		}
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		_, err := h.cb.Execute(func() (interface{}, error) {
			return nil, next(ctx, cmds)
		})
		if isBreakerRejection(err) {
			for _, cmd := range cmds {
				cmd.SetErr(err)
			}
		}
		return err
	}
}

// State returns the current breaker state.
func (h *CircuitBreakerHook) State() gobreaker.State {
	return h.cb.State()
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
