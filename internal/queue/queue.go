package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/metrics"
)

// Kind routes an envelope to its handler.
type Kind string

const (
	KindDonation       Kind = "donation"
	KindPayoutResult   Kind = "payout_result"
	KindPayoutDispatch Kind = "payout_dispatch"
)

const (
	keyDonation       = "callbacks:donation"
	keyPayoutResult   = "callbacks:payout_result"
	keyPayoutDispatch = "payouts:dispatch"
	keyParked         = "callbacks:parked"
)

// Envelope is the durable unit of dispatch. RefID is a webhook event id for
// callback kinds and a payout item id for dispatch jobs; the payload itself
// lives in Postgres, so the queue only ever carries references.
type Envelope struct {
	Kind    Kind   `json:"kind"`
	RefID   string `json:"refId"`
	Attempt int    `json:"attempt"`
}

// Handler processes one envelope. A returned error triggers a bounded
// exponential-backoff retry; exhausted envelopes are parked, never dropped.
type Handler func(ctx context.Context, kind Kind, refID string) error

type redisCommander interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Queue is the durable, retryable dispatch layer between webhook receipt and
// processing. If redis is unavailable the gateway degrades to inline
// synchronous processing instead of dropping events.
type Queue struct {
	rdb         redisCommander
	logger      zerolog.Logger
	maxAttempts int
	retryBase   time.Duration
}

func New(rdb *redis.Client, logger zerolog.Logger, maxAttempts int, retryBase time.Duration) *Queue {
	return newQueue(rdb, logger, maxAttempts, retryBase)
}

func newQueue(rdb redisCommander, logger zerolog.Logger, maxAttempts int, retryBase time.Duration) *Queue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if retryBase <= 0 {
		retryBase = 2 * time.Second
	}
	return &Queue{
		rdb:         rdb,
		logger:      logger.With().Str("component", "queue").Logger(),
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
	}
}

// Publish enqueues a callback for asynchronous processing.
func (q *Queue) Publish(ctx context.Context, kind Kind, refID string) error {
	return q.push(ctx, Envelope{Kind: kind, RefID: refID})
}

// PublishPayoutDispatch enqueues a disbursement job for a payout item.
func (q *Queue) PublishPayoutDispatch(ctx context.Context, itemID string) error {
	return q.push(ctx, Envelope{Kind: KindPayoutDispatch, RefID: itemID})
}

func (q *Queue) push(ctx context.Context, env Envelope) error {
	key, err := keyFor(env.Kind)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}
	if err := q.rdb.LPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("queue: publish %s: %w", env.Kind, err)
	}
	return nil
}

// Consume blocks on all queue keys and invokes handler per envelope until ctx
// is cancelled.
func (q *Queue) Consume(ctx context.Context, handler Handler) error {
	q.logger.Info().Msg("queue consumer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := q.rdb.BRPop(ctx, 5*time.Second, keyDonation, keyPayoutResult, keyPayoutDispatch).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.logger.Error().Err(err).Msg("queue pop failed")
			sleepCtx(ctx, time.Second)
			continue
		}
		if len(res) != 2 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
			q.logger.Error().Err(err).Str("payload", res[1]).Msg("queue envelope unreadable, parking")
			_ = q.rdb.LPush(ctx, keyParked, res[1]).Err()
			metrics.QueueParked.Inc()
			continue
		}

		if err := handler(ctx, env.Kind, env.RefID); err != nil {
			q.requeue(ctx, env, err)
		}
	}
}

// requeue applies the retry policy: exponential backoff up to maxAttempts,
// then park for operator inspection.
func (q *Queue) requeue(ctx context.Context, env Envelope, cause error) {
	env.Attempt++
	if env.Attempt >= q.maxAttempts {
		q.logger.Error().Err(cause).
			Str("kind", string(env.Kind)).
			Str("ref_id", env.RefID).
			Int("attempts", env.Attempt).
			Msg("retries exhausted, parking envelope")
		raw, _ := json.Marshal(env)
		if err := q.rdb.LPush(ctx, keyParked, raw).Err(); err != nil {
			q.logger.Error().Err(err).Str("ref_id", env.RefID).Msg("parking failed")
		}
		metrics.QueueParked.Inc()
		return
	}

	delay := q.RetryDelay(env.Attempt)
	q.logger.Warn().Err(cause).
		Str("kind", string(env.Kind)).
		Str("ref_id", env.RefID).
		Int("attempt", env.Attempt).
		Dur("delay", delay).
		Msg("handler failed, scheduling retry")
	metrics.QueueRetries.Inc()

	go func() {
		if !sleepCtx(ctx, delay) {
			return
		}
		raw, _ := json.Marshal(env)
		key, err := keyFor(env.Kind)
		if err != nil {
			return
		}
		if err := q.rdb.LPush(ctx, key, raw).Err(); err != nil {
			q.logger.Error().Err(err).Str("ref_id", env.RefID).Msg("retry publish failed")
		}
	}()
}

// RetryDelay returns the backoff before the given attempt number (1-based):
// base, 2*base, 4*base, ...
func (q *Queue) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := q.retryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > 5*time.Minute {
			return 5 * time.Minute
		}
	}
	return d
}

func keyFor(kind Kind) (string, error) {
	switch kind {
	case KindDonation:
		return keyDonation, nil
	case KindPayoutResult:
		return keyPayoutResult, nil
	case KindPayoutDispatch:
		return keyPayoutDispatch, nil
	default:
		return "", fmt.Errorf("queue: unknown kind %q", kind)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
