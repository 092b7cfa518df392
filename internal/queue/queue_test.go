package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type stubRedis struct {
	mu     sync.Mutex
	pushed map[string][]string
}

func newStubRedis() *stubRedis {
	return &stubRedis{pushed: map[string][]string{}}
}

func (s *stubRedis) LPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		s.pushed[key] = append(s.pushed[key], string(v.([]byte)))
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(s.pushed[key])))
	return cmd
}

func (s *stubRedis) list(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pushed[key]...)
}

func (s *stubRedis) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	cmd.SetErr(redis.Nil)
	return cmd
}

func TestRetryDelay_DoublesPerAttempt(t *testing.T) {
	q := newQueue(newStubRedis(), zerolog.Nop(), 5, 2*time.Second)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{20, 5 * time.Minute},
	}
	for _, tc := range cases {
		if got := q.RetryDelay(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: got %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestPublish_RoutesByKind(t *testing.T) {
	stub := newStubRedis()
	q := newQueue(stub, zerolog.Nop(), 5, 2*time.Second)
	ctx := context.Background()

	if err := q.Publish(ctx, KindDonation, "event-1"); err != nil {
		t.Fatalf("publish donation: %v", err)
	}
	if err := q.Publish(ctx, KindPayoutResult, "event-2"); err != nil {
		t.Fatalf("publish payout result: %v", err)
	}
	if err := q.PublishPayoutDispatch(ctx, "item-1"); err != nil {
		t.Fatalf("publish dispatch: %v", err)
	}
	if err := q.Publish(ctx, Kind("mystery"), "x"); err == nil {
		t.Fatal("unknown kind must be rejected")
	}

	if len(stub.list(keyDonation)) != 1 || len(stub.list(keyPayoutResult)) != 1 || len(stub.list(keyPayoutDispatch)) != 1 {
		t.Fatalf("unexpected routing: %v", stub.pushed)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(stub.list(keyPayoutDispatch)[0]), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Kind != KindPayoutDispatch || env.RefID != "item-1" || env.Attempt != 0 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestRequeue_ParksAfterMaxAttempts(t *testing.T) {
	stub := newStubRedis()
	q := newQueue(stub, zerolog.Nop(), 3, 2*time.Second)
	ctx := context.Background()

	q.requeue(ctx, Envelope{Kind: KindDonation, RefID: "event-1", Attempt: 2}, errors.New("still down"))

	if len(stub.list(keyParked)) != 1 {
		t.Fatalf("expected parked envelope, got %v", stub.pushed)
	}
	var env Envelope
	if err := json.Unmarshal([]byte(stub.list(keyParked)[0]), &env); err != nil {
		t.Fatalf("unmarshal parked envelope: %v", err)
	}
	if env.Attempt != 3 || env.RefID != "event-1" {
		t.Fatalf("unexpected parked envelope: %+v", env)
	}
	if len(stub.list(keyDonation)) != 0 {
		t.Fatal("parked envelope must not also be retried")
	}
}

func TestRequeue_SchedulesRetryBeforeExhaustion(t *testing.T) {
	stub := newStubRedis()
	q := newQueue(stub, zerolog.Nop(), 3, time.Millisecond)
	ctx := context.Background()

	q.requeue(ctx, Envelope{Kind: KindDonation, RefID: "event-1"}, errors.New("transient"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(stub.list(keyDonation)) == 1 {
			var env Envelope
			if err := json.Unmarshal([]byte(stub.list(keyDonation)[0]), &env); err != nil {
				t.Fatalf("unmarshal retried envelope: %v", err)
			}
			if env.Attempt != 1 {
				t.Fatalf("unexpected attempt count: %+v", env)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("retry was never re-published")
}
