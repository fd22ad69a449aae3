package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"realtime_chat/internal/config"
	"realtime_chat/pkg/logger"
)

type fakeRateLimitRepo struct {
	counts map[string]int64
	ttl    time.Duration
	err    error
	hits   int
}

func newFakeRateLimitRepo() *fakeRateLimitRepo {
	return &fakeRateLimitRepo{counts: make(map[string]int64), ttl: 30 * time.Second}
}

func (r *fakeRateLimitRepo) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.hits++
	r.counts[key]++
	return r.counts[key], nil
}

func (r *fakeRateLimitRepo) Count(ctx context.Context, key string) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.counts[key], nil
}

func (r *fakeRateLimitRepo) TTL(ctx context.Context, key string) (time.Duration, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.ttl, nil
}

func testRateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{MessageLimit: 3, MessageWindow: 60 * time.Second}
}

func TestRateLimitAllowUnderLimit(t *testing.T) {
	repo := newFakeRateLimitRepo()
	svc := NewRateLimitService(repo, testRateLimitConfig(), logger.NewNop())
	senderID := uuid.New()

	for i := 0; i < 3; i++ {
		if !svc.Allow(context.Background(), senderID) {
			t.Fatalf("message %d should be allowed", i+1)
		}
	}
	if repo.hits != 3 {
		t.Errorf("expected 3 increments, got %d", repo.hits)
	}
}

func TestRateLimitDeniesAtLimit(t *testing.T) {
	repo := newFakeRateLimitRepo()
	svc := NewRateLimitService(repo, testRateLimitConfig(), logger.NewNop())
	senderID := uuid.New()

	for i := 0; i < 3; i++ {
		svc.Allow(context.Background(), senderID)
	}

	if svc.Allow(context.Background(), senderID) {
		t.Fatal("4th message within window should be denied")
	}

	// Отклоненный вызов не увеличивает счетчик
	if repo.hits != 3 {
		t.Errorf("rejected call must not increment, got %d hits", repo.hits)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	repo := newFakeRateLimitRepo()
	repo.err = errors.New("connection refused")
	svc := NewRateLimitService(repo, testRateLimitConfig(), logger.NewNop())

	if !svc.Allow(context.Background(), uuid.New()) {
		t.Error("limiter must allow when the store is unavailable")
	}
}

func TestRateLimitInfo(t *testing.T) {
	repo := newFakeRateLimitRepo()
	svc := NewRateLimitService(repo, testRateLimitConfig(), logger.NewNop())
	senderID := uuid.New()

	svc.Allow(context.Background(), senderID)
	svc.Allow(context.Background(), senderID)

	info := svc.Info(context.Background(), senderID)
	if info.MessagesSent != 2 {
		t.Errorf("expected 2 sent, got %d", info.MessagesSent)
	}
	if info.MessagesRemaining != 1 {
		t.Errorf("expected 1 remaining, got %d", info.MessagesRemaining)
	}
	if info.Limit != 3 {
		t.Errorf("expected limit 3, got %d", info.Limit)
	}
	if info.ResetInSeconds != 30 {
		t.Errorf("expected reset in 30s, got %d", info.ResetInSeconds)
	}
}

func TestRateLimitInfoWhenStoreUnavailable(t *testing.T) {
	repo := newFakeRateLimitRepo()
	repo.err = errors.New("connection refused")
	svc := NewRateLimitService(repo, testRateLimitConfig(), logger.NewNop())

	info := svc.Info(context.Background(), uuid.New())
	if info.MessagesRemaining != 3 {
		t.Errorf("unavailable store should report full allowance, got %d", info.MessagesRemaining)
	}
}
