package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"realtime_chat/pkg/logger"
)

// testRedis подключается к локальному Redis; без него тесты пропускаются
func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis is not available: %v", err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

func TestRateLimitHitAndCount(t *testing.T) {
	client := testRedis(t)
	repo := NewRateLimitRepository(client, logger.NewNop())
	ctx := context.Background()

	key := fmt.Sprintf("test:rate_limit:%s", uuid.New())
	t.Cleanup(func() { client.Del(context.Background(), key) })

	for want := int64(1); want <= 3; want++ {
		got, err := repo.Hit(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("hit failed: %v", err)
		}
		if got != want {
			t.Errorf("expected count %d, got %d", want, got)
		}
	}

	count, err := repo.Count(ctx, key)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestRateLimitCountMissingKey(t *testing.T) {
	client := testRedis(t)
	repo := NewRateLimitRepository(client, logger.NewNop())

	count, err := repo.Count(context.Background(), fmt.Sprintf("test:rate_limit:%s", uuid.New()))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("missing key should count as 0, got %d", count)
	}
}

func TestRateLimitFirstHitSetsTTL(t *testing.T) {
	client := testRedis(t)
	repo := NewRateLimitRepository(client, logger.NewNop())
	ctx := context.Background()

	key := fmt.Sprintf("test:rate_limit:%s", uuid.New())
	t.Cleanup(func() { client.Del(context.Background(), key) })

	if _, err := repo.Hit(ctx, key, time.Minute); err != nil {
		t.Fatalf("hit failed: %v", err)
	}

	ttl, err := repo.TTL(ctx, key)
	if err != nil {
		t.Fatalf("ttl failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected TTL within (0, 1m], got %v", ttl)
	}
}

func TestRateLimitTTLMissingKey(t *testing.T) {
	client := testRedis(t)
	repo := NewRateLimitRepository(client, logger.NewNop())

	ttl, err := repo.TTL(context.Background(), fmt.Sprintf("test:rate_limit:%s", uuid.New()))
	if err != nil {
		t.Fatalf("ttl failed: %v", err)
	}
	if ttl != 0 {
		t.Errorf("missing key should have zero TTL, got %v", ttl)
	}
}
