package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"realtime_chat/internal/domain"
	"realtime_chat/pkg/logger"
)

func TestMessageCacheRoundTrip(t *testing.T) {
	client := testRedis(t)
	repo := NewMessageCacheRepository(client, time.Minute, logger.NewNop())
	ctx := context.Background()

	roomID := uuid.New()
	messages := []*domain.MessageWithSender{
		{
			Message: domain.Message{
				ID:       uuid.New(),
				RoomID:   roomID,
				SenderID: uuid.New(),
				Content:  "hello",
			},
			SenderDisplayName: "Alice",
		},
	}

	repo.Set(ctx, roomID, 50, 0, messages)
	t.Cleanup(func() { repo.InvalidateRoom(context.Background(), roomID) })

	cached, ok := repo.Get(ctx, roomID, 50, 0)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(cached) != 1 || cached[0].Content != "hello" || cached[0].SenderDisplayName != "Alice" {
		t.Errorf("cached payload mismatch: %v", cached)
	}
}

func TestMessageCacheMiss(t *testing.T) {
	client := testRedis(t)
	repo := NewMessageCacheRepository(client, time.Minute, logger.NewNop())

	if _, ok := repo.Get(context.Background(), uuid.New(), 50, 0); ok {
		t.Error("expected cache miss for unknown room")
	}
}

func TestMessageCacheInvalidateRoomClearsAllVariants(t *testing.T) {
	client := testRedis(t)
	repo := NewMessageCacheRepository(client, time.Minute, logger.NewNop())
	ctx := context.Background()

	roomID := uuid.New()
	other := uuid.New()
	messages := []*domain.MessageWithSender{
		{Message: domain.Message{ID: uuid.New(), Content: "x"}},
	}

	// Несколько вариантов пагинации одной комнаты и чужая комната
	repo.Set(ctx, roomID, 50, 0, messages)
	repo.Set(ctx, roomID, 20, 10, messages)
	repo.Set(ctx, other, 50, 0, messages)
	t.Cleanup(func() { repo.InvalidateRoom(context.Background(), other) })

	repo.InvalidateRoom(ctx, roomID)

	if _, ok := repo.Get(ctx, roomID, 50, 0); ok {
		t.Error("expected first variant to be invalidated")
	}
	if _, ok := repo.Get(ctx, roomID, 20, 10); ok {
		t.Error("expected second variant to be invalidated")
	}
	if _, ok := repo.Get(ctx, other, 50, 0); !ok {
		t.Error("other room's cache must survive")
	}
}
