package service

import (
	"context"
	"fmt"

	"realtime_chat/internal/config"
	"realtime_chat/internal/domain"
	"realtime_chat/internal/repository"
	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
)

// RateLimitService — фиксированное окно на отправку сообщений.
// При недоступности Redis лимит не применяется (fail open): доступность
// отправки важнее строгого соблюдения лимита, это осознанная деградация.
type RateLimitService interface {
	Allow(ctx context.Context, senderID uuid.UUID) bool
	Info(ctx context.Context, senderID uuid.UUID) domain.RateLimitInfo
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	cfg           config.RateLimitConfig
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		cfg:           cfg,
		log:           log,
	}
}

func rateLimitKey(senderID uuid.UUID) string {
	return fmt.Sprintf("rate_limit:messages:%s", senderID)
}

func (s *rateLimitService) Allow(ctx context.Context, senderID uuid.UUID) bool {
	key := rateLimitKey(senderID)

	count, err := s.rateLimitRepo.Count(ctx, key)
	if err != nil {
		s.log.Warn("Rate limit store unavailable, allowing message", "error", err, "sender_id", senderID)
		return true
	}

	if count >= int64(s.cfg.MessageLimit) {
		return false
	}

	// Отклоненные вызовы счетчик не увеличивают
	if _, err := s.rateLimitRepo.Hit(ctx, key, s.cfg.MessageWindow); err != nil {
		s.log.Warn("Rate limit increment failed, allowing message", "error", err, "sender_id", senderID)
	}

	return true
}

func (s *rateLimitService) Info(ctx context.Context, senderID uuid.UUID) domain.RateLimitInfo {
	key := rateLimitKey(senderID)
	info := domain.RateLimitInfo{
		MessagesRemaining: s.cfg.MessageLimit,
		Limit:             s.cfg.MessageLimit,
	}

	count, err := s.rateLimitRepo.Count(ctx, key)
	if err != nil {
		return info
	}

	ttl, err := s.rateLimitRepo.TTL(ctx, key)
	if err != nil {
		return info
	}

	info.MessagesSent = int(count)
	info.MessagesRemaining = s.cfg.MessageLimit - int(count)
	if info.MessagesRemaining < 0 {
		info.MessagesRemaining = 0
	}
	info.ResetInSeconds = int(ttl.Seconds())

	return info
}
