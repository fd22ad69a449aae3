package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"realtime_chat/internal/repository"
	"realtime_chat/pkg/logger"
)

// RateLimitMiddleware ограничивает частоту HTTP-запросов по IP клиента.
// Лимит сообщений в чате считается отдельно, по пользователю.
type RateLimitMiddleware struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitMiddleware(rateLimitRepo repository.RateLimitRepository, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	limit := int64(100)
	window := 60 * time.Second

	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:http:%s", c.ClientIP())

		count, err := m.rateLimitRepo.Count(c.Request.Context(), key)
		if err != nil {
			// Недоступность Redis не блокирует запросы
			m.log.Warn("Rate limit check failed, allowing request", "error", err)
			c.Next()
			return
		}

		if count >= limit {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			c.Header("X-RateLimit-Remaining", "0")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		count, err = m.rateLimitRepo.Hit(c.Request.Context(), key, window)
		if err != nil {
			m.log.Warn("Rate limit increment failed", "error", err)
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(limit-count, 10))
		c.Next()
	}
}
