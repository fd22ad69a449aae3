package service

import (
	"context"

	"realtime_chat/pkg/logger"
)

// EmailService — заглушка провайдера почты, доставка best-effort
type EmailService interface {
	SendEmail(ctx context.Context, to, subject, body string) bool
}

type emailService struct {
	log logger.Logger
}

func NewEmailService(log logger.Logger) EmailService {
	return &emailService{log: log}
}

func (s *emailService) SendEmail(ctx context.Context, to, subject, body string) bool {
	// Реальный провайдер (SMTP/SES/SendGrid) подключается здесь
	s.log.Info("Email notification sent", "to", to, "subject", subject)
	return true
}
