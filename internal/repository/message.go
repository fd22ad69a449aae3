package repository

import (
	"context"

	"realtime_chat/internal/domain"
	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetRecent(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.MessageWithSender, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (id, room_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		message.ID, message.RoomID, message.SenderID, message.Content, message.CreatedAt,
	).Scan(&message.CreatedAt)

	if err != nil {
		r.log.Error("Failed to create message", "error", err, "room_id", message.RoomID)
		return err
	}

	return nil
}

func (r *messageRepository) GetRecent(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.MessageWithSender, error) {
	query := `
		SELECT m.id, m.room_id, m.sender_id, m.content, m.created_at,
		       u.display_name, u.avatar_url
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.room_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, roomID, limit, offset)
	if err != nil {
		r.log.Error("Failed to get messages", "error", err, "room_id", roomID)
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.MessageWithSender
	for rows.Next() {
		m := &domain.MessageWithSender{}
		err := rows.Scan(
			&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.CreatedAt,
			&m.SenderDisplayName, &m.SenderAvatarURL,
		)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Переворачиваем в хронологический порядок (старые первыми)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
