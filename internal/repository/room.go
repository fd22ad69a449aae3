package repository

import (
	"context"
	"errors"

	"realtime_chat/internal/domain"
	apperrors "realtime_chat/pkg/errors"
	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Room, error)
	AddParticipant(ctx context.Context, participant *domain.RoomParticipant) error
	RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	GetParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.RoomParticipant, error)
}

type roomRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRoomRepository(db *pgxpool.Pool, log logger.Logger) RoomRepository {
	return &roomRepository{db: db, log: log}
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (id, name, description, owner_id, is_private, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		room.ID, room.Name, room.Description, room.OwnerID, room.IsPrivate,
		room.CreatedAt, room.UpdatedAt,
	).Scan(&room.CreatedAt, &room.UpdatedAt)

	if err != nil {
		r.log.Error("Failed to create room", "error", err)
		return err
	}

	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	query := `
		SELECT id, name, description, owner_id, is_private, created_at, updated_at
		FROM rooms
		WHERE id = $1
	`

	room := &domain.Room{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&room.ID, &room.Name, &room.Description, &room.OwnerID, &room.IsPrivate,
		&room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get room", "error", err, "room_id", id)
		return nil, err
	}

	return room, nil
}

func (r *roomRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Room, error) {
	query := `
		SELECT r.id, r.name, r.description, r.owner_id, r.is_private, r.created_at, r.updated_at
		FROM rooms r
		JOIN room_participants p ON p.room_id = r.id
		WHERE p.user_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list rooms", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	var rooms []*domain.Room
	for rows.Next() {
		room := &domain.Room{}
		err := rows.Scan(
			&room.ID, &room.Name, &room.Description, &room.OwnerID, &room.IsPrivate,
			&room.CreatedAt, &room.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan room", "error", err)
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (r *roomRepository) AddParticipant(ctx context.Context, participant *domain.RoomParticipant) error {
	query := `
		INSERT INTO room_participants (room_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Exec(ctx, query,
		participant.RoomID, participant.UserID, participant.Role, participant.JoinedAt,
	)
	if err != nil {
		// Повторное вступление в комнату не считаем ошибкой
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		r.log.Error("Failed to add participant", "error", err, "room_id", participant.RoomID, "user_id", participant.UserID)
		return err
	}

	return nil
}

func (r *roomRepository) RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	query := `DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2`

	_, err := r.db.Exec(ctx, query, roomID, userID)
	if err != nil {
		r.log.Error("Failed to remove participant", "error", err, "room_id", roomID, "user_id", userID)
		return err
	}

	return nil
}

func (r *roomRepository) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id = $1 AND user_id = $2)`

	var exists bool
	err := r.db.QueryRow(ctx, query, roomID, userID).Scan(&exists)
	if err != nil {
		r.log.Error("Failed to check participant", "error", err, "room_id", roomID, "user_id", userID)
		return false, err
	}

	return exists, nil
}

func (r *roomRepository) GetParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.RoomParticipant, error) {
	query := `
		SELECT room_id, user_id, role, joined_at
		FROM room_participants
		WHERE room_id = $1
		ORDER BY joined_at
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to get participants", "error", err, "room_id", roomID)
		return nil, err
	}
	defer rows.Close()

	var participants []*domain.RoomParticipant
	for rows.Next() {
		p := &domain.RoomParticipant{}
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.Role, &p.JoinedAt); err != nil {
			r.log.Error("Failed to scan participant", "error", err)
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}
