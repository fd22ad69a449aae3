package service

import (
	"context"
	"errors"
	"time"

	"realtime_chat/internal/domain"
	"realtime_chat/internal/repository"
	apperrors "realtime_chat/pkg/errors"
	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
)

type RoomService interface {
	Create(ctx context.Context, ownerID uuid.UUID, name, description string, isPrivate bool) (*domain.Room, error)
	GetByID(ctx context.Context, roomID uuid.UUID) (*domain.Room, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Room, error)
	Join(ctx context.Context, roomID, userID uuid.UUID) error
	Leave(ctx context.Context, roomID, userID uuid.UUID) error
	IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	GetParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.RoomParticipant, error)
	// Invite добавляет пользователя в комнату и инициирует уведомление о приглашении
	Invite(ctx context.Context, roomID uuid.UUID, inviter *domain.User, inviteeID uuid.UUID) error
}

type roomService struct {
	roomRepo     repository.RoomRepository
	userRepo     repository.UserRepository
	notification NotificationService
	log          logger.Logger
}

func NewRoomService(roomRepo repository.RoomRepository, userRepo repository.UserRepository, notification NotificationService, log logger.Logger) RoomService {
	return &roomService{
		roomRepo:     roomRepo,
		userRepo:     userRepo,
		notification: notification,
		log:          log,
	}
}

func (s *roomService) Create(ctx context.Context, ownerID uuid.UUID, name, description string, isPrivate bool) (*domain.Room, error) {
	if name == "" {
		return nil, errors.New("room name is required")
	}
	if len(name) > 100 {
		return nil, errors.New("room name is too long (max 100 characters)")
	}

	var desc *string
	if description != "" {
		desc = &description
	}

	room := &domain.Room{
		ID:          uuid.New(),
		Name:        name,
		Description: desc,
		OwnerID:     ownerID,
		IsPrivate:   isPrivate,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, err
	}

	// Владелец автоматически становится участником
	participant := &domain.RoomParticipant{
		RoomID:   room.ID,
		UserID:   ownerID,
		Role:     domain.ParticipantRoleOwner,
		JoinedAt: time.Now(),
	}
	if err := s.roomRepo.AddParticipant(ctx, participant); err != nil {
		return nil, err
	}

	return room, nil
}

func (s *roomService) GetByID(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	return s.roomRepo.GetByID(ctx, roomID)
}

func (s *roomService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Room, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.roomRepo.List(ctx, userID, limit, offset)
}

func (s *roomService) Join(ctx context.Context, roomID, userID uuid.UUID) error {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsPrivate {
		// В приватную комнату можно попасть только по приглашению
		return apperrors.ErrForbidden
	}

	return s.roomRepo.AddParticipant(ctx, &domain.RoomParticipant{
		RoomID:   roomID,
		UserID:   userID,
		Role:     domain.ParticipantRoleMember,
		JoinedAt: time.Now(),
	})
}

func (s *roomService) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	return s.roomRepo.RemoveParticipant(ctx, roomID, userID)
}

func (s *roomService) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	return s.roomRepo.IsParticipant(ctx, roomID, userID)
}

func (s *roomService) GetParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.RoomParticipant, error) {
	return s.roomRepo.GetParticipants(ctx, roomID)
}

func (s *roomService) Invite(ctx context.Context, roomID uuid.UUID, inviter *domain.User, inviteeID uuid.UUID) error {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}

	isMember, err := s.roomRepo.IsParticipant(ctx, roomID, inviter.ID)
	if err != nil {
		return err
	}
	if !isMember {
		return apperrors.ErrNotParticipant
	}

	if _, err := s.userRepo.GetByID(ctx, inviteeID); err != nil {
		return apperrors.ErrNotFound
	}

	if err := s.roomRepo.AddParticipant(ctx, &domain.RoomParticipant{
		RoomID:   roomID,
		UserID:   inviteeID,
		Role:     domain.ParticipantRoleMember,
		JoinedAt: time.Now(),
	}); err != nil {
		return err
	}

	var description string
	if room.Description != nil {
		description = *room.Description
	}

	s.notification.Emit(domain.NewRoomInviteEvent(inviter.ID, inviter.DisplayName, []uuid.UUID{inviteeID}, domain.RoomInviteEventPayload{
		RoomID:      room.ID,
		RoomName:    room.Name,
		Description: description,
	}))

	return nil
}
