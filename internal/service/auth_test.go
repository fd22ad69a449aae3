package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"realtime_chat/internal/config"
	"realtime_chat/internal/domain"
	apperrors "realtime_chat/pkg/errors"
	"realtime_chat/pkg/logger"
)

type fakeUserRepo struct {
	byID    map[uuid.UUID]*domain.User
	byEmail map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[uuid.UUID]*domain.User),
		byEmail: make(map[string]*domain.User),
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	if _, exists := r.byEmail[user.Email]; exists {
		return apperrors.ErrUserAlreadyExists
	}
	copied := *user
	r.byID[user.ID] = &copied
	r.byEmail[user.Email] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if user, ok := r.byID[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if user, ok := r.byEmail[email]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error { return nil }

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessSecret: "test-secret",
		AccessTTL:    15 * time.Minute,
		Issuer:       "realtime-chat-test",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testJWTConfig(), logger.NewNop())
	ctx := context.Background()

	user, err := svc.Register(ctx, "Alice@Example.COM", "password123", "Alice")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email should be normalized, got %q", user.Email)
	}
	if user.PasswordHash != "" {
		t.Error("password hash must not leak in response")
	}

	response, err := svc.Login(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if response.AccessToken == "" {
		t.Error("expected an access token")
	}
	if response.User.PasswordHash != "" {
		t.Error("password hash must not leak in login response")
	}

	validated, err := svc.ValidateToken(ctx, response.AccessToken)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if validated.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, validated.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), testJWTConfig(), logger.NewNop())
	ctx := context.Background()

	cases := []struct {
		name        string
		email       string
		password    string
		displayName string
	}{
		{"empty email", "", "password123", "Alice"},
		{"bad email", "not-an-email", "password123", "Alice"},
		{"short password", "alice@example.com", "short", "Alice"},
		{"empty display name", "alice@example.com", "password123", ""},
	}

	for _, tc := range cases {
		if _, err := svc.Register(ctx, tc.email, tc.password, tc.displayName); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), testJWTConfig(), logger.NewNop())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "password123", "Alice"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "alice@example.com", "password123", "Alice Again"); !errors.Is(err, apperrors.ErrUserAlreadyExists) {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), testJWTConfig(), logger.NewNop())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "password123", "Alice"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), testJWTConfig(), logger.NewNop())

	if _, err := svc.Login(context.Background(), "ghost@example.com", "password123"); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("unknown user must map to ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateTokenInactiveUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testJWTConfig(), logger.NewNop())
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice@example.com", "password123", "Alice")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	response, err := svc.Login(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	repo.byID[user.ID].IsActive = false

	if _, err := svc.ValidateToken(ctx, response.AccessToken); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("inactive user token must be rejected, got %v", err)
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), testJWTConfig(), logger.NewNop())

	if _, err := svc.ValidateToken(context.Background(), "garbage"); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
