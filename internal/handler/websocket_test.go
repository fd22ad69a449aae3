package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"realtime_chat/internal/domain"
	"realtime_chat/internal/service"
	"realtime_chat/internal/ws"
	apperrors "realtime_chat/pkg/errors"
	"realtime_chat/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthService struct {
	usersByToken map[string]*domain.User
}

func (s *fakeAuthService) Register(ctx context.Context, email, password, displayName string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeAuthService) Login(ctx context.Context, email, password string) (*service.LoginResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeAuthService) ValidateToken(ctx context.Context, tokenString string) (*domain.User, error) {
	if user, ok := s.usersByToken[tokenString]; ok {
		return user, nil
	}
	return nil, apperrors.ErrInvalidToken
}

type fakeRoomService struct {
	members map[uuid.UUID]bool
}

func (s *fakeRoomService) Create(ctx context.Context, ownerID uuid.UUID, name, description string, isPrivate bool) (*domain.Room, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeRoomService) GetByID(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	return nil, apperrors.ErrRoomNotFound
}

func (s *fakeRoomService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Room, error) {
	return nil, nil
}

func (s *fakeRoomService) Join(ctx context.Context, roomID, userID uuid.UUID) error  { return nil }
func (s *fakeRoomService) Leave(ctx context.Context, roomID, userID uuid.UUID) error { return nil }

func (s *fakeRoomService) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	return s.members[userID], nil
}

func (s *fakeRoomService) GetParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.RoomParticipant, error) {
	return nil, nil
}

func (s *fakeRoomService) Invite(ctx context.Context, roomID uuid.UUID, inviter *domain.User, inviteeID uuid.UUID) error {
	return nil
}

type fakeMessageService struct {
	rateLimited bool
}

func (s *fakeMessageService) SendMessage(ctx context.Context, roomID uuid.UUID, sender *domain.User, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return nil, apperrors.ErrContentInvalid
	}
	if s.rateLimited {
		return nil, apperrors.ErrRateLimited
	}
	return &domain.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  sender.ID,
		Content:   content,
		CreatedAt: time.Now(),
	}, nil
}

func (s *fakeMessageService) GetMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.MessageWithSender, error) {
	return nil, nil
}

func (s *fakeMessageService) RateLimitInfo(ctx context.Context, senderID uuid.UUID) domain.RateLimitInfo {
	return domain.RateLimitInfo{MessagesSent: 10, MessagesRemaining: 0, ResetInSeconds: 42, Limit: 10}
}

type wsFixture struct {
	server   *httptest.Server
	roomID   uuid.UUID
	auth     *fakeAuthService
	rooms    *fakeRoomService
	messages *fakeMessageService
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	f := &wsFixture{
		roomID:   uuid.New(),
		auth:     &fakeAuthService{usersByToken: make(map[string]*domain.User)},
		rooms:    &fakeRoomService{members: make(map[uuid.UUID]bool)},
		messages: &fakeMessageService{},
	}

	hub := ws.NewHub(logger.NewNop())
	h := NewWebSocketHandler(hub, f.auth, f.rooms, f.messages, logger.NewNop())

	router := gin.New()
	router.GET("/ws/chat/:id", h.HandleChat)

	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *wsFixture) addUser(token, name string) *domain.User {
	user := &domain.User{ID: uuid.New(), Email: name + "@example.com", DisplayName: name, IsActive: true}
	f.auth.usersByToken[token] = user
	f.rooms.members[user.ID] = true
	return user
}

func (f *wsFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat/" + f.roomID.String()
	if token != "" {
		url += "?token=" + token
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) ws.Frame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var frame ws.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	return frame
}

func frameData(t *testing.T, frame ws.Frame) map[string]interface{} {
	t.Helper()
	data, ok := frame.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("frame data is not an object: %v", frame.Data)
	}
	return data
}

func sendFrame(t *testing.T, conn *websocket.Conn, frameType string, data interface{}) {
	t.Helper()
	if err := conn.WriteJSON(ws.Frame{Type: frameType, Data: data}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func expectPolicyViolationClose(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected connection to be closed")
	}
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation {
		t.Errorf("expected close code 1008, got %d", closeErr.Code)
	}
}

func TestChatRejectsMissingToken(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "")
	expectPolicyViolationClose(t, conn)
}

func TestChatRejectsInvalidToken(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "bogus")
	expectPolicyViolationClose(t, conn)
}

func TestChatRejectsNonParticipant(t *testing.T) {
	f := newWSFixture(t)

	outsider := &domain.User{ID: uuid.New(), DisplayName: "Outsider", IsActive: true}
	f.auth.usersByToken["outsider-token"] = outsider

	conn := f.dial(t, "outsider-token")
	expectPolicyViolationClose(t, conn)
}

func TestChatConnectedAck(t *testing.T) {
	f := newWSFixture(t)
	user := f.addUser("token-a", "Alice")

	conn := f.dial(t, "token-a")

	frame := readFrame(t, conn)
	if frame.Type != ws.FrameConnected {
		t.Fatalf("expected connected frame, got %s", frame.Type)
	}

	data := frameData(t, frame)
	if data["room_id"] != f.roomID.String() {
		t.Errorf("expected room_id %s, got %v", f.roomID, data["room_id"])
	}
	if data["user_id"] != user.ID.String() {
		t.Errorf("expected user_id %s, got %v", user.ID, data["user_id"])
	}
	if data["connected_users"] != float64(1) {
		t.Errorf("expected 1 connected user, got %v", data["connected_users"])
	}
}

func TestChatMessageRoundTrip(t *testing.T) {
	f := newWSFixture(t)
	alice := f.addUser("token-a", "Alice")
	f.addUser("token-b", "Bob")

	aliceConn := f.dial(t, "token-a")
	if frame := readFrame(t, aliceConn); frame.Type != ws.FrameConnected {
		t.Fatalf("expected connected, got %s", frame.Type)
	}

	bobConn := f.dial(t, "token-b")
	if frame := readFrame(t, bobConn); frame.Type != ws.FrameConnected {
		t.Fatalf("expected connected, got %s", frame.Type)
	}

	// Алиса видит вход Боба
	if frame := readFrame(t, aliceConn); frame.Type != ws.FrameUserJoined {
		t.Fatalf("expected user_joined, got %s", frame.Type)
	}

	sendFrame(t, aliceConn, "send_message", map[string]string{"content": "hello"})

	// Подтверждение отправителю приходит раньше рассылки
	sent := readFrame(t, aliceConn)
	if sent.Type != ws.FrameMessageSent {
		t.Fatalf("expected message_sent, got %s", sent.Type)
	}
	sentID := frameData(t, sent)["message_id"]

	received := readFrame(t, bobConn)
	if received.Type != ws.FrameNewMessage {
		t.Fatalf("expected new_message, got %s", received.Type)
	}
	data := frameData(t, received)
	if data["message_id"] != sentID {
		t.Errorf("broadcast message_id %v does not match ack %v", data["message_id"], sentID)
	}
	if data["content"] != "hello" {
		t.Errorf("expected content 'hello', got %v", data["content"])
	}
	if data["user_id"] != alice.ID.String() {
		t.Errorf("expected sender %s, got %v", alice.ID, data["user_id"])
	}
	if data["display_name"] != "Alice" {
		t.Errorf("expected display_name Alice, got %v", data["display_name"])
	}
}

func TestChatInvalidContentYieldsMessageError(t *testing.T) {
	f := newWSFixture(t)
	f.addUser("token-a", "Alice")

	conn := f.dial(t, "token-a")
	readFrame(t, conn) // connected

	sendFrame(t, conn, "send_message", map[string]string{"content": "   "})

	frame := readFrame(t, conn)
	if frame.Type != ws.FrameMessageError {
		t.Fatalf("expected message_error, got %s", frame.Type)
	}
}

func TestChatRateLimitFrame(t *testing.T) {
	f := newWSFixture(t)
	f.addUser("token-a", "Alice")
	f.messages.rateLimited = true

	conn := f.dial(t, "token-a")
	readFrame(t, conn) // connected

	sendFrame(t, conn, "send_message", map[string]string{"content": "hello"})

	frame := readFrame(t, conn)
	if frame.Type != ws.FrameRateLimitExceeded {
		t.Fatalf("expected rate_limit_exceeded, got %s", frame.Type)
	}

	data := frameData(t, frame)
	if data["messages_remaining"] != float64(0) {
		t.Errorf("expected 0 remaining, got %v", data["messages_remaining"])
	}
	if data["reset_in_seconds"] != float64(42) {
		t.Errorf("expected reset in 42s, got %v", data["reset_in_seconds"])
	}
}

func TestChatPingPong(t *testing.T) {
	f := newWSFixture(t)
	f.addUser("token-a", "Alice")

	conn := f.dial(t, "token-a")
	readFrame(t, conn) // connected

	sendFrame(t, conn, "ping", nil)

	if frame := readFrame(t, conn); frame.Type != ws.FramePong {
		t.Fatalf("expected pong, got %s", frame.Type)
	}
}

func TestChatUnknownFrameType(t *testing.T) {
	f := newWSFixture(t)
	f.addUser("token-a", "Alice")

	conn := f.dial(t, "token-a")
	readFrame(t, conn) // connected

	sendFrame(t, conn, "dance", nil)

	frame := readFrame(t, conn)
	if frame.Type != ws.FrameError {
		t.Fatalf("expected error frame, got %s", frame.Type)
	}
	// Соединение переживает неизвестный кадр
	sendFrame(t, conn, "ping", nil)
	if frame := readFrame(t, conn); frame.Type != ws.FramePong {
		t.Fatalf("connection should survive unknown frames, got %s", frame.Type)
	}
}

func TestChatTypingBroadcast(t *testing.T) {
	f := newWSFixture(t)
	f.addUser("token-a", "Alice")
	f.addUser("token-b", "Bob")

	aliceConn := f.dial(t, "token-a")
	readFrame(t, aliceConn) // connected

	bobConn := f.dial(t, "token-b")
	readFrame(t, bobConn)   // connected
	readFrame(t, aliceConn) // user_joined

	sendFrame(t, bobConn, "typing_start", nil)
	if frame := readFrame(t, aliceConn); frame.Type != ws.FrameUserTyping {
		t.Fatalf("expected user_typing, got %s", frame.Type)
	}

	sendFrame(t, bobConn, "typing_stop", nil)
	if frame := readFrame(t, aliceConn); frame.Type != ws.FrameUserStoppedTyping {
		t.Fatalf("expected user_stopped_typing, got %s", frame.Type)
	}
}

func TestChatDisconnectAnnouncesLeave(t *testing.T) {
	f := newWSFixture(t)
	f.addUser("token-a", "Alice")
	bob := f.addUser("token-b", "Bob")

	aliceConn := f.dial(t, "token-a")
	readFrame(t, aliceConn) // connected

	bobConn := f.dial(t, "token-b")
	readFrame(t, bobConn)   // connected
	readFrame(t, aliceConn) // user_joined

	bobConn.Close()

	frame := readFrame(t, aliceConn)
	if frame.Type != ws.FrameUserLeft {
		t.Fatalf("expected user_left, got %s", frame.Type)
	}
	if frameData(t, frame)["user_id"] != bob.ID.String() {
		t.Errorf("expected Bob's user_id in user_left")
	}
}
