package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomchat-service/internal/config"
	"roomchat-service/internal/mocks"
	"roomchat-service/internal/models"
	"roomchat-service/internal/repositories"
	"roomchat-service/internal/session"
	"roomchat-service/internal/ws"
)

type messageHandlerFixture struct {
	rooms    *mocks.RoomRepositoryMock
	messages *mocks.MessageRepositoryMock
	users    *mocks.UserRepositoryMock
	router   *gin.Engine
}

func newMessageHandlerFixture() *messageHandlerFixture {
	gin.SetMode(gin.TestMode)
	f := &messageHandlerFixture{
		rooms:    new(mocks.RoomRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
	}

	coordinator := ws.NewCoordinator(session.NewRegistry(), ws.NewHub(), nil,
		f.rooms, f.users, f.messages, config.FanoutRooms, 0)
	handler := NewMessageHandler(f.rooms, f.messages, f.users, coordinator, nil)

	f.router = gin.New()
	f.router.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Set("username", "alice")
		c.Next()
	})
	f.router.POST("/api/messages", handler.SendMessage)
	f.router.GET("/api/messages/rooms/:room_id", handler.ListRoomMessages)
	f.router.GET("/api/messages/all", handler.ListAllMessages)
	return f
}

func TestSendMessageCreated(t *testing.T) {
	f := newMessageHandlerFixture()

	f.rooms.On("GetRoom", mock.Anything, 5).Return(models.Room{ID: 5}, nil).Once()
	f.rooms.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	msg := models.Message{ID: 10, RoomID: 5, SenderID: 1, Content: "hello"}
	f.messages.On("CreateMessage", mock.Anything, 5, 1, "hello").Return(msg, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(`{"room_id":5,"content":"hello"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Message models.MessageView `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 10, body.Message.ID)
	require.Equal(t, "alice", body.Message.SenderUsername)
	f.messages.AssertExpectations(t)
}

func TestSendMessageForbiddenForNonParticipant(t *testing.T) {
	f := newMessageHandlerFixture()

	f.rooms.On("GetRoom", mock.Anything, 5).Return(models.Room{ID: 5}, nil).Once()
	f.rooms.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(`{"room_id":5,"content":"hello"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageRoomNotFound(t *testing.T) {
	f := newMessageHandlerFixture()

	f.rooms.On("GetRoom", mock.Anything, 99).Return(models.Room{}, repositories.ErrRoomNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(`{"room_id":99,"content":"hello"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessageRejectsBlankContent(t *testing.T) {
	f := newMessageHandlerFixture()

	f.rooms.On("GetRoom", mock.Anything, 5).Return(models.Room{ID: 5}, nil).Once()
	f.rooms.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, 5, 1, "   ").Return(models.Message{}, repositories.ErrEmptyContent).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(`{"room_id":5,"content":"   "}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRoomMessagesForbiddenForNonParticipant(t *testing.T) {
	f := newMessageHandlerFixture()

	f.rooms.On("GetRoom", mock.Anything, 5).Return(models.Room{ID: 5}, nil).Once()
	f.rooms.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/rooms/5", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	f.messages.AssertNotCalled(t, "ListRoomMessages", mock.Anything, mock.Anything)
}

func TestListRoomMessagesResolvesSenderNames(t *testing.T) {
	f := newMessageHandlerFixture()

	f.rooms.On("GetRoom", mock.Anything, 5).Return(models.Room{ID: 5}, nil).Once()
	f.rooms.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	msgs := []models.Message{
		{ID: 1, RoomID: 5, SenderID: 1, Content: "hi"},
		{ID: 2, RoomID: 5, SenderID: 2, Content: "hey"},
		{ID: 3, RoomID: 5, SenderID: 1, Content: "again"},
	}
	f.messages.On("ListRoomMessages", mock.Anything, 5).Return(msgs, nil).Once()
	f.users.On("BulkUsers", mock.Anything, []int{1, 2}).Return([]models.User{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "bob"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/rooms/5", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Messages []models.MessageView `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 3)
	require.Equal(t, "alice", body.Messages[0].SenderUsername)
	require.Equal(t, "bob", body.Messages[1].SenderUsername)
	f.users.AssertExpectations(t)
}

func TestListAllMessagesEmpty(t *testing.T) {
	f := newMessageHandlerFixture()

	f.messages.On("ListUserMessages", mock.Anything, 1).Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/all", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	f.users.AssertNotCalled(t, "BulkUsers", mock.Anything, mock.Anything)
}
