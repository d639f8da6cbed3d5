package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomchat-service/internal/mocks"
	"roomchat-service/internal/models"
	"roomchat-service/internal/repositories"
)

func setupRoomRouter(handler *RoomHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Set("username", "alice")
		c.Next()
	})
	r.POST("/api/rooms", handler.CreateRoom)
	r.GET("/api/rooms", handler.ListRooms)
	r.GET("/api/rooms/:room_id", handler.GetRoom)
	r.POST("/api/rooms/:room_id/participants", handler.AddParticipant)
	r.DELETE("/api/rooms/:room_id", handler.DeleteRoom)
	return r
}

func TestCreateRoomCreated(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	room := models.Room{ID: 5, Participants: []models.Participant{{UserID: 1, Username: "alice"}, {UserID: 2, Username: "bob"}}}
	roomRepo.On("CreateRoom", mock.Anything, []int{1, 2}).Return(room, true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString(`{"participant_ids":[2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestCreateRoomReusesExactSetMatch(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	room := models.Room{ID: 5}
	roomRepo.On("CreateRoom", mock.Anything, []int{1, 2}).Return(room, false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString(`{"participant_ids":[2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestCreateRoomUnknownParticipant(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("CreateRoom", mock.Anything, []int{1, 99}).Return(models.Room{}, false, repositories.ErrParticipantsNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString(`{"participant_ids":[99]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRoomInvalidBody(t *testing.T) {
	handler := NewRoomHandler(new(mocks.RoomRepositoryMock), nil)
	router := setupRoomRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString(`{"participant_ids":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddParticipantAlreadyMember(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	roomRepo.On("AddParticipant", mock.Anything, 5, 2).Return(models.Room{}, repositories.ErrAlreadyParticipant).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/5/participants", bytes.NewBufferString(`{"participant_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestAddParticipantDuplicateSetConflict(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	// growing the room would give it the member set of an existing room
	roomRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	roomRepo.On("AddParticipant", mock.Anything, 5, 3).Return(models.Room{}, repositories.ErrDuplicateParticipantSet).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/5/participants", bytes.NewBufferString(`{"participant_id":3}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestAddParticipantRequesterNotMember(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/5/participants", bytes.NewBufferString(`{"participant_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	roomRepo.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteRoomForbiddenForNonParticipant(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	room := models.Room{ID: 5, Participants: []models.Participant{{UserID: 2, Username: "bob"}}}
	roomRepo.On("GetRoom", mock.Anything, 5).Return(room, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/rooms/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	roomRepo.AssertNotCalled(t, "DeleteRoom", mock.Anything, mock.Anything)
}

func TestDeleteRoomSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	room := models.Room{ID: 5, Participants: []models.Participant{{UserID: 1, Username: "alice"}}}
	roomRepo.On("GetRoom", mock.Anything, 5).Return(room, nil).Once()
	roomRepo.On("DeleteRoom", mock.Anything, 5).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/rooms/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestGetRoomInvalidID(t *testing.T) {
	handler := NewRoomHandler(new(mocks.RoomRepositoryMock), nil)
	router := setupRoomRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/bad", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
