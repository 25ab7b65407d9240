package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pliu/pairchat/internal/chat"
	"github.com/pliu/pairchat/internal/models"
)

type ChatHandler struct {
	Chat *chat.Service
}

type CreateRoomRequest struct {
	Username string `json:"username"`
}

type CreateRoomResponse struct {
	Success bool   `json:"success"`
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type SendMessageRequest struct {
	RoomID string `json:"roomId"`
	models.MessageContent
	ClientMessageID string `json:"clientMessageId"`
}

// CreateRoom answers 201 when the room is new and 200 when the pair already
// had one.
func (h *ChatHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	room, created, err := h.Chat.CreateOrGetRoom(r.Context(), userID, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if created {
		writeJSON(w, http.StatusCreated, CreateRoomResponse{Success: true, RoomID: room.ID, Message: "Chat room created"})
	} else {
		writeJSON(w, http.StatusOK, CreateRoomResponse{Success: true, RoomID: room.ID, Message: "Chat room already exists"})
	}
}

func (h *ChatHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	summaries, err := h.Chat.ListRoomsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.Chat.AppendMessage(r.Context(), req.RoomID, userID, req.MessageContent, req.ClientMessageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// ListMessages returns the room's messages in ascending order. The optional
// "after" query parameter skips messages up to and including that seq.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	roomID := mux.Vars(r)["roomId"]

	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		var err error
		after, err = strconv.ParseInt(v, 10, 64)
		if err != nil || after < 0 {
			writeMessage(w, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
	}

	messages, err := h.Chat.ListMessages(r.Context(), roomID, userID, after)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}
