package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

type UserHandler struct {
	Store store.Store
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := h.Store.GetUserByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	} else if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// List returns every user, or those matching the "q" query parameter.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	var users []models.User
	var err error
	if query == "" {
		users, err = h.Store.ListUsers(r.Context())
	} else {
		users, err = h.Store.SearchUsers(r.Context(), query)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type pushTokenRequest struct {
	PushToken *string `json:"pushToken"`
}

// SetPushToken replaces the caller's push token. An empty or null token
// clears it.
func (h *UserHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req pushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PushToken != nil {
		token := strings.TrimSpace(*req.PushToken)
		req.PushToken = &token
		if token == "" {
			req.PushToken = nil
		}
	}
	err := h.Store.SetPushToken(r.Context(), userID, req.PushToken)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	} else if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type profileImageRequest struct {
	ProfileImage string `json:"profileImage"`
}

func (h *UserHandler) SetProfileImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req profileImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	url := strings.TrimSpace(req.ProfileImage)
	if url == "" {
		writeMessage(w, http.StatusBadRequest, "profileImage is required")
		return
	}
	err := h.Store.SetProfileImage(r.Context(), userID, url)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	} else if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"imageUrl": url})
}
