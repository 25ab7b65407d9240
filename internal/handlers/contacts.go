package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pliu/pairchat/internal/chat"
	"github.com/pliu/pairchat/internal/models"
)

type ContactHandler struct {
	Chat *chat.Service
}

type AddContactRequest struct {
	Username string `json:"username"`
}

func (h *ContactHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req AddContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	contact, err := h.Chat.AddContact(r.Context(), userID, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contacts, err := h.Chat.ListContacts(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *ContactHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.Chat.RemoveContact(r.Context(), userID, mux.Vars(r)["contactId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
