package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/pliu/pairchat/internal/auth"
	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

const maxFieldLength = 255

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

type Credentials struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type AuthHandler struct {
	Store  store.Store
	Tokens *auth.Tokens
}

// clean trims s and cuts it to maxFieldLength runes.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxFieldLength {
		s = string(r[:maxFieldLength])
	}
	return s
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = clean(req.Username)
	req.Email = strings.ToLower(clean(req.Email))
	req.Phone = clean(req.Phone)
	req.Location = clean(req.Location)

	if req.Username == "" || req.Location == "" || req.Password == "" || (req.Email == "" && req.Phone == "") {
		writeMessage(w, http.StatusBadRequest, "Missing required fields: username, location, password, and either email or phone")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Location: req.Location,
		Password: hashedPassword,
	}
	err = h.Store.CreateUser(r.Context(), user)
	if errors.Is(err, store.ErrDuplicate) {
		writeMessage(w, http.StatusConflict, "Username, email or phone already registered")
		return
	} else if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.Tokens.Sign(user.ID, user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("user_id", user.ID).Msg("Registered user")
	writeJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if !decodeJSON(w, r, &creds) {
		return
	}
	creds.Identifier = strings.TrimSpace(creds.Identifier)
	if creds.Identifier == "" || creds.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Missing identifier or password")
		return
	}

	user, err := h.Store.GetUserByLogin(r.Context(), creds.Identifier)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	} else if err != nil {
		writeError(w, r, err)
		return
	}

	if !auth.CheckPassword(user.Password, creds.Password) {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.Tokens.Sign(user.ID, user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}
