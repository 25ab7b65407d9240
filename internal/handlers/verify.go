package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/pliu/pairchat/internal/store"
)

const (
	verificationCodeTTL = 5 * time.Minute
	// maxVerificationAttempts wrong codes discard the pending code.
	maxVerificationAttempts = 5
)

type VerificationMailer interface {
	SendVerificationCode(to, username, code string, minutes int) error
}

type VerifyHandler struct {
	Store  store.Store
	Mailer VerificationMailer
	// Now defaults to time.Now.
	Now func() time.Time
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *VerifyHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Request stores a fresh six-digit code for the account and mails it.
func (h *VerifyHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		writeMessage(w, http.StatusBadRequest, "Email required")
		return
	}
	user, err := h.Store.GetUserByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	} else if err != nil {
		writeError(w, r, err)
		return
	}

	code, err := newVerificationCode()
	if err != nil {
		writeError(w, r, err)
		return
	}
	expiresAt := h.now().Add(verificationCodeTTL)
	if err = h.Store.SetVerificationCode(r.Context(), user.ID, code, expiresAt); err != nil {
		writeError(w, r, err)
		return
	}
	if err = h.Mailer.SendVerificationCode(email, user.Username, code, int(verificationCodeTTL/time.Minute)); err != nil {
		hlog.FromRequest(r).Err(err).Str("user_id", user.ID).Msg("Failed to send verification code")
		writeMessage(w, http.StatusInternalServerError, "Failed to send verification code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Verification code sent via email",
		"expiresAt": expiresAt.UTC(),
	})
}

func (h *VerifyHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	code := strings.TrimSpace(req.Code)
	if email == "" || code == "" {
		writeMessage(w, http.StatusBadRequest, "Email and code are required")
		return
	}
	user, err := h.Store.GetUserByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	} else if err != nil {
		writeError(w, r, err)
		return
	}

	switch {
	case user.VerificationCode == "" || user.CodeExpiresAt == nil:
		writeMessage(w, http.StatusBadRequest, "No verification in progress")
		return
	case h.now().After(*user.CodeExpiresAt):
		writeMessage(w, http.StatusBadRequest, "Verification code expired")
		return
	case subtle.ConstantTimeCompare([]byte(user.VerificationCode), []byte(code)) != 1:
		discarded, err := h.Store.RecordVerificationFailure(r.Context(), user.ID, maxVerificationAttempts)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if discarded {
			hlog.FromRequest(r).Warn().Str("user_id", user.ID).Msg("Discarded verification code after repeated failures")
			writeMessage(w, http.StatusBadRequest, "Too many attempts, request a new code")
			return
		}
		writeMessage(w, http.StatusBadRequest, "Invalid code")
		return
	}

	if err = h.Store.MarkVerified(r.Context(), user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("user_id", user.ID).Msg("Verified account")
	writeJSON(w, http.StatusOK, map[string]any{"message": "Account verified successfully", "verified": true})
}
