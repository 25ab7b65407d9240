package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pliu/pairchat/internal/models"
)

func TestMe(t *testing.T) {
	s := newTestServer(t)
	aliceID, aliceToken := s.register(t, "alice")

	rr := s.do(t, "GET", "/users/me", aliceToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	var me models.User
	decode(t, rr, &me)
	if me.ID != aliceID || me.Username != "alice" || me.Email != "alice@example.com" {
		t.Errorf("unexpected user %+v", me)
	}

	// A valid token for a user that no longer resolves.
	ghost, _ := s.tokens.Sign("ghost", "ghost")
	if rr := s.do(t, "GET", "/users/me", ghost, nil); rr.Code != http.StatusNotFound {
		t.Errorf("ghost: got %v want %v", rr.Code, http.StatusNotFound)
	}
}

func TestListUsers(t *testing.T) {
	s := newTestServer(t)
	_, aliceToken := s.register(t, "alice")
	s.register(t, "bob")

	var users []models.User
	decode(t, s.do(t, "GET", "/users", aliceToken, nil), &users)
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.Email == u.Username+"@example.com" {
			t.Errorf("email of %s is not masked", u.Username)
		}
	}

	decode(t, s.do(t, "GET", "/users?q=bo", aliceToken, nil), &users)
	if len(users) != 1 || users[0].Username != "bob" {
		t.Errorf("unexpected search result %+v", users)
	}
}

func TestSetPushToken(t *testing.T) {
	s := newTestServer(t)
	aliceID, aliceToken := s.register(t, "alice")
	ctx := context.Background()

	rr := s.do(t, "PATCH", "/users/me/push-token", aliceToken, map[string]string{"pushToken": "device-1"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNoContent)
	}
	user, _ := s.store.GetUserByID(ctx, aliceID)
	if user.PushToken == nil || *user.PushToken != "device-1" {
		t.Errorf("unexpected push token %v", user.PushToken)
	}

	rr = s.do(t, "PATCH", "/users/me/push-token", aliceToken, map[string]any{"pushToken": nil})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("clear: got %v want %v", rr.Code, http.StatusNoContent)
	}
	user, _ = s.store.GetUserByID(ctx, aliceID)
	if user.PushToken != nil {
		t.Errorf("Expected push token to be cleared, got %v", *user.PushToken)
	}
}

func TestSetProfileImage(t *testing.T) {
	s := newTestServer(t)
	aliceID, aliceToken := s.register(t, "alice")

	rr := s.do(t, "PATCH", "/users/me/profile-image", aliceToken, map[string]string{"profileImage": "https://cdn.example.com/a.png"})
	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	user, _ := s.store.GetUserByID(context.Background(), aliceID)
	if user.ProfileImage == nil || *user.ProfileImage != "https://cdn.example.com/a.png" {
		t.Errorf("unexpected profile image %v", user.ProfileImage)
	}

	if rr := s.do(t, "PATCH", "/users/me/profile-image", aliceToken, map[string]string{}); rr.Code != http.StatusBadRequest {
		t.Errorf("empty: got %v want %v", rr.Code, http.StatusBadRequest)
	}
}

func TestVerify(t *testing.T) {
	s := newTestServer(t)
	aliceID, _ := s.register(t, "alice")
	ctx := context.Background()

	if rr := s.do(t, "POST", "/verify/request", "", map[string]string{"email": "nobody@example.com"}); rr.Code != http.StatusNotFound {
		t.Errorf("unknown email: got %v want %v", rr.Code, http.StatusNotFound)
	}
	if rr := s.do(t, "POST", "/verify/confirm", "", map[string]string{"email": "alice@example.com", "code": "123456"}); rr.Code != http.StatusBadRequest {
		t.Errorf("confirm before request: got %v want %v", rr.Code, http.StatusBadRequest)
	}

	rr := s.do(t, "POST", "/verify/request", "", map[string]string{"email": "Alice@example.com"})
	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if len(s.mailer.codes) != 1 || len(s.mailer.codes[0]) != 6 || s.mailer.to != "alice@example.com" {
		t.Fatalf("unexpected mail %q to %q", s.mailer.codes, s.mailer.to)
	}
	code := s.mailer.codes[0]

	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	if rr := s.do(t, "POST", "/verify/confirm", "", map[string]string{"email": "alice@example.com", "code": wrong}); rr.Code != http.StatusBadRequest {
		t.Errorf("wrong code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
	if rr := s.do(t, "POST", "/verify/confirm", "", map[string]string{"email": "alice@example.com", "code": code}); rr.Code != http.StatusOK {
		t.Errorf("right code: got %v want %v", rr.Code, http.StatusOK)
	}

	user, _ := s.store.GetUserByID(ctx, aliceID)
	if !user.IsVerified || user.VerificationCode != "" {
		t.Errorf("Expected verified user without a pending code, got %+v", user)
	}
}

func TestVerifyAttemptLimit(t *testing.T) {
	s := newTestServer(t)
	aliceID, _ := s.register(t, "alice")

	if rr := s.do(t, "POST", "/verify/request", "", map[string]string{"email": "alice@example.com"}); rr.Code != http.StatusOK {
		t.Fatalf("request: got %d", rr.Code)
	}
	code := s.mailer.codes[0]
	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}

	var last map[string]string
	for i := 0; i < maxVerificationAttempts; i++ {
		rr := s.do(t, "POST", "/verify/confirm", "", map[string]string{"email": "alice@example.com", "code": wrong})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: got %v want %v", i+1, rr.Code, http.StatusBadRequest)
		}
		last = nil
		decode(t, rr, &last)
	}
	if !strings.Contains(last["message"], "Too many attempts") {
		t.Errorf("expected the code to be discarded, got %q", last["message"])
	}

	rr := s.do(t, "POST", "/verify/confirm", "", map[string]string{"email": "alice@example.com", "code": code})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("discarded code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
	user, _ := s.store.GetUserByID(context.Background(), aliceID)
	if user.IsVerified {
		t.Error("user must not be verified with a discarded code")
	}

	// A fresh code starts a fresh count.
	s.do(t, "POST", "/verify/request", "", map[string]string{"email": "alice@example.com"})
	fresh := s.mailer.codes[len(s.mailer.codes)-1]
	if rr := s.do(t, "POST", "/verify/confirm", "", map[string]string{"email": "alice@example.com", "code": fresh}); rr.Code != http.StatusOK {
		t.Errorf("fresh code: got %v want %v", rr.Code, http.StatusOK)
	}
}

func TestVerifyExpired(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice")

	now := time.Now()
	handler := &VerifyHandler{Store: s.store, Mailer: s.mailer, Now: func() time.Time { return now }}
	s.handler = http.HandlerFunc(handler.Request)
	if rr := s.do(t, "POST", "/", "", map[string]string{"email": "alice@example.com"}); rr.Code != http.StatusOK {
		t.Fatalf("request: got %d", rr.Code)
	}

	now = now.Add(verificationCodeTTL + time.Second)
	s.handler = http.HandlerFunc(handler.Confirm)
	rr := s.do(t, "POST", "/", "", map[string]string{"email": "alice@example.com", "code": s.mailer.codes[0]})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expired code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
}
