package handlers

import (
	"context"
	"net/http"
	"testing"
)

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	body := map[string]string{
		"username": "testuser",
		"password": "password123",
		"email":    "  TestUser@Example.com ",
		"location": "Kumasi",
	}
	rr := s.do(t, "POST", "/auth/register", "", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusCreated)
	}
	var resp AuthResponse
	decode(t, rr, &resp)
	if resp.Token == "" {
		t.Error("Expected a token in the response")
	}
	if resp.User.Email != "testuser@example.com" {
		t.Errorf("Expected lowercased email, got %q", resp.User.Email)
	}
	claims, err := s.tokens.Parse(resp.Token)
	if err != nil || claims.UserID != resp.User.ID {
		t.Errorf("token does not identify the new user: %v", err)
	}

	stored, err := s.store.GetUserByUsername(context.Background(), "testuser")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Password == "password123" {
		t.Error("Password stored in plain text")
	}

	// Test duplicate user
	rr = s.do(t, "POST", "/auth/register", "", body)
	if rr.Code != http.StatusConflict {
		t.Errorf("handler returned wrong status code for duplicate user: got %v want %v",
			rr.Code, http.StatusConflict)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing username", map[string]string{"password": "p", "email": "a@b.c", "location": "x"}},
		{"missing password", map[string]string{"username": "a", "email": "a@b.c", "location": "x"}},
		{"missing location", map[string]string{"username": "a", "password": "p", "email": "a@b.c"}},
		{"missing email and phone", map[string]string{"username": "a", "password": "p", "location": "x"}},
		{"blank username", map[string]string{"username": "   ", "password": "p", "phone": "555", "location": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, "POST", "/auth/register", "", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
			}
		})
	}

	rr := s.do(t, "POST", "/auth/register", "", map[string]string{
		"username": "phoneonly", "password": "p", "phone": "0244000000", "location": "Tema",
	})
	if rr.Code != http.StatusCreated {
		t.Errorf("phone-only registration: got %v want %v", rr.Code, http.StatusCreated)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, "POST", "/auth/register", "", map[string]string{
		"username": "testuser",
		"password": "password123",
		"email":    "testuser@example.com",
		"phone":    "0200000000",
		"location": "Accra",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register failed: %d", rr.Code)
	}

	tests := []struct {
		name           string
		creds          Credentials
		expectedStatus int
	}{
		{"username", Credentials{"testuser", "password123"}, http.StatusOK},
		{"email", Credentials{"TestUser@example.com", "password123"}, http.StatusOK},
		{"phone", Credentials{"0200000000", "password123"}, http.StatusOK},
		{"wrong password", Credentials{"testuser", "wrong"}, http.StatusUnauthorized},
		{"unknown user", Credentials{"nobody", "password123"}, http.StatusNotFound},
		{"missing password", Credentials{"testuser", ""}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, "POST", "/auth/login", "", tt.creds)
			if rr.Code != tt.expectedStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var resp AuthResponse
			decode(t, rr, &resp)
			if resp.User == nil || resp.User.Username != "testuser" || resp.Token == "" {
				t.Errorf("unexpected login response %+v", resp)
			}
		})
	}
}

func TestInvalidBody(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, "POST", "/auth/login", "", "not an object")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
}
