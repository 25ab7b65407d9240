package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/pliu/pairchat/internal/models"
)

var testStore *SQLStore

func SetupTestDB(t *testing.T) {
	var err error
	testStore, err = New("sqlite3", ":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
}

func TeardownTestDB() {
	testStore.db.Close()
}

func createTestUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Password: "pass"}
	if err := testStore.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New("mysql", "", zerolog.Nop()); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}) {
		t.Error("Expected sqlite unique constraint to be detected")
	}
	if isUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}) {
		t.Error("Check constraint is not a unique violation")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Error("Plain error is not a unique violation")
	}
	if isUniqueViolation(nil) {
		t.Error("nil is not a unique violation")
	}
}
