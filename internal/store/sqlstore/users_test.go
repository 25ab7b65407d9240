package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

func TestCreateUser(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	user := &models.User{Username: "testuser", Email: "test@example.com", Password: "password123"}
	if err := testStore.CreateUser(ctx, user); err != nil {
		t.Errorf("Failed to create user: %v", err)
	}
	if user.ID == "" {
		t.Error("Expected generated user ID")
	}

	// Test duplicate user
	err := testStore.CreateUser(ctx, &models.User{Username: "testuser", Phone: "555", Password: "password123"})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for duplicate username, got %v", err)
	}

	// Users without an email do not collide on the email column.
	if err := testStore.CreateUser(ctx, &models.User{Username: "a", Phone: "1", Password: "p"}); err != nil {
		t.Errorf("Failed to create phone-only user: %v", err)
	}
	if err := testStore.CreateUser(ctx, &models.User{Username: "b", Phone: "2", Password: "p"}); err != nil {
		t.Errorf("Failed to create second phone-only user: %v", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	createTestUser(t, "testuser")

	user, err := testStore.GetUserByUsername(ctx, "testuser")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if user.Username != "testuser" {
		t.Errorf("Expected username 'testuser', got '%s'", user.Username)
	}

	// Usernames are case-sensitive.
	if _, err = testStore.GetUserByUsername(ctx, "TestUser"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for different case, got %v", err)
	}

	_, err = testStore.GetUserByUsername(ctx, "nonexistent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for nonexistent user, got %v", err)
	}
}

func TestGetUserByLogin(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	testStore.CreateUser(ctx, &models.User{Username: "alice", Email: "alice@example.com", Phone: "+15550100", Password: "p"})

	for _, identifier := range []string{"alice", "ALICE@example.com", "+15550100"} {
		user, err := testStore.GetUserByLogin(ctx, identifier)
		if err != nil {
			t.Errorf("Lookup by %q failed: %v", identifier, err)
			continue
		}
		if user.Username != "alice" {
			t.Errorf("Lookup by %q returned %q", identifier, user.Username)
		}
	}
}

func TestSearchUsers(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	createTestUser(t, "alice")
	createTestUser(t, "bob")
	createTestUser(t, "alex")

	users, err := testStore.SearchUsers(context.Background(), "al")
	if err != nil {
		t.Errorf("SearchUsers failed: %v", err)
	}

	if len(users) != 2 {
		t.Errorf("Expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.Email == u.Username+"@example.com" {
			t.Errorf("Expected masked email, got %s", u.Email)
		}
	}
}

func TestPushTokenAndProfileImage(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	user := createTestUser(t, "alice")
	if user.PushToken != nil {
		t.Error("Expected no push token on a new user")
	}

	token := "device-token"
	if err := testStore.SetPushToken(ctx, user.ID, &token); err != nil {
		t.Fatalf("SetPushToken failed: %v", err)
	}
	if err := testStore.SetProfileImage(ctx, user.ID, "https://cdn.example.com/a.png"); err != nil {
		t.Fatalf("SetProfileImage failed: %v", err)
	}

	got, _ := testStore.GetUserByID(ctx, user.ID)
	if got.PushToken == nil || *got.PushToken != token {
		t.Errorf("Expected push token %q, got %v", token, got.PushToken)
	}
	if got.ProfileImage == nil || *got.ProfileImage != "https://cdn.example.com/a.png" {
		t.Errorf("Unexpected profile image %v", got.ProfileImage)
	}

	if err := testStore.SetPushToken(ctx, "missing", &token); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestVerification(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	user := createTestUser(t, "alice")
	expires := time.Now().Add(5 * time.Minute)
	if err := testStore.SetVerificationCode(ctx, user.ID, "123456", expires); err != nil {
		t.Fatalf("SetVerificationCode failed: %v", err)
	}
	got, _ := testStore.GetUserByEmail(ctx, "alice@example.com")
	if got.VerificationCode != "123456" || got.CodeExpiresAt == nil {
		t.Errorf("Expected stored code, got %q %v", got.VerificationCode, got.CodeExpiresAt)
	}

	if err := testStore.MarkVerified(ctx, user.ID); err != nil {
		t.Fatalf("MarkVerified failed: %v", err)
	}
	got, _ = testStore.GetUserByID(ctx, user.ID)
	if !got.IsVerified || got.VerificationCode != "" {
		t.Errorf("Expected verified user with cleared code, got %+v", got)
	}
}

func TestRecordVerificationFailure(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	user := createTestUser(t, "alice")
	testStore.SetVerificationCode(ctx, user.ID, "123456", time.Now().Add(5*time.Minute))

	for i := 1; i <= 3; i++ {
		discarded, err := testStore.RecordVerificationFailure(ctx, user.ID, 3)
		if err != nil {
			t.Fatalf("RecordVerificationFailure failed: %v", err)
		}
		if discarded != (i == 3) {
			t.Errorf("failure %d: discarded = %v", i, discarded)
		}
	}
	got, _ := testStore.GetUserByID(ctx, user.ID)
	if got.VerificationCode != "" || got.CodeExpiresAt != nil {
		t.Errorf("Expected the code to be discarded, got %q %v", got.VerificationCode, got.CodeExpiresAt)
	}

	// A new code resets the count.
	testStore.SetVerificationCode(ctx, user.ID, "654321", time.Now().Add(5*time.Minute))
	if discarded, _ := testStore.RecordVerificationFailure(ctx, user.ID, 3); discarded {
		t.Error("Expected a fresh code to survive one failure")
	}

	if _, err := testStore.RecordVerificationFailure(ctx, "missing", 3); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"ab@example.com":     "a*@example.com",
		"alexander@test.com": "ale******@test.com",
		"bad":                "bad",
	}
	for in, want := range tests {
		if got := maskEmail(in); got != want {
			t.Errorf("maskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
