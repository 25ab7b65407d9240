package store

import (
	"context"
	"errors"
	"time"

	"github.com/pliu/pairchat/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByLogin(ctx context.Context, identifier string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SearchUsers(ctx context.Context, query string) ([]models.User, error)
	SetPushToken(ctx context.Context, userID string, token *string) error
	SetProfileImage(ctx context.Context, userID, url string) error
	SetVerificationCode(ctx context.Context, userID, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, userID string) error
	// RecordVerificationFailure counts a wrong code and discards the pending
	// code once limit failures have been recorded. It reports whether the code
	// was discarded.
	RecordVerificationFailure(ctx context.Context, userID string, limit int) (bool, error)

	// Room operations. CreateRoom returns ErrDuplicate when a room for the
	// same participant pair already exists.
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	GetRoomByPair(ctx context.Context, a, b string) (*models.Room, error)
	GetUserRooms(ctx context.Context, userID string) ([]models.Room, error)

	// Message operations. SaveMessage assigns ID, Seq and CreatedAt and
	// returns ErrDuplicate when the sender already stored the same client ID
	// in the room.
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessageByClientID(ctx context.Context, roomID, senderID, clientID string) (*models.Message, error)
	GetChatMessages(ctx context.Context, roomID string, afterSeq int64) ([]models.Message, error)
	GetLastMessages(ctx context.Context, roomIDs []string) (map[string]models.Message, error)

	// Contact operations
	CreateContact(ctx context.Context, contact *models.Contact) error
	ContactExists(ctx context.Context, ownerID, contactUserID string) (bool, error)
	DeleteContact(ctx context.Context, ownerID, id string) error
	ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error)

	Ping(ctx context.Context) error
	Close() error
}
