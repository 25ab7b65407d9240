package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Location     string    `json:"location"`
	Password     string    `json:"-"`
	IsVerified   bool      `json:"verified"`
	PushToken    *string   `json:"-"`
	ProfileImage *string   `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`

	VerificationCode string     `json:"-"`
	CodeExpiresAt    *time.Time `json:"-"`
}

// Room is a two-party conversation. Participants are stored in canonical
// order, so Participants[0] < Participants[1].
type Room struct {
	ID           string    `json:"roomId"`
	Participants [2]string `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Other returns the participant that is not userID.
func (r *Room) Other(userID string) (string, bool) {
	switch userID {
	case r.Participants[0]:
		return r.Participants[1], r.Participants[1] != "" && r.Participants[1] != userID
	case r.Participants[1]:
		return r.Participants[0], r.Participants[0] != "" && r.Participants[0] != userID
	}
	return "", false
}

func (r *Room) HasParticipant(userID string) bool {
	return userID != "" && (r.Participants[0] == userID || r.Participants[1] == userID)
}

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

type Message struct {
	ID       string `json:"id"`
	Seq      int64  `json:"seq"`
	RoomID   string `json:"roomId"`
	SenderID string `json:"senderId"`
	MessageContent
	ClientID  string    `json:"clientMessageId,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

type Contact struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	ContactID    string    `json:"contactId"`
	Username     string    `json:"username"`
	ProfileImage string    `json:"profilePicUrl"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Participant struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	ProfileImage *string `json:"profileImage"`
}

type RoomSummary struct {
	RoomID               string        `json:"roomId"`
	Participants         []Participant `json:"participants"`
	LastMessage          *string       `json:"lastMessage"`
	LastMessageKind      Kind          `json:"lastMessageKind,omitempty"`
	LastMessageTimestamp *time.Time    `json:"lastMessageTimestamp"`
	UnreadCount          int           `json:"unreadCount"`
	CreatedAt            time.Time     `json:"createdAt"`
}
