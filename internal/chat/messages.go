package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

// AppendMessage validates and stores a message from senderID, then notifies
// listeners and dispatches a push notification in the background. A non-empty
// clientID makes the call idempotent: resubmitting the same clientID returns
// the message stored the first time and triggers nothing.
func (s *Service) AppendMessage(ctx context.Context, roomID, senderID string, content models.MessageContent, clientID string) (*models.Message, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, ErrMissingRoomID
	}
	content = content.Normalize()
	if content.Empty() {
		return nil, ErrEmptyMessage
	}
	if err := content.Validate(); err != nil {
		return nil, ErrInvalidLocation
	}

	room, err := s.GetRoom(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		RoomID:         room.ID,
		SenderID:       senderID,
		MessageContent: content,
		ClientID:       strings.TrimSpace(clientID),
		Status:         models.StatusSent,
	}
	err = s.store.SaveMessage(ctx, msg)
	if errors.Is(err, store.ErrDuplicate) && msg.ClientID != "" {
		existing, err := s.store.GetMessageByClientID(ctx, room.ID, senderID, msg.ClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch resubmitted message: %w", err)
		}
		s.metrics.DuplicateSend()
		s.log.Debug().Str("message_id", existing.ID).Str("client_id", msg.ClientID).Msg("Message resubmitted, returning stored copy")
		return existing, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	kind := msg.Kind()
	s.metrics.MessageStored(string(kind))
	s.log.Debug().Str("message_id", msg.ID).Str("room_id", room.ID).Str("kind", string(kind)).Msg("Stored message")

	s.afterStore(ctx, *msg, *room)
	return msg, nil
}

// ListMessages returns the messages of roomID with seq > afterSeq in
// ascending order. Pass 0 for the whole room.
func (s *Service) ListMessages(ctx context.Context, roomID, requesterID string, afterSeq int64) ([]models.Message, error) {
	room, err := s.GetRoom(ctx, roomID, requesterID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.GetChatMessages(ctx, room.ID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
