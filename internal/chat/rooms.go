package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

// CreateOrGetRoom returns the room shared by requesterID and the user named
// targetUsername, creating it if needed. created reports whether this call
// inserted the room.
func (s *Service) CreateOrGetRoom(ctx context.Context, requesterID, targetUsername string) (*models.Room, bool, error) {
	if strings.TrimSpace(targetUsername) == "" {
		return nil, false, ErrMissingUsername
	}
	target, err := s.store.GetUserByUsername(ctx, targetUsername)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, ErrRecipientNotFound
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to look up recipient: %w", err)
	}
	if target.ID == requesterID {
		return nil, false, ErrSelfRoomNotAllowed
	}

	room, err := s.store.GetRoomByPair(ctx, requesterID, target.ID)
	if err == nil {
		return room, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up room: %w", err)
	}

	room = &models.Room{Participants: [2]string{requesterID, target.ID}}
	err = s.store.CreateRoom(ctx, room)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost the race against a concurrent create for the same pair.
		room, err = s.store.GetRoomByPair(ctx, requesterID, target.ID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to fetch existing room: %w", err)
		}
		return room, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to create room: %w", err)
	}

	s.metrics.RoomCreated()
	s.log.Info().Str("room_id", room.ID).Str("requester_id", requesterID).Str("target_id", target.ID).Msg("Created chat room")
	return room, true, nil
}

// GetRoom returns the room if userID participates in it.
func (s *Service) GetRoom(ctx context.Context, roomID, userID string) (*models.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up room: %w", err)
	}
	if !room.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return room, nil
}

// ListRoomsForUser returns summaries of every room userID is in, most
// recently active first. Rooms without messages come last, newest first.
func (s *Service) ListRoomsForUser(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	rooms, err := s.store.GetUserRooms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	roomIDs := make([]string, 0, len(rooms))
	userIDs := make([]string, 0, len(rooms)+1)
	seen := make(map[string]struct{})
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.ID)
		for _, p := range room.Participants {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				userIDs = append(userIDs, p)
			}
		}
	}

	users, err := s.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	last, err := s.store.GetLastMessages(ctx, roomIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load last messages: %w", err)
	}

	summaries := make([]models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary := models.RoomSummary{
			RoomID:       room.ID,
			Participants: make([]models.Participant, 0, len(room.Participants)),
			// No read cursor is tracked yet.
			UnreadCount: 0,
			CreatedAt:   room.CreatedAt,
		}
		for _, p := range room.Participants {
			participant := models.Participant{ID: p}
			if u, ok := users[p]; ok {
				participant.Username = u.Username
				participant.ProfileImage = u.ProfileImage
			}
			summary.Participants = append(summary.Participants, participant)
		}
		if msg, ok := last[room.ID]; ok {
			preview := models.Preview(msg.MessageContent)
			ts := msg.CreatedAt
			summary.LastMessage = &preview
			summary.LastMessageKind = msg.Kind()
			summary.LastMessageTimestamp = &ts
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].LastMessageTimestamp, summaries[j].LastMessageTimestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return summaries, nil
}
