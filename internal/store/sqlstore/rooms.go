package sqlstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

type roomRow struct {
	ID        string `db:"id"`
	UserLow   string `db:"user_low"`
	UserHigh  string `db:"user_high"`
	CreatedAt int64  `db:"created_at"`
}

func (r *roomRow) model() *models.Room {
	return &models.Room{
		ID:           r.ID,
		Participants: [2]string{r.UserLow, r.UserHigh},
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

func canonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// CreateRoom inserts the room with its participants in canonical order. The
// unique index on (user_low, user_high) rejects a second room for the pair.
func (s *SQLStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now()
	}
	low, high := canonicalPair(room.Participants[0], room.Participants[1])
	room.Participants = [2]string{low, high}

	query := s.db.Rebind("INSERT INTO rooms (id, user_low, user_high, created_at) VALUES (?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, room.ID, low, high, toMillis(room.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *SQLStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var row roomRow
	query := s.db.Rebind("SELECT id, user_low, user_high, created_at FROM rooms WHERE id = ?")
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, notFound(err)
	}
	return row.model(), nil
}

func (s *SQLStore) GetRoomByPair(ctx context.Context, a, b string) (*models.Room, error) {
	low, high := canonicalPair(a, b)
	var row roomRow
	query := s.db.Rebind("SELECT id, user_low, user_high, created_at FROM rooms WHERE user_low = ? AND user_high = ?")
	if err := s.db.GetContext(ctx, &row, query, low, high); err != nil {
		return nil, notFound(err)
	}
	return row.model(), nil
}

func (s *SQLStore) GetUserRooms(ctx context.Context, userID string) ([]models.Room, error) {
	var rows []roomRow
	query := s.db.Rebind(`
		SELECT id, user_low, user_high, created_at
		FROM rooms
		WHERE user_low = ? OR user_high = ?
		ORDER BY created_at DESC, id
	`)
	if err := s.db.SelectContext(ctx, &rows, query, userID, userID); err != nil {
		return nil, err
	}
	rooms := make([]models.Room, 0, len(rows))
	for i := range rows {
		rooms = append(rooms, *rows[i].model())
	}
	return rooms, nil
}
