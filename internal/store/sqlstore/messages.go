package sqlstore

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

type messageRow struct {
	Seq         int64           `db:"seq"`
	ID          string          `db:"id"`
	RoomID      string          `db:"room_id"`
	SenderID    string          `db:"sender_id"`
	Text        string          `db:"text"`
	ImageURL    string          `db:"image_url"`
	AudioURL    string          `db:"audio_url"`
	VideoURL    string          `db:"video_url"`
	FileURL     string          `db:"file_url"`
	ContactInfo string          `db:"contact_info"`
	Latitude    sql.NullFloat64 `db:"latitude"`
	Longitude   sql.NullFloat64 `db:"longitude"`
	ClientID    sql.NullString  `db:"client_id"`
	Status      string          `db:"status"`
	CreatedAt   int64           `db:"created_at"`
}

const messageColumns = `seq, id, room_id, sender_id, text, image_url, audio_url, video_url, file_url,
	contact_info, latitude, longitude, client_id, status, created_at`

func (r *messageRow) model() models.Message {
	m := models.Message{
		ID:       r.ID,
		Seq:      r.Seq,
		RoomID:   r.RoomID,
		SenderID: r.SenderID,
		MessageContent: models.MessageContent{
			Text:        r.Text,
			ImageURL:    r.ImageURL,
			AudioURL:    r.AudioURL,
			VideoURL:    r.VideoURL,
			FileURL:     r.FileURL,
			ContactInfo: r.ContactInfo,
		},
		ClientID:  r.ClientID.String,
		Status:    models.Status(r.Status),
		CreatedAt: fromMillis(r.CreatedAt),
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		m.Location = &models.Location{Latitude: r.Latitude.Float64, Longitude: r.Longitude.Float64}
	}
	return m
}

func (s *SQLStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = now()
	if msg.Status == "" {
		msg.Status = models.StatusSent
	}

	var lat, lon sql.NullFloat64
	if msg.Location != nil {
		lat = sql.NullFloat64{Float64: msg.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: msg.Location.Longitude, Valid: true}
	}

	query := s.db.Rebind(`
		INSERT INTO messages (id, room_id, sender_id, text, image_url, audio_url, video_url, file_url,
			contact_info, latitude, longitude, client_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`)
	err := s.db.QueryRowxContext(ctx, query, msg.ID, msg.RoomID, msg.SenderID, msg.Text, msg.ImageURL,
		msg.AudioURL, msg.VideoURL, msg.FileURL, msg.ContactInfo, lat, lon, nullString(msg.ClientID),
		string(msg.Status), toMillis(msg.CreatedAt)).Scan(&msg.Seq)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *SQLStore) GetMessageByClientID(ctx context.Context, roomID, senderID, clientID string) (*models.Message, error) {
	var row messageRow
	query := s.db.Rebind("SELECT " + messageColumns + " FROM messages WHERE room_id = ? AND sender_id = ? AND client_id = ?")
	if err := s.db.GetContext(ctx, &row, query, roomID, senderID, clientID); err != nil {
		return nil, notFound(err)
	}
	m := row.model()
	return &m, nil
}

// GetChatMessages returns the room's messages with seq > afterSeq in append
// order. created_at is wall-clock time and is not used for ordering.
func (s *SQLStore) GetChatMessages(ctx context.Context, roomID string, afterSeq int64) ([]models.Message, error) {
	var rows []messageRow
	query := s.db.Rebind(`
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = ? AND seq > ?
		ORDER BY seq ASC
	`)
	if err := s.db.SelectContext(ctx, &rows, query, roomID, afterSeq); err != nil {
		return nil, err
	}
	messages := make([]models.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].model())
	}
	return messages, nil
}

// GetLastMessages returns the newest message of each room that has one.
func (s *SQLStore) GetLastMessages(ctx context.Context, roomIDs []string) (map[string]models.Message, error) {
	last := make(map[string]models.Message, len(roomIDs))
	if len(roomIDs) == 0 {
		return last, nil
	}
	query, args, err := sqlx.In(`
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.room_id IN (?) AND m.seq = (
			SELECT m2.seq FROM messages m2
			WHERE m2.room_id = m.room_id
			ORDER BY m2.seq DESC
			LIMIT 1
		)
	`, roomIDs)
	if err != nil {
		return nil, err
	}
	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for i := range rows {
		last[rows[i].RoomID] = rows[i].model()
	}
	return last, nil
}
