package sqlstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

type contactRow struct {
	ID           string `db:"id"`
	OwnerID      string `db:"owner_id"`
	ContactID    string `db:"contact_id"`
	Username     string `db:"username"`
	ProfileImage string `db:"profile_image"`
	CreatedAt    int64  `db:"created_at"`
}

func (s *SQLStore) CreateContact(ctx context.Context, contact *models.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now()
	}
	query := s.db.Rebind(`INSERT INTO contacts (id, owner_id, contact_id, username, profile_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, contact.ID, contact.OwnerID, contact.ContactID,
		contact.Username, contact.ProfileImage, toMillis(contact.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *SQLStore) ContactExists(ctx context.Context, ownerID, contactUserID string) (bool, error) {
	var exists bool
	query := s.db.Rebind("SELECT EXISTS(SELECT 1 FROM contacts WHERE owner_id = ? AND contact_id = ?)")
	err := s.db.QueryRowxContext(ctx, query, ownerID, contactUserID).Scan(&exists)
	return exists, err
}

// DeleteContact removes the contact only if ownerID owns it.
func (s *SQLStore) DeleteContact(ctx context.Context, ownerID, id string) error {
	query := s.db.Rebind("DELETE FROM contacts WHERE id = ? AND owner_id = ?")
	result, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	var rows []contactRow
	query := s.db.Rebind(`
		SELECT id, owner_id, contact_id, username, profile_image, created_at
		FROM contacts
		WHERE owner_id = ?
		ORDER BY username
	`)
	if err := s.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, err
	}
	contacts := make([]models.Contact, 0, len(rows))
	for _, r := range rows {
		contacts = append(contacts, models.Contact{
			ID:           r.ID,
			OwnerID:      r.OwnerID,
			ContactID:    r.ContactID,
			Username:     r.Username,
			ProfileImage: r.ProfileImage,
			CreatedAt:    fromMillis(r.CreatedAt),
		})
	}
	return contacts, nil
}
