package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

type userRow struct {
	ID               string         `db:"id"`
	Username         string         `db:"username"`
	Email            sql.NullString `db:"email"`
	Phone            sql.NullString `db:"phone"`
	Location         string         `db:"location"`
	Password         string         `db:"password"`
	IsVerified       bool           `db:"is_verified"`
	VerificationCode sql.NullString `db:"verification_code"`
	CodeExpiresAt    sql.NullInt64  `db:"code_expires_at"`
	PushToken        sql.NullString `db:"push_token"`
	ProfileImage     sql.NullString `db:"profile_image"`
	CreatedAt        int64          `db:"created_at"`
}

const userColumns = `id, username, email, phone, location, password, is_verified,
	verification_code, code_expires_at, push_token, profile_image, created_at`

func (r *userRow) model() *models.User {
	u := &models.User{
		ID:               r.ID,
		Username:         r.Username,
		Email:            r.Email.String,
		Phone:            r.Phone.String,
		Location:         r.Location,
		Password:         r.Password,
		IsVerified:       r.IsVerified,
		VerificationCode: r.VerificationCode.String,
		PushToken:        stringPtr(r.PushToken),
		ProfileImage:     stringPtr(r.ProfileImage),
		CreatedAt:        fromMillis(r.CreatedAt),
	}
	if r.CodeExpiresAt.Valid {
		t := fromMillis(r.CodeExpiresAt.Int64)
		u.CodeExpiresAt = &t
	}
	return u
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}
	query := s.db.Rebind(`INSERT INTO users (id, username, email, phone, location, password, is_verified, push_token, profile_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Username, nullString(user.Email), nullString(user.Phone),
		user.Location, user.Password, user.IsVerified, nullStringPtr(user.PushToken), nullStringPtr(user.ProfileImage),
		toMillis(user.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *SQLStore) getUser(ctx context.Context, where string, args ...any) (*models.User, error) {
	var row userRow
	query := s.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + where)
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, notFound(err)
	}
	return row.model(), nil
}

func (s *SQLStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = ?", strings.ToLower(email))
}

// GetUserByLogin resolves a login identifier that may be a username, an email
// address or a phone number.
func (s *SQLStore) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	return s.getUser(ctx, "username = ? OR email = ? OR phone = ? LIMIT 1",
		identifier, strings.ToLower(identifier), identifier)
}

func (s *SQLStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	query, args, err := sqlx.In("SELECT "+userColumns+" FROM users WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for i := range rows {
		users[rows[i].ID] = rows[i].model()
	}
	return users, nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+userColumns+" FROM users ORDER BY username"); err != nil {
		return nil, err
	}
	return publicUsers(rows), nil
}

func (s *SQLStore) SearchUsers(ctx context.Context, queryStr string) ([]models.User, error) {
	var rows []userRow
	query := s.db.Rebind("SELECT " + userColumns + " FROM users WHERE username LIKE ? ORDER BY username LIMIT 10")
	if err := s.db.SelectContext(ctx, &rows, query, "%"+queryStr+"%"); err != nil {
		return nil, err
	}
	return publicUsers(rows), nil
}

// publicUsers converts rows for listing to other users: emails are masked and
// phone numbers dropped.
func publicUsers(rows []userRow) []models.User {
	users := make([]models.User, 0, len(rows))
	for i := range rows {
		u := rows[i].model()
		u.Email = maskEmail(u.Email)
		u.Phone = ""
		users = append(users, *u)
	}
	return users
}

func (s *SQLStore) updateUser(ctx context.Context, userID, set string, args ...any) error {
	query := s.db.Rebind("UPDATE users SET " + set + " WHERE id = ?")
	result, err := s.db.ExecContext(ctx, query, append(args, userID)...)
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

func (s *SQLStore) SetPushToken(ctx context.Context, userID string, token *string) error {
	return s.updateUser(ctx, userID, "push_token = ?", nullStringPtr(token))
}

func (s *SQLStore) SetProfileImage(ctx context.Context, userID, url string) error {
	return s.updateUser(ctx, userID, "profile_image = ?", nullString(url))
}

func (s *SQLStore) SetVerificationCode(ctx context.Context, userID, code string, expiresAt time.Time) error {
	return s.updateUser(ctx, userID, "verification_code = ?, code_expires_at = ?, verification_attempts = 0", code, toMillis(expiresAt))
}

func (s *SQLStore) MarkVerified(ctx context.Context, userID string) error {
	return s.updateUser(ctx, userID, "is_verified = TRUE, verification_code = NULL, code_expires_at = NULL, verification_attempts = 0")
}

func (s *SQLStore) RecordVerificationFailure(ctx context.Context, userID string, limit int) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var attempts int
	query := tx.Rebind("UPDATE users SET verification_attempts = verification_attempts + 1 WHERE id = ? RETURNING verification_attempts")
	if err = tx.GetContext(ctx, &attempts, query, userID); err != nil {
		return false, notFound(err)
	}
	discarded := attempts >= limit
	if discarded {
		query = tx.Rebind("UPDATE users SET verification_code = NULL, code_expires_at = NULL, verification_attempts = 0 WHERE id = ?")
		if _, err = tx.ExecContext(ctx, query, userID); err != nil {
			return false, err
		}
	}
	return discarded, tx.Commit()
}

func maskEmail(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return email
	}
	local, domain := parts[0], parts[1]
	length := len(local)
	visible := 1
	if length > 2 {
		visible = length / 2
		if visible > 3 {
			visible = 3
		}
	}

	maskedLocal := local[:visible] + strings.Repeat("*", length-visible)
	return maskedLocal + "@" + domain
}
