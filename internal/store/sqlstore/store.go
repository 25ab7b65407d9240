package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver (pgx)
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // Postgres driver
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/pliu/pairchat/internal/store"
)

const uniqueViolation = "23505"

type SQLStore struct {
	db         *sqlx.DB
	driverName string
	log        zerolog.Logger
}

var _ store.Store = (*SQLStore)(nil)

// New opens the database and creates the schema. Supported drivers are
// "sqlite3", "postgres" (lib/pq) and "pgx".
func New(driverName, dataSourceName string, log zerolog.Logger) (*SQLStore, error) {
	switch driverName {
	case "sqlite3", "postgres", "pgx":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}

	db, err := sqlx.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite3" {
		// One connection keeps :memory: databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName, log: log.With().Str("component", "sqlstore").Logger()}
	if err = s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	s.log.Debug().Str("driver", driverName).Msg("Database ready")
	return s, nil
}

func (s *SQLStore) postgres() bool {
	return s.driverName != "sqlite3"
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	email TEXT UNIQUE,
	phone TEXT UNIQUE,
	location TEXT NOT NULL DEFAULT '',
	password TEXT NOT NULL,
	is_verified BOOLEAN NOT NULL DEFAULT FALSE,
	verification_code TEXT,
	code_expires_at BIGINT,
	verification_attempts INTEGER NOT NULL DEFAULT 0,
	push_token TEXT,
	profile_image TEXT,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	user_low TEXT NOT NULL REFERENCES users(id),
	user_high TEXT NOT NULL REFERENCES users(id),
	created_at BIGINT NOT NULL,
	UNIQUE (user_low, user_high),
	CHECK (user_low < user_high)
);

CREATE INDEX IF NOT EXISTS rooms_user_high_idx ON rooms (user_high);

CREATE TABLE IF NOT EXISTS messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	room_id TEXT NOT NULL REFERENCES rooms(id),
	sender_id TEXT NOT NULL REFERENCES users(id),
	text TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	audio_url TEXT NOT NULL DEFAULT '',
	video_url TEXT NOT NULL DEFAULT '',
	file_url TEXT NOT NULL DEFAULT '',
	contact_info TEXT NOT NULL DEFAULT '',
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	client_id TEXT,
	status TEXT NOT NULL DEFAULT 'sent',
	created_at BIGINT NOT NULL,
	UNIQUE (room_id, sender_id, client_id)
);

CREATE INDEX IF NOT EXISTS messages_room_order_idx ON messages (room_id, created_at, seq);

CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL REFERENCES users(id),
	contact_id TEXT NOT NULL REFERENCES users(id),
	username TEXT NOT NULL,
	profile_image TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL,
	UNIQUE (owner_id, contact_id)
);
`

func (s *SQLStore) createTables() error {
	query := schema
	if s.postgres() {
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGSERIAL PRIMARY KEY")
	}

	for _, stmt := range strings.Split(query, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a unique constraint failure from
// any of the supported drivers.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

// notFound maps sql.ErrNoRows to store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
