package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"linkup/internal/models"
)

var ErrNoSession = errors.New("no stored session")

// SessionRepository persists the client auth state under fixed keys.
type SessionRepository interface {
	Load(ctx context.Context) (models.Session, error)
	Save(ctx context.Context, session models.Session) error
	Clear(ctx context.Context) error
}

// SessionRepo is a sqlx-backed repository over the local_storage table.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

type storageRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Load returns the stored token and roles. ErrNoSession means no token.
func (r *SessionRepo) Load(ctx context.Context) (models.Session, error) {
	var rows []storageRow
	err := r.db.SelectContext(ctx, &rows, `SELECT key, value FROM local_storage WHERE key IN (?, ?)`, models.SessionTokenKey, models.SessionRolesKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, err
	}

	var session models.Session
	for _, row := range rows {
		switch row.Key {
		case models.SessionTokenKey:
			session.Token = row.Value
		case models.SessionRolesKey:
			session.Roles = row.Value
		}
	}
	if session.Token == "" {
		return models.Session{}, ErrNoSession
	}
	return session, nil
}

// Save stores token and roles atomically.
func (r *SessionRepo) Save(ctx context.Context, session models.Session) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	upsert := `INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, models.SessionTokenKey, session.Token); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upsert, models.SessionRolesKey, session.Roles); err != nil {
		return err
	}
	return tx.Commit()
}

// Clear removes token and roles.
func (r *SessionRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key IN (?, ?)`, models.SessionTokenKey, models.SessionRolesKey)
	return err
}
