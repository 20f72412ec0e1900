package salon

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinic/internal/adapters/storage"
	domain "clinic/internal/domain/salon"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new salon store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetAccess retrieves a PIN entry by ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetAccess(ctx context.Context, id string) (domain.Access, error) {
	var a domain.Access
	err := s.db.QueryRowContext(ctx,
		`SELECT id, location, name, pin_hash, active FROM salon_access WHERE id = ?`, id).
		Scan(&a.ID, &a.Location, &a.Name, &a.PINHash, &a.Active)
	if err == sql.ErrNoRows {
		return domain.Access{}, fmt.Errorf("salon access not found: %w", err)
	}
	return a, err
}

// SaveAccess persists a PIN entry.
// PRE: entity has been validated
func (s *SQLiteStore) SaveAccess(ctx context.Context, a domain.Access) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salon_access (id, location, name, pin_hash, active) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			location=excluded.location, name=excluded.name, pin_hash=excluded.pin_hash, active=excluded.active`,
		a.ID, a.Location, a.Name, a.PINHash, a.Active)
	return err
}

// ListActiveAccess returns the enabled PIN entries of one location.
func (s *SQLiteStore) ListActiveAccess(ctx context.Context, location string) ([]domain.Access, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, location, name, pin_hash, active FROM salon_access WHERE location = ? AND active = 1 ORDER BY id`,
		location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Access
	for rows.Next() {
		var a domain.Access
		if err := rows.Scan(&a.ID, &a.Location, &a.Name, &a.PINHash, &a.Active); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAccess returns the number of PIN entries.
func (s *SQLiteStore) CountAccess(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM salon_access`).Scan(&n)
	return n, err
}

// GetSession retrieves a salon session by ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var sess domain.Session
	var startedAt, lastSeenAt string
	var endedAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, access_id, location, started_at, last_seen_at, ended_at FROM salon_session WHERE id = ?`, id).
		Scan(&sess.ID, &sess.AccessID, &sess.Location, &startedAt, &lastSeenAt, &endedAt)
	if err == sql.ErrNoRows {
		return domain.Session{}, fmt.Errorf("salon session not found: %w", err)
	}
	if err != nil {
		return domain.Session{}, err
	}
	sess.StartedAt, _ = time.Parse(timeLayout, startedAt)
	sess.LastSeenAt, _ = time.Parse(timeLayout, lastSeenAt)
	if endedAt.Valid && endedAt.String != "" {
		sess.EndedAt, _ = time.Parse(timeLayout, endedAt.String)
	}
	return sess, nil
}

// SaveSession persists a salon session.
// PRE: entity has been validated
func (s *SQLiteStore) SaveSession(ctx context.Context, sess domain.Session) error {
	var endedAt interface{}
	if !sess.EndedAt.IsZero() {
		endedAt = sess.EndedAt.Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salon_session (id, access_id, location, started_at, last_seen_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen_at=excluded.last_seen_at, ended_at=excluded.ended_at`,
		sess.ID, sess.AccessID, sess.Location, sess.StartedAt.Format(timeLayout),
		sess.LastSeenAt.Format(timeLayout), endedAt)
	return err
}
