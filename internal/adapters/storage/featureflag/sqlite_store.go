package featureflag

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinic/internal/adapters/storage"
	domain "clinic/internal/domain/featureflag"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

const selectColumns = `SELECT key, description, enabled_admin, enabled_staff, enabled_customer, enabled_salon, updated_at FROM feature_flag`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new FeatureFlag store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByKey retrieves a single FeatureFlag by its stable key.
// PRE: key is non-empty
// POST: Returns the persisted feature flag or an error if not found
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) GetByKey(ctx context.Context, key string) (domain.FeatureFlag, error) {
	return scanFlag(s.db.QueryRowContext(ctx, selectColumns+` WHERE key = ?`, key).Scan)
}

// List returns all persisted feature flags sorted by key.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.FeatureFlag, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.FeatureFlag{}
	for rows.Next() {
		ff, err := scanFlag(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, ff)
	}
	return out, rows.Err()
}

// Save upserts a feature flag.
// PRE: value has a known Key
// POST: Feature flag is persisted (insert or update)
// INVARIANT: No other feature flags are modified
func (s *SQLiteStore) Save(ctx context.Context, value domain.FeatureFlag) error {
	if err := value.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feature_flag (
			key, description, enabled_admin, enabled_staff, enabled_customer, enabled_salon, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			description=excluded.description,
			enabled_admin=excluded.enabled_admin,
			enabled_staff=excluded.enabled_staff,
			enabled_customer=excluded.enabled_customer,
			enabled_salon=excluded.enabled_salon,
			updated_at=excluded.updated_at
	`,
		value.Key,
		value.Description,
		value.EnabledAdmin,
		value.EnabledStaff,
		value.EnabledCustomer,
		value.EnabledSalon,
		formatTime(value.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save feature_flag: %w", err)
	}
	return nil
}

func scanFlag(scan func(dest ...any) error) (domain.FeatureFlag, error) {
	var ff domain.FeatureFlag
	var updated string
	if err := scan(
		&ff.Key,
		&ff.Description,
		&ff.EnabledAdmin,
		&ff.EnabledStaff,
		&ff.EnabledCustomer,
		&ff.EnabledSalon,
		&updated,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.FeatureFlag{}, fmt.Errorf("feature flag not found: %w", err)
		}
		return domain.FeatureFlag{}, err
	}
	if updated != "" {
		t, err := time.Parse(timeLayout, updated)
		if err != nil {
			return domain.FeatureFlag{}, fmt.Errorf("feature flag %s updated_at: %w", ff.Key, err)
		}
		ff.UpdatedAt = t
	}
	return ff, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
