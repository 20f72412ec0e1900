package treatment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"clinic/internal/adapters/storage"
	domain "clinic/internal/domain/treatment"
)

const selectColumns = "SELECT id, slug, name, category, price_eur, duration_minutes, available_at, active, sort_order, notes FROM treatment"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new TreatmentStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Treatment by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Treatment, error) {
	entity, err := scanTreatment(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return domain.Treatment{}, fmt.Errorf("treatment not found: %w", err)
	}
	return entity, err
}

// GetBySlug retrieves a Treatment by its slug.
// PRE: slug is non-empty
func (s *SQLiteStore) GetBySlug(ctx context.Context, slug string) (domain.Treatment, error) {
	entity, err := scanTreatment(s.db.QueryRowContext(ctx, selectColumns+" WHERE slug = ?", slug).Scan)
	if err == sql.ErrNoRows {
		return domain.Treatment{}, fmt.Errorf("treatment not found: %w", err)
	}
	return entity, err
}

// Save persists a Treatment to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, t domain.Treatment) error {
	locations := t.AvailableAt
	if locations == nil {
		locations = []string{}
	}
	availableAt, err := json.Marshal(locations)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO treatment (id, slug, name, category, price_eur, duration_minutes, available_at, active, sort_order, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug=excluded.slug, name=excluded.name, category=excluded.category,
			price_eur=excluded.price_eur, duration_minutes=excluded.duration_minutes,
			available_at=excluded.available_at, active=excluded.active,
			sort_order=excluded.sort_order, notes=excluded.notes`,
		t.ID, t.Slug, t.Name, t.Category, t.PriceEUR, t.DurationMinutes,
		string(availableAt), t.Active, t.SortOrder, t.Notes)
	return err
}

// List returns the catalogue ordered by sort_order, then name.
func (s *SQLiteStore) List(ctx context.Context, activeOnly bool) ([]domain.Treatment, error) {
	query := selectColumns
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY sort_order, name"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Treatment
	for rows.Next() {
		t, err := scanTreatment(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// Count returns the number of catalogue entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM treatment").Scan(&n)
	return n, err
}

func scanTreatment(scan func(dest ...interface{}) error) (domain.Treatment, error) {
	var t domain.Treatment
	var availableAt string
	err := scan(&t.ID, &t.Slug, &t.Name, &t.Category, &t.PriceEUR, &t.DurationMinutes,
		&availableAt, &t.Active, &t.SortOrder, &t.Notes)
	if err != nil {
		return domain.Treatment{}, err
	}
	if err := json.Unmarshal([]byte(availableAt), &t.AvailableAt); err != nil {
		return domain.Treatment{}, fmt.Errorf("treatment %s: decode available_at: %w", t.ID, err)
	}
	return t, nil
}
