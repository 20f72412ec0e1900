package email

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"clinic/internal/adapters/storage"
	domain "clinic/internal/domain/email"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

const templateColumns = `SELECT id, slug, name, subject, body_html, body_text, template_type, variables, active,
	created_at, updated_at FROM email_template`

// SQLiteTemplateStore implements TemplateStore using SQLite.
type SQLiteTemplateStore struct {
	db storage.SQLDB
}

// NewSQLiteTemplateStore creates a new template store.
func NewSQLiteTemplateStore(db storage.SQLDB) *SQLiteTemplateStore {
	return &SQLiteTemplateStore{db: db}
}

// GetByID retrieves a Template by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteTemplateStore) GetByID(ctx context.Context, id string) (domain.Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, templateColumns+" WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return domain.Template{}, fmt.Errorf("email template not found: %w", err)
	}
	return t, err
}

// GetBySlug retrieves a Template by its slug.
// PRE: slug is non-empty
func (s *SQLiteTemplateStore) GetBySlug(ctx context.Context, slug string) (domain.Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, templateColumns+" WHERE slug = ?", slug).Scan)
	if err == sql.ErrNoRows {
		return domain.Template{}, fmt.Errorf("email template not found: %w", err)
	}
	return t, err
}

// Save persists a Template.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteTemplateStore) Save(ctx context.Context, t domain.Template) error {
	vars := t.Variables
	if vars == nil {
		vars = []string{}
	}
	encoded, err := json.Marshal(vars)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO email_template (id, slug, name, subject, body_html, body_text, template_type, variables, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug=excluded.slug, name=excluded.name, subject=excluded.subject, body_html=excluded.body_html,
			body_text=excluded.body_text, template_type=excluded.template_type, variables=excluded.variables,
			active=excluded.active, updated_at=excluded.updated_at`,
		t.ID, t.Slug, t.Name, t.Subject, t.BodyHTML, t.BodyText, t.TemplateType, string(encoded), t.Active,
		t.CreatedAt.Format(timeLayout), t.UpdatedAt.Format(timeLayout))
	return err
}

// List returns templates ordered by name; an empty type lists all.
func (s *SQLiteTemplateStore) List(ctx context.Context, templateType string) ([]domain.Template, error) {
	query := templateColumns
	var args []interface{}
	if templateType != "" {
		query += " WHERE template_type = ?"
		args = append(args, templateType)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTemplate(scan func(dest ...interface{}) error) (domain.Template, error) {
	var t domain.Template
	var vars, createdAt, updatedAt string
	err := scan(&t.ID, &t.Slug, &t.Name, &t.Subject, &t.BodyHTML, &t.BodyText, &t.TemplateType, &vars,
		&t.Active, &createdAt, &updatedAt)
	if err != nil {
		return domain.Template{}, err
	}
	if err := json.Unmarshal([]byte(vars), &t.Variables); err != nil {
		return domain.Template{}, fmt.Errorf("email template %s: decode variables: %w", t.ID, err)
	}
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	t.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return t, nil
}

// nullTime stores zero times as NULL.
func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(timeLayout)
}

func parseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, ns.String)
	return t
}
