package patientfile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinic/internal/adapters/storage"
	domain "clinic/internal/domain/patientfile"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

const selectColumns = `SELECT id, customer_id, record_id, file_type, file_name, storage_path, mime_type,
	size_bytes, uploaded_by, created_at FROM patient_file`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new patient file store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves file metadata by ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.File, error) {
	f, err := scanFile(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return domain.File{}, fmt.Errorf("patient file not found: %w", err)
	}
	return f, err
}

// Save persists file metadata.
// PRE: entity has been validated
func (s *SQLiteStore) Save(ctx context.Context, f domain.File) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patient_file (id, customer_id, record_id, file_type, file_name, storage_path, mime_type, size_bytes, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id=excluded.customer_id, record_id=excluded.record_id, file_type=excluded.file_type,
			file_name=excluded.file_name, storage_path=excluded.storage_path, mime_type=excluded.mime_type,
			size_bytes=excluded.size_bytes`,
		f.ID, f.CustomerID, f.RecordID, f.FileType, f.FileName, f.StoragePath, f.MimeType, f.SizeBytes,
		f.UploadedBy, f.CreatedAt.Format(timeLayout))
	return err
}

// Delete removes file metadata.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM patient_file WHERE id = ?", id)
	return err
}

// ListByCustomer returns a customer's files, newest first.
func (s *SQLiteStore) ListByCustomer(ctx context.Context, customerID string) ([]domain.File, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE customer_id = ? ORDER BY created_at DESC", customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.File
	for rows.Next() {
		f, err := scanFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFile(scan func(dest ...interface{}) error) (domain.File, error) {
	var f domain.File
	var createdAt string
	err := scan(&f.ID, &f.CustomerID, &f.RecordID, &f.FileType, &f.FileName, &f.StoragePath, &f.MimeType,
		&f.SizeBytes, &f.UploadedBy, &createdAt)
	if err != nil {
		return domain.File{}, err
	}
	f.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return f, nil
}
