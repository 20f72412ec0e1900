package record

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"clinic/internal/adapters/storage"
	domain "clinic/internal/domain/record"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

const selectColumns = `SELECT id, customer_id, appointment_id, treatment_id, note_type, notes, treatment_details,
	complications, follow_up_needed, follow_up_date, source, created_by, created_at FROM patient_record`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new RecordStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a PatientRecord by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.PatientRecord, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return domain.PatientRecord{}, fmt.Errorf("patient record not found: %w", err)
	}
	return r, err
}

// Save persists a PatientRecord.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, r domain.PatientRecord) error {
	details := r.TreatmentDetails
	if details == nil {
		details = map[string]string{}
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patient_record (id, customer_id, appointment_id, treatment_id, note_type, notes, treatment_details,
			complications, follow_up_needed, follow_up_date, source, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id=excluded.customer_id, appointment_id=excluded.appointment_id,
			treatment_id=excluded.treatment_id, note_type=excluded.note_type, notes=excluded.notes,
			treatment_details=excluded.treatment_details, complications=excluded.complications,
			follow_up_needed=excluded.follow_up_needed, follow_up_date=excluded.follow_up_date,
			source=excluded.source`,
		r.ID, r.CustomerID, r.AppointmentID, r.TreatmentID, r.NoteType, r.Notes, string(encoded),
		r.Complications, r.FollowUpNeeded, r.FollowUpDate, r.Source, r.CreatedBy, r.CreatedAt.Format(timeLayout))
	return err
}

// ListByCustomer returns a customer's records, newest first.
// PRE: customerID is non-empty
func (s *SQLiteStore) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.PatientRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE customer_id = ? ORDER BY created_at DESC LIMIT ?", customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListFollowUps returns records with an open follow-up due on or before date.
func (s *SQLiteStore) ListFollowUps(ctx context.Context, date string) ([]domain.PatientRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE follow_up_needed = 1 AND follow_up_date != '' AND follow_up_date <= ? ORDER BY follow_up_date", date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]domain.PatientRecord, error) {
	var out []domain.PatientRecord
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(scan func(dest ...interface{}) error) (domain.PatientRecord, error) {
	var r domain.PatientRecord
	var details, createdAt string
	err := scan(&r.ID, &r.CustomerID, &r.AppointmentID, &r.TreatmentID, &r.NoteType, &r.Notes, &details,
		&r.Complications, &r.FollowUpNeeded, &r.FollowUpDate, &r.Source, &r.CreatedBy, &createdAt)
	if err != nil {
		return domain.PatientRecord{}, err
	}
	if err := json.Unmarshal([]byte(details), &r.TreatmentDetails); err != nil {
		return domain.PatientRecord{}, fmt.Errorf("patient record %s: decode details: %w", r.ID, err)
	}
	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return r, nil
}
