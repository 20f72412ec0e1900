package customer

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"

	"clinic/internal/adapters/storage"
	domain "clinic/internal/domain/customer"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

const columns = "c.id, c.first_name, c.last_name, c.email, c.phone, c.phone_normalized, c.date_of_birth, c.location, c.tags, c.notes, c.sms_opt_in, c.email_opt_in, c.source, c.portal_account_id, c.created_at, c.updated_at"

// searchCandidates caps how many LIKE matches are ranked in memory.
const searchCandidates = 200

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new CustomerStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetByID retrieves a Customer by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	return s.getOne(ctx, "c.id = ?", id)
}

// GetByEmail retrieves the oldest Customer with the given email.
// PRE: email is non-empty
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	return s.getOne(ctx, "c.email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByPhone retrieves the oldest Customer with the given normalized phone.
// PRE: normalizedPhone is non-empty
func (s *SQLiteStore) GetByPhone(ctx context.Context, normalizedPhone string) (domain.Customer, error) {
	return s.getOne(ctx, "c.phone_normalized = ?", normalizedPhone)
}

// GetByPortalAccount retrieves the Customer linked to a portal account.
// PRE: accountID is non-empty
func (s *SQLiteStore) GetByPortalAccount(ctx context.Context, accountID string) (domain.Customer, error) {
	return s.getOne(ctx, "c.portal_account_id = ?", accountID)
}

func (s *SQLiteStore) getOne(ctx context.Context, where string, arg string) (domain.Customer, error) {
	query := "SELECT " + columns + " FROM customer c WHERE " + where + " ORDER BY c.created_at ASC LIMIT 1"
	entity, err := scanCustomer(s.db.QueryRowContext(ctx, query, arg).Scan)
	if err == sql.ErrNoRows {
		return domain.Customer{}, fmt.Errorf("customer not found: %w", err)
	}
	return entity, err
}

// Save persists a Customer to the database.
// PRE: entity has been validated and normalized
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Customer) error {
	return save(ctx, s.db, entity)
}

func save(ctx context.Context, db execer, entity domain.Customer) error {
	tags, err := json.Marshal(nonNil(entity.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	var portal interface{}
	if entity.PortalAccountID != "" {
		portal = entity.PortalAccountID
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO customer (id, first_name, last_name, email, phone, phone_normalized, date_of_birth, location, tags, notes, sms_opt_in, email_opt_in, source, portal_account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name=excluded.first_name, last_name=excluded.last_name, email=excluded.email,
			phone=excluded.phone, phone_normalized=excluded.phone_normalized,
			date_of_birth=excluded.date_of_birth, location=excluded.location, tags=excluded.tags,
			notes=excluded.notes, sms_opt_in=excluded.sms_opt_in, email_opt_in=excluded.email_opt_in,
			source=excluded.source, portal_account_id=excluded.portal_account_id,
			created_at=excluded.created_at, updated_at=excluded.updated_at`,
		entity.ID, entity.FirstName, entity.LastName, entity.Email, entity.Phone, entity.PhoneNormalized,
		entity.DateOfBirth, entity.Location, string(tags), entity.Notes, entity.SMSOptIn, entity.EmailOptIn,
		entity.Source, portal, entity.CreatedAt.Format(timeLayout), entity.UpdatedAt.Format(timeLayout))
	return err
}

// Delete removes a Customer from the database.
// PRE: id is non-empty and no appointments reference it
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM customer WHERE id = ?", id)
	return err
}

// List retrieves Customers based on the filter, ordered by name.
// PRE: filter has valid parameters
// POST: Returns matching entities
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Customer, error) {
	var b strings.Builder
	b.WriteString("SELECT " + columns + " FROM customer c WHERE 1=1")
	args := filterClause(&b, filter)
	b.WriteString(" ORDER BY c.last_name, c.first_name")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Customer
	for rows.Next() {
		entity, err := scanCustomer(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns how many customers match the filter, ignoring Limit and Offset.
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM customer c WHERE 1=1")
	args := filterClause(&b, filter)
	var n int
	if err := s.db.QueryRowContext(ctx, b.String(), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func filterClause(b *strings.Builder, filter ListFilter) []interface{} {
	var args []interface{}
	if filter.Location != "" {
		b.WriteString(" AND c.location = ?")
		args = append(args, filter.Location)
	}
	if filter.EmailOptIn {
		b.WriteString(" AND c.email_opt_in = 1")
	}
	if filter.HasEmail {
		b.WriteString(" AND c.email != ''")
	}
	if filter.WithBirthday {
		b.WriteString(" AND c.date_of_birth != ''")
	}
	return args
}

// Search matches q against full name, email and phone, then ranks by similarity.
// PRE: len(q) >= domain.MinSearchLength
// POST: Returns up to limit results, best match first
func (s *SQLiteStore) Search(ctx context.Context, q string, limit int) ([]domain.SearchResult, error) {
	if err := domain.ValidateQuery(q); err != nil {
		return nil, err
	}
	q = strings.TrimSpace(q)
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	phonePattern := pattern
	if digits := nationalDigits(q); len(digits) >= domain.MinSearchLength {
		phonePattern = "%" + digits + "%"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+columns+`,
			COALESCE(o.total_appointments, 0),
			COALESCE(o.last_visit_date, ''),
			COALESCE(o.total_revenue, 0),
			COALESCE((SELECT MIN(a.date) FROM appointment a
			          WHERE a.customer_id = c.id AND a.status = 'confirmed' AND a.date >= date('now')), '')
		FROM customer c
		LEFT JOIN v_customer_overview o ON o.customer_id = c.id
		WHERE lower(c.first_name || ' ' || c.last_name) LIKE ? ESCAPE '\'
		   OR lower(c.last_name || ' ' || c.first_name) LIKE ? ESCAPE '\'
		   OR c.email LIKE ? ESCAPE '\'
		   OR c.phone_normalized LIKE ? ESCAPE '\'
		LIMIT ?`,
		pattern, pattern, pattern, phonePattern, searchCandidates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var r domain.SearchResult
		var scanned domain.Customer
		err := scanCustomerWith(rows.Scan, &scanned,
			&r.TotalAppointments, &r.LastAppointmentDate, &r.TotalRevenue, &r.NextAppointmentDate)
		if err != nil {
			return nil, err
		}
		r.Customer = scanned
		r.Similarity = similarity(q, scanned)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].LastName != results[j].LastName {
			return results[i].LastName < results[j].LastName
		}
		return results[i].FirstName < results[j].FirstName
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Reassign moves every dependent row of sourceID to target and removes source.
// PRE: both customers exist, target already holds the merged fields
// POST: sourceID no longer exists; all changes applied atomically
func (s *SQLiteStore) Reassign(ctx context.Context, sourceID string, target domain.Customer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"appointment", "patient_record", "patient_file", "campaign_send_log"} {
		if _, err := tx.ExecContext(ctx,
			"UPDATE "+table+" SET customer_id = ? WHERE customer_id = ?", target.ID, sourceID); err != nil {
			return fmt.Errorf("reassign %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM customer WHERE id = ?", sourceID); err != nil {
		return err
	}
	if err := save(ctx, tx, target); err != nil {
		return err
	}
	return tx.Commit()
}

// similarity scores how well q matches a customer: 1 for an exact name or
// email, 0.9 for a prefix of either, 0.6 for any other substring hit.
func similarity(q string, c domain.Customer) float64 {
	q = strings.ToLower(q)
	full := strings.ToLower(c.FullName())
	reversed := strings.ToLower(strings.TrimSpace(c.LastName + " " + c.FirstName))
	switch {
	case q == full || q == reversed || q == c.Email:
		return 1
	case strings.HasPrefix(full, q) || strings.HasPrefix(reversed, q) ||
		strings.HasPrefix(strings.ToLower(c.LastName), q) || strings.HasPrefix(c.Email, q):
		return 0.9
	case digitsMatchPhone(q, c.PhoneNormalized):
		return 0.8
	default:
		return 0.6
	}
}

func digitsMatchPhone(q, phone string) bool {
	d := nationalDigits(q)
	if len(d) < domain.MinSearchLength || phone == "" {
		return false
	}
	return strings.Contains(phone, d)
}

// nationalDigits strips everything but digits and the trunk or international
// prefix, so "0171 23" matches the stored "+4917123...".
func nationalDigits(q string) string {
	d := phoneDigits(q)
	switch {
	case strings.HasPrefix(d, "00"):
		return d[2:]
	case strings.HasPrefix(d, "0"):
		return d[1:]
	}
	return d
}

func phoneDigits(q string) string {
	var b strings.Builder
	for _, r := range q {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// scanCustomer extracts a Customer from a row scanner function.
func scanCustomer(scan func(dest ...interface{}) error) (domain.Customer, error) {
	var c domain.Customer
	if err := scanCustomerWith(scan, &c); err != nil {
		return domain.Customer{}, err
	}
	return c, nil
}

// scanCustomerWith scans the customer columns followed by extra destinations.
func scanCustomerWith(scan func(dest ...interface{}) error, c *domain.Customer, extra ...interface{}) error {
	var tags, createdAt, updatedAt string
	var portal sql.NullString
	dest := []interface{}{
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.PhoneNormalized,
		&c.DateOfBirth, &c.Location, &tags, &c.Notes, &c.SMSOptIn, &c.EmailOptIn,
		&c.Source, &portal, &createdAt, &updatedAt,
	}
	if err := scan(append(dest, extra...)...); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return fmt.Errorf("decode tags of customer %s: %w", c.ID, err)
	}
	c.PortalAccountID = portal.String
	c.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	c.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return nil
}
