package email

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinic/internal/adapters/storage"
	domain "clinic/internal/domain/email"
)

const campaignColumns = `SELECT id, name, subject, body_markdown, body_html, template_id, segment_location,
	segment_email_opt_in, status, scheduled_at, sent_at, total_recipients, total_sent, total_failed,
	total_opened, total_clicked, created_by, created_at, updated_at FROM campaign`

// SQLiteCampaignStore implements CampaignStore using SQLite.
type SQLiteCampaignStore struct {
	db storage.SQLDB
}

// NewSQLiteCampaignStore creates a new campaign store.
func NewSQLiteCampaignStore(db storage.SQLDB) *SQLiteCampaignStore {
	return &SQLiteCampaignStore{db: db}
}

// GetByID retrieves a Campaign by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteCampaignStore) GetByID(ctx context.Context, id string) (domain.Campaign, error) {
	c, err := scanCampaign(s.db.QueryRowContext(ctx, campaignColumns+" WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return domain.Campaign{}, fmt.Errorf("campaign not found: %w", err)
	}
	return c, err
}

// Save persists a Campaign.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteCampaignStore) Save(ctx context.Context, c domain.Campaign) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaign (id, name, subject, body_markdown, body_html, template_id, segment_location,
			segment_email_opt_in, status, scheduled_at, sent_at, total_recipients, total_sent, total_failed,
			total_opened, total_clicked, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, subject=excluded.subject, body_markdown=excluded.body_markdown,
			body_html=excluded.body_html, template_id=excluded.template_id,
			segment_location=excluded.segment_location, segment_email_opt_in=excluded.segment_email_opt_in,
			status=excluded.status, scheduled_at=excluded.scheduled_at, sent_at=excluded.sent_at,
			total_recipients=excluded.total_recipients, total_sent=excluded.total_sent,
			total_failed=excluded.total_failed, total_opened=excluded.total_opened,
			total_clicked=excluded.total_clicked, updated_at=excluded.updated_at`,
		c.ID, c.Name, c.Subject, c.BodyMarkdown, c.BodyHTML, c.TemplateID, c.Segment.Location,
		c.Segment.EmailOptInOnly, c.Status, nullTime(c.ScheduledAt), nullTime(c.SentAt),
		c.TotalRecipients, c.TotalSent, c.TotalFailed, c.TotalOpened, c.TotalClicked, c.CreatedBy,
		c.CreatedAt.Format(timeLayout), c.UpdatedAt.Format(timeLayout))
	return err
}

// List returns campaigns newest first; an empty status lists all.
func (s *SQLiteCampaignStore) List(ctx context.Context, status string) ([]domain.Campaign, error) {
	query := campaignColumns
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	return s.query(ctx, query, args...)
}

// ListDue returns scheduled campaigns whose time has come.
func (s *SQLiteCampaignStore) ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	all, err := s.query(ctx, campaignColumns+" WHERE status = ? ORDER BY scheduled_at", domain.StatusScheduled)
	if err != nil {
		return nil, err
	}
	var due []domain.Campaign
	for _, c := range all {
		if c.IsDue(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

// RecordDelivery adds to the counters and completes the campaign atomically.
// PRE: id is non-empty
// POST: status is sent once total_sent + total_failed >= total_recipients
func (s *SQLiteCampaignStore) RecordDelivery(ctx context.Context, id string, sent, failed int, now time.Time) error {
	ts := now.Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaign SET
			total_sent = total_sent + ?,
			total_failed = total_failed + ?,
			updated_at = ?,
			status = CASE WHEN status = ? AND total_sent + total_failed + ? >= total_recipients THEN ? ELSE status END,
			sent_at = CASE WHEN status = ? AND total_sent + total_failed + ? >= total_recipients THEN ? ELSE sent_at END
		WHERE id = ?`,
		sent, failed, ts,
		domain.StatusSending, sent+failed, domain.StatusSent,
		domain.StatusSending, sent+failed, ts,
		id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("campaign not found: %w", sql.ErrNoRows)
	}
	return nil
}

// SaveSendLogs inserts the per-recipient log rows in one transaction.
func (s *SQLiteCampaignStore) SaveSendLogs(ctx context.Context, logs []domain.SendLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO campaign_send_log (id, campaign_id, customer_id, email, status, message_id, error, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range logs {
		if _, err := stmt.ExecContext(ctx, l.ID, l.CampaignID, l.CustomerID, l.Email, l.Status, l.MessageID,
			l.Error, nullTime(l.SentAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateSendLog records the delivery outcome for one recipient.
func (s *SQLiteCampaignStore) UpdateSendLog(ctx context.Context, l domain.SendLog) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaign_send_log SET status = ?, message_id = ?, error = ?, sent_at = ? WHERE id = ?`,
		l.Status, l.MessageID, l.Error, nullTime(l.SentAt), l.ID)
	return err
}

// ListSendLogs returns a campaign's log ordered by email.
func (s *SQLiteCampaignStore) ListSendLogs(ctx context.Context, campaignID string) ([]domain.SendLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, customer_id, email, status, message_id, error, sent_at
		FROM campaign_send_log WHERE campaign_id = ? ORDER BY email`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SendLog
	for rows.Next() {
		var l domain.SendLog
		var sentAt sql.NullString
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.CustomerID, &l.Email, &l.Status, &l.MessageID,
			&l.Error, &sentAt); err != nil {
			return nil, err
		}
		l.SentAt = parseNullTime(sentAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteCampaignStore) query(ctx context.Context, query string, args ...interface{}) ([]domain.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCampaign(scan func(dest ...interface{}) error) (domain.Campaign, error) {
	var c domain.Campaign
	var scheduledAt, sentAt sql.NullString
	var createdAt, updatedAt string
	err := scan(&c.ID, &c.Name, &c.Subject, &c.BodyMarkdown, &c.BodyHTML, &c.TemplateID, &c.Segment.Location,
		&c.Segment.EmailOptInOnly, &c.Status, &scheduledAt, &sentAt, &c.TotalRecipients, &c.TotalSent,
		&c.TotalFailed, &c.TotalOpened, &c.TotalClicked, &c.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return domain.Campaign{}, err
	}
	c.ScheduledAt = parseNullTime(scheduledAt)
	c.SentAt = parseNullTime(sentAt)
	c.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	c.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return c, nil
}
