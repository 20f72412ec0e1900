package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// migration upgrades the schema by exactly one version inside tx.
type migration func(ctx context.Context, tx *sql.Tx) error

// migrations is the ordered chain. Index i upgrades version i to i+1.
// Append only: never edit a migration that has shipped.
var migrations = []migration{
	migrateBaseline,
	migrateReportingViews,
	migrateLookupIndexes,
	migrateFeatureFlags,
}

// LatestSchemaVersion returns the version a fully migrated database reports.
func LatestSchemaVersion() int {
	return len(migrations)
}

// SchemaVersion returns the current schema version, or 0 for a database that
// has never been migrated.
// PRE: db is a valid database connection
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB brings the schema up to LatestSchemaVersion.
// File databases that already hold data are copied to <path>.bak-v<N> before
// the first pending migration runs.
// PRE: db is a valid database connection, path is the file path or ":memory:"
// POST: schema_version reports LatestSchemaVersion; each step is atomic
func MigrateDB(db *sql.DB, path string) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current >= LatestSchemaVersion() {
		return nil
	}

	if current > 0 && path != "" && path != ":memory:" {
		backup := fmt.Sprintf("%s.bak-v%d", path, current)
		_ = os.Remove(backup)
		if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, backup); err != nil {
			return fmt.Errorf("failed to back up database before migration: %w", err)
		}
		slog.Info("migration_backup", "path", backup, "from_version", current)
	}

	for v := current; v < LatestSchemaVersion(); v++ {
		if err := applyMigration(ctx, db, v); err != nil {
			return err
		}
		slog.Info("migration_applied", "version", v+1)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, from int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := migrations[from](ctx, tx); err != nil {
		return fmt.Errorf("migration %d failed: %w", from+1, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
		from+1, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", from+1, err)
	}
	return tx.Commit()
}

// migrateBaseline creates every table. IF NOT EXISTS lets it adopt a
// database created before version tracking existed.
func migrateBaseline(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		created_at TEXT NOT NULL,
		failed_logins INTEGER NOT NULL DEFAULT 0,
		locked_until TEXT
	);

	CREATE TABLE IF NOT EXISTS customer (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		phone_normalized TEXT NOT NULL DEFAULT '',
		date_of_birth TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		notes TEXT NOT NULL DEFAULT '',
		sms_opt_in INTEGER NOT NULL DEFAULT 0,
		email_opt_in INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT 'manual',
		portal_account_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS treatment (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		price_eur REAL NOT NULL DEFAULT 0,
		duration_minutes INTEGER NOT NULL,
		available_at TEXT NOT NULL DEFAULT '[]',
		active INTEGER NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS appointment (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		treatment_id TEXT NOT NULL,
		location TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		price_eur REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'confirmed',
		notes TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		remind_at TEXT,
		reminder_sent INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (customer_id) REFERENCES customer(id),
		FOREIGN KEY (treatment_id) REFERENCES treatment(id)
	);

	CREATE TABLE IF NOT EXISTS patient_record (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		appointment_id TEXT NOT NULL DEFAULT '',
		treatment_id TEXT NOT NULL DEFAULT '',
		note_type TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		treatment_details TEXT NOT NULL DEFAULT '{}',
		complications TEXT NOT NULL DEFAULT '',
		follow_up_needed INTEGER NOT NULL DEFAULT 0,
		follow_up_date TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT 'manual',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (customer_id) REFERENCES customer(id)
	);

	CREATE TABLE IF NOT EXISTS patient_file (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		record_id TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL,
		file_name TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		uploaded_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (customer_id) REFERENCES customer(id)
	);

	CREATE TABLE IF NOT EXISTS email_template (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		subject TEXT NOT NULL,
		body_html TEXT NOT NULL,
		body_text TEXT NOT NULL DEFAULT '',
		template_type TEXT NOT NULL,
		variables TEXT NOT NULL DEFAULT '[]',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS campaign (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		subject TEXT NOT NULL,
		body_markdown TEXT NOT NULL DEFAULT '',
		body_html TEXT NOT NULL DEFAULT '',
		template_id TEXT NOT NULL DEFAULT '',
		segment_location TEXT NOT NULL DEFAULT '',
		segment_email_opt_in INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'draft',
		scheduled_at TEXT,
		sent_at TEXT,
		total_recipients INTEGER NOT NULL DEFAULT 0,
		total_sent INTEGER NOT NULL DEFAULT 0,
		total_failed INTEGER NOT NULL DEFAULT 0,
		total_opened INTEGER NOT NULL DEFAULT 0,
		total_clicked INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS campaign_send_log (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		email TEXT NOT NULL,
		status TEXT NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		sent_at TEXT,
		FOREIGN KEY (campaign_id) REFERENCES campaign(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		action_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 5,
		last_attempted_at TEXT NOT NULL DEFAULT '',
		next_attempt_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS salon_access (
		id TEXT PRIMARY KEY,
		location TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		pin_hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS salon_session (
		id TEXT PRIMARY KEY,
		access_id TEXT NOT NULL,
		location TEXT NOT NULL,
		started_at TEXT NOT NULL,
		last_seen_at TEXT NOT NULL,
		ended_at TEXT,
		FOREIGN KEY (access_id) REFERENCES salon_access(id)
	);

	CREATE TABLE IF NOT EXISTS audit_event (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		category TEXT NOT NULL,
		action TEXT NOT NULL,
		severity TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		actor_role TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		resource_type TEXT NOT NULL DEFAULT '',
		resource_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT ''
	);
	`)
	return err
}

// migrateReportingViews adds the read models behind the dashboard.
func migrateReportingViews(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE VIEW IF NOT EXISTS v_daily_schedule AS
	SELECT
		a.id AS appointment_id,
		a.date,
		a.start_time,
		a.end_time,
		a.duration_minutes,
		a.location,
		a.status,
		a.price_eur,
		a.notes,
		c.id AS customer_id,
		c.first_name,
		c.last_name,
		c.phone,
		c.email,
		t.id AS treatment_id,
		t.name AS treatment_name,
		t.category AS treatment_category
	FROM appointment a
	JOIN customer c ON c.id = a.customer_id
	JOIN treatment t ON t.id = a.treatment_id;

	CREATE VIEW IF NOT EXISTS v_revenue_stats AS
	SELECT
		date,
		location,
		SUM(CASE WHEN status != 'cancelled' THEN 1 ELSE 0 END) AS appointments,
		SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS completed,
		SUM(CASE WHEN status = 'no_show' THEN 1 ELSE 0 END) AS no_shows,
		COALESCE(SUM(CASE WHEN status = 'completed' THEN price_eur ELSE 0 END), 0) AS revenue
	FROM appointment
	GROUP BY date, location;

	CREATE VIEW IF NOT EXISTS v_customer_overview AS
	SELECT
		c.id AS customer_id,
		COUNT(a.id) AS total_appointments,
		COALESCE(SUM(CASE WHEN a.status = 'completed' THEN a.price_eur ELSE 0 END), 0) AS total_revenue,
		COALESCE(MAX(CASE WHEN a.status = 'completed' THEN a.date END), '') AS last_visit_date,
		COALESCE(MIN(a.date), '') AS first_booking_date
	FROM customer c
	LEFT JOIN appointment a ON a.customer_id = c.id AND a.status != 'cancelled'
	GROUP BY c.id;
	`)
	return err
}

// migrateLookupIndexes covers the hot paths: day schedules, reminders and
// customer matching on upsert.
func migrateLookupIndexes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE INDEX IF NOT EXISTS idx_appointment_location_date ON appointment(location, date);
	CREATE INDEX IF NOT EXISTS idx_appointment_customer ON appointment(customer_id);
	CREATE INDEX IF NOT EXISTS idx_appointment_remind ON appointment(reminder_sent, remind_at);
	CREATE INDEX IF NOT EXISTS idx_customer_email ON customer(email);
	CREATE INDEX IF NOT EXISTS idx_customer_phone ON customer(phone_normalized);
	CREATE INDEX IF NOT EXISTS idx_patient_record_customer ON patient_record(customer_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_attempt_at);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_event(timestamp);
	`)
	return err
}

// migrateFeatureFlags adds the per-role feature switches.
func migrateFeatureFlags(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS feature_flag (
		key TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		enabled_admin INTEGER NOT NULL DEFAULT 1,
		enabled_staff INTEGER NOT NULL DEFAULT 1,
		enabled_customer INTEGER NOT NULL DEFAULT 0,
		enabled_salon INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL DEFAULT ''
	);
	`)
	return err
}
