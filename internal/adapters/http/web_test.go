package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"clinic/internal/adapters/email"
	"clinic/internal/adapters/http/middleware"
	"clinic/internal/adapters/lock"
	"clinic/internal/adapters/objectstore"
	"clinic/internal/adapters/storage"
	accountStore "clinic/internal/adapters/storage/account"
	appointmentStore "clinic/internal/adapters/storage/appointment"
	auditStore "clinic/internal/adapters/storage/audit"
	customerStore "clinic/internal/adapters/storage/customer"
	emailStore "clinic/internal/adapters/storage/email"
	featureFlagStore "clinic/internal/adapters/storage/featureflag"
	outboxStore "clinic/internal/adapters/storage/outbox"
	patientFileStore "clinic/internal/adapters/storage/patientfile"
	recordStore "clinic/internal/adapters/storage/record"
	salonStore "clinic/internal/adapters/storage/salon"
	treatmentStore "clinic/internal/adapters/storage/treatment"
	"clinic/internal/application/orchestrators"
	"clinic/internal/config"
	"clinic/internal/domain/account"
	"clinic/internal/domain/appointment"
	"clinic/internal/domain/customer"
	"clinic/internal/domain/outbox"
)

const testPIN = "4711"

// fixedNow is Monday 2 March 2026, 08:00 UTC.
var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	handler    http.Handler
	stores     *Stores
	admin      *http.Cookie
	staff      *http.Cookie
	customerID string
	// consultation is the 30 minute treatment offered at every location.
	consultation string
}

// newTestEnv builds the full handler on an in-memory database with the
// default catalogue, both location PINs and one customer.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s := &Stores{
		AccountStore:     accountStore.NewSQLiteStore(db),
		CustomerStore:    customerStore.NewSQLiteStore(db),
		TreatmentStore:   treatmentStore.NewSQLiteStore(db),
		AppointmentStore: appointmentStore.NewSQLiteStore(db),
		RecordStore:      recordStore.NewSQLiteStore(db),
		FileStore:        patientFileStore.NewSQLiteStore(db),
		TemplateStore:    emailStore.NewSQLiteTemplateStore(db),
		CampaignStore:    emailStore.NewSQLiteCampaignStore(db),
		OutboxStore:      outboxStore.NewSQLiteStore(db),
		SalonStore:       salonStore.NewSQLiteStore(db),
		AuditStore:       auditStore.NewSQLiteStore(db),
		FeatureFlagStore: featureFlagStore.NewSQLiteStore(db),
	}
	ctx := context.Background()
	if err := orchestrators.ExecuteSeedTreatments(ctx, s.TreatmentStore); err != nil {
		t.Fatalf("seed treatments: %v", err)
	}
	if err := orchestrators.ExecuteSeedSalonAccess(ctx, s.SalonStore, testPIN); err != nil {
		t.Fatalf("seed salon: %v", err)
	}
	if err := orchestrators.ExecuteSeedTemplates(ctx, s.TemplateStore, fixedNow); err != nil {
		t.Fatalf("seed templates: %v", err)
	}
	if err := orchestrators.ExecuteSeedFeatureFlags(ctx, s.FeatureFlagStore, fixedNow); err != nil {
		t.Fatalf("seed feature flags: %v", err)
	}

	tokens, err := NewSalonTokens("test-secret-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	tokens.now = func() time.Time { return fixedNow }
	sender := email.NewNoopSender()

	origNow, origRate := timeNow, RateLimitPerSecond
	timeNow = func() time.Time { return fixedNow }
	RateLimitPerSecond = 10000
	t.Cleanup(func() { timeNow, RateLimitPerSecond = origNow, origRate })

	h, err := NewMux(Options{
		Config: config.Config{
			Env:               "test",
			Version:           "test",
			Location:          time.UTC,
			CSRFKey:           strings.Repeat("c", 32),
			SalonTimeout:      30 * time.Minute,
			BookingLockTTL:    5 * time.Second,
			BookingLockWait:   time.Second,
			PresignExpiry:     time.Minute,
			LoginRateLimit:    1000,
			UnlockRateLimit:   1000,
			CampaignBatchSize: 50,
		},
		Stores: s,
		Services: Services{
			Objects: objectstore.NewMemoryStore(),
			Locker:  lock.NewLocalLocker(),
			Tokens:  tokens,
			Processor: orchestrators.NewOutboxProcessor(s.OutboxStore, map[string]orchestrators.ActionExecutor{
				outbox.ActionSendEmail: &orchestrators.EmailExecutor{Sender: sender},
			}),
			Sender: sender,
		},
	})
	if err != nil {
		t.Fatalf("NewMux: %v", err)
	}

	env := &testEnv{handler: h, stores: s}
	env.admin = sessionCookie(t, "admin-1", account.RoleAdmin)
	env.staff = sessionCookie(t, "staff-1", account.RoleStaff)

	res, err := orchestrators.ExecuteUpsertCustomer(ctx, orchestrators.UpsertCustomerInput{
		FirstName:   "Lena",
		LastName:    "Vogt",
		Email:       "lena@example.com",
		Phone:       "+49 170 1234567",
		DateOfBirth: "1990-05-04",
		Source:      customer.SourceManual,
		Actor:       orchestrators.Actor{ID: "admin-1", Role: account.RoleAdmin},
	}, orchestrators.UpsertCustomerDeps{
		CustomerStore: s.CustomerStore,
		AuditStore:    s.AuditStore,
		GenerateID:    generateID,
		Now:           timeNow,
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	env.customerID = res.Customer.ID

	tr, err := s.TreatmentStore.GetBySlug(ctx, "beratung")
	if err != nil {
		t.Fatalf("consultation treatment: %v", err)
	}
	env.consultation = tr.ID
	return env
}

func sessionCookie(t *testing.T, accountID, role string) *http.Cookie {
	t.Helper()
	token, err := sessions.Create(accountID, accountID+"@clinic.test", accountID, role)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return &http.Cookie{Name: middleware.SessionCookieName, Value: token}
}

type reqOption func(*http.Request)

func withCookie(c *http.Cookie) reqOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withBearer(token string) reqOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func (e *testEnv) do(t *testing.T, method, path string, body any, opts ...reqOption) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rr, &body)
	return body.Error
}

// unreadableDayStore fails every day read, as a locked or corrupt database would.
type unreadableDayStore struct {
	appointmentStore.Store
}

func (unreadableDayStore) ListForDay(context.Context, string, string) ([]appointment.Appointment, error) {
	return nil, errors.New("database is locked")
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
}

func TestNewMux_RejectsShortCSRFKey(t *testing.T) {
	_, err := NewMux(Options{Config: config.Config{CSRFKey: "short"}, Stores: &Stores{}})
	if !errors.Is(err, ErrCSRFKeyLength) {
		t.Fatalf("err = %v, want ErrCSRFKeyLength", err)
	}
	_, err = NewMux(Options{Config: config.Config{Env: "production"}, Stores: &Stores{}})
	if !errors.Is(err, config.ErrMissingCSRFKey) {
		t.Fatalf("err = %v, want ErrMissingCSRFKey", err)
	}
}
