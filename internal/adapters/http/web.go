package web

import (
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"clinic/internal/adapters/email"
	"clinic/internal/adapters/http/middleware"
	"clinic/internal/adapters/http/perf"
	"clinic/internal/adapters/lock"
	"clinic/internal/adapters/objectstore"
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
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore     accountStore.Store
	CustomerStore    customerStore.Store
	TreatmentStore   treatmentStore.Store
	AppointmentStore appointmentStore.Store
	RecordStore      recordStore.Store
	FileStore        patientFileStore.Store
	TemplateStore    emailStore.TemplateStore
	CampaignStore    emailStore.CampaignStore
	OutboxStore      outboxStore.Store
	SalonStore       salonStore.Store
	AuditStore       auditStore.Store
	FeatureFlagStore featureFlagStore.Store
}

// Services holds the non-storage collaborators the handlers call.
type Services struct {
	Objects   objectstore.Store
	Locker    lock.Locker
	Tokens    *SalonTokens
	Processor *orchestrators.OutboxProcessor
	Sender    email.Sender
}

// Options configures NewMux.
type Options struct {
	Config    config.Config
	Stores    *Stores
	Services  Services
	Collector *perf.Collector
	StaticDir string // empty disables static file serving
}

// ErrCSRFKeyLength is returned when the configured CSRF key is not 32 bytes.
var ErrCSRFKeyLength = errors.New("CSRF key must be 32 bytes")

// Global stores instance (set by NewMux)
var stores *Stores

// Global services instance (set by NewMux)
var services Services

// Global session store instance
var sessions *middleware.SessionStore

// Global config (set by NewMux)
var cfg config.Config

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// timeNow is the clock used by handlers. Tests replace it.
var timeNow = time.Now

// csrfKey returns the configured key, or a random one outside production.
func csrfKey(c config.Config) ([]byte, error) {
	if c.CSRFKey != "" {
		if len(c.CSRFKey) != 32 {
			return nil, ErrCSRFKeyLength
		}
		return []byte(c.CSRFKey), nil
	}
	if c.IsProduction() {
		return nil, config.ErrMissingCSRFKey
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	slog.Warn("csrf_key_random", "hint", "set CLINIC_CSRF_KEY so form tokens survive restarts")
	return key, nil
}

// NewMux wires HTTP handlers for the app.
// PRE: opts.Stores is fully populated
// POST: Returns the handler with the middleware chain applied
func NewMux(opts Options) (http.Handler, error) {
	stores = opts.Stores
	services = opts.Services
	cfg = opts.Config
	perfCollector = opts.Collector
	sessions = middleware.NewSessionStore()
	middleware.SecureCookies = cfg.IsProduction()
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	key, err := csrfKey(cfg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	if opts.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(opts.StaticDir)))
	}
	registerRoutes(mux)

	// Applied outer to inner: Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(key, cfg.IsProduction(), nil),
		middleware.Auth(sessions),
		middleware.LimitByIP(max(RateLimitPerSecond, 1), time.Second),
		middleware.Timing(perfCollector, cfg.SlowRequest),
	), nil
}
