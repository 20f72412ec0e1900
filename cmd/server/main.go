package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	emailPkg "clinic/internal/adapters/email"
	web "clinic/internal/adapters/http"
	"clinic/internal/adapters/http/perf"
	"clinic/internal/adapters/lock"
	"clinic/internal/adapters/objectstore"
	"clinic/internal/adapters/storage"
	accountStore "clinic/internal/adapters/storage/account"
	appointmentStore "clinic/internal/adapters/storage/appointment"
	auditStore "clinic/internal/adapters/storage/audit"
	customerStore "clinic/internal/adapters/storage/customer"
	emailStorePkg "clinic/internal/adapters/storage/email"
	featureFlagStore "clinic/internal/adapters/storage/featureflag"
	outboxStorePkg "clinic/internal/adapters/storage/outbox"
	patientFileStore "clinic/internal/adapters/storage/patientfile"
	recordStore "clinic/internal/adapters/storage/record"
	salonStore "clinic/internal/adapters/storage/salon"
	treatmentStore "clinic/internal/adapters/storage/treatment"
	"clinic/internal/application/orchestrators"
	"clinic/internal/config"
	"clinic/internal/domain/outbox"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server_failed", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Version == "dev" {
		cfg.Version = version
	}
	slog.SetDefault(newLogger(cfg))

	ctx := context.Background()

	// WAL mode, foreign keys and busy timeout
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := db.Ping(); err != nil {
		return err
	}
	if err := storage.MigrateDB(db, cfg.DBPath); err != nil {
		return err
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery)

	stores := &web.Stores{
		AccountStore:     accountStore.NewSQLiteStore(timedDB),
		CustomerStore:    customerStore.NewSQLiteStore(timedDB),
		TreatmentStore:   treatmentStore.NewSQLiteStore(timedDB),
		AppointmentStore: appointmentStore.NewSQLiteStore(timedDB),
		RecordStore:      recordStore.NewSQLiteStore(timedDB),
		FileStore:        patientFileStore.NewSQLiteStore(timedDB),
		TemplateStore:    emailStorePkg.NewSQLiteTemplateStore(timedDB),
		CampaignStore:    emailStorePkg.NewSQLiteCampaignStore(timedDB),
		OutboxStore:      outboxStorePkg.NewSQLiteStore(timedDB),
		SalonStore:       salonStore.NewSQLiteStore(timedDB),
		AuditStore:       auditStore.NewSQLiteStore(timedDB),
		FeatureFlagStore: featureFlagStore.NewSQLiteStore(timedDB),
	}

	if err := seed(ctx, cfg, stores); err != nil {
		return err
	}

	sender := newSender(cfg)
	objects, err := newObjectStore(ctx, cfg)
	if err != nil {
		return err
	}
	locker, closeLocker := newLocker(ctx, cfg)
	defer closeLocker()

	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		slog.Warn("jwt_secret_random", "hint", "set CLINIC_JWT_SECRET so salon tokens survive restarts")
	}
	tokens, err := web.NewSalonTokens(secret, web.DefaultSalonTokenTTL)
	if err != nil {
		return err
	}

	processor := orchestrators.NewOutboxProcessor(stores.OutboxStore, map[string]orchestrators.ActionExecutor{
		outbox.ActionSendEmail: &orchestrators.EmailExecutor{Sender: sender, ReplyTo: cfg.ReplyTo},
		outbox.ActionCampaignBatch: &orchestrators.CampaignBatchExecutor{
			Store:   stores.CampaignStore,
			Sender:  sender,
			ReplyTo: cfg.ReplyTo,
			Now:     time.Now,
		},
		outbox.ActionReminder: &orchestrators.ReminderExecutor{
			Appointments:  stores.AppointmentStore,
			Customers:     stores.CustomerStore,
			Treatments:    stores.TreatmentStore,
			TemplateStore: stores.TemplateStore,
			Sender:        sender,
			ReplyTo:       cfg.ReplyTo,
		},
	})

	stopCh := make(chan struct{})
	defer close(stopCh)
	orchestrators.StartBackgroundWorker(processor, cfg.OutboxInterval, stopCh)
	orchestrators.StartPeriodicJob("reminders", cfg.ReminderInterval, stopCh, func(ctx context.Context) error {
		n, err := orchestrators.ExecuteQueueReminders(ctx, orchestrators.QueueRemindersDeps{
			AppointmentStore: stores.AppointmentStore,
			OutboxStore:      stores.OutboxStore,
			GenerateID:       uuid.NewString,
			Now:              time.Now,
		})
		if n > 0 {
			slog.Info("reminders_queued", "count", n)
		}
		return err
	})
	orchestrators.StartPeriodicJob("scheduled_campaigns", cfg.ReminderInterval, stopCh, func(ctx context.Context) error {
		_, err := orchestrators.ExecuteDispatchDueCampaigns(ctx, orchestrators.SendCampaignDeps{
			CampaignStore: stores.CampaignStore,
			Recipients:    stores.CustomerStore,
			OutboxStore:   stores.OutboxStore,
			AuditStore:    stores.AuditStore,
			BatchSize:     cfg.CampaignBatchSize,
			GenerateID:    uuid.NewString,
			Now:           time.Now,
		})
		return err
	})

	handler, err := web.NewMux(web.Options{
		Config: cfg,
		Stores: stores,
		Services: web.Services{
			Objects:   objects,
			Locker:    locker,
			Tokens:    tokens,
			Processor: processor,
			Sender:    sender,
		},
		Collector: collector,
		StaticDir: "static",
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting",
			"version", cfg.Version,
			"addr", cfg.Addr,
			"env", cfg.Env,
			"schema", storage.LatestSchemaVersion(),
			"timezone", cfg.Timezone,
		)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-sigCh:
		slog.Info("server_stopping", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// seed fills an empty database with the treatment catalogue, location PINs,
// email templates, feature flags and the first admin. Every step is idempotent.
func seed(ctx context.Context, cfg config.Config, stores *web.Stores) error {
	if err := orchestrators.ExecuteSeedTreatments(ctx, stores.TreatmentStore); err != nil {
		return err
	}
	if err := orchestrators.ExecuteSeedSalonAccess(ctx, stores.SalonStore, cfg.SalonPIN); err != nil {
		return err
	}
	if err := orchestrators.ExecuteSeedTemplates(ctx, stores.TemplateStore, time.Now()); err != nil {
		return err
	}
	if err := orchestrators.ExecuteSeedFeatureFlags(ctx, stores.FeatureFlagStore, time.Now()); err != nil {
		return err
	}
	_, err := orchestrators.ExecuteSeedAdmin(ctx, orchestrators.CreateAccountDeps{
		AccountStore: stores.AccountStore,
		AuditStore:   stores.AuditStore,
		GenerateID:   uuid.NewString,
		Now:          time.Now,
	}, cfg.AdminEmail, cfg.AdminPassword, randomSecret)
	return err
}

func newSender(cfg config.Config) emailPkg.Sender {
	if cfg.ResendKey != "" {
		slog.Info("email_sender_configured", "provider", "resend")
		return emailPkg.NewResendSender(cfg.ResendKey, cfg.EmailFrom, cfg.ReplyTo)
	}
	if cfg.IsProduction() {
		slog.Warn("email_delivery_disabled", "hint", "CLINIC_RESEND_KEY is not set")
	} else {
		slog.Info("email_sender_configured", "provider", "noop")
	}
	return emailPkg.NewNoopSender()
}

func newObjectStore(ctx context.Context, cfg config.Config) (objectstore.Store, error) {
	if cfg.MinioEndpoint == "" {
		slog.Warn("object_store_memory", "hint", "set CLINIC_MINIO_ENDPOINT to keep patient files across restarts")
		return objectstore.NewMemoryStore(), nil
	}
	store, err := objectstore.NewMinioStore(ctx, objectstore.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("object_store_configured", "provider", "minio", "bucket", cfg.MinioBucket)
	return store, nil
}

// newLocker uses Redis when configured so bookings serialize across
// processes, and an in-process locker otherwise.
func newLocker(ctx context.Context, cfg config.Config) (lock.Locker, func()) {
	if cfg.RedisAddr == "" {
		return lock.NewLocalLocker(), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis_unreachable", "addr", cfg.RedisAddr, "error", err.Error())
	}
	slog.Info("booking_locker_configured", "provider", "redis", "addr", cfg.RedisAddr)
	return lock.NewRedisLocker(client, "clinic:"), func() { _ = client.Close() }
}

func randomSecret() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
