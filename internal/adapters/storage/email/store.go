package email

import (
	"context"
	"time"

	domain "clinic/internal/domain/email"
)

// TemplateStore persists email templates.
type TemplateStore interface {
	GetByID(ctx context.Context, id string) (domain.Template, error)
	GetBySlug(ctx context.Context, slug string) (domain.Template, error)
	Save(ctx context.Context, t domain.Template) error
	List(ctx context.Context, templateType string) ([]domain.Template, error)
}

// CampaignStore persists campaigns and their per-recipient send log.
type CampaignStore interface {
	GetByID(ctx context.Context, id string) (domain.Campaign, error)
	Save(ctx context.Context, c domain.Campaign) error
	List(ctx context.Context, status string) ([]domain.Campaign, error)
	// ListDue returns scheduled campaigns whose time has come.
	ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)

	// RecordDelivery adds to the sent and failed counters in one statement and
	// marks the campaign sent once every recipient is accounted for.
	// POST: counters are never lost to concurrent batches
	RecordDelivery(ctx context.Context, id string, sent, failed int, now time.Time) error

	SaveSendLogs(ctx context.Context, logs []domain.SendLog) error
	UpdateSendLog(ctx context.Context, log domain.SendLog) error
	ListSendLogs(ctx context.Context, campaignID string) ([]domain.SendLog, error)
}
