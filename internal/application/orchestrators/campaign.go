package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	customerStore "clinic/internal/adapters/storage/customer"
	"clinic/internal/domain/audit"
	"clinic/internal/domain/customer"
	emailDomain "clinic/internal/domain/email"
	"clinic/internal/domain/outbox"
)

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in the markdown source is dropped.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// RenderMarkdown converts a campaign body to HTML.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// CampaignStoreForOrchestrator defines the store interface needed by campaign orchestrators.
type CampaignStoreForOrchestrator interface {
	GetByID(ctx context.Context, id string) (emailDomain.Campaign, error)
	Save(ctx context.Context, c emailDomain.Campaign) error
	ListDue(ctx context.Context, now time.Time) ([]emailDomain.Campaign, error)
	SaveSendLogs(ctx context.Context, logs []emailDomain.SendLog) error
}

// TemplateGetter loads a template by ID.
type TemplateGetter interface {
	GetByID(ctx context.Context, id string) (emailDomain.Template, error)
}

// RecipientLister resolves a campaign segment to customers.
type RecipientLister interface {
	List(ctx context.Context, filter customerStore.ListFilter) ([]customer.Customer, error)
}

// --- Save Campaign ---

// SaveCampaignInput carries a new or edited campaign.
type SaveCampaignInput struct {
	ID           string // empty for new
	Name         string
	Subject      string
	BodyMarkdown string
	TemplateID   string
	Segment      emailDomain.Segment
	ScheduledAt  time.Time // zero keeps the campaign a draft
	Actor        Actor
}

// SaveCampaignDeps holds dependencies for SaveCampaign.
type SaveCampaignDeps struct {
	CampaignStore CampaignStoreForOrchestrator
	TemplateStore TemplateGetter
	GenerateID    func() string
	Now           func() time.Time
}

// ExecuteSaveCampaign creates or edits a draft campaign, optionally scheduling it.
// PRE: an existing campaign is still a draft or scheduled
// POST: BodyHTML is rendered; status is draft or scheduled
func ExecuteSaveCampaign(ctx context.Context, input SaveCampaignInput, deps SaveCampaignDeps) (emailDomain.Campaign, error) {
	now := deps.Now()
	var c emailDomain.Campaign
	if input.ID != "" {
		existing, err := deps.CampaignStore.GetByID(ctx, input.ID)
		if err != nil {
			return emailDomain.Campaign{}, err
		}
		if existing.Status != emailDomain.StatusDraft && existing.Status != emailDomain.StatusScheduled {
			return emailDomain.Campaign{}, emailDomain.ErrInvalidTransition
		}
		c = existing
		// editing a scheduled campaign returns it to draft until rescheduled
		c.Status = emailDomain.StatusDraft
		c.ScheduledAt = time.Time{}
	} else {
		c = emailDomain.Campaign{
			ID:        deps.GenerateID(),
			Status:    emailDomain.StatusDraft,
			CreatedBy: input.Actor.ID,
			CreatedAt: now,
		}
	}
	c.Name = strings.TrimSpace(input.Name)
	c.Subject = strings.TrimSpace(input.Subject)
	c.BodyMarkdown = input.BodyMarkdown
	c.TemplateID = input.TemplateID
	c.Segment = input.Segment
	c.UpdatedAt = now

	switch {
	case strings.TrimSpace(c.BodyMarkdown) != "":
		html, err := RenderMarkdown(c.BodyMarkdown)
		if err != nil {
			return emailDomain.Campaign{}, err
		}
		c.BodyHTML = html
	case c.TemplateID != "":
		tpl, err := deps.TemplateStore.GetByID(ctx, c.TemplateID)
		if err != nil {
			return emailDomain.Campaign{}, err
		}
		c.BodyHTML = tpl.BodyHTML
	}
	if err := c.Validate(); err != nil {
		return emailDomain.Campaign{}, err
	}
	if !input.ScheduledAt.IsZero() {
		if err := c.Schedule(input.ScheduledAt, now); err != nil {
			return emailDomain.Campaign{}, err
		}
	}
	if err := deps.CampaignStore.Save(ctx, c); err != nil {
		return emailDomain.Campaign{}, err
	}
	slog.Info("campaign_event", "event", "campaign_saved", "campaign_id", c.ID, "status", c.Status)
	return c, nil
}

// --- Send Campaign ---

// CampaignBatchPayload is the outbox payload of a send_campaign_batch entry.
type CampaignBatchPayload struct {
	CampaignID string   `json:"campaign_id"`
	LogIDs     []string `json:"log_ids"`
}

// SendCampaignInput names the campaign to send.
type SendCampaignInput struct {
	CampaignID string
	Actor      Actor
}

// SendCampaignDeps holds dependencies for SendCampaign.
type SendCampaignDeps struct {
	CampaignStore CampaignStoreForOrchestrator
	Recipients    RecipientLister
	OutboxStore   OutboxWriter
	AuditStore    AuditRecorder
	BatchSize     int
	GenerateID    func() string
	Now           func() time.Time
}

// SendCampaignResult summarises what was queued.
type SendCampaignResult struct {
	Campaign   emailDomain.Campaign
	Recipients int
	Batches    int
}

// DefaultCampaignBatchSize is used when SendCampaignDeps.BatchSize is unset.
const DefaultCampaignBatchSize = 50

// ExecuteSendCampaign resolves the segment, writes a send log row per
// recipient and queues the deliveries in batches.
// PRE: campaign is draft or scheduled and its segment matches someone
// POST: status is sending; one outbox entry per batch
func ExecuteSendCampaign(ctx context.Context, input SendCampaignInput, deps SendCampaignDeps) (SendCampaignResult, error) {
	c, err := deps.CampaignStore.GetByID(ctx, input.CampaignID)
	if err != nil {
		return SendCampaignResult{}, err
	}
	if err := c.Validate(); err != nil {
		return SendCampaignResult{}, err
	}
	if strings.TrimSpace(c.BodyHTML) == "" {
		return SendCampaignResult{}, emailDomain.ErrEmptyBody
	}

	customers, err := deps.Recipients.List(ctx, customerStore.ListFilter{
		Location:   c.Segment.Location,
		EmailOptIn: c.Segment.EmailOptInOnly,
		HasEmail:   true,
	})
	if err != nil {
		return SendCampaignResult{}, fmt.Errorf("resolve campaign segment: %w", err)
	}
	recipients := uniqueByEmail(customers)

	now := deps.Now()
	if err := c.StartSending(len(recipients), now); err != nil {
		return SendCampaignResult{}, err
	}

	logs := make([]emailDomain.SendLog, 0, len(recipients))
	for _, r := range recipients {
		logs = append(logs, emailDomain.SendLog{
			ID:         deps.GenerateID(),
			CampaignID: c.ID,
			CustomerID: r.ID,
			Email:      r.Email,
			Status:     emailDomain.DeliveryQueued,
		})
	}
	if err := deps.CampaignStore.SaveSendLogs(ctx, logs); err != nil {
		return SendCampaignResult{}, err
	}
	if err := deps.CampaignStore.Save(ctx, c); err != nil {
		return SendCampaignResult{}, err
	}

	size := deps.BatchSize
	if size <= 0 {
		size = DefaultCampaignBatchSize
	}
	batches := 0
	for start := 0; start < len(logs); start += size {
		end := min(start+size, len(logs))
		ids := make([]string, 0, end-start)
		for _, l := range logs[start:end] {
			ids = append(ids, l.ID)
		}
		if _, err := enqueue(ctx, deps.OutboxStore, deps.GenerateID(), outbox.ActionCampaignBatch,
			CampaignBatchPayload{CampaignID: c.ID, LogIDs: ids}, now); err != nil {
			return SendCampaignResult{}, err
		}
		batches++
	}

	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategoryMarketing, audit.ActionSend).
		WithLocation(c.Segment.Location).
		WithResource("campaign", c.ID).
		WithDescription(fmt.Sprintf("%s to %d recipients", c.Name, len(recipients))))
	slog.Info("campaign_event", "event", "campaign_queued", "campaign_id", c.ID, "recipients", len(recipients), "batches", batches)
	return SendCampaignResult{Campaign: c, Recipients: len(recipients), Batches: batches}, nil
}

func uniqueByEmail(customers []customer.Customer) []customer.Customer {
	seen := make(map[string]bool, len(customers))
	out := make([]customer.Customer, 0, len(customers))
	for _, c := range customers {
		key := strings.ToLower(strings.TrimSpace(c.Email))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// ExecuteDispatchDueCampaigns starts every scheduled campaign whose time has come.
// POST: Returns the number of campaigns started; one failure does not stop the rest
func ExecuteDispatchDueCampaigns(ctx context.Context, deps SendCampaignDeps) (int, error) {
	due, err := deps.CampaignStore.ListDue(ctx, deps.Now())
	if err != nil {
		return 0, fmt.Errorf("list due campaigns: %w", err)
	}
	var errs []error
	started := 0
	for _, c := range due {
		_, err := ExecuteSendCampaign(ctx, SendCampaignInput{
			CampaignID: c.ID,
			Actor:      Actor{ID: "system", Role: "system"},
		}, deps)
		if errors.Is(err, emailDomain.ErrNoRecipients) {
			// an empty segment would otherwise be retried on every tick
			if cerr := c.Cancel(deps.Now()); cerr == nil {
				if serr := deps.CampaignStore.Save(ctx, c); serr != nil {
					errs = append(errs, serr)
				}
			}
			slog.Warn("campaign_cancelled_no_recipients", "campaign_id", c.ID)
			continue
		}
		if err != nil {
			slog.Error("campaign_dispatch_failed", "campaign_id", c.ID, "error", err)
			errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
			continue
		}
		started++
	}
	return started, errors.Join(errs...)
}
