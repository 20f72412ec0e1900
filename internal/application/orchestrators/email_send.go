package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"clinic/internal/domain/audit"
	emailDomain "clinic/internal/domain/email"
	"clinic/internal/domain/outbox"
)

// TemplateLookup resolves email templates by slug.
type TemplateLookup interface {
	GetBySlug(ctx context.Context, slug string) (emailDomain.Template, error)
}

// OutboxWriter queues side effects for the outbox processor.
type OutboxWriter interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// Template slugs the application sends on its own.
const (
	TemplateBookingConfirmation = "booking_confirmation"
	TemplateAppointmentReminder = "appointment_reminder"
)

// EmailPayload is the outbox payload of a send_email entry.
// The message is rendered when queued so later template edits do not change it.
type EmailPayload struct {
	To      string            `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Text    string            `json:"text,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
}

var ErrNoRecipientAddress = errors.New("recipient email address is required")

// enqueue stores payload as a pending outbox entry.
func enqueue(ctx context.Context, w OutboxWriter, id, actionType string, payload any, now time.Time) (outbox.Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return outbox.Entry{}, fmt.Errorf("marshal %s payload: %w", actionType, err)
	}
	entry := outbox.Entry{
		ID:         id,
		ActionType: actionType,
		Payload:    string(raw),
		CreatedAt:  now,
	}
	if err := entry.Validate(); err != nil {
		return outbox.Entry{}, err
	}
	if err := w.Save(ctx, entry); err != nil {
		return outbox.Entry{}, fmt.Errorf("queue %s: %w", actionType, err)
	}
	return entry, nil
}

// SendTemplateEmailInput carries input for SendTemplateEmail.
type SendTemplateEmailInput struct {
	TemplateSlug string
	To           string
	CustomerID   string
	Variables    map[string]string
	Actor        Actor
}

// SendTemplateEmailDeps holds dependencies for SendTemplateEmail.
type SendTemplateEmailDeps struct {
	TemplateStore TemplateLookup
	OutboxStore   OutboxWriter
	AuditStore    AuditRecorder
	GenerateID    func() string
	Now           func() time.Time
}

// ExecuteSendTemplateEmail renders a stored template and queues it for delivery.
// PRE: TemplateSlug names an active template, To is an email address
// POST: A send_email outbox entry exists; its ID is returned
func ExecuteSendTemplateEmail(ctx context.Context, input SendTemplateEmailInput, deps SendTemplateEmailDeps) (string, error) {
	to := strings.TrimSpace(input.To)
	if to == "" || !strings.Contains(to, "@") {
		return "", ErrNoRecipientAddress
	}
	tpl, err := deps.TemplateStore.GetBySlug(ctx, input.TemplateSlug)
	if err != nil {
		return "", err
	}
	msg, err := tpl.Render(input.Variables)
	if err != nil {
		return "", err
	}

	tags := map[string]string{"template": tpl.Slug}
	if input.CustomerID != "" {
		tags["customer_id"] = input.CustomerID
	}
	now := deps.Now()
	entry, err := enqueue(ctx, deps.OutboxStore, deps.GenerateID(), outbox.ActionSendEmail, EmailPayload{
		To:      to,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		Tags:    tags,
	}, now)
	if err != nil {
		return "", err
	}

	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategoryMarketing, audit.ActionSend).
		WithResource("outbox", entry.ID).
		WithDescription("queued template " + tpl.Slug))
	slog.Info("email_event", "event", "template_email_queued", "template", tpl.Slug, "outbox_id", entry.ID, "customer_id", input.CustomerID)
	return entry.ID, nil
}
