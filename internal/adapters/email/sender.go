package email

import (
	"context"
	"time"
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string
	From    string // overrides the sender default, e.g. "Clinic <termine@clinic.example>"
	Subject string
	HTML    string
	Text    string // plain-text alternative, optional
	ReplyTo string
	Tags    map[string]string // provider tags, e.g. campaign_id for analytics
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	// SendBatch returns one result per request, in request order.
	SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error)
}
