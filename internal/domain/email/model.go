package email

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
)

// Template types
const (
	TypeTransactional = "transactional"
	TypeMarketing     = "marketing"
	TypeAftercare     = "aftercare"
	TypeReminder      = "reminder"
)

// Campaign status constants.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusCancelled = "cancelled"
)

// Delivery status values on a send log row.
const (
	DeliveryQueued = "queued"
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Domain errors
var (
	ErrEmptySlug         = errors.New("template slug is required")
	ErrEmptyName         = errors.New("name is required")
	ErrEmptySubject      = errors.New("subject is required")
	ErrEmptyBody         = errors.New("body is required")
	ErrInvalidType       = errors.New("invalid template type")
	ErrTemplateInactive  = errors.New("template is inactive")
	ErrMissingVariable   = errors.New("missing template variable")
	ErrInvalidTransition = errors.New("campaign cannot move to that status")
	ErrNoRecipients      = errors.New("segment matched no recipients")
	ErrScheduledInPast   = errors.New("scheduled time must be in the future")
	ErrInvalidSegmentLoc = errors.New("segment location must be neumarkt, kw or empty")
)

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Template is a stored email with {{variable}} placeholders.
type Template struct {
	ID           string
	Slug         string
	Name         string
	Subject      string
	BodyHTML     string
	BodyText     string
	TemplateType string
	Variables    []string // names that must be supplied when rendering
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Rendered is a template with its variables substituted.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Validate checks if the Template has valid data.
// PRE: Template struct is populated
// POST: Returns nil if valid, error otherwise
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Slug) == "" {
		return ErrEmptySlug
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(t.Subject) == "" {
		return ErrEmptySubject
	}
	if strings.TrimSpace(t.BodyHTML) == "" {
		return ErrEmptyBody
	}
	switch t.TemplateType {
	case TypeTransactional, TypeMarketing, TypeAftercare, TypeReminder:
	default:
		return ErrInvalidType
	}
	return nil
}

// Render substitutes vars into the subject and bodies.
// Values are HTML-escaped in the HTML body. Placeholders without a value are
// left empty unless listed in Variables, which makes them required.
// PRE: Template is active
// POST: Returns the rendered message or ErrMissingVariable
func (t *Template) Render(vars map[string]string) (Rendered, error) {
	if !t.Active {
		return Rendered{}, ErrTemplateInactive
	}
	for _, name := range t.Variables {
		if _, ok := vars[name]; !ok {
			return Rendered{}, fmt.Errorf("%w: %s", ErrMissingVariable, name)
		}
	}
	return Rendered{
		Subject: substitute(t.Subject, vars, false),
		HTML:    substitute(t.BodyHTML, vars, true),
		Text:    substitute(t.BodyText, vars, false),
	}, nil
}

func substitute(s string, vars map[string]string, escape bool) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v := vars[name]
		if escape {
			return html.EscapeString(v)
		}
		return v
	})
}

// Segment selects campaign recipients.
type Segment struct {
	Location       string // empty means every location
	EmailOptInOnly bool
}

// Campaign is a marketing email sent to a customer segment.
type Campaign struct {
	ID              string
	Name            string
	Subject         string
	BodyMarkdown    string
	BodyHTML        string // rendered from BodyMarkdown, or copied from the template
	TemplateID      string
	Segment         Segment
	Status          string
	ScheduledAt     time.Time
	SentAt          time.Time
	TotalRecipients int
	TotalSent       int
	TotalFailed     int
	TotalOpened     int
	TotalClicked    int
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks if the Campaign has valid data.
// PRE: Campaign struct is populated
// POST: Returns nil if valid, error otherwise
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(c.Subject) == "" {
		return ErrEmptySubject
	}
	if strings.TrimSpace(c.BodyMarkdown) == "" && strings.TrimSpace(c.BodyHTML) == "" && c.TemplateID == "" {
		return ErrEmptyBody
	}
	switch c.Segment.Location {
	case "", "neumarkt", "kw":
	default:
		return ErrInvalidSegmentLoc
	}
	return nil
}

// Schedule moves a draft campaign to scheduled.
// PRE: Status is draft, at is after now
// POST: Status is scheduled
func (c *Campaign) Schedule(at, now time.Time) error {
	if c.Status != StatusDraft {
		return ErrInvalidTransition
	}
	if !at.After(now) {
		return ErrScheduledInPast
	}
	c.Status = StatusScheduled
	c.ScheduledAt = at
	c.UpdatedAt = now
	return nil
}

// StartSending moves a draft or scheduled campaign to sending.
// PRE: Status is draft or scheduled, recipients > 0
// POST: Status is sending, TotalRecipients set
func (c *Campaign) StartSending(recipients int, now time.Time) error {
	if c.Status != StatusDraft && c.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	if recipients == 0 {
		return ErrNoRecipients
	}
	c.Status = StatusSending
	c.TotalRecipients = recipients
	c.UpdatedAt = now
	return nil
}

// RecordDelivered adds delivered messages and completes the campaign once
// every recipient has been handled.
// PRE: Status is sending
func (c *Campaign) RecordDelivered(n, failed int, now time.Time) {
	c.TotalSent += n
	c.TotalFailed += failed
	c.UpdatedAt = now
	if c.Status == StatusSending && c.TotalSent+c.TotalFailed >= c.TotalRecipients {
		c.Status = StatusSent
		c.SentAt = now
	}
}

// Cancel stops a campaign that has not started sending.
// PRE: Status is draft or scheduled
// POST: Status is cancelled
func (c *Campaign) Cancel(now time.Time) error {
	if c.Status != StatusDraft && c.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	c.Status = StatusCancelled
	c.UpdatedAt = now
	return nil
}

// IsDue reports whether a scheduled campaign should start at now.
func (c *Campaign) IsDue(now time.Time) bool {
	return c.Status == StatusScheduled && !now.Before(c.ScheduledAt)
}

// SendLog is the per-recipient delivery record of a campaign.
type SendLog struct {
	ID         string
	CampaignID string
	CustomerID string
	Email      string
	Status     string
	MessageID  string
	Error      string
	SentAt     time.Time
}
