package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	emailAdapter "clinic/internal/adapters/email"
	"clinic/internal/domain/appointment"
	emailDomain "clinic/internal/domain/email"
	domain "clinic/internal/domain/outbox"
)

// OutboxStoreForProcessor defines the store interface needed by the processor.
type OutboxStoreForProcessor interface {
	GetByID(ctx context.Context, id string) (domain.Entry, error)
	Save(ctx context.Context, e domain.Entry) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)
}

// OutboxProcessor replays queued external actions with exponential backoff.
type OutboxProcessor struct {
	store     OutboxStoreForProcessor
	executors map[string]ActionExecutor
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
	now       func() time.Time
}

// ActionExecutor executes a specific type of external action.
type ActionExecutor interface {
	// Execute runs the external action with the given payload.
	// Returns the external ID (e.g. a provider message ID) and any error.
	Execute(ctx context.Context, payload string) (string, error)
}

// GiveUpHandler is implemented by executors that must clean up once an
// entry has used all of its attempts.
type GiveUpHandler interface {
	GiveUp(ctx context.Context, payload string, lastErr error) error
}

var ErrEntryTerminal = errors.New("outbox entry is in a terminal state")

// NewOutboxProcessor creates a new outbox processor.
func NewOutboxProcessor(store OutboxStoreForProcessor, executors map[string]ActionExecutor) *OutboxProcessor {
	return &OutboxProcessor{
		store:     store,
		executors: executors,
		baseDelay: 30 * time.Second,
		maxDelay:  1 * time.Hour,
		batchSize: 10,
		now:       time.Now,
	}
}

// ProcessPending processes due outbox entries.
// PRE: Context is valid
// POST: Due entries are attempted once; failures are rescheduled
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	entries, err := p.store.ListDue(ctx, p.now(), p.batchSize)
	if err != nil {
		return fmt.Errorf("list due outbox entries: %w", err)
	}

	for _, entry := range entries {
		if err := p.processEntry(ctx, entry); err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "error", err.Error())
		}
	}

	return nil
}

// processEntry runs one attempt and saves the outcome.
func (p *OutboxProcessor) processEntry(ctx context.Context, entry domain.Entry) error {
	now := p.now()
	if !entry.IsDue(now) || !entry.CanRetry() {
		return nil
	}

	executor, ok := p.executors[entry.ActionType]
	entry.MarkAttempt(now)
	if !ok {
		entry.MarkFailed(fmt.Errorf("no executor registered for action type: %s", entry.ActionType), now, p.baseDelay, p.maxDelay)
		return p.store.Save(ctx, entry)
	}

	externalID, err := executor.Execute(ctx, entry.Payload)
	if err != nil {
		entry.MarkFailed(err, now, p.baseDelay, p.maxDelay)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "attempt", entry.Attempts, "error", err.Error())
		if entry.Status == domain.StatusFailed {
			p.giveUp(ctx, executor, entry, err)
		}
	} else {
		entry.MarkSuccess(externalID)
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	}

	return p.store.Save(ctx, entry)
}

func (p *OutboxProcessor) giveUp(ctx context.Context, executor ActionExecutor, entry domain.Entry, lastErr error) {
	h, ok := executor.(GiveUpHandler)
	if !ok {
		return
	}
	if err := h.GiveUp(ctx, entry.Payload, lastErr); err != nil {
		slog.Error("outbox_give_up_failed", "entry_id", entry.ID, "error", err)
	}
}

// RetryEntry gives a failed entry a fresh round of attempts and runs it now.
// PRE: entryID is non-empty
// POST: Entry is attempted once, status updated
func (p *OutboxProcessor) RetryEntry(ctx context.Context, entryID string) (domain.Entry, error) {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get outbox entry: %w", err)
	}
	if entry.Status == domain.StatusFailed {
		if err := entry.ResetForRetry(); err != nil {
			return domain.Entry{}, err
		}
	}
	if entry.IsTerminal() {
		return domain.Entry{}, fmt.Errorf("entry %s: %w", entryID, ErrEntryTerminal)
	}
	entry.NextAttemptAt = time.Time{}
	if err := p.processEntry(ctx, entry); err != nil {
		return domain.Entry{}, err
	}
	return p.store.GetByID(ctx, entryID)
}

// AbandonEntry marks an entry as abandoned by admin.
// PRE: entryID is non-empty
// POST: Entry status set to abandoned
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	if entry.Status == domain.StatusDone {
		return fmt.Errorf("entry %s: %w", entryID, ErrEntryTerminal)
	}

	entry.MarkAbandoned()
	return p.store.Save(ctx, entry)
}

// --- Email Executor ---

// EmailExecutor delivers send_email entries.
type EmailExecutor struct {
	Sender  emailAdapter.Sender
	ReplyTo string
}

// Execute sends an email from the payload.
// PRE: payload is valid JSON matching EmailPayload
// POST: email sent via configured sender, returns message ID
// INVARIANT: outbox entry status managed by caller
func (e *EmailExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p EmailPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	res, err := e.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{p.To},
		Subject: p.Subject,
		HTML:    p.HTML,
		Text:    p.Text,
		ReplyTo: e.ReplyTo,
		Tags:    p.Tags,
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// --- Campaign Batch Executor ---

// CampaignDeliveryStore defines the store interface needed to deliver campaign batches.
type CampaignDeliveryStore interface {
	GetByID(ctx context.Context, id string) (emailDomain.Campaign, error)
	ListSendLogs(ctx context.Context, campaignID string) ([]emailDomain.SendLog, error)
	UpdateSendLog(ctx context.Context, log emailDomain.SendLog) error
	RecordDelivery(ctx context.Context, id string, sent, failed int, now time.Time) error
}

// CampaignBatchExecutor delivers one batch of a campaign.
// Only log rows still queued are sent, so a retried batch never mails anyone twice.
type CampaignBatchExecutor struct {
	Store   CampaignDeliveryStore
	Sender  emailAdapter.Sender
	ReplyTo string
	Now     func() time.Time
}

func (e *CampaignBatchExecutor) pending(ctx context.Context, payload string) (CampaignBatchPayload, []emailDomain.SendLog, error) {
	var p CampaignBatchPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return p, nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	logs, err := e.Store.ListSendLogs(ctx, p.CampaignID)
	if err != nil {
		return p, nil, err
	}
	want := make(map[string]bool, len(p.LogIDs))
	for _, id := range p.LogIDs {
		want[id] = true
	}
	out := make([]emailDomain.SendLog, 0, len(p.LogIDs))
	for _, l := range logs {
		if want[l.ID] && l.Status == emailDomain.DeliveryQueued {
			out = append(out, l)
		}
	}
	return p, out, nil
}

// Execute sends the batch and records each recipient's outcome.
// PRE: payload is valid JSON matching CampaignBatchPayload
// POST: every queued log row of the batch is sent; campaign counters updated
func (e *CampaignBatchExecutor) Execute(ctx context.Context, payload string) (string, error) {
	p, logs, err := e.pending(ctx, payload)
	if err != nil {
		return "", err
	}
	if len(logs) == 0 {
		return "", nil
	}
	c, err := e.Store.GetByID(ctx, p.CampaignID)
	if err != nil {
		return "", err
	}
	if c.Status == emailDomain.StatusCancelled {
		return "cancelled", nil
	}

	reqs := make([]emailAdapter.SendRequest, 0, len(logs))
	for _, l := range logs {
		reqs = append(reqs, emailAdapter.SendRequest{
			To:      []string{l.Email},
			Subject: c.Subject,
			HTML:    c.BodyHTML,
			ReplyTo: e.ReplyTo,
			Tags:    map[string]string{"campaign_id": c.ID, "customer_id": l.CustomerID},
		})
	}
	results, err := e.Sender.SendBatch(ctx, reqs)
	if err != nil {
		return "", err
	}

	now := e.Now()
	for i, l := range logs {
		l.Status = emailDomain.DeliverySent
		l.SentAt = now
		if i < len(results) {
			l.MessageID = results[i].MessageID
		}
		if err := e.Store.UpdateSendLog(ctx, l); err != nil {
			slog.Error("campaign_send_log_update_failed", "log_id", l.ID, "error", err)
		}
	}
	if err := e.Store.RecordDelivery(ctx, c.ID, len(logs), 0, now); err != nil {
		return "", err
	}
	firstID := ""
	if len(results) > 0 {
		firstID = results[0].MessageID
	}
	return firstID, nil
}

// GiveUp marks the batch's remaining recipients failed so the campaign completes.
func (e *CampaignBatchExecutor) GiveUp(ctx context.Context, payload string, lastErr error) error {
	p, logs, err := e.pending(ctx, payload)
	if err != nil {
		return err
	}
	for _, l := range logs {
		l.Status = emailDomain.DeliveryFailed
		l.Error = lastErr.Error()
		if err := e.Store.UpdateSendLog(ctx, l); err != nil {
			return err
		}
	}
	if len(logs) == 0 {
		return nil
	}
	return e.Store.RecordDelivery(ctx, p.CampaignID, 0, len(logs), e.Now())
}

// --- Reminder Executor ---

// ReminderPayload is the outbox payload of a send_reminder entry.
type ReminderPayload struct {
	AppointmentID string `json:"appointment_id"`
}

// ReminderExecutor renders and sends the appointment reminder.
// The appointment is re-read at send time so a cancelled booking is not reminded.
type ReminderExecutor struct {
	Appointments  AppointmentStoreForStatus
	Customers     CustomerGetter
	Treatments    TreatmentGetter
	TemplateStore TemplateLookup
	Sender        emailAdapter.Sender
	ReplyTo       string
}

// Execute sends the reminder email.
// PRE: payload is valid JSON matching ReminderPayload
// POST: a confirmed appointment with a customer email is reminded
func (e *ReminderExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p ReminderPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	appt, err := e.Appointments.GetByID(ctx, p.AppointmentID)
	if err != nil {
		return "", err
	}
	if appt.Status != appointment.StatusConfirmed {
		return "skipped:" + appt.Status, nil
	}
	cust, err := e.Customers.GetByID(ctx, appt.CustomerID)
	if err != nil {
		return "", err
	}
	if cust.Email == "" {
		return "skipped:no_email", nil
	}
	tr, err := e.Treatments.GetByID(ctx, appt.TreatmentID)
	if err != nil {
		return "", err
	}
	tpl, err := e.TemplateStore.GetBySlug(ctx, TemplateAppointmentReminder)
	if err != nil {
		return "", err
	}
	msg, err := tpl.Render(appointmentVars(cust, tr, appt))
	if err != nil {
		return "", err
	}
	res, err := e.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{cust.Email},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: e.ReplyTo,
		Tags:    map[string]string{"template": tpl.Slug, "appointment_id": appt.ID},
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// --- Reminder Queue ---

// AppointmentStoreForReminders defines the store interface needed by QueueReminders.
type AppointmentStoreForReminders interface {
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]appointment.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) error
}

// QueueRemindersDeps holds dependencies for QueueReminders.
type QueueRemindersDeps struct {
	AppointmentStore AppointmentStoreForReminders
	OutboxStore      OutboxWriter
	Limit            int
	GenerateID       func() string
	Now              func() time.Time
}

// ExecuteQueueReminders queues a reminder for every appointment that is due one.
// PRE: none
// POST: each due appointment has one send_reminder entry and is flagged as reminded
func ExecuteQueueReminders(ctx context.Context, deps QueueRemindersDeps) (int, error) {
	limit := deps.Limit
	if limit <= 0 {
		limit = 100
	}
	now := deps.Now()
	due, err := deps.AppointmentStore.ListDueReminders(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}
	queued := 0
	for _, a := range due {
		if _, err := enqueue(ctx, deps.OutboxStore, deps.GenerateID(), domain.ActionReminder, ReminderPayload{AppointmentID: a.ID}, now); err != nil {
			return queued, err
		}
		if err := deps.AppointmentStore.MarkReminderSent(ctx, a.ID); err != nil {
			return queued, err
		}
		queued++
	}
	if queued > 0 {
		slog.Info("reminder_event", "event", "reminders_queued", "count", queued)
	}
	return queued, nil
}

// --- Background Workers ---

// StartBackgroundWorker starts a background goroutine that periodically processes pending outbox entries.
// PRE: stopCh is provided to signal shutdown
// POST: Worker runs until stopCh is closed
func StartBackgroundWorker(processor *OutboxProcessor, interval time.Duration, stopCh <-chan struct{}) {
	StartPeriodicJob("outbox", interval, stopCh, processor.ProcessPending)
}

// StartPeriodicJob runs fn every interval until stopCh is closed.
// Each run gets its own five minute deadline.
func StartPeriodicJob(name string, interval time.Duration, stopCh <-chan struct{}, fn func(ctx context.Context) error) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if err := fn(ctx); err != nil {
					slog.Error("background_job_failed", "job", name, "error", err.Error())
				}
				cancel()
			case <-stopCh:
				slog.Info("background_job_stopped", "job", name)
				return
			}
		}
	}()
}
