package orchestrators

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	emailAdapter "clinic/internal/adapters/email"
	"clinic/internal/domain/appointment"
	"clinic/internal/domain/customer"
	emailDomain "clinic/internal/domain/email"
	"clinic/internal/domain/outbox"
)

type failingSender struct {
	calls int
}

func (s *failingSender) Send(context.Context, emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	s.calls++
	return emailAdapter.SendResult{}, errors.New("provider unavailable")
}

func (s *failingSender) SendBatch(context.Context, []emailAdapter.SendRequest) ([]emailAdapter.SendResult, error) {
	s.calls++
	return nil, errors.New("provider unavailable")
}

var welcomeTemplate = emailDomain.Template{
	ID:      "tpl-1", Slug: "welcome", Name: "Welcome", TemplateType: emailDomain.TypeTransactional,
	Subject: "Hallo {{first_name}}", BodyHTML: "<p>Willkommen {{first_name}}</p>", Variables: []string{"first_name"}, Active: true,
}

func TestExecuteSendTemplateEmail(t *testing.T) {
	ob := newMockOutboxStore()
	deps := SendTemplateEmailDeps{
		TemplateStore: newMockTemplateStore(welcomeTemplate),
		OutboxStore:   ob,
		AuditStore:    &mockAuditStore{},
		GenerateID:    seqIDs("ob"),
		Now:           nowFn,
	}

	id, err := ExecuteSendTemplateEmail(context.Background(), SendTemplateEmailInput{
		TemplateSlug: "welcome", To: "anna@example.com", CustomerID: "c1",
		Variables:    map[string]string{"first_name": "<Anna>"},
	}, deps)
	if err != nil {
		t.Fatalf("ExecuteSendTemplateEmail: %v", err)
	}
	entry, _ := ob.GetByID(context.Background(), id)
	if entry.ActionType != outbox.ActionSendEmail || entry.Status != outbox.StatusPending {
		t.Errorf("entry = %+v", entry)
	}
	var p EmailPayload
	if err := json.Unmarshal([]byte(entry.Payload), &p); err != nil {
		t.Fatal(err)
	}
	if p.Subject != "Hallo <Anna>" || !strings.Contains(p.HTML, "&lt;Anna&gt;") || p.Tags["customer_id"] != "c1" {
		t.Errorf("payload = %+v", p)
	}

	tests := []struct {
		name    string
		input   SendTemplateEmailInput
		wantErr error
	}{
		{"no address", SendTemplateEmailInput{TemplateSlug: "welcome", To: "anna"}, ErrNoRecipientAddress},
		{"missing variable", SendTemplateEmailInput{TemplateSlug: "welcome", To: "a@b.de"}, emailDomain.ErrMissingVariable},
		{"unknown template", SendTemplateEmailInput{TemplateSlug: "nope", To: "a@b.de"}, errNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExecuteSendTemplateEmail(context.Background(), tt.input, deps); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExecuteSaveCampaign(t *testing.T) {
	store := newMockCampaignStore()
	deps := SaveCampaignDeps{CampaignStore: store, TemplateStore: newMockTemplateStore(welcomeTemplate), GenerateID: seqIDs("camp"), Now: nowFn}

	c, err := ExecuteSaveCampaign(context.Background(), SaveCampaignInput{
		Name:        "Frühling", Subject: "Neu bei uns", BodyMarkdown: "**Angebot**\nnur im März",
		ScheduledAt: fixedNow.Add(24 * time.Hour), Actor: Actor{ID: "admin"},
	}, deps)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if c.Status != emailDomain.StatusScheduled || !strings.Contains(c.BodyHTML, "<strong>Angebot</strong>") || !strings.Contains(c.BodyHTML, "<br") {
		t.Errorf("campaign = %+v", c)
	}

	edited, err := ExecuteSaveCampaign(context.Background(), SaveCampaignInput{ID: c.ID, Name: "Frühling", Subject: "Neu", TemplateID: "tpl-1"}, deps)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Status != emailDomain.StatusDraft || !edited.ScheduledAt.IsZero() || edited.BodyHTML != welcomeTemplate.BodyHTML {
		t.Errorf("edited = %+v", edited)
	}

	if _, err := ExecuteSaveCampaign(context.Background(), SaveCampaignInput{Name: "x", Subject: "y", BodyMarkdown: "z", ScheduledAt: fixedNow.Add(-time.Hour)}, deps); !errors.Is(err, emailDomain.ErrScheduledInPast) {
		t.Errorf("past schedule err = %v", err)
	}
}

func campaignRecipients() *mockCustomerStore {
	return newMockCustomerStore(
		customer.Customer{ID: "c1", FirstName: "A", LastName: "A", Email: "a@example.com", EmailOptIn: true, Location: "kw"},
		customer.Customer{ID: "c2", FirstName: "B", LastName: "B", Email: "b@example.com", EmailOptIn: true, Location: "kw"},
		customer.Customer{ID: "c3", FirstName: "C", LastName: "C", Email: "A@example.com", EmailOptIn: true, Location: "kw"},
		customer.Customer{ID: "c4", FirstName: "D", LastName: "D", Email: "d@example.com", EmailOptIn: false, Location: "kw"},
		customer.Customer{ID: "c5", FirstName: "E", LastName: "E", Email: "e@example.com", EmailOptIn: true, Location: "neumarkt"},
		customer.Customer{ID: "c6", FirstName: "F", LastName: "F", EmailOptIn: true, Location: "kw"},
	)
}

func draftCampaign(id string) emailDomain.Campaign {
	return emailDomain.Campaign{
		ID:      id, Name: "Frühling", Subject: "Neu", BodyHTML: "<p>hi</p>", Status: emailDomain.StatusDraft,
		Segment: emailDomain.Segment{Location: "kw", EmailOptInOnly: true},
	}
}

func sendDeps(store *mockCampaignStore, ob *mockOutboxStore) SendCampaignDeps {
	return SendCampaignDeps{
		CampaignStore: store,
		Recipients:    campaignRecipients(),
		OutboxStore:   ob,
		AuditStore:    &mockAuditStore{},
		BatchSize:     1,
		GenerateID:    seqIDs("id"),
		Now:           nowFn,
	}
}

func TestExecuteSendCampaign_QueuesBatches(t *testing.T) {
	store := newMockCampaignStore(draftCampaign("camp-1"))
	ob := newMockOutboxStore()

	res, err := ExecuteSendCampaign(context.Background(), SendCampaignInput{CampaignID: "camp-1"}, sendDeps(store, ob))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	// c3 duplicates c1's address, c4 opted out, c5 is elsewhere, c6 has no email
	if res.Recipients != 2 || res.Batches != 2 {
		t.Errorf("recipients=%d batches=%d, want 2/2", res.Recipients, res.Batches)
	}
	if store.campaigns["camp-1"].Status != emailDomain.StatusSending {
		t.Errorf("status = %s", store.campaigns["camp-1"].Status)
	}
	if len(store.logs) != 2 || len(ob.all()) != 2 {
		t.Errorf("logs=%d outbox=%d", len(store.logs), len(ob.all()))
	}

	if _, err := ExecuteSendCampaign(context.Background(), SendCampaignInput{CampaignID: "camp-1"}, sendDeps(store, ob)); !errors.Is(err, emailDomain.ErrInvalidTransition) {
		t.Errorf("second send err = %v", err)
	}
}

func TestCampaignBatchExecutor_DeliversAndCompletes(t *testing.T) {
	store := newMockCampaignStore(draftCampaign("camp-1"))
	ob := newMockOutboxStore()
	if _, err := ExecuteSendCampaign(context.Background(), SendCampaignInput{CampaignID: "camp-1"}, sendDeps(store, ob)); err != nil {
		t.Fatal(err)
	}

	sender := emailAdapter.NewNoopSender()
	p := NewOutboxProcessor(ob, map[string]ActionExecutor{
		outbox.ActionCampaignBatch: &CampaignBatchExecutor{Store: store, Sender: sender, ReplyTo: "info@clinic.example", Now: nowFn},
	})
	p.now = nowFn
	if err := p.ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}

	c := store.campaigns["camp-1"]
	if c.Status != emailDomain.StatusSent || c.TotalSent != 2 {
		t.Errorf("campaign = %s sent=%d", c.Status, c.TotalSent)
	}
	if len(sender.Sent()) != 2 {
		t.Errorf("sent %d emails, want 2", len(sender.Sent()))
	}
	for _, e := range ob.all() {
		if e.Status != outbox.StatusDone {
			t.Errorf("entry %s status = %s", e.ID, e.Status)
		}
	}

	// replaying a finished batch must not mail anyone again
	exec := &CampaignBatchExecutor{Store: store, Sender: sender, Now: nowFn}
	if _, err := exec.Execute(context.Background(), ob.all()[0].Payload); err != nil {
		t.Fatal(err)
	}
	if len(sender.Sent()) != 2 {
		t.Errorf("replay sent again: %d", len(sender.Sent()))
	}
}

func TestCampaignBatchExecutor_GiveUpMarksFailed(t *testing.T) {
	store := newMockCampaignStore(draftCampaign("camp-1"))
	ob := newMockOutboxStore()
	deps := sendDeps(store, ob)
	deps.BatchSize = 10
	if _, err := ExecuteSendCampaign(context.Background(), SendCampaignInput{CampaignID: "camp-1"}, deps); err != nil {
		t.Fatal(err)
	}
	entry := ob.all()[0]
	entry.MaxAttempts = 1
	_ = ob.Save(context.Background(), entry)

	sender := &failingSender{}
	p := NewOutboxProcessor(ob, map[string]ActionExecutor{
		outbox.ActionCampaignBatch: &CampaignBatchExecutor{Store: store, Sender: sender, Now: nowFn},
	})
	p.now = nowFn
	if err := p.ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, _ := ob.GetByID(context.Background(), entry.ID)
	if got.Status != outbox.StatusFailed || got.ErrorMessage == "" {
		t.Errorf("entry = %+v", got)
	}
	c := store.campaigns["camp-1"]
	if c.Status != emailDomain.StatusSent || c.TotalFailed != 2 {
		t.Errorf("campaign status=%s failed=%d", c.Status, c.TotalFailed)
	}
	for _, l := range store.logs {
		if l.Status != emailDomain.DeliveryFailed {
			t.Errorf("log %s status = %s", l.ID, l.Status)
		}
	}
}

func TestExecuteDispatchDueCampaigns(t *testing.T) {
	due := draftCampaign("camp-due")
	due.Status = emailDomain.StatusScheduled
	due.ScheduledAt = fixedNow.Add(-time.Minute)
	empty := draftCampaign("camp-empty")
	empty.Status = emailDomain.StatusScheduled
	empty.ScheduledAt = fixedNow.Add(-time.Minute)
	empty.Segment = emailDomain.Segment{Location: "neumarkt"}
	later := draftCampaign("camp-later")
	later.Status = emailDomain.StatusScheduled
	later.ScheduledAt = fixedNow.Add(time.Hour)

	store := newMockCampaignStore(due, empty, later)
	deps := sendDeps(store, newMockOutboxStore())
	deps.Recipients = newMockCustomerStore(
		customer.Customer{ID: "c1", FirstName: "A", LastName: "A", Email: "a@example.com", EmailOptIn: true, Location: "kw"},
	)

	started, err := ExecuteDispatchDueCampaigns(context.Background(), deps)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if started != 1 {
		t.Errorf("started = %d, want 1", started)
	}
	if s := store.campaigns["camp-due"].Status; s != emailDomain.StatusSending {
		t.Errorf("due status = %s", s)
	}
	if s := store.campaigns["camp-empty"].Status; s != emailDomain.StatusCancelled {
		t.Errorf("empty status = %s", s)
	}
	if s := store.campaigns["camp-later"].Status; s != emailDomain.StatusScheduled {
		t.Errorf("later status = %s", s)
	}
}

func TestOutboxProcessor_BackoffAndRetry(t *testing.T) {
	ob := newMockOutboxStore()
	raw, _ := json.Marshal(EmailPayload{To: "anna@example.com", Subject: "s", HTML: "<p>h</p>"})
	_ = ob.Save(context.Background(), outbox.Entry{ID: "e1", ActionType: outbox.ActionSendEmail, Payload: string(raw), Status: outbox.StatusPending, MaxAttempts: 2})

	failing := &failingSender{}
	p := NewOutboxProcessor(ob, map[string]ActionExecutor{outbox.ActionSendEmail: &EmailExecutor{Sender: failing}})
	p.now = nowFn

	if err := p.ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	e, _ := ob.GetByID(context.Background(), "e1")
	if e.Status != outbox.StatusRetrying || e.Attempts != 1 || !e.NextAttemptAt.Equal(fixedNow.Add(60*time.Second)) {
		t.Errorf("after first failure: %+v", e)
	}

	// not due yet
	_ = p.ProcessPending(context.Background())
	if failing.calls != 1 {
		t.Errorf("retried before backoff elapsed: calls = %d", failing.calls)
	}

	p.now = func() time.Time { return fixedNow.Add(2 * time.Minute) }
	_ = p.ProcessPending(context.Background())
	e, _ = ob.GetByID(context.Background(), "e1")
	if e.Status != outbox.StatusFailed || e.Attempts != 2 {
		t.Errorf("after exhaustion: %+v", e)
	}

	sender := emailAdapter.NewNoopSender()
	p.executors[outbox.ActionSendEmail] = &EmailExecutor{Sender: sender, ReplyTo: "info@clinic.example"}
	e, err := p.RetryEntry(context.Background(), "e1")
	if err != nil {
		t.Fatalf("RetryEntry: %v", err)
	}
	if e.Status != outbox.StatusDone || e.ExternalID != "noop-1" {
		t.Errorf("after retry: %+v", e)
	}
	if sent := sender.Sent(); len(sent) != 1 || sent[0].ReplyTo != "info@clinic.example" {
		t.Errorf("sent = %+v", sent)
	}

	if _, err := p.RetryEntry(context.Background(), "e1"); !errors.Is(err, ErrEntryTerminal) {
		t.Errorf("retry of done entry err = %v", err)
	}
	if err := p.AbandonEntry(context.Background(), "e1"); !errors.Is(err, ErrEntryTerminal) {
		t.Errorf("abandon of done entry err = %v", err)
	}
}

func TestOutboxProcessor_UnknownActionFails(t *testing.T) {
	ob := newMockOutboxStore()
	_ = ob.Save(context.Background(), outbox.Entry{ID: "e1", ActionType: "fax", Payload: "{}", Status: outbox.StatusPending, MaxAttempts: 1})
	p := NewOutboxProcessor(ob, map[string]ActionExecutor{})
	p.now = nowFn
	_ = p.ProcessPending(context.Background())
	e, _ := ob.GetByID(context.Background(), "e1")
	if e.Status != outbox.StatusFailed || !strings.Contains(e.ErrorMessage, "fax") {
		t.Errorf("entry = %+v", e)
	}
	if err := p.AbandonEntry(context.Background(), "e1"); err != nil {
		t.Fatal(err)
	}
	e, _ = ob.GetByID(context.Background(), "e1")
	if e.Status != outbox.StatusAbandoned {
		t.Errorf("status = %s", e.Status)
	}
}

var reminderTemplate = emailDomain.Template{
	ID:      "tpl-rem", Slug: TemplateAppointmentReminder, Name: "Reminder", TemplateType: emailDomain.TypeReminder,
	Subject: "Morgen: {{treatment}}", BodyHTML: "<p>{{first_name}}, {{date}} {{start_time}} in {{location}}</p>", Active: true,
}

func TestReminders_QueueAndSend(t *testing.T) {
	appts := newMockAppointmentStore(
		appointment.Appointment{ID: "a-due", CustomerID: "c1", TreatmentID: "t-botox", Location: appointment.LocationKW,
			Date: "2025-03-04", StartTime: "09:00", EndTime: "09:30", Status: appointment.StatusConfirmed, RemindAt: fixedNow.Add(-time.Hour)},
		appointment.Appointment{ID: "a-later", CustomerID: "c1", TreatmentID: "t-botox", Location: appointment.LocationKW,
			Date: "2025-03-10", StartTime: "09:00", EndTime: "09:30", Status: appointment.StatusConfirmed, RemindAt: fixedNow.Add(72 * time.Hour)},
		appointment.Appointment{ID: "a-cancelled", CustomerID: "c1", TreatmentID: "t-botox", Location: appointment.LocationKW,
			Date: "2025-03-04", StartTime: "11:00", EndTime: "11:30", Status: appointment.StatusCancelled, RemindAt: fixedNow.Add(-time.Hour)},
	)
	ob := newMockOutboxStore()

	n, err := ExecuteQueueReminders(context.Background(), QueueRemindersDeps{AppointmentStore: appts, OutboxStore: ob, GenerateID: seqIDs("ob"), Now: nowFn})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(appts.reminded) != 1 || appts.reminded[0] != "a-due" {
		t.Fatalf("queued %d, reminded %v", n, appts.reminded)
	}
	if n, _ := ExecuteQueueReminders(context.Background(), QueueRemindersDeps{AppointmentStore: appts, OutboxStore: ob, GenerateID: seqIDs("ob2"), Now: nowFn}); n != 0 {
		t.Errorf("second run queued %d", n)
	}

	sender := emailAdapter.NewNoopSender()
	exec := &ReminderExecutor{
		Appointments:  appts, Customers: testCustomers(), Treatments: testTreatments(),
		TemplateStore: newMockTemplateStore(reminderTemplate), Sender: sender,
	}
	id, err := exec.Execute(context.Background(), ob.all()[0].Payload)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if id == "" || len(sender.Sent()) != 1 {
		t.Fatalf("id=%q sent=%d", id, len(sender.Sent()))
	}
	msg := sender.Sent()[0]
	if msg.Subject != "Morgen: Botox" || !strings.Contains(msg.HTML, "Anna, 2025-03-04 09:00 in KW") {
		t.Errorf("message = %+v", msg)
	}

	// cancelled after queueing
	a, _ := appts.GetByID(context.Background(), "a-due")
	a.Status = appointment.StatusCancelled
	_ = appts.Save(context.Background(), a)
	if id, err := exec.Execute(context.Background(), ob.all()[0].Payload); err != nil || id != "skipped:cancelled" {
		t.Errorf("cancelled reminder = %q, %v", id, err)
	}
}
