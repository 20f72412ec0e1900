package orchestrators

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	customerStore "clinic/internal/adapters/storage/customer"
	"clinic/internal/domain/account"
	"clinic/internal/domain/appointment"
	"clinic/internal/domain/audit"
	"clinic/internal/domain/customer"
	emailDomain "clinic/internal/domain/email"
	"clinic/internal/domain/outbox"
	"clinic/internal/domain/patientfile"
	"clinic/internal/domain/record"
	"clinic/internal/domain/salon"
	"clinic/internal/domain/treatment"
)

var errNotFound = fmt.Errorf("not found: %w", sql.ErrNoRows)

// fixedNow is Monday 2025-03-03 10:00 in the clinic's timezone.
var fixedNow = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

func nowFn() time.Time { return fixedNow }

func seqIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// --- Mock appointment store ---

type mockAppointmentStore struct {
	mu       sync.Mutex
	appts    map[string]appointment.Appointment
	listErr  error
	saveErr  error
	reminded []string
}

func newMockAppointmentStore(appts ...appointment.Appointment) *mockAppointmentStore {
	m := &mockAppointmentStore{appts: make(map[string]appointment.Appointment)}
	for _, a := range appts {
		m.appts[a.ID] = a
	}
	return m
}

func (m *mockAppointmentStore) GetByID(_ context.Context, id string) (appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return appointment.Appointment{}, errNotFound
	}
	return a, nil
}

func (m *mockAppointmentStore) Save(_ context.Context, a appointment.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.appts[a.ID] = a
	return nil
}

func (m *mockAppointmentStore) ListForDay(_ context.Context, date, location string) ([]appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []appointment.Appointment
	for _, a := range m.appts {
		if a.Date == date && a.Location == location {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m *mockAppointmentStore) ListDueReminders(_ context.Context, now time.Time, limit int) ([]appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range m.appts {
		if a.Status == appointment.StatusConfirmed && !a.ReminderSent && !a.RemindAt.IsZero() && !a.RemindAt.After(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockAppointmentStore) MarkReminderSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.appts[id]
	a.ReminderSent = true
	m.appts[id] = a
	m.reminded = append(m.reminded, id)
	return nil
}

func (m *mockAppointmentStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appts)
}

// --- Mock customer store ---

type mockCustomerStore struct {
	customers  map[string]customer.Customer
	reassigned []string
}

func newMockCustomerStore(cs ...customer.Customer) *mockCustomerStore {
	m := &mockCustomerStore{customers: make(map[string]customer.Customer)}
	for _, c := range cs {
		m.customers[c.ID] = c
	}
	return m
}

func (m *mockCustomerStore) GetByID(_ context.Context, id string) (customer.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return customer.Customer{}, errNotFound
	}
	return c, nil
}

func (m *mockCustomerStore) find(match func(customer.Customer) bool) (customer.Customer, error) {
	for _, c := range m.customers {
		if match(c) {
			return c, nil
		}
	}
	return customer.Customer{}, errNotFound
}

func (m *mockCustomerStore) GetByEmail(_ context.Context, email string) (customer.Customer, error) {
	return m.find(func(c customer.Customer) bool { return c.Email != "" && c.Email == email })
}

func (m *mockCustomerStore) GetByPhone(_ context.Context, phone string) (customer.Customer, error) {
	return m.find(func(c customer.Customer) bool { return c.PhoneNormalized != "" && c.PhoneNormalized == phone })
}

func (m *mockCustomerStore) GetByPortalAccount(_ context.Context, accountID string) (customer.Customer, error) {
	return m.find(func(c customer.Customer) bool { return c.PortalAccountID == accountID })
}

func (m *mockCustomerStore) Save(_ context.Context, c customer.Customer) error {
	m.customers[c.ID] = c
	return nil
}

func (m *mockCustomerStore) Reassign(_ context.Context, sourceID string, target customer.Customer) error {
	if _, ok := m.customers[sourceID]; !ok {
		return errNotFound
	}
	delete(m.customers, sourceID)
	m.customers[target.ID] = target
	m.reassigned = append(m.reassigned, sourceID)
	return nil
}

func (m *mockCustomerStore) List(_ context.Context, f customerStore.ListFilter) ([]customer.Customer, error) {
	var out []customer.Customer
	for _, c := range m.customers {
		if f.Location != "" && c.Location != f.Location {
			continue
		}
		if f.EmailOptIn && !c.EmailOptIn {
			continue
		}
		if f.HasEmail && c.Email == "" {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Mock treatment store ---

type mockTreatmentStore struct {
	treatments map[string]treatment.Treatment
}

func newMockTreatmentStore(ts ...treatment.Treatment) *mockTreatmentStore {
	m := &mockTreatmentStore{treatments: make(map[string]treatment.Treatment)}
	for _, t := range ts {
		m.treatments[t.ID] = t
	}
	return m
}

func (m *mockTreatmentStore) GetByID(_ context.Context, id string) (treatment.Treatment, error) {
	t, ok := m.treatments[id]
	if !ok {
		return treatment.Treatment{}, errNotFound
	}
	return t, nil
}

func (m *mockTreatmentStore) Save(_ context.Context, t treatment.Treatment) error {
	m.treatments[t.ID] = t
	return nil
}

func (m *mockTreatmentStore) Count(_ context.Context) (int, error) {
	return len(m.treatments), nil
}

// --- Mock audit store ---

type mockAuditStore struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *mockAuditStore) Save(_ context.Context, e audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockAuditStore) actions() []audit.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Action, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

// --- Mock outbox store ---

type mockOutboxStore struct {
	mu      sync.Mutex
	entries map[string]outbox.Entry
	order   []string
}

func newMockOutboxStore() *mockOutboxStore {
	return &mockOutboxStore{entries: make(map[string]outbox.Entry)}
}

func (m *mockOutboxStore) GetByID(_ context.Context, id string) (outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return outbox.Entry{}, errNotFound
	}
	return e, nil
}

func (m *mockOutboxStore) Save(_ context.Context, e outbox.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		m.order = append(m.order, e.ID)
	}
	m.entries[e.ID] = e
	return nil
}

func (m *mockOutboxStore) ListDue(_ context.Context, now time.Time, limit int) ([]outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbox.Entry
	for _, id := range m.order {
		e := m.entries[id]
		if (e.Status == outbox.StatusPending || e.Status == outbox.StatusRetrying) && e.IsDue(now) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockOutboxStore) all() []outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]outbox.Entry, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id])
	}
	return out
}

// --- Mock template store ---

type mockTemplateStore struct {
	templates map[string]emailDomain.Template
}

func newMockTemplateStore(ts ...emailDomain.Template) *mockTemplateStore {
	m := &mockTemplateStore{templates: make(map[string]emailDomain.Template)}
	for _, t := range ts {
		m.templates[t.ID] = t
	}
	return m
}

func (m *mockTemplateStore) GetByID(_ context.Context, id string) (emailDomain.Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return emailDomain.Template{}, errNotFound
	}
	return t, nil
}

func (m *mockTemplateStore) GetBySlug(_ context.Context, slug string) (emailDomain.Template, error) {
	for _, t := range m.templates {
		if t.Slug == slug {
			return t, nil
		}
	}
	return emailDomain.Template{}, errNotFound
}

func (m *mockTemplateStore) Save(_ context.Context, t emailDomain.Template) error {
	m.templates[t.ID] = t
	return nil
}

// --- Mock campaign store ---

type mockCampaignStore struct {
	campaigns map[string]emailDomain.Campaign
	logs      map[string]emailDomain.SendLog
	logOrder  []string
}

func newMockCampaignStore(cs ...emailDomain.Campaign) *mockCampaignStore {
	m := &mockCampaignStore{campaigns: make(map[string]emailDomain.Campaign), logs: make(map[string]emailDomain.SendLog)}
	for _, c := range cs {
		m.campaigns[c.ID] = c
	}
	return m
}

func (m *mockCampaignStore) GetByID(_ context.Context, id string) (emailDomain.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return emailDomain.Campaign{}, errNotFound
	}
	return c, nil
}

func (m *mockCampaignStore) Save(_ context.Context, c emailDomain.Campaign) error {
	m.campaigns[c.ID] = c
	return nil
}

func (m *mockCampaignStore) ListDue(_ context.Context, now time.Time) ([]emailDomain.Campaign, error) {
	var out []emailDomain.Campaign
	for _, c := range m.campaigns {
		if c.IsDue(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockCampaignStore) SaveSendLogs(_ context.Context, logs []emailDomain.SendLog) error {
	for _, l := range logs {
		m.logs[l.ID] = l
		m.logOrder = append(m.logOrder, l.ID)
	}
	return nil
}

func (m *mockCampaignStore) UpdateSendLog(_ context.Context, l emailDomain.SendLog) error {
	m.logs[l.ID] = l
	return nil
}

func (m *mockCampaignStore) ListSendLogs(_ context.Context, campaignID string) ([]emailDomain.SendLog, error) {
	var out []emailDomain.SendLog
	for _, id := range m.logOrder {
		if l := m.logs[id]; l.CampaignID == campaignID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockCampaignStore) RecordDelivery(_ context.Context, id string, sent, failed int, now time.Time) error {
	c, ok := m.campaigns[id]
	if !ok {
		return errNotFound
	}
	c.RecordDelivered(sent, failed, now)
	m.campaigns[id] = c
	return nil
}

// --- Mock account store ---

type mockAccountStore struct {
	accounts map[string]account.Account
}

func newMockAccountStore(as ...account.Account) *mockAccountStore {
	m := &mockAccountStore{accounts: make(map[string]account.Account)}
	for _, a := range as {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *mockAccountStore) GetByID(_ context.Context, id string) (account.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return account.Account{}, errNotFound
	}
	return a, nil
}

func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (account.Account, error) {
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return account.Account{}, errNotFound
}

func (m *mockAccountStore) Save(_ context.Context, a account.Account) error {
	m.accounts[a.ID] = a
	return nil
}

func (m *mockAccountStore) Count(_ context.Context) (int, error) {
	return len(m.accounts), nil
}

// --- Mock salon store ---

type mockSalonStore struct {
	access   map[string]salon.Access
	sessions map[string]salon.Session
}

func newMockSalonStore(as ...salon.Access) *mockSalonStore {
	m := &mockSalonStore{access: make(map[string]salon.Access), sessions: make(map[string]salon.Session)}
	for _, a := range as {
		m.access[a.ID] = a
	}
	return m
}

func (m *mockSalonStore) ListActiveAccess(_ context.Context, location string) ([]salon.Access, error) {
	var out []salon.Access
	for _, a := range m.access {
		if a.Location == location && a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockSalonStore) SaveAccess(_ context.Context, a salon.Access) error {
	m.access[a.ID] = a
	return nil
}

func (m *mockSalonStore) CountAccess(_ context.Context) (int, error) {
	return len(m.access), nil
}

func (m *mockSalonStore) GetSession(_ context.Context, id string) (salon.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return salon.Session{}, errNotFound
	}
	return s, nil
}

func (m *mockSalonStore) SaveSession(_ context.Context, s salon.Session) error {
	m.sessions[s.ID] = s
	return nil
}

// --- Mock record and file stores ---

type mockRecordStore struct {
	records map[string]record.PatientRecord
}

func (m *mockRecordStore) Save(_ context.Context, r record.PatientRecord) error {
	if m.records == nil {
		m.records = make(map[string]record.PatientRecord)
	}
	m.records[r.ID] = r
	return nil
}

type mockFileStore struct {
	files   map[string]patientfile.File
	saveErr error
}

func newMockFileStore() *mockFileStore {
	return &mockFileStore{files: make(map[string]patientfile.File)}
}

func (m *mockFileStore) GetByID(_ context.Context, id string) (patientfile.File, error) {
	f, ok := m.files[id]
	if !ok {
		return patientfile.File{}, errNotFound
	}
	return f, nil
}

func (m *mockFileStore) Save(_ context.Context, f patientfile.File) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.files[f.ID] = f
	return nil
}

func (m *mockFileStore) Delete(_ context.Context, id string) error {
	delete(m.files, id)
	return nil
}

// --- Fake token issuer ---

type fakeTokens struct{}

func (fakeTokens) Issue(sessionID, location string, now time.Time) (string, time.Time, error) {
	return "token:" + location + ":" + sessionID, now.Add(12 * time.Hour), nil
}
