package orchestrators

import (
	"context"
	"errors"
	"testing"

	"clinic/internal/domain/appointment"
	"clinic/internal/domain/audit"
	"clinic/internal/domain/customer"
	"clinic/internal/domain/record"
)

func upsertDeps(store *mockCustomerStore) (UpsertCustomerDeps, *mockAuditStore) {
	a := &mockAuditStore{}
	return UpsertCustomerDeps{CustomerStore: store, AuditStore: a, GenerateID: seqIDs("cust"), Now: nowFn}, a
}

func TestExecuteUpsertCustomer_CreatesNew(t *testing.T) {
	store := newMockCustomerStore()
	deps, auditStore := upsertDeps(store)
	optIn := true

	res, err := ExecuteUpsertCustomer(context.Background(), UpsertCustomerInput{
		FirstName: " Lena ", LastName: "Maier", Email: "Lena@Example.com", Phone: "0171 234 56",
		Tags:      []string{"vip", "VIP", "botox"}, EmailOptIn: &optIn, Source: customer.SourceSalon,
	}, deps)
	if err != nil {
		t.Fatalf("ExecuteUpsertCustomer: %v", err)
	}
	c := res.Customer
	if !res.Created || c.ID != "cust-1" {
		t.Errorf("Created=%v ID=%s", res.Created, c.ID)
	}
	if c.FirstName != "Lena" || c.Email != "lena@example.com" || c.PhoneNormalized != "+4917123456" {
		t.Errorf("not normalized: %+v", c)
	}
	if len(c.Tags) != 2 || !c.EmailOptIn || c.Source != customer.SourceSalon {
		t.Errorf("fields = %+v", c)
	}
	if got := auditStore.actions(); len(got) != 1 || got[0] != audit.ActionCreate {
		t.Errorf("audit = %v", got)
	}
}

func TestExecuteUpsertCustomer_Matching(t *testing.T) {
	existing := customer.Customer{
		ID:    "c1", FirstName: "Lena", LastName: "Maier", Email: "lena@example.com",
		Phone: "0171 23456", PhoneNormalized: "+4917123456", Notes: "allergic to lidocaine", Source: customer.SourceManual,
	}
	tests := []struct {
		name  string
		input UpsertCustomerInput
	}{
		{"by id", UpsertCustomerInput{ID: "c1", Phone: "+49 171 999"}},
		{"by email", UpsertCustomerInput{FirstName: "Lena", LastName: "Maier", Email: " LENA@example.com "}},
		{"by phone", UpsertCustomerInput{FirstName: "Lena", LastName: "Maier", Phone: "0049 171 23456"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockCustomerStore(existing)
			deps, _ := upsertDeps(store)
			res, err := ExecuteUpsertCustomer(context.Background(), tt.input, deps)
			if err != nil {
				t.Fatal(err)
			}
			if res.Created || res.Customer.ID != "c1" {
				t.Errorf("expected update of c1, got created=%v id=%s", res.Created, res.Customer.ID)
			}
			if res.Customer.Notes != "allergic to lidocaine" {
				t.Error("empty input overwrote stored notes")
			}
			if len(store.customers) != 1 {
				t.Errorf("store has %d customers, want 1", len(store.customers))
			}
		})
	}
}

func TestExecuteUpsertCustomer_Errors(t *testing.T) {
	deps, _ := upsertDeps(newMockCustomerStore())
	if _, err := ExecuteUpsertCustomer(context.Background(), UpsertCustomerInput{LastName: "Maier"}, deps); !errors.Is(err, customer.ErrEmptyFirstName) {
		t.Errorf("err = %v, want ErrEmptyFirstName", err)
	}
	if _, err := ExecuteUpsertCustomer(context.Background(), UpsertCustomerInput{ID: "ghost", FirstName: "A", LastName: "B"}, deps); err == nil {
		t.Error("unknown ID should fail rather than create")
	}
}

// lockedCustomerStore fails every contact lookup the way a busy SQLite
// database does.
type lockedCustomerStore struct {
	*mockCustomerStore
	failEmail bool
	failPhone bool
}

var errDatabaseLocked = errors.New("database is locked")

func (s lockedCustomerStore) GetByEmail(ctx context.Context, email string) (customer.Customer, error) {
	if s.failEmail {
		return customer.Customer{}, errDatabaseLocked
	}
	return s.mockCustomerStore.GetByEmail(ctx, email)
}

func (s lockedCustomerStore) GetByPhone(ctx context.Context, phone string) (customer.Customer, error) {
	if s.failPhone {
		return customer.Customer{}, errDatabaseLocked
	}
	return s.mockCustomerStore.GetByPhone(ctx, phone)
}

func TestExecuteUpsertCustomer_LookupFailureIsNotANewCustomer(t *testing.T) {
	tests := []struct {
		name      string
		failEmail bool
		failPhone bool
	}{
		{"email lookup fails", true, false},
		{"phone lookup fails", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := newMockCustomerStore()
			store := lockedCustomerStore{mockCustomerStore: inner, failEmail: tt.failEmail, failPhone: tt.failPhone}
			deps := UpsertCustomerDeps{CustomerStore: store, AuditStore: &mockAuditStore{}, GenerateID: seqIDs("cust"), Now: nowFn}

			_, err := ExecuteUpsertCustomer(context.Background(), UpsertCustomerInput{
				FirstName: "Lea", LastName: "Maier", Email: "lea@example.com", Phone: "0171 1234567",
			}, deps)
			if !errors.Is(err, errDatabaseLocked) {
				t.Fatalf("err = %v, want the lookup error", err)
			}
			if len(inner.customers) != 0 {
				t.Errorf("saved %d customers after a failed lookup", len(inner.customers))
			}
		})
	}
}

func TestExecuteMergeCustomers(t *testing.T) {
	source := customer.Customer{ID: "dup", FirstName: "Lena", LastName: "Maier", Phone: "0171", PhoneNormalized: "+49171", Tags: []string{"botox"}, EmailOptIn: true}
	target := customer.Customer{ID: "main", FirstName: "Lena", LastName: "Maier", Email: "lena@example.com", Tags: []string{"vip"}}
	store := newMockCustomerStore(source, target)
	auditStore := &mockAuditStore{}
	deps := MergeCustomersDeps{CustomerStore: store, AuditStore: auditStore, Now: nowFn}

	merged, err := ExecuteMergeCustomers(context.Background(), MergeCustomersInput{SourceID: "dup", TargetID: "main", Actor: Actor{ID: "admin"}}, deps)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Phone != "0171" || !merged.EmailOptIn || len(merged.Tags) != 2 {
		t.Errorf("merged = %+v", merged)
	}
	if _, ok := store.customers["dup"]; ok {
		t.Error("source still exists")
	}
	if len(store.reassigned) != 1 {
		t.Error("Reassign not called")
	}
	if got := auditStore.actions(); len(got) != 1 || got[0] != audit.ActionMerge {
		t.Errorf("audit = %v", got)
	}

	if _, err := ExecuteMergeCustomers(context.Background(), MergeCustomersInput{SourceID: "main", TargetID: "main"}, deps); !errors.Is(err, customer.ErrSelfMerge) {
		t.Errorf("self merge err = %v", err)
	}
	if _, err := ExecuteMergeCustomers(context.Background(), MergeCustomersInput{SourceID: "", TargetID: "main"}, deps); !errors.Is(err, ErrMergeIDsRequired) {
		t.Errorf("empty id err = %v", err)
	}
}

func TestExecuteLogTreatment(t *testing.T) {
	appts := newMockAppointmentStore(
		appointment.Appointment{ID: "a1", CustomerID: "c1", TreatmentID: "t-botox", Status: appointment.StatusConfirmed},
		appointment.Appointment{ID: "a2", CustomerID: "c-other", TreatmentID: "t-botox", Status: appointment.StatusConfirmed},
	)
	records := &mockRecordStore{}
	deps := LogTreatmentDeps{
		CustomerStore:    testCustomers(),
		AppointmentStore: appts,
		RecordStore:      records,
		AuditStore:       &mockAuditStore{},
		GenerateID:       seqIDs("rec"),
		Now:              nowFn,
	}

	rec, err := ExecuteLogTreatment(context.Background(), LogTreatmentInput{
		CustomerID:       "c1", AppointmentID: "a1", NoteType: record.NoteTreatment,
		TreatmentDetails: map[string]string{"units": "20", "area": "glabella"},
		FollowUpNeeded:   true, FollowUpDate: "2025-03-17", CompleteAppointment: true,
		Actor:            Actor{ID: "acct-doc"},
	}, deps)
	if err != nil {
		t.Fatalf("ExecuteLogTreatment: %v", err)
	}
	if rec.TreatmentID != "t-botox" || rec.Source != record.SourceManual || rec.CreatedBy != "acct-doc" {
		t.Errorf("record = %+v", rec)
	}
	if a, _ := appts.GetByID(context.Background(), "a1"); a.Status != appointment.StatusCompleted {
		t.Errorf("appointment status = %s, want completed", a.Status)
	}
	if len(records.records) != 1 {
		t.Error("record not saved")
	}

	_, err = ExecuteLogTreatment(context.Background(), LogTreatmentInput{
		CustomerID: "c1", AppointmentID: "a2", NoteType: record.NoteGeneral, Notes: "x",
	}, deps)
	if !errors.Is(err, ErrAppointmentMismatch) {
		t.Errorf("foreign appointment err = %v", err)
	}

	_, err = ExecuteLogTreatment(context.Background(), LogTreatmentInput{
		CustomerID: "c1", NoteType: record.NoteFollowUp, Notes: "check", FollowUpNeeded: true,
	}, deps)
	if !errors.Is(err, record.ErrMissingFollowUp) {
		t.Errorf("missing follow-up err = %v", err)
	}
}
