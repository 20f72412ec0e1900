package projections

import (
	"context"
	"errors"
	"sort"
	"strings"

	appointmentStore "clinic/internal/adapters/storage/appointment"
	customerStore "clinic/internal/adapters/storage/customer"
	domainAppointment "clinic/internal/domain/appointment"
	domainCustomer "clinic/internal/domain/customer"
	domainFile "clinic/internal/domain/patientfile"
	domainRecord "clinic/internal/domain/record"
	domainTreatment "clinic/internal/domain/treatment"
)

var errNotFound = errors.New("not found")

type mockAppointmentStore struct {
	appts    []domainAppointment.Appointment
	dayErr   error
	schedule []appointmentStore.ScheduleRow
	revenue  []appointmentStore.RevenueDay
	overview appointmentStore.Overview
	filters  []appointmentStore.ListFilter
}

// ListForDay returns seeded appointments of one day and location.
// POST: Returns dayErr when set
func (m *mockAppointmentStore) ListForDay(_ context.Context, date, location string) ([]domainAppointment.Appointment, error) {
	if m.dayErr != nil {
		return nil, m.dayErr
	}
	var out []domainAppointment.Appointment
	for _, a := range m.appts {
		if a.Date == date && a.Location == location {
			out = append(out, a)
		}
	}
	return out, nil
}

// List applies the customer, range and cancellation filters to the seed.
func (m *mockAppointmentStore) List(_ context.Context, f appointmentStore.ListFilter) ([]domainAppointment.Appointment, error) {
	m.filters = append(m.filters, f)
	var out []domainAppointment.Appointment
	for _, a := range m.appts {
		switch {
		case f.CustomerID != "" && a.CustomerID != f.CustomerID:
		case f.From != "" && a.Date < f.From:
		case f.To != "" && a.Date > f.To:
		case f.ExcludeCancelled && a.Status == domainAppointment.StatusCancelled:
		default:
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Date+out[i].StartTime, out[j].Date+out[j].StartTime
		if f.Descending {
			return ki > kj
		}
		return ki < kj
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockAppointmentStore) DailySchedule(_ context.Context, f appointmentStore.ScheduleFilter) ([]appointmentStore.ScheduleRow, error) {
	var out []appointmentStore.ScheduleRow
	for _, r := range m.schedule {
		if r.Date >= f.From && r.Date <= f.To && (f.Location == "" || r.Location == f.Location) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAppointmentStore) RevenueByDay(_ context.Context, from, to, _ string) ([]appointmentStore.RevenueDay, error) {
	var out []appointmentStore.RevenueDay
	for _, d := range m.revenue {
		if d.Date >= from && d.Date <= to {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockAppointmentStore) CustomerOverview(_ context.Context, customerID string) (appointmentStore.Overview, error) {
	o := m.overview
	o.CustomerID = customerID
	return o, nil
}

type mockCustomerStore struct {
	customers map[string]domainCustomer.Customer
	searched  string
}

func newMockCustomerStore(cs ...domainCustomer.Customer) *mockCustomerStore {
	m := &mockCustomerStore{customers: map[string]domainCustomer.Customer{}}
	for _, c := range cs {
		m.customers[c.ID] = c
	}
	return m
}

// GetByID returns a seeded customer by ID.
// POST: Returns errNotFound for unknown IDs
func (m *mockCustomerStore) GetByID(_ context.Context, id string) (domainCustomer.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return domainCustomer.Customer{}, errNotFound
	}
	return c, nil
}

func (m *mockCustomerStore) GetByPortalAccount(_ context.Context, accountID string) (domainCustomer.Customer, error) {
	for _, c := range m.customers {
		if accountID != "" && c.PortalAccountID == accountID {
			return c, nil
		}
	}
	return domainCustomer.Customer{}, errNotFound
}

func (m *mockCustomerStore) filtered(f customerStore.ListFilter) []domainCustomer.Customer {
	var out []domainCustomer.Customer
	for _, c := range m.customers {
		switch {
		case f.Location != "" && c.Location != f.Location:
		case f.WithBirthday && c.DateOfBirth == "":
		default:
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out
}

// List returns seeded customers ordered by last name, honoring Limit and Offset.
func (m *mockCustomerStore) List(_ context.Context, f customerStore.ListFilter) ([]domainCustomer.Customer, error) {
	out := m.filtered(f)
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockCustomerStore) Count(_ context.Context, f customerStore.ListFilter) (int, error) {
	return len(m.filtered(f)), nil
}

// Search matches the query against first and last name.
func (m *mockCustomerStore) Search(_ context.Context, q string, limit int) ([]domainCustomer.SearchResult, error) {
	m.searched = q
	var out []domainCustomer.SearchResult
	for _, c := range m.filtered(customerStore.ListFilter{}) {
		name := strings.ToLower(c.FirstName + " " + c.LastName)
		if strings.Contains(name, strings.ToLower(q)) {
			out = append(out, domainCustomer.SearchResult{Customer: c, Similarity: 1})
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockTreatmentStore struct {
	treatments []domainTreatment.Treatment
}

func (m *mockTreatmentStore) List(_ context.Context, activeOnly bool) ([]domainTreatment.Treatment, error) {
	var out []domainTreatment.Treatment
	for _, t := range m.treatments {
		if !activeOnly || t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockRecordStore struct {
	records []domainRecord.PatientRecord
}

// ListByCustomer returns seeded records newest first.
func (m *mockRecordStore) ListByCustomer(_ context.Context, customerID string, limit int) ([]domainRecord.PatientRecord, error) {
	var out []domainRecord.PatientRecord
	for _, r := range m.records {
		if r.CustomerID == customerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockFileStore struct {
	files []domainFile.File
}

func (m *mockFileStore) ListByCustomer(_ context.Context, customerID string) ([]domainFile.File, error) {
	var out []domainFile.File
	for _, f := range m.files {
		if f.CustomerID == customerID {
			out = append(out, f)
		}
	}
	return out, nil
}
