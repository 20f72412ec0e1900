package projections

import (
	"context"

	appointmentStore "clinic/internal/adapters/storage/appointment"
	customerStore "clinic/internal/adapters/storage/customer"
	domainAppointment "clinic/internal/domain/appointment"
	domainCustomer "clinic/internal/domain/customer"
	domainFile "clinic/internal/domain/patientfile"
	domainRecord "clinic/internal/domain/record"
	domainTreatment "clinic/internal/domain/treatment"
)

// DayLister loads one location's appointments for one day.
type DayLister interface {
	ListForDay(ctx context.Context, date, location string) ([]domainAppointment.Appointment, error)
}

// AppointmentLister interface for appointment list queries.
type AppointmentLister interface {
	List(ctx context.Context, filter appointmentStore.ListFilter) ([]domainAppointment.Appointment, error)
}

// ScheduleReader interface for the daily schedule view.
type ScheduleReader interface {
	DailySchedule(ctx context.Context, filter appointmentStore.ScheduleFilter) ([]appointmentStore.ScheduleRow, error)
}

// RevenueReader interface for the revenue statistics view.
type RevenueReader interface {
	RevenueByDay(ctx context.Context, from, to, location string) ([]appointmentStore.RevenueDay, error)
}

// OverviewReader interface for the per-customer aggregate view.
type OverviewReader interface {
	CustomerOverview(ctx context.Context, customerID string) (appointmentStore.Overview, error)
}

// TreatmentLister interface for catalogue queries.
type TreatmentLister interface {
	List(ctx context.Context, activeOnly bool) ([]domainTreatment.Treatment, error)
}

// CustomerGetter interface for single customer lookups.
type CustomerGetter interface {
	GetByID(ctx context.Context, id string) (domainCustomer.Customer, error)
}

// CustomerLister interface for customer list queries.
type CustomerLister interface {
	List(ctx context.Context, filter customerStore.ListFilter) ([]domainCustomer.Customer, error)
}

// CustomerSearcher interface for ranked customer search.
type CustomerSearcher interface {
	Search(ctx context.Context, q string, limit int) ([]domainCustomer.SearchResult, error)
}

// PortalCustomerGetter resolves the customer linked to a portal account.
type PortalCustomerGetter interface {
	GetByPortalAccount(ctx context.Context, accountID string) (domainCustomer.Customer, error)
}

// RecordLister interface for treatment history queries.
type RecordLister interface {
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domainRecord.PatientRecord, error)
}

// FileLister interface for patient file queries.
type FileLister interface {
	ListByCustomer(ctx context.Context, customerID string) ([]domainFile.File, error)
}

// CustomerCounter interface for paginated customer lists.
type CustomerCounter interface {
	Count(ctx context.Context, filter customerStore.ListFilter) (int, error)
}
