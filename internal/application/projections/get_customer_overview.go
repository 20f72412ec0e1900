package projections

import (
	"context"
	"time"

	appointmentStore "clinic/internal/adapters/storage/appointment"
	domainAppointment "clinic/internal/domain/appointment"
	domainCustomer "clinic/internal/domain/customer"
	domainFile "clinic/internal/domain/patientfile"
	domainRecord "clinic/internal/domain/record"
)

// RecentRecordLimit bounds the records shown on the customer page.
const RecentRecordLimit = 5

// GetCustomerOverviewQuery carries query parameters.
type GetCustomerOverviewQuery struct {
	CustomerID string
}

// GetCustomerOverviewResult is the customer detail page.
type GetCustomerOverviewResult struct {
	Customer      domainCustomer.Customer
	Stats         appointmentStore.Overview
	Upcoming      []domainAppointment.Appointment
	RecentRecords []domainRecord.PatientRecord
	OpenFollowUps int
	Files         []domainFile.File
}

// GetCustomerOverviewDeps holds dependencies for GetCustomerOverview.
type GetCustomerOverviewDeps struct {
	CustomerStore CustomerGetter
	AppointmentStore interface {
		AppointmentLister
		OverviewReader
	}
	RecordStore RecordLister
	FileStore   FileLister
	Timezone    *time.Location
	Now         func() time.Time
}

// QueryGetCustomerOverview assembles a customer's profile, booking aggregates,
// upcoming appointments, recent records and files.
// PRE: CustomerID exists
// POST: Upcoming is ascending from today and excludes cancelled appointments
func QueryGetCustomerOverview(ctx context.Context, query GetCustomerOverviewQuery, deps GetCustomerOverviewDeps) (GetCustomerOverviewResult, error) {
	c, err := deps.CustomerStore.GetByID(ctx, query.CustomerID)
	if err != nil {
		return GetCustomerOverviewResult{}, err
	}
	stats, err := deps.AppointmentStore.CustomerOverview(ctx, c.ID)
	if err != nil {
		return GetCustomerOverviewResult{}, err
	}
	upcoming, err := deps.AppointmentStore.List(ctx, appointmentStore.ListFilter{
		CustomerID:       c.ID,
		From:             todayString(deps.Timezone, deps.Now),
		ExcludeCancelled: true,
	})
	if err != nil {
		return GetCustomerOverviewResult{}, err
	}
	records, err := deps.RecordStore.ListByCustomer(ctx, c.ID, RecentRecordLimit)
	if err != nil {
		return GetCustomerOverviewResult{}, err
	}
	files, err := deps.FileStore.ListByCustomer(ctx, c.ID)
	if err != nil {
		return GetCustomerOverviewResult{}, err
	}

	res := GetCustomerOverviewResult{Customer: c, Stats: stats, Upcoming: upcoming, RecentRecords: records, Files: files}
	for _, r := range records {
		if r.FollowUpNeeded {
			res.OpenFollowUps++
		}
	}
	return res, nil
}

func todayString(tz *time.Location, now func() time.Time) string {
	if tz == nil {
		tz = time.UTC
	}
	return now().In(tz).Format(domainAppointment.DateLayout)
}
