package projections

import (
	"context"
	"errors"
	"time"

	appointmentStore "clinic/internal/adapters/storage/appointment"
	domainAppointment "clinic/internal/domain/appointment"
)

// PastAppointmentLimit bounds the history shown in the portal.
const PastAppointmentLimit = 20

var ErrPortalNotLinked = errors.New("portal account is not linked to a customer")

// GetPortalAppointmentsQuery carries query parameters.
type GetPortalAppointmentsQuery struct {
	AccountID string
}

// PortalAppointment is the customer-facing view of an appointment.
type PortalAppointment struct {
	ID           string  `json:"id"`
	Date         string  `json:"date"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	Location     string  `json:"location"`
	LocationName string  `json:"location_name"`
	Treatment    string  `json:"treatment"`
	Status       string  `json:"status"`
	PriceEUR     float64 `json:"price_eur"`
}

// GetPortalAppointmentsResult carries the query result.
type GetPortalAppointmentsResult struct {
	CustomerID string              `json:"customer_id"`
	FirstName  string              `json:"first_name"`
	Upcoming   []PortalAppointment `json:"upcoming"`
	Past       []PortalAppointment `json:"past"`
}

// GetPortalAppointmentsDeps holds dependencies for GetPortalAppointments.
type GetPortalAppointmentsDeps struct {
	CustomerStore    PortalCustomerGetter
	AppointmentStore AppointmentLister
	TreatmentStore   TreatmentLister
	Timezone         *time.Location
	Now              func() time.Time
}

// QueryGetPortalAppointments returns the logged-in customer's appointments.
// PRE: AccountID is linked to a customer
// POST: Upcoming is ascending from today without cancelled entries; Past is
// newest first
func QueryGetPortalAppointments(ctx context.Context, query GetPortalAppointmentsQuery, deps GetPortalAppointmentsDeps) (GetPortalAppointmentsResult, error) {
	c, err := deps.CustomerStore.GetByPortalAccount(ctx, query.AccountID)
	if err != nil {
		return GetPortalAppointmentsResult{}, ErrPortalNotLinked
	}
	treatments, err := deps.TreatmentStore.List(ctx, false)
	if err != nil {
		return GetPortalAppointmentsResult{}, err
	}
	names := make(map[string]string, len(treatments))
	for _, t := range treatments {
		names[t.ID] = t.Name
	}

	today := todayString(deps.Timezone, deps.Now)
	upcoming, err := deps.AppointmentStore.List(ctx, appointmentStore.ListFilter{
		CustomerID:       c.ID,
		From:             today,
		ExcludeCancelled: true,
	})
	if err != nil {
		return GetPortalAppointmentsResult{}, err
	}
	day, _ := domainAppointment.ParseDate(today)
	past, err := deps.AppointmentStore.List(ctx, appointmentStore.ListFilter{
		CustomerID: c.ID,
		To:         day.AddDate(0, 0, -1).Format(domainAppointment.DateLayout),
		Descending: true,
		Limit:      PastAppointmentLimit,
	})
	if err != nil {
		return GetPortalAppointmentsResult{}, err
	}

	view := func(appts []domainAppointment.Appointment) []PortalAppointment {
		out := make([]PortalAppointment, 0, len(appts))
		for _, a := range appts {
			out = append(out, PortalAppointment{
				ID:           a.ID,
				Date:         a.Date,
				StartTime:    a.StartTime,
				EndTime:      a.EndTime,
				Location:     a.Location,
				LocationName: domainAppointment.LocationName(a.Location),
				Treatment:    names[a.TreatmentID],
				Status:       a.Status,
				PriceEUR:     a.PriceEUR,
			})
		}
		return out
	}
	return GetPortalAppointmentsResult{
		CustomerID: c.ID,
		FirstName:  c.FirstName,
		Upcoming:   view(upcoming),
		Past:       view(past),
	}, nil
}
