package projections

import (
	"context"
	"sort"

	appointmentStore "clinic/internal/adapters/storage/appointment"
)

// Timeline entry kinds.
const (
	EntryAppointment = "appointment"
	EntryRecord      = "record"
)

// DefaultHistoryLimit bounds the timeline when the query sets no limit.
const DefaultHistoryLimit = 100

// GetTreatmentHistoryQuery carries query parameters.
type GetTreatmentHistoryQuery struct {
	CustomerID string
	Limit      int
}

// TimelineEntry is one appointment or patient record in a customer's history.
type TimelineEntry struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Date          string `json:"date"`
	Time          string `json:"time,omitempty"`
	TreatmentName string `json:"treatment_name,omitempty"`
	Location      string `json:"location,omitempty"`
	Status        string `json:"status,omitempty"`
	NoteType      string `json:"note_type,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Source        string `json:"source,omitempty"`
	FollowUpDate  string `json:"follow_up_date,omitempty"`
}

// GetTreatmentHistoryResult carries the query result.
type GetTreatmentHistoryResult struct {
	CustomerID string          `json:"customer_id"`
	Entries    []TimelineEntry `json:"entries"`
}

// GetTreatmentHistoryDeps holds dependencies for GetTreatmentHistory.
type GetTreatmentHistoryDeps struct {
	CustomerStore    CustomerGetter
	AppointmentStore AppointmentLister
	RecordStore      RecordLister
	TreatmentStore   TreatmentLister
}

// QueryGetTreatmentHistory merges appointments and patient records into one
// timeline, newest first.
// PRE: CustomerID exists
// POST: Entries sorted by date then time, descending; at most Limit entries
func QueryGetTreatmentHistory(ctx context.Context, query GetTreatmentHistoryQuery, deps GetTreatmentHistoryDeps) (GetTreatmentHistoryResult, error) {
	if _, err := deps.CustomerStore.GetByID(ctx, query.CustomerID); err != nil {
		return GetTreatmentHistoryResult{}, err
	}
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	treatments, err := deps.TreatmentStore.List(ctx, false)
	if err != nil {
		return GetTreatmentHistoryResult{}, err
	}
	names := make(map[string]string, len(treatments))
	for _, t := range treatments {
		names[t.ID] = t.Name
	}

	appts, err := deps.AppointmentStore.List(ctx, appointmentStore.ListFilter{
		CustomerID: query.CustomerID,
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return GetTreatmentHistoryResult{}, err
	}
	records, err := deps.RecordStore.ListByCustomer(ctx, query.CustomerID, limit)
	if err != nil {
		return GetTreatmentHistoryResult{}, err
	}

	entries := make([]TimelineEntry, 0, len(appts)+len(records))
	for _, a := range appts {
		entries = append(entries, TimelineEntry{
			ID:            a.ID,
			Kind:          EntryAppointment,
			Date:          a.Date,
			Time:          a.StartTime,
			TreatmentName: names[a.TreatmentID],
			Location:      a.Location,
			Status:        a.Status,
			Notes:         a.Notes,
		})
	}
	for _, r := range records {
		entries = append(entries, TimelineEntry{
			ID:            r.ID,
			Kind:          EntryRecord,
			Date:          r.CreatedAt.Format("2006-01-02"),
			Time:          r.CreatedAt.Format("15:04"),
			TreatmentName: names[r.TreatmentID],
			NoteType:      r.NoteType,
			Notes:         r.Notes,
			Source:        r.Source,
			FollowUpDate:  r.FollowUpDate,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date > entries[j].Date
		}
		return entries[i].Time > entries[j].Time
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return GetTreatmentHistoryResult{CustomerID: query.CustomerID, Entries: entries}, nil
}
