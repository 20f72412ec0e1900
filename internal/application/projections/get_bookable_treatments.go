package projections

import (
	"context"

	"clinic/internal/domain/appointment"
	domainTreatment "clinic/internal/domain/treatment"
)

// GetBookableTreatmentsQuery carries query parameters.
type GetBookableTreatmentsQuery struct {
	Location string
}

// GetBookableTreatmentsResult carries the query result.
type GetBookableTreatmentsResult struct {
	Location   string                      `json:"location"`
	Treatments []domainTreatment.Treatment `json:"treatments"`
}

// GetBookableTreatmentsDeps holds dependencies for GetBookableTreatments.
type GetBookableTreatmentsDeps struct {
	TreatmentStore TreatmentLister
}

// QueryGetBookableTreatments returns the active treatments offered at a location.
// PRE: Location is valid
// POST: Treatments keep the catalogue's sort order
func QueryGetBookableTreatments(ctx context.Context, query GetBookableTreatmentsQuery, deps GetBookableTreatmentsDeps) (GetBookableTreatmentsResult, error) {
	if !appointment.ValidLocation(query.Location) {
		return GetBookableTreatmentsResult{}, appointment.ErrInvalidLocation
	}
	all, err := deps.TreatmentStore.List(ctx, true)
	if err != nil {
		return GetBookableTreatmentsResult{}, err
	}
	out := make([]domainTreatment.Treatment, 0, len(all))
	for _, t := range all {
		if t.CheckBookable(query.Location) == nil {
			out = append(out, t)
		}
	}
	return GetBookableTreatmentsResult{Location: query.Location, Treatments: out}, nil
}
