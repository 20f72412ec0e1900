package web

import (
	"net/http"

	"clinic/internal/application/orchestrators"
	"clinic/internal/application/projections"
	"clinic/internal/domain/account"
	"clinic/internal/domain/featureflag"
)

type portalRegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=12"`
}

// handlePortalRegister handles POST /api/portal/register
// POST: Creates a customer-role account; linking to the customer record is a separate step
func handlePortalRegister(w http.ResponseWriter, r *http.Request) {
	if !requireFeature(w, r, featureflag.KeyPortal, account.RoleCustomer) {
		return
	}
	var req portalRegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	acct, err := orchestrators.ExecuteCreateAccount(r.Context(), orchestrators.CreateAccountInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     account.RoleCustomer,
		Actor:    orchestrators.Actor{ID: "portal", Role: account.RoleCustomer, IPAddress: clientIP(r)},
	}, createAccountDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acct))
}

type portalLinkRequest struct {
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,date"`
}

// handlePortalLink handles POST /api/portal/link
// Every refusal is reported to the caller; nothing is linked on a partial match.
func handlePortalLink(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireCustomer(w, r)
	if !ok || !requireFeature(w, r, featureflag.KeyPortal, sess.Role) {
		return
	}
	var req portalLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	c, err := orchestrators.ExecuteLinkPortalAccount(r.Context(), orchestrators.LinkPortalAccountInput{
		AccountID:   sess.AccountID,
		DateOfBirth: req.DateOfBirth,
		IPAddress:   clientIP(r),
	}, orchestrators.LinkPortalAccountDeps{
		AccountStore:  stores.AccountStore,
		CustomerStore: stores.CustomerStore,
		AuditStore:    stores.AuditStore,
		Now:           timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"customer_id": c.ID,
		"first_name":  c.FirstName,
		"last_name":   c.LastName,
	})
}

// handlePortalAppointments handles GET /api/portal/appointments
func handlePortalAppointments(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireCustomer(w, r)
	if !ok || !requireFeature(w, r, featureflag.KeyPortal, sess.Role) {
		return
	}
	result, err := projections.QueryGetPortalAppointments(r.Context(), projections.GetPortalAppointmentsQuery{
		AccountID: sess.AccountID,
	}, projections.GetPortalAppointmentsDeps{
		CustomerStore:    stores.CustomerStore,
		AppointmentStore: stores.AppointmentStore,
		TreatmentStore:   stores.TreatmentStore,
		Timezone:         cfg.Location,
		Now:              timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
