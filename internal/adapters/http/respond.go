package web

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"clinic/internal/adapters/http/middleware"
	"clinic/internal/adapters/objectstore"
	"clinic/internal/application/orchestrators"
	"clinic/internal/application/projections"
	"clinic/internal/domain/account"
	"clinic/internal/domain/appointment"
	"clinic/internal/domain/clock"
	"clinic/internal/domain/customer"
	emailDomain "clinic/internal/domain/email"
	"clinic/internal/domain/featureflag"
	"clinic/internal/domain/outbox"
	"clinic/internal/domain/patientfile"
	"clinic/internal/domain/record"
	"clinic/internal/domain/salon"
	"clinic/internal/domain/slot"
	"clinic/internal/domain/treatment"
)

// maxJSONBody bounds request bodies decoded as JSON.
const maxJSONBody = 1 << 20

var validate = newValidator()

// newValidator registers the clinic-specific tags used on request DTOs.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("location", func(fl validator.FieldLevel) bool {
		return appointment.ValidLocation(fl.Field().String())
	})
	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := clock.Parse(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := appointment.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

func generateID() string {
	return uuid.New().String()
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response_encode_failed", "error", err.Error())
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON strictly decodes the request body into v and validates it.
// PRE: v is a pointer to a request DTO
// POST: Returns an error describing the first problem found
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return validate.Struct(v)
}

// writeDecodeError answers 400 for a body that failed decodeJSON.
func writeDecodeError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
		return
	}
	writeErrorMessage(w, http.StatusBadRequest, err.Error())
}

var (
	unavailableErrors = []error{
		slot.ErrConflictDataUnavailable,
	}
	notFoundErrors = []error{
		sql.ErrNoRows,
		objectstore.ErrNotFound,
		projections.ErrPortalNotLinked,
		orchestrators.ErrNoMatchingCustomer,
		featureflag.ErrUnknownKey,
	}
	conflictErrors = []error{
		orchestrators.ErrSlotTaken,
		orchestrators.ErrBookingBusy,
		orchestrators.ErrEmailAlreadyExists,
		orchestrators.ErrAlreadyLinked,
		orchestrators.ErrEntryTerminal,
		appointment.ErrInvalidTransition,
		emailDomain.ErrInvalidTransition,
		outbox.ErrNotRetryable,
	}
	unauthorizedErrors = []error{
		ErrInvalidToken,
		orchestrators.ErrInvalidCredentials,
		salon.ErrWrongPIN,
		salon.ErrNotActive,
		salon.ErrExpired,
	}
	forbiddenErrors = []error{
		orchestrators.ErrSessionLocationMismatch,
		orchestrators.ErrNotPortalAccount,
		orchestrators.ErrBirthdayMismatch,
		orchestrators.ErrCurrentPasswordWrong,
		orchestrators.ErrAppointmentMismatch,
		salon.ErrAccessDisabled,
		featureflag.ErrDisabled,
	}
	lockedErrors = []error{
		orchestrators.ErrAccountLocked,
		account.ErrLocked,
	}
	badRequestErrors = []error{
		slot.ErrMalformedTime,
		slot.ErrNonPositiveDuration,
		clock.ErrMalformed,
		clock.ErrPastMidnight,
		appointment.ErrEmptyCustomerID,
		appointment.ErrEmptyTreatmentID,
		appointment.ErrInvalidLocation,
		appointment.ErrInvalidDate,
		appointment.ErrInvalidDuration,
		appointment.ErrEndMismatch,
		appointment.ErrInvalidStatus,
		appointment.ErrNegativePrice,
		orchestrators.ErrNewPasswordSame,
		orchestrators.ErrDateInPast,
		orchestrators.ErrTooFarAhead,
		orchestrators.ErrMergeIDsRequired,
		orchestrators.ErrNoRecipientAddress,
		projections.ErrOutsideBookingWindow,
		projections.ErrInvalidRange,
		customer.ErrEmptyFirstName,
		customer.ErrEmptyLastName,
		customer.ErrInvalidEmail,
		customer.ErrInvalidLocation,
		customer.ErrInvalidBirthday,
		customer.ErrQueryTooShort,
		customer.ErrSelfMerge,
		treatment.ErrInactive,
		treatment.ErrNotOffered,
		record.ErrEmptyCustomerID,
		record.ErrInvalidNoteType,
		record.ErrInvalidSource,
		record.ErrEmptyContent,
		record.ErrMissingFollowUp,
		record.ErrInvalidFollowUp,
		record.ErrTreatmentRequired,
		patientfile.ErrInvalidFileType,
		patientfile.ErrEmptyFileName,
		patientfile.ErrMimeNotAllowed,
		patientfile.ErrTooLarge,
		patientfile.ErrEmpty,
		emailDomain.ErrEmptyName,
		emailDomain.ErrEmptySubject,
		emailDomain.ErrEmptyBody,
		emailDomain.ErrTemplateInactive,
		emailDomain.ErrMissingVariable,
		emailDomain.ErrNoRecipients,
		emailDomain.ErrScheduledInPast,
		emailDomain.ErrInvalidSegmentLoc,
		account.ErrInvalidEmail,
		account.ErrEmptyEmail,
		account.ErrEmailTooLong,
		account.ErrInvalidRole,
		account.ErrEmptyPassword,
		account.ErrPasswordTooShort,
		salon.ErrInvalidLocation,
		salon.ErrInvalidPIN,
		featureflag.ErrMissingKey,
	}
)

var errorStatuses = []struct {
	status int
	errs   []error
}{
	{http.StatusServiceUnavailable, unavailableErrors},
	{http.StatusNotFound, notFoundErrors},
	{http.StatusConflict, conflictErrors},
	{http.StatusUnauthorized, unauthorizedErrors},
	{http.StatusForbidden, forbiddenErrors},
	{http.StatusLocked, lockedErrors},
	{http.StatusBadRequest, badRequestErrors},
}

// statusFor maps a domain or orchestrator error to an HTTP status.
// Unknown errors map to 500.
func statusFor(err error) int {
	for _, group := range errorStatuses {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.status
			}
		}
	}
	return http.StatusInternalServerError
}

// writeError answers with the status statusFor assigns to err.
// Conflict data failures never leak the storage error to the client.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		internalError(w, err)
	case http.StatusServiceUnavailable:
		slog.Error("conflict_data_unavailable", "error", err.Error())
		writeErrorMessage(w, status, slot.ErrConflictDataUnavailable.Error())
	case http.StatusNotFound:
		writeErrorMessage(w, status, "not found")
	default:
		writeErrorMessage(w, status, err.Error())
	}
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// actorFor builds the audit actor of a cookie-authenticated request.
func actorFor(r *http.Request, sess middleware.Session) orchestrators.Actor {
	return orchestrators.Actor{ID: sess.AccountID, Role: sess.Role, IPAddress: clientIP(r)}
}

// salonActor builds the audit actor of a salon tablet request.
func salonActor(r *http.Request, id middleware.SalonIdentity) orchestrators.Actor {
	return orchestrators.Actor{ID: "salon:" + id.Location, Role: "salon", IPAddress: clientIP(r)}
}
