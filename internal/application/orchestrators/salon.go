package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clinic/internal/domain/appointment"
	"clinic/internal/domain/audit"
	"clinic/internal/domain/salon"
)

// SalonStoreForOrchestrator defines the store interface needed by salon orchestrators.
type SalonStoreForOrchestrator interface {
	ListActiveAccess(ctx context.Context, location string) ([]salon.Access, error)
	GetSession(ctx context.Context, id string) (salon.Session, error)
	SaveSession(ctx context.Context, s salon.Session) error
}

// SalonTokenIssuer signs the bearer token handed to an unlocked tablet.
type SalonTokenIssuer interface {
	Issue(sessionID, location string, now time.Time) (token string, expiresAt time.Time, err error)
}

var ErrSessionLocationMismatch = errors.New("salon session belongs to another location")

// --- Unlock ---

// UnlockSalonInput carries the PIN typed on the tablet.
type UnlockSalonInput struct {
	Location  string
	PIN       string
	IPAddress string
}

// UnlockSalonDeps holds dependencies for UnlockSalon.
type UnlockSalonDeps struct {
	SalonStore SalonStoreForOrchestrator
	Tokens     SalonTokenIssuer
	AuditStore AuditRecorder
	GenerateID func() string
	Now        func() time.Time
}

// UnlockSalonResult carries the new session and its token.
type UnlockSalonResult struct {
	Session   salon.Session
	Token     string
	ExpiresAt time.Time
}

// ExecuteUnlockSalon opens a salon-mode session scoped to one location.
// PRE: Location is valid; PIN matches an active access entry of that location
// POST: A new session is saved and a signed token returned
// INVARIANT: a PIN only ever unlocks its own location
func ExecuteUnlockSalon(ctx context.Context, input UnlockSalonInput, deps UnlockSalonDeps) (UnlockSalonResult, error) {
	if !appointment.ValidLocation(input.Location) {
		return UnlockSalonResult{}, salon.ErrInvalidLocation
	}
	now := deps.Now()
	salonActor := Actor{ID: "salon:" + input.Location, Role: "salon", IPAddress: input.IPAddress}
	if !salon.ValidPIN(input.PIN) {
		return UnlockSalonResult{}, salon.ErrInvalidPIN
	}

	accesses, err := deps.SalonStore.ListActiveAccess(ctx, input.Location)
	if err != nil {
		return UnlockSalonResult{}, err
	}
	var matched *salon.Access
	for i := range accesses {
		if accesses[i].CheckPIN(input.PIN) == nil {
			matched = &accesses[i]
			break
		}
	}
	if matched == nil {
		recordAudit(ctx, deps.AuditStore, newEvent(now, salonActor, audit.CategorySecurity, audit.ActionLoginFailed).
			WithSeverity(audit.SeverityWarning).
			WithLocation(input.Location).
			WithDescription("wrong salon PIN"))
		slog.Info("salon_event", "event", "unlock_failed", "location", input.Location, "ip", input.IPAddress)
		return UnlockSalonResult{}, salon.ErrWrongPIN
	}

	session := salon.Session{
		ID:         deps.GenerateID(),
		AccessID:   matched.ID,
		Location:   input.Location,
		StartedAt:  now,
		LastSeenAt: now,
	}
	if err := session.Validate(); err != nil {
		return UnlockSalonResult{}, err
	}
	token, expires, err := deps.Tokens.Issue(session.ID, session.Location, now)
	if err != nil {
		return UnlockSalonResult{}, err
	}
	if err := deps.SalonStore.SaveSession(ctx, session); err != nil {
		return UnlockSalonResult{}, err
	}

	recordAudit(ctx, deps.AuditStore, newEvent(now, salonActor, audit.CategorySecurity, audit.ActionUnlock).
		WithLocation(session.Location).
		WithResource("salon_session", session.ID))
	slog.Info("salon_event", "event", "salon_unlocked", "location", session.Location, "session_id", session.ID)
	return UnlockSalonResult{Session: session, Token: token, ExpiresAt: expires}, nil
}

// --- Touch ---

// TouchSalonInput identifies the session from a verified token.
type TouchSalonInput struct {
	SessionID string
	Location  string
}

// TouchSalonDeps holds dependencies for TouchSalon and LockSalon.
type TouchSalonDeps struct {
	SalonStore SalonStoreForOrchestrator
	AuditStore AuditRecorder
	Timeout    time.Duration
	Now        func() time.Time
}

// ExecuteTouchSalon records tablet activity and enforces the inactivity timeout.
// PRE: SessionID and Location come from a verified token
// POST: Returns the refreshed session, or ErrExpired after ending an idle one
func ExecuteTouchSalon(ctx context.Context, input TouchSalonInput, deps TouchSalonDeps) (salon.Session, error) {
	s, err := deps.SalonStore.GetSession(ctx, input.SessionID)
	if err != nil {
		return salon.Session{}, err
	}
	if s.Location != input.Location {
		return salon.Session{}, ErrSessionLocationMismatch
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = salon.DefaultInactivityTimeout
	}
	now := deps.Now()
	touchErr := s.Touch(now, timeout)
	if errors.Is(touchErr, salon.ErrNotActive) {
		return salon.Session{}, touchErr
	}
	if err := deps.SalonStore.SaveSession(ctx, s); err != nil {
		return salon.Session{}, err
	}
	if touchErr != nil {
		slog.Info("salon_event", "event", "salon_session_expired", "location", s.Location, "session_id", s.ID)
		return salon.Session{}, touchErr
	}
	return s, nil
}

// --- Lock ---

// LockSalonInput identifies the session to end.
type LockSalonInput struct {
	SessionID string
	Location  string
	IPAddress string
}

// ExecuteLockSalon ends a salon session.
// PRE: the session is active
// POST: EndedAt is set; the token no longer authenticates
func ExecuteLockSalon(ctx context.Context, input LockSalonInput, deps TouchSalonDeps) error {
	s, err := deps.SalonStore.GetSession(ctx, input.SessionID)
	if err != nil {
		return err
	}
	if s.Location != input.Location {
		return ErrSessionLocationMismatch
	}
	now := deps.Now()
	if err := s.End(now); err != nil {
		return err
	}
	if err := deps.SalonStore.SaveSession(ctx, s); err != nil {
		return err
	}
	recordAudit(ctx, deps.AuditStore, newEvent(now, Actor{ID: "salon:" + s.Location, Role: "salon", IPAddress: input.IPAddress},
		audit.CategorySecurity, audit.ActionLock).
		WithLocation(s.Location).
		WithResource("salon_session", s.ID))
	slog.Info("salon_event", "event", "salon_locked", "location", s.Location, "session_id", s.ID)
	return nil
}
