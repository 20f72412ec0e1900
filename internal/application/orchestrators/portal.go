package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"clinic/internal/domain/account"
	"clinic/internal/domain/audit"
	"clinic/internal/domain/customer"
)

// PortalAccountGetter loads the logged-in portal account.
type PortalAccountGetter interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// CustomerStoreForPortal defines the store interface needed by LinkPortalAccount.
type CustomerStoreForPortal interface {
	GetByEmail(ctx context.Context, email string) (customer.Customer, error)
	GetByPortalAccount(ctx context.Context, accountID string) (customer.Customer, error)
	Save(ctx context.Context, c customer.Customer) error
}

var (
	ErrNotPortalAccount   = errors.New("only customer accounts can be linked")
	ErrNoMatchingCustomer = errors.New("no customer record matches this account")
	ErrAlreadyLinked      = errors.New("customer record is linked to another account")
	ErrBirthdayMismatch   = errors.New("date of birth does not match the customer record")
)

// LinkPortalAccountInput carries the portal account and the proof of identity.
type LinkPortalAccountInput struct {
	AccountID   string
	DateOfBirth string // must match when the customer record has one
	IPAddress   string
}

// LinkPortalAccountDeps holds dependencies for LinkPortalAccount.
type LinkPortalAccountDeps struct {
	AccountStore  PortalAccountGetter
	CustomerStore CustomerStoreForPortal
	AuditStore    AuditRecorder
	Now           func() time.Time
}

// ExecuteLinkPortalAccount ties a customer portal login to the matching
// customer record. Every refusal is returned and audited; nothing is linked
// on a partial match.
// PRE: AccountID is a customer-role account
// POST: the customer record's PortalAccountID is AccountID
func ExecuteLinkPortalAccount(ctx context.Context, input LinkPortalAccountInput, deps LinkPortalAccountDeps) (customer.Customer, error) {
	now := deps.Now()
	actor := Actor{ID: input.AccountID, Role: account.RoleCustomer, IPAddress: input.IPAddress}
	refuse := func(err error) (customer.Customer, error) {
		recordAudit(ctx, deps.AuditStore, newEvent(now, actor, audit.CategoryAccount, audit.ActionLink).
			WithSeverity(audit.SeverityWarning).
			WithResource("account", input.AccountID).
			WithDescription("portal link refused: " + err.Error()))
		slog.Warn("portal_event", "event", "link_refused", "account_id", input.AccountID, "reason", err.Error())
		return customer.Customer{}, err
	}

	if existing, err := deps.CustomerStore.GetByPortalAccount(ctx, input.AccountID); err == nil {
		return existing, nil
	}

	acct, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return refuse(err)
	}
	if acct.Role != account.RoleCustomer {
		return refuse(ErrNotPortalAccount)
	}
	c, err := deps.CustomerStore.GetByEmail(ctx, strings.ToLower(acct.Email))
	if err != nil {
		return refuse(ErrNoMatchingCustomer)
	}
	if c.PortalAccountID != "" && c.PortalAccountID != acct.ID {
		return refuse(ErrAlreadyLinked)
	}
	if c.DateOfBirth != "" && c.DateOfBirth != strings.TrimSpace(input.DateOfBirth) {
		return refuse(ErrBirthdayMismatch)
	}

	c.PortalAccountID = acct.ID
	c.UpdatedAt = now
	if err := deps.CustomerStore.Save(ctx, c); err != nil {
		return refuse(err)
	}
	recordAudit(ctx, deps.AuditStore, newEvent(now, actor, audit.CategoryAccount, audit.ActionLink).
		WithResource("customer", c.ID).
		WithDescription("portal account linked"))
	slog.Info("portal_event", "event", "account_linked", "account_id", acct.ID, "customer_id", c.ID)
	return c, nil
}
