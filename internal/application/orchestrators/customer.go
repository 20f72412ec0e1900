package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"clinic/internal/domain/audit"
	"clinic/internal/domain/customer"
)

// CustomerStoreForUpsert defines the store interface needed by UpsertCustomer.
type CustomerStoreForUpsert interface {
	GetByID(ctx context.Context, id string) (customer.Customer, error)
	GetByEmail(ctx context.Context, email string) (customer.Customer, error)
	GetByPhone(ctx context.Context, normalizedPhone string) (customer.Customer, error)
	Save(ctx context.Context, c customer.Customer) error
}

// UpsertCustomerInput carries the submitted customer fields.
// Empty fields never overwrite stored values on update.
type UpsertCustomerInput struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth string
	Location    string
	Tags        []string
	Notes       string
	SMSOptIn    *bool
	EmailOptIn  *bool
	Source      string
	Actor       Actor
}

// UpsertCustomerDeps holds dependencies for UpsertCustomer.
type UpsertCustomerDeps struct {
	CustomerStore CustomerStoreForUpsert
	AuditStore    AuditRecorder
	GenerateID    func() string
	Now           func() time.Time
}

// UpsertCustomerResult reports the saved customer and whether it was new.
type UpsertCustomerResult struct {
	Customer customer.Customer
	Created  bool
}

// ExecuteUpsertCustomer creates a customer or updates the matching one.
// Matching tries the ID, then the email, then the normalized phone number.
// PRE: FirstName and LastName are set for new customers
// POST: Exactly one customer holds the submitted data
func ExecuteUpsertCustomer(ctx context.Context, input UpsertCustomerInput, deps UpsertCustomerDeps) (UpsertCustomerResult, error) {
	now := deps.Now()
	existing, found, err := matchCustomer(ctx, deps.CustomerStore, input)
	if err != nil {
		return UpsertCustomerResult{}, err
	}

	c := existing
	if !found {
		source := input.Source
		if source == "" {
			source = customer.SourceManual
		}
		c = customer.Customer{ID: deps.GenerateID(), Source: source, CreatedAt: now}
	}
	apply(&c.FirstName, input.FirstName)
	apply(&c.LastName, input.LastName)
	apply(&c.Email, input.Email)
	apply(&c.Phone, input.Phone)
	apply(&c.DateOfBirth, input.DateOfBirth)
	apply(&c.Location, input.Location)
	apply(&c.Notes, input.Notes)
	if input.Tags != nil {
		c.Tags = input.Tags
	}
	if input.SMSOptIn != nil {
		c.SMSOptIn = *input.SMSOptIn
	}
	if input.EmailOptIn != nil {
		c.EmailOptIn = *input.EmailOptIn
	}
	c.UpdatedAt = now
	c.Normalize()
	if err := c.Validate(); err != nil {
		return UpsertCustomerResult{}, err
	}
	if err := deps.CustomerStore.Save(ctx, c); err != nil {
		return UpsertCustomerResult{}, err
	}

	action := audit.ActionUpdate
	if !found {
		action = audit.ActionCreate
	}
	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategoryCustomer, action).
		WithResource("customer", c.ID).
		WithDescription(c.FullName()))
	slog.Info("customer_event", "event", "customer_saved", "customer_id", c.ID, "created", !found)
	return UpsertCustomerResult{Customer: c, Created: !found}, nil
}

func matchCustomer(ctx context.Context, store CustomerStoreForUpsert, input UpsertCustomerInput) (customer.Customer, bool, error) {
	if input.ID != "" {
		c, err := store.GetByID(ctx, input.ID)
		if err != nil {
			return customer.Customer{}, false, err
		}
		return c, true, nil
	}
	if email := strings.ToLower(strings.TrimSpace(input.Email)); email != "" {
		c, err := store.GetByEmail(ctx, email)
		if err == nil {
			return c, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return customer.Customer{}, false, err
		}
	}
	if phone := customer.NormalizePhone(input.Phone); phone != "" {
		c, err := store.GetByPhone(ctx, phone)
		if err == nil {
			return c, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return customer.Customer{}, false, err
		}
	}
	return customer.Customer{}, false, nil
}

func apply(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// CustomerStoreForMerge defines the store interface needed by MergeCustomers.
type CustomerStoreForMerge interface {
	GetByID(ctx context.Context, id string) (customer.Customer, error)
	Reassign(ctx context.Context, sourceID string, target customer.Customer) error
}

// MergeCustomersInput names the duplicate and the record that survives.
type MergeCustomersInput struct {
	SourceID string
	TargetID string
	Actor    Actor
}

// MergeCustomersDeps holds dependencies for MergeCustomers.
type MergeCustomersDeps struct {
	CustomerStore CustomerStoreForMerge
	AuditStore    AuditRecorder
	Now           func() time.Time
}

var ErrMergeIDsRequired = errors.New("source and target customer IDs are required")

// ExecuteMergeCustomers folds a duplicate customer into another.
// PRE: SourceID and TargetID exist and differ
// POST: target holds the merged fields and every appointment, record and
// file of source; source is deleted
func ExecuteMergeCustomers(ctx context.Context, input MergeCustomersInput, deps MergeCustomersDeps) (customer.Customer, error) {
	if input.SourceID == "" || input.TargetID == "" {
		return customer.Customer{}, ErrMergeIDsRequired
	}
	if input.SourceID == input.TargetID {
		return customer.Customer{}, customer.ErrSelfMerge
	}
	source, err := deps.CustomerStore.GetByID(ctx, input.SourceID)
	if err != nil {
		return customer.Customer{}, err
	}
	target, err := deps.CustomerStore.GetByID(ctx, input.TargetID)
	if err != nil {
		return customer.Customer{}, err
	}
	now := deps.Now()
	if err := target.Merge(source, now); err != nil {
		return customer.Customer{}, err
	}
	if err := deps.CustomerStore.Reassign(ctx, source.ID, target); err != nil {
		return customer.Customer{}, err
	}

	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategoryCustomer, audit.ActionMerge).
		WithSeverity(audit.SeverityWarning).
		WithResource("customer", target.ID).
		WithDescription("merged " + source.ID + " (" + source.FullName() + ") into " + target.ID))
	slog.Info("customer_event", "event", "customers_merged", "source_id", source.ID, "target_id", target.ID)
	return target, nil
}
