package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"clinic/internal/domain/account"
	"clinic/internal/domain/audit"
)

// AccountStoreForCreate defines the store interface needed by CreateAccount.
type AccountStoreForCreate interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
	Count(ctx context.Context) (int, error)
}

// CreateAccountInput carries input for the orchestrator.
type CreateAccountInput struct {
	Email    string
	Name     string
	Password string
	Role     string
	Actor    Actor
}

// CreateAccountDeps holds dependencies for CreateAccount.
type CreateAccountDeps struct {
	AccountStore AccountStoreForCreate
	AuditStore   AuditRecorder
	GenerateID   func() string
	Now          func() time.Time
}

var ErrEmailAlreadyExists = errors.New("an account with this email already exists")

// ExecuteCreateAccount coordinates account creation.
// PRE: Valid email, password >= 12 chars, valid role
// POST: Account created with hashed password
// INVARIANT: Email must be unique
func ExecuteCreateAccount(ctx context.Context, input CreateAccountInput, deps CreateAccountDeps) (account.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return account.Account{}, account.ErrEmptyEmail
	}
	if input.Password == "" {
		return account.Account{}, account.ErrEmptyPassword
	}

	if _, err := deps.AccountStore.GetByEmail(ctx, email); err == nil {
		return account.Account{}, ErrEmailAlreadyExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, err
	}

	now := deps.Now()
	acct := account.Account{
		ID:        deps.GenerateID(),
		Email:     email,
		Name:      strings.TrimSpace(input.Name),
		Role:      input.Role,
		CreatedAt: now,
	}
	if err := acct.Validate(); err != nil {
		return account.Account{}, err
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return account.Account{}, err
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return account.Account{}, err
	}

	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategoryAccount, audit.ActionCreate).
		WithResource("account", acct.ID).
		WithDescription(acct.Email + " as " + acct.Role))
	slog.Info("auth_event", "event", "account_created", "email", acct.Email, "role", acct.Role)
	return acct, nil
}

// ExecuteSeedAdmin creates a default admin account if no accounts exist.
// An empty password is replaced by generatePassword and logged once, only
// when the account is actually created.
// PRE: Database is initialized
// POST: Admin account created if count == 0; reports whether it was
func ExecuteSeedAdmin(ctx context.Context, deps CreateAccountDeps, email, password string, generatePassword func() string) (bool, error) {
	count, err := deps.AccountStore.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	generated := password == ""
	if generated {
		password = generatePassword()
	}
	_, err = ExecuteCreateAccount(ctx, CreateAccountInput{
		Email:    email,
		Name:     "Admin",
		Password: password,
		Role:     account.RoleAdmin,
		Actor:    Actor{ID: "system", Role: "system"},
	}, deps)
	if err != nil {
		return false, err
	}

	if generated {
		slog.Warn("admin_password_generated", "email", email, "password", password)
	}
	slog.Info("auth_event", "event", "admin_seeded", "email", email)
	return true, nil
}
