package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clinic/internal/domain/account"
	"clinic/internal/domain/audit"
)

// ChangePasswordInput carries input for the change-password orchestrator.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	Actor           Actor
}

// AccountStoreForChangePassword defines the store interface needed by ChangePassword.
type AccountStoreForChangePassword interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// ChangePasswordDeps holds dependencies for ChangePassword.
type ChangePasswordDeps struct {
	AccountStore AccountStoreForChangePassword
	AuditStore   AuditRecorder
	Now          func() time.Time
}

var (
	ErrCurrentPasswordWrong = errors.New("current password is incorrect")
	ErrNewPasswordSame      = errors.New("new password must be different from current password")
)

// ExecuteChangePassword checks the current password of the acting account
// and replaces it.
// PRE: Actor.ID is the logged-in account
// POST: Password hash is replaced and failed-login state cleared
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps ChangePasswordDeps) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return account.ErrEmptyPassword
	}

	acct, err := deps.AccountStore.GetByID(ctx, input.Actor.ID)
	if err != nil {
		return err
	}
	if err := acct.CheckPassword(input.CurrentPassword); err != nil {
		return ErrCurrentPasswordWrong
	}
	if input.CurrentPassword == input.NewPassword {
		return ErrNewPasswordSame
	}
	if err := acct.SetPassword(input.NewPassword); err != nil {
		return err
	}
	acct.ResetFailedLogins()

	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return err
	}

	recordAudit(ctx, deps.AuditStore, newEvent(deps.Now(), input.Actor, audit.CategorySecurity, audit.ActionUpdate).
		WithResource("account", acct.ID).
		WithDescription("password changed"))
	slog.Info("auth_event", "event", "password_changed", "account_id", acct.ID)
	return nil
}
