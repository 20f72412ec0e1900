package orchestrators

import (
	"context"
	"errors"
	"testing"

	"clinic/internal/domain/account"
)

func TestExecuteChangePassword(t *testing.T) {
	acct := account.Account{ID: "acct-1", Email: "eva@clinic.example", Role: account.RoleStaff, FailedLogins: 3}
	if err := acct.SetPassword("correct horse battery"); err != nil {
		t.Fatal(err)
	}
	store := newMockAccountStore(acct)
	auditStore := &mockAuditStore{}
	deps := ChangePasswordDeps{AccountStore: store, AuditStore: auditStore, Now: nowFn}
	actor := Actor{ID: "acct-1", Role: account.RoleStaff}

	tests := []struct {
		name    string
		current string
		next    string
		want    error
	}{
		{"empty", "", "", account.ErrEmptyPassword},
		{"wrong current", "not my password", "a brand new passphrase", ErrCurrentPasswordWrong},
		{"unchanged", "correct horse battery", "correct horse battery", ErrNewPasswordSame},
		{"too short", "correct horse battery", "short", account.ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ExecuteChangePassword(context.Background(), ChangePasswordInput{
				CurrentPassword: tt.current, NewPassword: tt.next, Actor: actor,
			}, deps)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	err := ExecuteChangePassword(context.Background(), ChangePasswordInput{
		CurrentPassword: "correct horse battery", NewPassword: "a brand new passphrase", Actor: actor,
	}, deps)
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	saved := store.accounts["acct-1"]
	if saved.CheckPassword("a brand new passphrase") != nil {
		t.Error("new password not stored")
	}
	if saved.FailedLogins != 0 {
		t.Errorf("failed logins = %d, want 0", saved.FailedLogins)
	}
	if len(auditStore.events) != 1 {
		t.Errorf("audit events = %d, want 1", len(auditStore.events))
	}
}
