package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"clinic/internal/domain/account"
	"clinic/internal/domain/audit"
	"clinic/internal/domain/featureflag"
)

type mockFeatureFlagStore struct {
	flags map[string]featureflag.FeatureFlag
	saves int
}

func newMockFeatureFlagStore(fs ...featureflag.FeatureFlag) *mockFeatureFlagStore {
	m := &mockFeatureFlagStore{flags: make(map[string]featureflag.FeatureFlag)}
	for _, f := range fs {
		m.flags[f.Key] = f
	}
	return m
}

func (m *mockFeatureFlagStore) GetByKey(_ context.Context, key string) (featureflag.FeatureFlag, error) {
	f, ok := m.flags[key]
	if !ok {
		return featureflag.FeatureFlag{}, fmt.Errorf("feature flag not found: %w", sql.ErrNoRows)
	}
	return f, nil
}

func (m *mockFeatureFlagStore) Save(_ context.Context, f featureflag.FeatureFlag) error {
	m.saves++
	m.flags[f.Key] = f
	return nil
}

func TestExecuteSeedFeatureFlags_KeepsAdminChoices(t *testing.T) {
	store := newMockFeatureFlagStore(featureflag.FeatureFlag{Key: featureflag.KeySalon})

	if err := ExecuteSeedFeatureFlags(context.Background(), store, fixedNow); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got := len(store.flags); got != len(featureflag.DefaultFlags()) {
		t.Fatalf("flags = %d, want %d", got, len(featureflag.DefaultFlags()))
	}
	if store.flags[featureflag.KeySalon].EnabledSalon {
		t.Error("seed overwrote a stored flag")
	}
	if !store.flags[featureflag.KeyPortal].EnabledCustomer || !store.flags[featureflag.KeyPortal].UpdatedAt.Equal(fixedNow) {
		t.Errorf("portal = %+v", store.flags[featureflag.KeyPortal])
	}

	saves := store.saves
	if err := ExecuteSeedFeatureFlags(context.Background(), store, fixedNow.Add(time.Hour)); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if store.saves != saves {
		t.Errorf("second seed saved %d rows", store.saves-saves)
	}
}

type brokenFeatureFlagStore struct{ mockFeatureFlagStore }

func (brokenFeatureFlagStore) GetByKey(context.Context, string) (featureflag.FeatureFlag, error) {
	return featureflag.FeatureFlag{}, errors.New("disk I/O error")
}

func TestExecuteSeedFeatureFlags_StoreError(t *testing.T) {
	err := ExecuteSeedFeatureFlags(context.Background(), &brokenFeatureFlagStore{}, fixedNow)
	if err == nil {
		t.Fatal("expected the read error to surface")
	}
}

func TestExecuteSetFeatureFlag(t *testing.T) {
	store := newMockFeatureFlagStore()
	auditStore := &mockAuditStore{}
	deps := SetFeatureFlagDeps{FeatureFlagStore: store, AuditStore: auditStore, Now: nowFn}
	actor := Actor{ID: "admin-1", Role: account.RoleAdmin}

	f, err := ExecuteSetFeatureFlag(context.Background(), SetFeatureFlagInput{
		Key:          featureflag.KeyCampaigns,
		EnabledAdmin: true,
		EnabledStaff: true,
		Actor:        actor,
	}, deps)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if f.Description == "" || !f.EnabledStaff || f.EnabledCustomer {
		t.Errorf("flag = %+v", f)
	}
	if got := store.flags[featureflag.KeyCampaigns]; !got.EnabledForRole(account.RoleStaff) {
		t.Error("staff switch not stored")
	}
	if len(auditStore.events) != 1 || auditStore.events[0].Category != audit.CategorySystem {
		t.Errorf("audit = %+v", auditStore.events)
	}

	_, err = ExecuteSetFeatureFlag(context.Background(), SetFeatureFlagInput{Key: "dark_mode", Actor: actor}, deps)
	if !errors.Is(err, featureflag.ErrUnknownKey) {
		t.Errorf("unknown key err = %v", err)
	}
}
