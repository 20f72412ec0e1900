package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"clinic/internal/domain/audit"
	"clinic/internal/domain/featureflag"
)

// FeatureFlagStoreForOrchestrator defines the store interface needed by feature flag orchestrators.
type FeatureFlagStoreForOrchestrator interface {
	GetByKey(ctx context.Context, key string) (featureflag.FeatureFlag, error)
	Save(ctx context.Context, value featureflag.FeatureFlag) error
}

// ExecuteSeedFeatureFlags stores the built-in setting of every known flag
// that has no row yet. Existing rows keep whatever an admin chose.
// POST: every key in featureflag.DefaultFlags has a row
func ExecuteSeedFeatureFlags(ctx context.Context, store FeatureFlagStoreForOrchestrator, now time.Time) error {
	added := 0
	for _, f := range featureflag.DefaultFlags() {
		_, err := store.GetByKey(ctx, f.Key)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		f.UpdatedAt = now
		if err := store.Save(ctx, f); err != nil {
			return err
		}
		added++
	}
	if added > 0 {
		slog.Info("seed_event", "event", "feature_flags_seeded", "count", added)
	}
	return nil
}

// SetFeatureFlagInput carries the new per-role switches of one flag.
type SetFeatureFlagInput struct {
	Key             string
	EnabledAdmin    bool
	EnabledStaff    bool
	EnabledCustomer bool
	EnabledSalon    bool
	Actor           Actor
}

// SetFeatureFlagDeps holds dependencies for SetFeatureFlag.
type SetFeatureFlagDeps struct {
	FeatureFlagStore FeatureFlagStoreForOrchestrator
	AuditStore       AuditRecorder
	Now              func() time.Time
}

// ExecuteSetFeatureFlag replaces the per-role switches of a known flag.
// PRE: Key names a flag in featureflag.DefaultFlags
// POST: the flag is saved and an audit event recorded
// INVARIANT: the description always comes from the built-in default
func ExecuteSetFeatureFlag(ctx context.Context, input SetFeatureFlagInput, deps SetFeatureFlagDeps) (featureflag.FeatureFlag, error) {
	def, ok := featureflag.Default(input.Key)
	if !ok {
		return featureflag.FeatureFlag{}, featureflag.ErrUnknownKey
	}
	now := deps.Now()
	f := featureflag.FeatureFlag{
		Key:             def.Key,
		Description:     def.Description,
		EnabledAdmin:    input.EnabledAdmin,
		EnabledStaff:    input.EnabledStaff,
		EnabledCustomer: input.EnabledCustomer,
		EnabledSalon:    input.EnabledSalon,
		UpdatedAt:       now,
	}
	if err := deps.FeatureFlagStore.Save(ctx, f); err != nil {
		return featureflag.FeatureFlag{}, err
	}
	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategorySystem, audit.ActionUpdate).
		WithResource("feature_flag", f.Key))
	slog.Info("feature_event", "event", "flag_updated", "key", f.Key,
		"admin", f.EnabledAdmin, "staff", f.EnabledStaff, "customer", f.EnabledCustomer, "salon", f.EnabledSalon)
	return f, nil
}
