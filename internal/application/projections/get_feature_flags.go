package projections

import (
	"context"
	"database/sql"
	"errors"

	"clinic/internal/domain/featureflag"
)

// FeatureFlagReader interface for feature flag queries.
type FeatureFlagReader interface {
	GetByKey(ctx context.Context, key string) (featureflag.FeatureFlag, error)
	List(ctx context.Context) ([]featureflag.FeatureFlag, error)
}

// GetFeatureFlagsDeps holds dependencies for the feature flag queries.
type GetFeatureFlagsDeps struct {
	FeatureFlagStore FeatureFlagReader
}

// QueryGetFeatureFlags lists every known flag, falling back to the built-in
// setting for keys that were never stored. Stored rows for keys the code no
// longer knows are omitted.
func QueryGetFeatureFlags(ctx context.Context, deps GetFeatureFlagsDeps) ([]featureflag.FeatureFlag, error) {
	stored, err := deps.FeatureFlagStore.List(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]featureflag.FeatureFlag, len(stored))
	for _, f := range stored {
		byKey[f.Key] = f
	}
	defaults := featureflag.DefaultFlags()
	out := make([]featureflag.FeatureFlag, 0, len(defaults))
	for _, def := range defaults {
		if f, ok := byKey[def.Key]; ok {
			out = append(out, f)
			continue
		}
		out = append(out, def)
	}
	return out, nil
}

// QueryFeatureEnabled reports whether key is switched on for role.
// PRE: key is one of the featureflag.Key constants
// POST: Returns featureflag.ErrDisabled when the flag is off for role
func QueryFeatureEnabled(ctx context.Context, key, role string, deps GetFeatureFlagsDeps) error {
	f, err := deps.FeatureFlagStore.GetByKey(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		def, ok := featureflag.Default(key)
		if !ok {
			return featureflag.ErrUnknownKey
		}
		f, err = def, nil
	}
	if err != nil {
		return err
	}
	if !f.EnabledForRole(role) {
		return featureflag.ErrDisabled
	}
	return nil
}
