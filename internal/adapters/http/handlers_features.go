package web

import (
	"net/http"

	"clinic/internal/adapters/http/middleware"
	"clinic/internal/application/orchestrators"
	"clinic/internal/application/projections"
	"clinic/internal/domain/featureflag"
)

func featureDeps() projections.GetFeatureFlagsDeps {
	return projections.GetFeatureFlagsDeps{FeatureFlagStore: stores.FeatureFlagStore}
}

// requireFeature answers 403 when key is switched off for role.
// Servers built without a flag store run every feature.
func requireFeature(w http.ResponseWriter, r *http.Request, key, role string) bool {
	if stores.FeatureFlagStore == nil {
		return true
	}
	if err := projections.QueryFeatureEnabled(r.Context(), key, role, featureDeps()); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

// handleMyFeatures handles GET /api/features
// POST: Returns the keys enabled for the caller's role
func handleMyFeatures(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	flags, err := featureList(r)
	if err != nil {
		internalError(w, err)
		return
	}
	enabled := make([]string, 0, len(flags))
	for _, f := range flags {
		if f.EnabledForRole(sess.Role) {
			enabled = append(enabled, f.Key)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"features": enabled})
}

func featureList(r *http.Request) ([]featureflag.FeatureFlag, error) {
	if stores.FeatureFlagStore == nil {
		return featureflag.DefaultFlags(), nil
	}
	return projections.QueryGetFeatureFlags(r.Context(), featureDeps())
}

// handleAdminFeatures handles GET /api/admin/features
func handleAdminFeatures(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	flags, err := featureList(r)
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]featureFlagDTO, 0, len(flags))
	for _, f := range flags {
		out = append(out, toFeatureFlagDTO(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"features": out})
}

type setFeatureRequest struct {
	EnabledAdmin    bool `json:"enabled_admin"`
	EnabledStaff    bool `json:"enabled_staff"`
	EnabledCustomer bool `json:"enabled_customer"`
	EnabledSalon    bool `json:"enabled_salon"`
}

// handleAdminSetFeature handles PUT /api/admin/features/{key}
// The body replaces all four role switches.
func handleAdminSetFeature(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	if stores.FeatureFlagStore == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "feature flags not configured")
		return
	}
	var req setFeatureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	f, err := orchestrators.ExecuteSetFeatureFlag(r.Context(), orchestrators.SetFeatureFlagInput{
		Key:             r.PathValue("key"),
		EnabledAdmin:    req.EnabledAdmin,
		EnabledStaff:    req.EnabledStaff,
		EnabledCustomer: req.EnabledCustomer,
		EnabledSalon:    req.EnabledSalon,
		Actor:           actorFor(r, sess),
	}, orchestrators.SetFeatureFlagDeps{
		FeatureFlagStore: stores.FeatureFlagStore,
		AuditStore:       stores.AuditStore,
		Now:              timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeatureFlagDTO(f))
}
