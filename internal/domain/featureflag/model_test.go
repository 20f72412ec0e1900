package featureflag

import (
	"errors"
	"testing"
)

func TestFeatureFlag_EnabledForRole(t *testing.T) {
	ff := FeatureFlag{Key: KeySalon, EnabledAdmin: true, EnabledSalon: true}
	tests := []struct {
		role string
		want bool
	}{
		{"admin", true},
		{"staff", false},
		{"customer", false},
		{RoleSalon, true},
		{"coach", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ff.EnabledForRole(tt.role); got != tt.want {
			t.Errorf("EnabledForRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestFeatureFlag_Validate(t *testing.T) {
	if err := (&FeatureFlag{}).Validate(); !errors.Is(err, ErrMissingKey) {
		t.Errorf("empty key err = %v", err)
	}
	if err := (&FeatureFlag{Key: "loyalty_points"}).Validate(); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown key err = %v", err)
	}
	if err := (&FeatureFlag{Key: KeyPortal}).Validate(); err != nil {
		t.Errorf("known key err = %v", err)
	}
}

func TestDefaultFlags_SalonOnlyWhereExpected(t *testing.T) {
	for _, f := range DefaultFlags() {
		if f.EnabledSalon && f.Key != KeySalon {
			t.Errorf("%s enabled for salon tablets by default", f.Key)
		}
		if !f.EnabledAdmin {
			t.Errorf("%s disabled for admins by default", f.Key)
		}
	}
}
