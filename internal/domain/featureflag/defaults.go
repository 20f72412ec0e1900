package featureflag

// Known feature keys.
const (
	KeySalon        = "salon"
	KeyPortal       = "portal"
	KeyCampaigns    = "campaigns"
	KeyPatientFiles = "patient_files"
)

// DefaultFlags returns the known feature flags and their default settings.
// Append here when a new product area gets a switch.
func DefaultFlags() []FeatureFlag {
	return []FeatureFlag{
		{
			Key:          KeySalon,
			Description:  "Salon tablet (PIN unlock, walk-in booking, day calendar)",
			EnabledAdmin: true,
			EnabledStaff: true,
			EnabledSalon: true,
		},
		{
			Key:             KeyPortal,
			Description:     "Customer portal (registration, linking, own appointments)",
			EnabledAdmin:    true,
			EnabledStaff:    true,
			EnabledCustomer: true,
		},
		{
			Key:          KeyCampaigns,
			Description:  "Email campaigns",
			EnabledAdmin: true,
		},
		{
			Key:          KeyPatientFiles,
			Description:  "Patient files (photos, consent forms, lab results)",
			EnabledAdmin: true,
			EnabledStaff: true,
		},
	}
}

// Default returns the built-in setting for key.
func Default(key string) (FeatureFlag, bool) {
	for _, f := range DefaultFlags() {
		if f.Key == key {
			return f, true
		}
	}
	return FeatureFlag{}, false
}
