package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clinic/internal/domain/appointment"
	emailDomain "clinic/internal/domain/email"
	"clinic/internal/domain/salon"
	"clinic/internal/domain/treatment"
)

// TreatmentStoreForSeed defines the store interface needed by SeedTreatments.
type TreatmentStoreForSeed interface {
	Save(ctx context.Context, t treatment.Treatment) error
	Count(ctx context.Context) (int, error)
}

// DefaultTreatments is the catalogue installed on an empty database.
var DefaultTreatments = []treatment.Treatment{
	{Slug: "beratung", Name: "Beratungsgespräch", Category: "consultation", PriceEUR: 0, DurationMinutes: 30},
	{Slug: "botox-zone-1", Name: "Faltenbehandlung 1 Zone", Category: "injectables", PriceEUR: 220, DurationMinutes: 30},
	{Slug: "botox-zone-3", Name: "Faltenbehandlung 3 Zonen", Category: "injectables", PriceEUR: 420, DurationMinutes: 45},
	{Slug: "hyaluron-lippen", Name: "Lippenunterspritzung", Category: "injectables", PriceEUR: 320, DurationMinutes: 60},
	{Slug: "skinbooster", Name: "Skinbooster", Category: "skin", PriceEUR: 280, DurationMinutes: 60},
	{Slug: "microneedling", Name: "Microneedling", Category: "skin", PriceEUR: 190, DurationMinutes: 90, AvailableAt: []string{appointment.LocationNeumarkt}},
	{Slug: "nachkontrolle", Name: "Nachkontrolle", Category: "consultation", PriceEUR: 0, DurationMinutes: 15},
}

// ExecuteSeedTreatments installs DefaultTreatments if the catalogue is empty.
// POST: the catalogue has at least the default treatments
func ExecuteSeedTreatments(ctx context.Context, store TreatmentStoreForSeed) error {
	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for i, t := range DefaultTreatments {
		t.ID = uuid.NewString()
		t.Active = true
		t.SortOrder = (i + 1) * 10
		if err := t.Validate(); err != nil {
			return err
		}
		if err := store.Save(ctx, t); err != nil {
			return err
		}
	}
	slog.Info("seed_event", "event", "treatments_seeded", "count", len(DefaultTreatments))
	return nil
}

// SalonStoreForSeed defines the store interface needed by SeedSalonAccess.
type SalonStoreForSeed interface {
	SaveAccess(ctx context.Context, a salon.Access) error
	CountAccess(ctx context.Context) (int, error)
}

// ExecuteSeedSalonAccess creates one PIN entry per location if none exist.
// PRE: pin is four digits
// POST: every location can be unlocked with pin
func ExecuteSeedSalonAccess(ctx context.Context, store SalonStoreForSeed, pin string) error {
	count, err := store.CountAccess(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, loc := range appointment.Locations {
		a := salon.Access{ID: uuid.NewString(), Location: loc, Name: "Tablet " + appointment.LocationName(loc), Active: true}
		if err := a.SetPIN(pin); err != nil {
			return err
		}
		if err := store.SaveAccess(ctx, a); err != nil {
			return err
		}
	}
	slog.Info("seed_event", "event", "salon_access_seeded", "locations", len(appointment.Locations))
	return nil
}

// TemplateStoreForSeed defines the store interface needed by SeedTemplates.
type TemplateStoreForSeed interface {
	GetBySlug(ctx context.Context, slug string) (emailDomain.Template, error)
	Save(ctx context.Context, t emailDomain.Template) error
}

var defaultTemplates = []emailDomain.Template{
	{
		Slug:         TemplateBookingConfirmation,
		Name:         "Terminbestätigung",
		Subject:      "Ihr Termin am {{date}} um {{start_time}}",
		BodyHTML:     "<p>Hallo {{first_name}},</p><p>wir bestätigen Ihren Termin <strong>{{treatment}}</strong> am {{date}} von {{start_time}} bis {{end_time}} in {{location}}.</p>",
		BodyText:     "Hallo {{first_name}}, wir bestätigen Ihren Termin {{treatment}} am {{date}} von {{start_time}} bis {{end_time}} in {{location}}.",
		TemplateType: emailDomain.TypeTransactional,
		Variables:    []string{"first_name", "treatment", "date", "start_time"},
	},
	{
		Slug:         TemplateAppointmentReminder,
		Name:         "Terminerinnerung",
		Subject:      "Erinnerung: morgen um {{start_time}}",
		BodyHTML:     "<p>Hallo {{first_name}},</p><p>wir freuen uns auf Sie morgen um {{start_time}} in {{location}} ({{treatment}}).</p>",
		BodyText:     "Hallo {{first_name}}, wir freuen uns auf Sie morgen um {{start_time}} in {{location}} ({{treatment}}).",
		TemplateType: emailDomain.TypeReminder,
		Variables:    []string{"first_name", "start_time"},
	},
	{
		Slug:         "aftercare",
		Name:         "Nachsorge",
		Subject:      "Hinweise nach Ihrer Behandlung",
		BodyHTML:     "<p>Hallo {{first_name}},</p><p>{{instructions}}</p>",
		BodyText:     "Hallo {{first_name}}, {{instructions}}",
		TemplateType: emailDomain.TypeAftercare,
		Variables:    []string{"first_name", "instructions"},
	},
}

// ExecuteSeedTemplates installs the templates the application sends by slug.
// Existing templates are left as edited.
func ExecuteSeedTemplates(ctx context.Context, store TemplateStoreForSeed, now time.Time) error {
	seeded := 0
	for _, t := range defaultTemplates {
		if _, err := store.GetBySlug(ctx, t.Slug); err == nil {
			continue
		}
		t.ID = uuid.NewString()
		t.Active = true
		t.CreatedAt = now
		t.UpdatedAt = now
		if err := t.Validate(); err != nil {
			return err
		}
		if err := store.Save(ctx, t); err != nil {
			return err
		}
		seeded++
	}
	if seeded > 0 {
		slog.Info("seed_event", "event", "templates_seeded", "count", seeded)
	}
	return nil
}
