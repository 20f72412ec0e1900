package customer

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Sources describe how a customer record was first created.
const (
	SourceManual = "manual"
	SourceSalon  = "salon"
	SourcePortal = "portal"
	SourceImport = "import"
)

// MinSearchLength is the shortest query accepted by customer search.
const MinSearchLength = 2

// Domain errors
var (
	ErrEmptyFirstName  = errors.New("first name is required")
	ErrEmptyLastName   = errors.New("last name is required")
	ErrInvalidEmail    = errors.New("email must contain '@'")
	ErrInvalidLocation = errors.New("location must be neumarkt or kw")
	ErrInvalidBirthday = errors.New("date of birth must be YYYY-MM-DD")
	ErrQueryTooShort   = errors.New("search query must be at least 2 characters")
	ErrSelfMerge       = errors.New("cannot merge a customer into itself")
)

// Customer is a person who books treatments at the clinic.
type Customer struct {
	ID              string
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	PhoneNormalized string
	DateOfBirth     string // YYYY-MM-DD or empty
	Location        string // preferred location, may be empty
	Tags            []string
	Notes           string
	SMSOptIn        bool
	EmailOptIn      bool
	Source          string
	PortalAccountID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SearchResult is a customer with booking aggregates for list views.
type SearchResult struct {
	Customer
	TotalAppointments   int
	LastAppointmentDate string
	NextAppointmentDate string
	TotalRevenue        float64
	Similarity          float64
}

// FullName joins first and last name.
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Validate checks if the Customer has valid data.
// PRE: Customer struct is populated
// POST: Returns nil if valid, error otherwise
func (c *Customer) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" {
		return ErrEmptyFirstName
	}
	if strings.TrimSpace(c.LastName) == "" {
		return ErrEmptyLastName
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return ErrInvalidEmail
	}
	switch c.Location {
	case "", "neumarkt", "kw":
	default:
		return ErrInvalidLocation
	}
	if c.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", c.DateOfBirth); err != nil {
			return ErrInvalidBirthday
		}
	}
	return nil
}

// Normalize trims fields, lowercases the email and derives PhoneNormalized.
// POST: Email lowercased, PhoneNormalized set from Phone, Tags deduplicated
func (c *Customer) Normalize() {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	c.PhoneNormalized = NormalizePhone(c.Phone)
	c.Tags = uniqueTags(c.Tags)
}

// NormalizePhone reduces a phone number to E.164-like form, assuming Germany
// for national numbers: "0171 234 56" -> "+4917123456".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "" || digits == "+":
		return ""
	case strings.HasPrefix(digits, "+"):
		return digits
	case strings.HasPrefix(digits, "00"):
		return "+" + digits[2:]
	case strings.HasPrefix(digits, "0"):
		return "+49" + digits[1:]
	default:
		return "+49" + digits
	}
}

// Merge folds source into c: empty fields are filled, tags are unioned,
// notes are appended and opt-ins are kept if either record had them.
// PRE: source.ID != c.ID
// POST: c holds the combined record; source is unchanged
func (c *Customer) Merge(source Customer, now time.Time) error {
	if source.ID == c.ID {
		return ErrSelfMerge
	}
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&c.Email, source.Email)
	fill(&c.Phone, source.Phone)
	fill(&c.PhoneNormalized, source.PhoneNormalized)
	fill(&c.DateOfBirth, source.DateOfBirth)
	fill(&c.Location, source.Location)
	fill(&c.PortalAccountID, source.PortalAccountID)
	if source.Notes != "" {
		if c.Notes == "" {
			c.Notes = source.Notes
		} else {
			c.Notes = c.Notes + "\n---\n" + source.Notes
		}
	}
	c.Tags = uniqueTags(append(append([]string{}, c.Tags...), source.Tags...))
	c.SMSOptIn = c.SMSOptIn || source.SMSOptIn
	c.EmailOptIn = c.EmailOptIn || source.EmailOptIn
	if !source.CreatedAt.IsZero() && (c.CreatedAt.IsZero() || source.CreatedAt.Before(c.CreatedAt)) {
		c.CreatedAt = source.CreatedAt
	}
	c.UpdatedAt = now
	return nil
}

// ValidateQuery checks a free-text search query.
func ValidateQuery(q string) error {
	if len([]rune(strings.TrimSpace(q))) < MinSearchLength {
		return ErrQueryTooShort
	}
	return nil
}

// BirthdayIn returns the next occurrence of the customer's birthday on or
// after from, and whether one falls within days.
func (c *Customer) BirthdayIn(from time.Time, days int) (time.Time, bool) {
	dob, err := time.Parse("2006-01-02", c.DateOfBirth)
	if err != nil {
		return time.Time{}, false
	}
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	next := time.Date(from.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, from.Location())
	if next.Before(from) {
		next = next.AddDate(1, 0, 0)
	}
	return next, next.Before(from.AddDate(0, 0, days+1))
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
