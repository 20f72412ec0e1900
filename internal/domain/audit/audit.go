package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category groups audit events by the area of the clinic they touch.
type Category string

const (
	CategoryAccount     Category = "account"
	CategorySecurity    Category = "security"
	CategoryBooking     Category = "booking"
	CategoryCustomer    Category = "customer"
	CategoryPatientData Category = "patient_data"
	CategoryMarketing   Category = "marketing"
	CategorySystem      Category = "system"
)

// Action represents the action that occurred.
type Action string

const (
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionCancel      Action = "cancel"
	ActionMerge       Action = "merge"
	ActionLogin       Action = "login"
	ActionLoginFailed Action = "login_failed"
	ActionLogout      Action = "logout"
	ActionUnlock      Action = "unlock"
	ActionLock        Action = "lock"
	ActionLink        Action = "link"
	ActionUpload      Action = "upload"
	ActionDownload    Action = "download"
	ActionSend        Action = "send"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit log entry.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Category     Category  `json:"category"`
	Action       Action    `json:"action"`
	Severity     Severity  `json:"severity"`
	ActorID      string    `json:"actor_id"`
	ActorRole    string    `json:"actor_role"`
	Location     string    `json:"location,omitempty"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Description  string    `json:"description"`
	IPAddress    string    `json:"ip_address"`
}

// NewEvent creates an info-level audit event stamped with now.
// PRE: actorID and action are non-empty
func NewEvent(now time.Time, actorID, actorRole string, category Category, action Action) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: now,
		Category:  category,
		Action:    action,
		Severity:  SeverityInfo,
		ActorID:   actorID,
		ActorRole: actorRole,
	}
}

// WithSeverity sets the severity level.
func (e Event) WithSeverity(s Severity) Event {
	e.Severity = s
	return e
}

// WithResource sets resource information.
func (e Event) WithResource(resourceType, resourceID string) Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithDescription sets the event description.
func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}

// WithLocation scopes the event to a clinic location.
func (e Event) WithLocation(loc string) Event {
	e.Location = loc
	return e
}

// WithIP records the client address.
func (e Event) WithIP(ip string) Event {
	e.IPAddress = ip
	return e
}
