package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLogout      EventType = "auth.logout"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Role registry events
	EventTypeRoleCreate             EventType = "role.create"
	EventTypeRoleUpdate             EventType = "role.update"
	EventTypeRoleDelete             EventType = "role.delete"
	EventTypeRolePermissionsReplace EventType = "role.permissions_replace"
	EventTypeRoleMenusReplace       EventType = "role.menus_replace"

	// Menu events
	EventTypeMenuCreate EventType = "menu.create"
	EventTypeMenuUpdate EventType = "menu.update"
	EventTypeMenuDelete EventType = "menu.delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being acted on
type ResourceType string

const (
	ResourceTypeRole       ResourceType = "role"
	ResourceTypePermission ResourceType = "permission"
	ResourceTypeMenu       ResourceType = "menu"
	ResourceTypeUser       ResourceType = "user"
	ResourceTypeSession    ResourceType = "session"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`

	// Target
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
