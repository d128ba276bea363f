package notifications

import "time"

// Notification is a per-user message persisted until the user deletes it.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	IsRead    bool                   `json:"isRead"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Well-known notification types. The type field is free-form; these constants
// cover the events the platform itself emits.
const (
	TypeQuoteCreated       = "QUOTE_CREATED"
	TypeQuoteStatusChanged = "QUOTE_STATUS_CHANGED"
	TypeTicketCreated      = "TICKET_CREATED"
	TypeTicketUpdated      = "TICKET_UPDATED"
	TypeTicketComment      = "TICKET_COMMENT"
	TypeProjectUpdate      = "PROJECT_UPDATE"
	TypeSystem             = "SYSTEM"
)

// Result reports the outcome of a single-notification operation. Store
// failures surface here as Success=false with a message; they are never
// returned as Go errors.
type Result struct {
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// ListMeta carries paging information alongside a notification page.
type ListMeta struct {
	Total   int  `json:"total"`
	Unread  int  `json:"unread"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// ListResult is the outcome of a list operation.
type ListResult struct {
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	Notifications []Notification `json:"notifications"`
	Meta          ListMeta       `json:"meta"`
}

// CountResult is the outcome of a count operation.
type CountResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Count   int    `json:"count"`
}

// MutationResult is the outcome of a bulk mutation, reporting affected rows.
type MutationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Updated int    `json:"updated"`
}

// ListOptions controls paging and filtering for List. Type, when non-empty,
// restricts the page to notifications of that exact type.
type ListOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
	Type       string
}

// DefaultListLimit caps a page when the caller passes a non-positive limit.
const DefaultListLimit = 20

// MaxListLimit is the hard ceiling on page size.
const MaxListLimit = 100
