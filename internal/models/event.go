package models

import "time"

// EventType is the closed set of event categories clients may report.
type EventType string

const (
	EventTypeError       EventType = "error"
	EventTypePerformance EventType = "performance"
	EventTypeInteraction EventType = "interaction"
	EventTypeCustom      EventType = "custom"
)

// EventTypes returns all event types in a stable order.
func EventTypes() []EventType {
	return []EventType{EventTypeError, EventTypePerformance, EventTypeInteraction, EventTypeCustom}
}

// ParseEventType validates a string against the closed enum.
func ParseEventType(s string) (EventType, bool) {
	switch EventType(s) {
	case EventTypeError, EventTypePerformance, EventTypeInteraction, EventTypeCustom:
		return EventType(s), true
	}
	return "", false
}

// Event is a single reported occurrence attributed to a project.
// Events are immutable once stored; id and received_at are server-assigned.
type Event struct {
	ID          int64          `json:"id"`
	ProjectID   int64          `json:"project_id"`
	EventType   EventType      `json:"event_type"`
	Name        string         `json:"name"`
	Message     *string        `json:"message"`
	Payload     map[string]any `json:"payload"`
	UserID      *string        `json:"user_id"`
	SessionID   *string        `json:"session_id"`
	PageURL     *string        `json:"page_url"`
	UserAgent   *string        `json:"user_agent"`
	Environment *string        `json:"environment"`
	Release     *string        `json:"release"`
	OccurredAt  time.Time      `json:"occurred_at"`
	ReceivedAt  time.Time      `json:"received_at"`
}

// EventCreate is the POST /api/events payload.
// occurred_at is optional and defaults to ingestion time.
type EventCreate struct {
	EventType   string         `json:"event_type" binding:"required"`
	Name        string         `json:"name" binding:"required"`
	Message     *string        `json:"message"`
	Payload     map[string]any `json:"payload"`
	UserID      *string        `json:"user_id"`
	SessionID   *string        `json:"session_id"`
	PageURL     *string        `json:"page_url"`
	UserAgent   *string        `json:"user_agent"`
	Environment *string        `json:"environment"`
	Release     *string        `json:"release"`
	OccurredAt  *time.Time     `json:"occurred_at"`
}

// EventQueryParams are the optional listing filters plus pagination.
// Nil fields contribute no filter.
type EventQueryParams struct {
	EventType    *EventType
	UserID       *string
	SessionID    *string
	Environment  *string
	Release      *string
	Search       *string
	OccurredFrom *time.Time
	OccurredTo   *time.Time
	Page         int
	PageSize     int
}

// EventPage is one page of listing results. Total counts every matching
// event, not just the returned page.
type EventPage struct {
	Items    []Event `json:"items"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// Summary holds project-level aggregate statistics for a time range.
// CountsByType omits types with no matching events.
type Summary struct {
	TotalEvents  int64            `json:"total_events"`
	UniqueUsers  int64            `json:"unique_users"`
	LatestEvent  *time.Time       `json:"latest_event"`
	CountsByType map[string]int64 `json:"counts_by_type"`
}

// TimeseriesBucket is the per-bucket aggregate for the timeseries endpoint.
// Counts always carries every event type, with zeroes for types absent from
// the bucket.
type TimeseriesBucket struct {
	Bucket string           `json:"bucket"`
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}
