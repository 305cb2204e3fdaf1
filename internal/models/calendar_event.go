package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the local status of a calendar event.
type EventStatus string

const (
	EventConfirmed EventStatus = "confirmed"
	EventPending   EventStatus = "pending"
	EventCancelled EventStatus = "cancelled"
)

// EventType classifies calendar entries on a tour.
type EventType string

const (
	EventShow      EventType = "show"
	EventTravel    EventType = "travel"
	EventMeeting   EventType = "meeting"
	EventRehearsal EventType = "rehearsal"
	EventBreak     EventType = "break"
	EventOther     EventType = "other"
)

// ValidEventType reports whether t is a known event type.
func ValidEventType(t EventType) bool {
	switch t {
	case EventShow, EventTravel, EventMeeting, EventRehearsal, EventBreak, EventOther:
		return true
	}
	return false
}

// CalendarEvent is a tenant-scoped calendar entry, optionally mirrored to a CalDAV server.
type CalendarEvent struct {
	ID                 uuid.UUID   `json:"id"`
	OrganizationID     uuid.UUID   `json:"organization_id"`
	UserID             uuid.UUID   `json:"user_id"`
	UID                string      `json:"uid,omitempty"`
	Title              string      `json:"title"`
	Start              time.Time   `json:"start"`
	End                time.Time   `json:"end"`
	Location           string      `json:"location,omitempty"`
	Description        string      `json:"description,omitempty"`
	Status             EventStatus `json:"status"`
	Type               EventType   `json:"type"`
	ShowID             *uuid.UUID  `json:"show_id,omitempty"`
	RRule              string      `json:"rrule,omitempty"`
	SyncedFromCalendar bool        `json:"synced_from_calendar"`
	RemoteHref         string      `json:"-"` // object path on the synced CalDAV server
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
	DeletedAt          *time.Time  `json:"deleted_at,omitempty"`
}

// Occurrence is one concrete instance of a (possibly recurring) event.
type Occurrence struct {
	EventID uuid.UUID   `json:"event_id"`
	Title   string      `json:"title"`
	Start   time.Time   `json:"start"`
	End     time.Time   `json:"end"`
	Type    EventType   `json:"type"`
	Status  EventStatus `json:"status"`
}
