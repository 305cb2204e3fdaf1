package events

import (
	"github.com/google/uuid"

	"github.com/ontour-app/backend/internal/ics"
	"github.com/ontour-app/backend/internal/models"
)

// ToICS maps a stored event to its iCalendar form. The event type travels as a
// "[TYPE]" prefix on the description.
func ToICS(e models.CalendarEvent) ics.Event {
	desc := e.Description
	if e.Type != "" && e.Type != models.EventOther {
		desc = ics.Describe(string(e.Type), e.Description, 0, "")
	}
	return ics.Event{
		UID:          e.UID,
		Summary:      e.Title,
		Start:        e.Start,
		End:          e.End,
		Location:     e.Location,
		Description:  desc,
		Status:       string(e.Status),
		RRule:        e.RRule,
		LastModified: e.UpdatedAt,
	}
}

// FromICS maps a remote event into the organization's calendar.
func FromICS(orgID, userID uuid.UUID, ev ics.Event) models.CalendarEvent {
	typ, desc := ics.SplitDescription(ev.Description)
	t := models.EventType(typ)
	if !models.ValidEventType(t) {
		t, desc = models.EventOther, ev.Description
	}
	return models.CalendarEvent{
		OrganizationID:     orgID,
		UserID:             userID,
		UID:                ev.UID,
		Title:              ev.Summary,
		Start:              ev.Start,
		End:                ev.End,
		Location:           ev.Location,
		Description:        desc,
		Status:             models.EventStatus(ev.Status),
		Type:               t,
		RRule:              ev.RRule,
		SyncedFromCalendar: true,
	}
}
