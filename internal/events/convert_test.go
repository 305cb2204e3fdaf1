package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ontour-app/backend/internal/ics"
	"github.com/ontour-app/backend/internal/models"
)

func TestToICSAndBack(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	e := models.CalendarEvent{
		UID: "abc@ontour.app", Title: "Flight to Oslo", Type: models.EventTravel, Status: models.EventPending,
		Description: "SK 1455", Start: time.Date(2025, 5, 1, 7, 0, 0, 0, time.UTC),
		End: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	ev := ToICS(e)
	assert.Equal(t, "[TRAVEL] SK 1455", ev.Description)
	assert.Equal(t, "pending", ev.Status)

	back := FromICS(orgID, userID, ev)
	assert.Equal(t, models.EventTravel, back.Type)
	assert.Equal(t, "SK 1455", back.Description)
	assert.Equal(t, orgID, back.OrganizationID)
	assert.True(t, back.SyncedFromCalendar)
}

func TestFromICSUnknownPrefix(t *testing.T) {
	back := FromICS(uuid.New(), uuid.New(), ics.Event{Summary: "x", Description: "[PARTY] late", Status: "confirmed"})
	assert.Equal(t, models.EventOther, back.Type)
	assert.Equal(t, "[PARTY] late", back.Description)
}
