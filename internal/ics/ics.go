// Package ics converts between calendar events and iCalendar (RFC 5545) text.
package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

const (
	// ProductID is the PRODID written on every calendar we emit.
	ProductID = "-//On Tour App//Calendar Sync//EN"
	// DateFormat is the UTC date-time form used for DTSTART, DTEND and DTSTAMP.
	DateFormat = "20060102T150405Z"
)

var ErrInvalidEvent = errors.New("invalid event")

// Event is the subset of a VEVENT the app reads and writes.
// Status holds the local vocabulary (confirmed, pending, cancelled).
type Event struct {
	UID          string
	Summary      string
	Start        time.Time
	End          time.Time
	AllDay       bool
	Location     string
	Description  string
	Status       string
	RRule        string
	Sequence     int
	LastModified time.Time
}

// FormatDate renders t as YYYYMMDDTHHMMSSZ in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// ParseDate parses YYYYMMDDTHHMMSSZ, YYYYMMDDTHHMMSS (treated as UTC) or YYYYMMDD.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateFormat, "20060102T150405", "20060102"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// MapStatus converts a local status to its iCalendar STATUS value.
func MapStatus(local string) ical.ObjectStatus {
	switch strings.ToLower(local) {
	case "pending":
		return ical.ObjectStatusTentative
	case "cancelled":
		return ical.ObjectStatusCancelled
	default:
		return ical.ObjectStatusConfirmed
	}
}

// ParseStatus converts an iCalendar STATUS value to the local vocabulary.
func ParseStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case string(ical.ObjectStatusTentative):
		return "pending"
	case string(ical.ObjectStatusCancelled):
		return "cancelled"
	default:
		return "confirmed"
	}
}

// Describe builds the exported DESCRIPTION: "[TYPE] text" plus a fee line when fee > 0.
func Describe(eventType, description string, fee float64, currency string) string {
	out := description
	if eventType != "" {
		out = "[" + strings.ToUpper(eventType) + "] " + description
	}
	if fee > 0 {
		if out != "" {
			out += "\n"
		}
		out += "Fee: " + currencySymbol(currency) + strconv.FormatFloat(fee, 'f', -1, 64)
	}
	return out
}

// SplitDescription reverses Describe's type prefix: "[SHOW] x" yields ("show", "x").
func SplitDescription(description string) (eventType, text string) {
	if strings.HasPrefix(description, "[") {
		if end := strings.Index(description, "] "); end > 1 {
			return strings.ToLower(description[1:end]), description[end+2:]
		}
	}
	return "", description
}

// LocationOf prefers "city, country" when both are known.
func LocationOf(location, city, country string) string {
	if city != "" && country != "" {
		return city + ", " + country
	}
	return location
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "", "EUR":
		return "€"
	case "USD":
		return "$"
	case "GBP":
		return "£"
	default:
		return strings.ToUpper(code) + " "
	}
}

// NewUID returns a fresh event UID.
func NewUID() string {
	return uuid.NewString() + "@ontour.app"
}

func addEvent(cal *ical.Calendar, ev Event, stamp time.Time) error {
	if strings.TrimSpace(ev.Summary) == "" {
		return fmt.Errorf("%w: summary is required", ErrInvalidEvent)
	}
	if ev.Start.IsZero() || ev.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidEvent)
	}
	if ev.End.Before(ev.Start) {
		return fmt.Errorf("%w: end before start", ErrInvalidEvent)
	}
	uid := ev.UID
	if uid == "" {
		uid = NewUID()
	}
	vev := cal.AddEvent(uid)
	vev.SetDtStampTime(stamp)
	if ev.AllDay {
		vev.SetAllDayStartAt(ev.Start)
		vev.SetAllDayEndAt(ev.End)
	} else {
		vev.SetStartAt(ev.Start)
		vev.SetEndAt(ev.End)
	}
	vev.SetSummary(ev.Summary)
	if ev.Location != "" {
		vev.SetLocation(ev.Location)
	}
	if ev.Description != "" {
		vev.SetDescription(ev.Description)
	}
	vev.SetStatus(MapStatus(ev.Status))
	vev.SetTimeTransparency(ical.TransparencyOpaque)
	vev.SetSequence(ev.Sequence)
	if !ev.LastModified.IsZero() {
		vev.SetLastModifiedAt(ev.LastModified)
	}
	if ev.RRule != "" {
		vev.AddRrule(strings.TrimPrefix(ev.RRule, "RRULE:"))
	}
	return nil
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendarFor("On Tour App")
	cal.SetProductId(ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	return cal
}

// Format renders a single-event VCALENDAR. stamp becomes DTSTAMP.
func Format(ev Event, stamp time.Time) (string, error) {
	cal := newCalendar()
	if err := addEvent(cal, ev, stamp); err != nil {
		return "", err
	}
	return cal.Serialize(), nil
}

// FormatCalendar renders many events into one VCALENDAR, e.g. for export or backup.
// Events that fail validation are skipped and reported.
func FormatCalendar(name string, events []Event, stamp time.Time) (string, []error) {
	cal := newCalendar()
	if name != "" {
		cal.SetXWRCalName(name)
	}
	var errs []error
	for _, ev := range events {
		if err := addEvent(cal, ev, stamp); err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", ev.UID, err))
		}
	}
	return cal.Serialize(), errs
}

// Parse reads every VEVENT in text. A VEVENT without SUMMARY, DTSTART or DTEND
// fails the whole parse; a missing UID is generated.
func Parse(text string) ([]Event, error) {
	cal, err := ical.ParseCalendar(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}
	vevents := cal.Events()
	if len(vevents) == 0 {
		return nil, fmt.Errorf("%w: no VEVENT", ErrInvalidEvent)
	}
	out := make([]Event, 0, len(vevents))
	for _, vev := range vevents {
		ev, err := fromVEvent(vev)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func propValue(vev *ical.VEvent, p ical.ComponentProperty) string {
	if prop := vev.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func fromVEvent(vev *ical.VEvent) (Event, error) {
	ev := Event{
		UID:         propValue(vev, ical.ComponentPropertyUniqueId),
		Summary:     propValue(vev, ical.ComponentPropertySummary),
		Location:    propValue(vev, ical.ComponentPropertyLocation),
		Description: propValue(vev, ical.ComponentPropertyDescription),
		Status:      ParseStatus(propValue(vev, ical.ComponentPropertyStatus)),
		RRule:       propValue(vev, ical.ComponentPropertyRrule),
	}
	if ev.UID == "" {
		ev.UID = NewUID()
	}
	if ev.Summary == "" {
		return Event{}, fmt.Errorf("%w: %s has no SUMMARY", ErrInvalidEvent, ev.UID)
	}
	if seq := propValue(vev, ical.ComponentPropertySequence); seq != "" {
		ev.Sequence, _ = strconv.Atoi(seq)
	}

	start, allDay, err := eventTime(vev, ical.ComponentPropertyDtStart)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s DTSTART: %v", ErrInvalidEvent, ev.UID, err)
	}
	end, _, err := eventTime(vev, ical.ComponentPropertyDtEnd)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s DTEND: %v", ErrInvalidEvent, ev.UID, err)
	}
	ev.Start, ev.End, ev.AllDay = start, end, allDay
	if lm, err := vev.GetLastModifiedAt(); err == nil {
		ev.LastModified = lm.UTC()
	}
	return ev, nil
}

func eventTime(vev *ical.VEvent, p ical.ComponentProperty) (time.Time, bool, error) {
	prop := vev.GetProperty(p)
	if prop == nil {
		return time.Time{}, false, errors.New("missing")
	}
	if vals, ok := prop.ICalParameters["VALUE"]; ok && len(vals) == 1 && strings.EqualFold(vals[0], "DATE") {
		t, err := ParseDate(prop.Value)
		return t, true, err
	}
	var (
		t   time.Time
		err error
	)
	if p == ical.ComponentPropertyDtStart {
		t, err = vev.GetStartAt()
	} else {
		t, err = vev.GetEndAt()
	}
	if err != nil {
		t, err = ParseDate(prop.Value)
		return t, err == nil && len(strings.TrimSpace(prop.Value)) == 8, err
	}
	return t.UTC(), false, nil
}
