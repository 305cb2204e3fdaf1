package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences caps expansion of a single recurring event.
const DefaultMaxOccurrences = 1000

// Span is one concrete occurrence of an event.
type Span struct {
	Start time.Time
	End   time.Time
}

// Expand returns the occurrences of an event starting at start and lasting
// until end that overlap [from, to). A non-recurring event yields at most one
// span. truncated is true when the limit stopped expansion early.
func Expand(start, end time.Time, rule string, from, to time.Time, limit int) (spans []Span, truncated bool, err error) {
	if to.Before(from) {
		return nil, false, errors.New("expand: range end before range start")
	}
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}
	dur := end.Sub(start)
	overlaps := func(s time.Time) bool {
		return s.Before(to) && s.Add(dur).After(from)
	}

	rule = strings.TrimSpace(rule)
	if rule == "" {
		if overlaps(start) {
			spans = append(spans, Span{Start: start, End: end})
		}
		return spans, false, nil
	}

	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, false, fmt.Errorf("expand: parse rrule: %w", err)
	}
	opt.Dtstart = start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, false, fmt.Errorf("expand: build rrule: %w", err)
	}

	next := r.Iterator()
	for {
		s, ok := next()
		if !ok || !s.Before(to) {
			return spans, false, nil
		}
		if !overlaps(s) {
			continue
		}
		if len(spans) == limit {
			return spans, true, nil
		}
		spans = append(spans, Span{Start: s, End: s.Add(dur)})
	}
}

// ValidateRule reports whether rule is a parseable RRULE value. Empty is valid.
func ValidateRule(rule string) error {
	if strings.TrimSpace(rule) == "" {
		return nil
	}
	if _, err := rrule.StrToROption(rule); err != nil {
		return fmt.Errorf("invalid rrule: %w", err)
	}
	return nil
}
