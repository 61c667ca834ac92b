// Package clock centralizes wall-clock access and relative date resolution.
//
// Every component that turns a natural-language date or time into a timestamp
// goes through one Policy value: an injected now-function plus a fixed business
// timezone. Nothing in the codebase reads time.Local.
package clock

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultLocation is the fixed business timezone used when none is configured.
// The platform standardizes on UTC+05:30 for "local" time regardless of where
// the server runs.
var DefaultLocation = time.FixedZone("UTC+05:30", 5*3600+1800)

// FixedOffsetZone builds the business timezone from a UTC offset in minutes.
// The name keeps the minutes, so UTC+05:30 never reads as "UTC+5".
func FixedOffsetZone(offsetMinutes int) *time.Location {
	sign := "+"
	m := offsetMinutes
	if m < 0 {
		sign = "-"
		m = -m
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, m/60, m%60)
	return time.FixedZone(name, offsetMinutes*60)
}

// Policy resolves relative date and time expressions against an injected
// reference clock in a fixed business timezone.
type Policy struct {
	now func() time.Time
	loc *time.Location
}

// New returns a Policy backed by the real clock.
func New(loc *time.Location) Policy {
	if loc == nil {
		loc = DefaultLocation
	}
	return Policy{now: time.Now, loc: loc}
}

// NewFixed returns a Policy whose clock always reads t. Used by tests and by
// the transcript extractor, which resolves dates against a call's recorded
// date rather than extraction-time now.
func NewFixed(t time.Time, loc *time.Location) Policy {
	if loc == nil {
		loc = DefaultLocation
	}
	return Policy{now: func() time.Time { return t }, loc: loc}
}

// Now returns the current time in the business timezone.
func (p Policy) Now() time.Time {
	return p.now().In(p.loc)
}

// Location returns the business timezone.
func (p Policy) Location() *time.Location { return p.loc }

// Today returns midnight of the current day in the business timezone.
func (p Policy) Today() time.Time {
	n := p.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, p.loc)
}

var (
	daysAgoRe    = regexp.MustCompile(`^(\d+)\s+days?\s+ago$`)
	inDaysRe     = regexp.MustCompile(`^in\s+(\d+)\s+days?$`)
	nextTokenRe  = regexp.MustCompile(`^next\s+(\w+)$`)
	lastNDaysRe  = regexp.MustCompile(`^last\s+(\d+)\s+days?$`)
	clock12Re    = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)$`)
	clock24Re    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	dayFirstRe   = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	weekdayNames = map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
)

// ResolveDate turns a natural-language date expression into midnight of the
// resolved day. Supported forms: today, tomorrow, yesterday, "N days ago",
// "in N days", start of week (Monday), start of month, "next <weekday>", bare
// weekday names (next occurrence strictly after today), ISO dates, and
// day-first numeric dates. Resolution is deterministic for a fixed now.
func (p Policy) ResolveDate(s string) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date expression")
	}

	today := p.Today()

	switch s {
	case "today", "now":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "start of week", "this week":
		return p.StartOfWeek(), nil
	case "start of month", "this month":
		return p.StartOfMonth(), nil
	case "next week":
		return p.StartOfWeek().AddDate(0, 0, 7), nil
	case "next month":
		return p.StartOfMonth().AddDate(0, 1, 0), nil
	}

	if m := daysAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -n), nil
	}
	if m := inDaysRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, n), nil
	}
	if m := nextTokenRe.FindStringSubmatch(s); m != nil {
		if wd, ok := weekdayNames[m[1]]; ok {
			return p.nextWeekday(wd), nil
		}
	}
	if wd, ok := weekdayNames[s]; ok {
		return p.nextWeekday(wd), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", s, p.loc); err == nil {
		return t, nil
	}
	if m := dayFirstRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.loc), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date expression %q", s)
}

// ResolveTime applies a time-of-day expression to the given day. Supported
// forms: 12-hour with AM/PM ("3pm", "3:30 PM"), 24-hour HH:MM, noon,
// midnight.
func (p Policy) ResolveTime(day time.Time, s string) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}

	base := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, p.loc)

	switch s {
	case "noon", "midday":
		return base.Add(12 * time.Hour), nil
	case "midnight":
		return base, nil
	}

	if m := clock12Re.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return time.Time{}, fmt.Errorf("invalid time %q", s)
		}
		if hour == 12 {
			hour = 0
		}
		if m[3] == "pm" {
			hour += 12
		}
		return base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), nil
	}

	if m := clock24Re.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return time.Time{}, fmt.Errorf("invalid time %q", s)
		}
		return base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time expression %q", s)
}

// StartOfWeek returns midnight of the current week's Monday.
func (p Policy) StartOfWeek() time.Time {
	today := p.Today()
	offset := (int(today.Weekday()) + 6) % 7 // Monday = 0
	return today.AddDate(0, 0, -offset)
}

// StartOfMonth returns midnight of the first of the current month.
func (p Policy) StartOfMonth() time.Time {
	n := p.Now()
	return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, p.loc)
}

func (p Policy) nextWeekday(wd time.Weekday) time.Time {
	today := p.Today()
	days := (int(wd) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days)
}

// RangeFor resolves a period token into a half-open [from, to) interval for
// query filters. Supported: today, yesterday, this week, last week, this
// month, last month, "last N days".
func (p Policy) RangeFor(token string) (time.Time, time.Time, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	today := p.Today()

	switch token {
	case "", "all", "all time":
		return time.Time{}, time.Time{}, fmt.Errorf("no period token")
	case "today":
		return today, today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), today, nil
	case "this week":
		start := p.StartOfWeek()
		return start, start.AddDate(0, 0, 7), nil
	case "last week":
		start := p.StartOfWeek().AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 7), nil
	case "this month":
		start := p.StartOfMonth()
		return start, start.AddDate(0, 1, 0), nil
	case "last month":
		start := p.StartOfMonth().AddDate(0, -1, 0)
		return start, start.AddDate(0, 1, 0), nil
	}

	if m := lastNDaysRe.FindStringSubmatch(token); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -n), today.AddDate(0, 0, 1), nil
	}

	return time.Time{}, time.Time{}, fmt.Errorf("unrecognized period %q", token)
}
