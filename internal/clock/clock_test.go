package clock

import (
	"testing"
	"time"
)

// Wednesday 2025-06-18 14:45 in the business timezone.
var testNow = time.Date(2025, 6, 18, 14, 45, 0, 0, DefaultLocation)

func testPolicy() Policy {
	return NewFixed(testNow, DefaultLocation)
}

func TestResolveDate(t *testing.T) {
	p := testPolicy()

	cases := []struct {
		in   string
		want time.Time
	}{
		{"today", time.Date(2025, 6, 18, 0, 0, 0, 0, DefaultLocation)},
		{"Tomorrow", time.Date(2025, 6, 19, 0, 0, 0, 0, DefaultLocation)},
		{"yesterday", time.Date(2025, 6, 17, 0, 0, 0, 0, DefaultLocation)},
		{"3 days ago", time.Date(2025, 6, 15, 0, 0, 0, 0, DefaultLocation)},
		{"in 2 days", time.Date(2025, 6, 20, 0, 0, 0, 0, DefaultLocation)},
		{"start of week", time.Date(2025, 6, 16, 0, 0, 0, 0, DefaultLocation)}, // Monday
		{"start of month", time.Date(2025, 6, 1, 0, 0, 0, 0, DefaultLocation)},
		{"next friday", time.Date(2025, 6, 20, 0, 0, 0, 0, DefaultLocation)},
		{"next wednesday", time.Date(2025, 6, 25, 0, 0, 0, 0, DefaultLocation)}, // never today
		{"friday", time.Date(2025, 6, 20, 0, 0, 0, 0, DefaultLocation)},
		{"2025-07-01", time.Date(2025, 7, 1, 0, 0, 0, 0, DefaultLocation)},
		{"01/07/2025", time.Date(2025, 7, 1, 0, 0, 0, 0, DefaultLocation)},
	}

	for _, tc := range cases {
		got, err := p.ResolveDate(tc.in)
		if err != nil {
			t.Fatalf("ResolveDate(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Errorf("ResolveDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestResolveDateIdempotent(t *testing.T) {
	p := testPolicy()
	for _, in := range []string{"today", "5 days ago", "start of week", "next monday"} {
		a, err := p.ResolveDate(in)
		if err != nil {
			t.Fatalf("ResolveDate(%q): %v", in, err)
		}
		b, _ := p.ResolveDate(in)
		if !a.Equal(b) {
			t.Errorf("ResolveDate(%q) not reproducible: %v vs %v", in, a, b)
		}
	}
}

func TestResolveDateRejectsGarbage(t *testing.T) {
	p := testPolicy()
	for _, in := range []string{"", "whenever", "13/13/2025", "soonish"} {
		if _, err := p.ResolveDate(in); err == nil {
			t.Errorf("ResolveDate(%q) should fail", in)
		}
	}
}

func TestResolveTime(t *testing.T) {
	p := testPolicy()
	day := p.Today()

	cases := []struct {
		in         string
		hour, mins int
	}{
		{"3pm", 15, 0},
		{"3:30 PM", 15, 30},
		{"12am", 0, 0},
		{"12pm", 12, 0},
		{"09:15", 9, 15},
		{"15:00", 15, 0},
		{"noon", 12, 0},
	}

	for _, tc := range cases {
		got, err := p.ResolveTime(day, tc.in)
		if err != nil {
			t.Fatalf("ResolveTime(%q): %v", tc.in, err)
		}
		if got.Hour() != tc.hour || got.Minute() != tc.mins {
			t.Errorf("ResolveTime(%q) = %02d:%02d, want %02d:%02d",
				tc.in, got.Hour(), got.Minute(), tc.hour, tc.mins)
		}
	}

	if _, err := p.ResolveTime(day, "25:00"); err == nil {
		t.Error("ResolveTime(25:00) should fail")
	}
	if _, err := p.ResolveTime(day, "sometime"); err == nil {
		t.Error("ResolveTime(sometime) should fail")
	}
}

func TestRangeFor(t *testing.T) {
	p := testPolicy()

	from, to, err := p.RangeFor("today")
	if err != nil {
		t.Fatal(err)
	}
	if !from.Equal(p.Today()) || !to.Equal(p.Today().AddDate(0, 0, 1)) {
		t.Errorf("today range = [%v, %v)", from, to)
	}

	from, to, err = p.RangeFor("this week")
	if err != nil {
		t.Fatal(err)
	}
	if from.Weekday() != time.Monday {
		t.Errorf("week should start Monday, got %v", from.Weekday())
	}
	if to.Sub(from) != 7*24*time.Hour {
		t.Errorf("week range length = %v", to.Sub(from))
	}

	from, _, err = p.RangeFor("last 30 days")
	if err != nil {
		t.Fatal(err)
	}
	if !from.Equal(p.Today().AddDate(0, 0, -30)) {
		t.Errorf("last 30 days from = %v", from)
	}

	if _, _, err := p.RangeFor("all"); err == nil {
		t.Error("RangeFor(all) should report no period")
	}
}

func TestFixedOffsetZoneKeepsMinutes(t *testing.T) {
	cases := []struct {
		minutes int
		name    string
	}{
		{330, "UTC+05:30"},
		{-330, "UTC-05:30"},
		{0, "UTC+00:00"},
		{60, "UTC+01:00"},
		{345, "UTC+05:45"},
	}
	for _, tc := range cases {
		loc := FixedOffsetZone(tc.minutes)
		if loc.String() != tc.name {
			t.Errorf("FixedOffsetZone(%d) = %q, want %q", tc.minutes, loc.String(), tc.name)
		}
		_, offset := time.Date(2025, 6, 18, 12, 0, 0, 0, loc).Zone()
		if offset != tc.minutes*60 {
			t.Errorf("FixedOffsetZone(%d) offset = %ds", tc.minutes, offset)
		}
	}
}
