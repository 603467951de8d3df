package schedule

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Stored is the persisted form of a Schedule: a JSON object of weekday
// name to times of day, the origin ISO week packed as year*100+week
// (2020 week 3 -> 202003), and a JSON array of assignee uids.
type Stored struct {
	WeeklyTimes string
	StartWeek   int
	Assignees   string
}

// Store converts a schedule into its persisted form.
func Store(s Schedule) (Stored, error) {
	weekly, err := EncodeWeeklyTimes(s.weeklyTimes)
	if err != nil {
		return Stored{}, err
	}
	assignees, err := json.Marshal(s.assignees)
	if err != nil {
		return Stored{}, err
	}
	year, week := s.startDate.ISOWeek()
	return Stored{
		WeeklyTimes: weekly,
		StartWeek:   ISOWeek{Year: year, Week: week}.Encode(),
		Assignees:   string(assignees),
	}, nil
}

// Schedule materializes the stored form, resolving the ISO week into a
// week-aligned start date. Invalid weeks are rejected here so the core
// never sees an unaligned origin.
func (st Stored) Schedule() (Schedule, error) {
	weekly, err := ParseWeeklyTimes(st.WeeklyTimes)
	if err != nil {
		return Schedule{}, err
	}
	var assignees []int64
	if err := json.Unmarshal([]byte(st.Assignees), &assignees); err != nil {
		return Schedule{}, fmt.Errorf("invalid assignees %q: %w", st.Assignees, err)
	}
	start, err := DecodeISOWeek(st.StartWeek).StartDate()
	if err != nil {
		return Schedule{}, err
	}
	return New(weekly, start, assignees), nil
}

// MarshalJSON serializes a schedule in its stored shape, which is also
// the CLI's output format.
func (s Schedule) MarshalJSON() ([]byte, error) {
	st, err := Store(s)
	if err != nil {
		return nil, err
	}
	year, week := s.startDate.ISOWeek()
	return json.Marshal(struct {
		Schedule  json.RawMessage `json:"schedule"`
		StartWeek int             `json:"startweek"`
		Assignees json.RawMessage `json:"assignees"`
	}{
		Schedule:  json.RawMessage(st.WeeklyTimes),
		StartWeek: ISOWeek{Year: year, Week: week}.Encode(),
		Assignees: json.RawMessage(st.Assignees),
	})
}

// ---- Weekly times encoding ----

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

var shortNames = map[time.Weekday]string{
	time.Monday: "mon", time.Tuesday: "tue", time.Wednesday: "wed",
	time.Thursday: "thu", time.Friday: "fri", time.Saturday: "sat",
	time.Sunday: "sun",
}

// ParseWeeklyTimes decodes a JSON object of weekday name to an array of
// "HH:MM:SS" strings, e.g. {"mon":["10:30:00","22:30:00"]}.
// Short and full lowercase day names are accepted. Times are sorted
// ascending to satisfy the WeeklyTimes input contract.
func ParseWeeklyTimes(raw string) (WeeklyTimes, error) {
	var m map[string][]TimeOfDay
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("invalid weekly times %q: %w", raw, err)
	}

	weekly := make(WeeklyTimes, len(m))
	for name, times := range m {
		d, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		if _, dup := weekly[d]; dup {
			return nil, fmt.Errorf("duplicate weekday %q", name)
		}
		sorted := append([]TimeOfDay(nil), times...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		weekly[d] = sorted
	}
	return weekly, nil
}

// EncodeWeeklyTimes is the inverse of ParseWeeklyTimes, emitting short
// day names. Days with no times are omitted.
func EncodeWeeklyTimes(weekly WeeklyTimes) (string, error) {
	m := make(map[string][]TimeOfDay, len(weekly))
	for d, times := range weekly {
		if len(times) == 0 {
			continue
		}
		m[shortNames[d]] = times
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ---- ISO weeks ----

// ISOWeek identifies a Monday-start calendar week.
type ISOWeek struct {
	Year int
	Week int
}

// ThisWeek returns the ISO week containing the given instant.
func ThisWeek(now time.Time) ISOWeek {
	year, week := now.UTC().ISOWeek()
	return ISOWeek{Year: year, Week: week}
}

// Encode packs the week as year*100+week.
func (w ISOWeek) Encode() int { return w.Year*100 + w.Week }

// DecodeISOWeek unpacks a year*100+week value.
func DecodeISOWeek(v int) ISOWeek {
	return ISOWeek{Year: v / 100, Week: v % 100}
}

// StartDate resolves the week to its Monday at midnight UTC. It errors
// on weeks outside 1..53 and on week 53 of a 52-week year.
func (w ISOWeek) StartDate() (time.Time, error) {
	if w.Week < 1 || w.Week > 53 {
		return time.Time{}, fmt.Errorf("invalid week %d of year %d", w.Week, w.Year)
	}

	// January 4th is always inside ISO week 1.
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	week1Monday := jan4.AddDate(0, 0, -(weekdayOrdinal(jan4.Weekday()) - 1))
	start := week1Monday.AddDate(0, 0, (w.Week-1)*7)

	if year, week := start.ISOWeek(); year != w.Year || week != w.Week {
		return time.Time{}, fmt.Errorf("invalid week %d of year %d", w.Week, w.Year)
	}
	return start, nil
}
