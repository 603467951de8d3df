// Package schedule implements a stateless weekly schedule with a
// rotating assignee list.
//
// The assignee on duty is recomputed from elapsed time on every call, so
// there is no persisted rotation counter to drift after a crash/restore.
package schedule

import (
	"math"
	"time"
)

const (
	secondsPerDay = 24 * 60 * 60
	day           = 24 * time.Hour
	week          = 7 * day
)

// WeeklyTimes maps weekdays to the times of day a reminder fires.
//
// Input contract: the times for a weekday must be sorted ascending.
// This is not enforced here; unsorted input silently corrupts rotation
// counting and next-occurrence computation. An empty map is valid and
// means "never scheduled".
type WeeklyTimes map[time.Weekday][]TimeOfDay

// Schedule is an immutable weekly schedule anchored at the Monday
// midnight (UTC) of its origin ISO week.
//
// A start date that is not aligned to a week boundary is accepted but
// shifts the rotation's phase.
type Schedule struct {
	weeklyTimes WeeklyTimes
	startDate   time.Time
	assignees   []int64
}

// New creates a schedule. The caller is responsible for passing a
// week-aligned start date and sorted time lists; see WeeklyTimes.
func New(weeklyTimes WeeklyTimes, startDate time.Time, assignees []int64) Schedule {
	return Schedule{
		weeklyTimes: weeklyTimes,
		startDate:   startDate.UTC(),
		assignees:   assignees,
	}
}

func (s Schedule) StartDate() time.Time { return s.startDate }

func (s Schedule) Assignees() []int64 {
	return append([]int64(nil), s.assignees...)
}

func (s Schedule) WeeklyTimes() WeeklyTimes {
	out := make(WeeklyTimes, len(s.weeklyTimes))
	for d, times := range s.weeklyTimes {
		out[d] = append([]TimeOfDay(nil), times...)
	}
	return out
}

// Assignee determines which assignee is on duty at the given instant.
//
// The rotation index is the 1-based count of occurrences from the start
// of the schedule through now, so the N-th occurrence is assigned to
// assignees[(N-1) mod len]. Instants before the start date saturate the
// elapsed week count to its maximum rather than erroring.
//
// Assignee must not be called on a schedule with no assignees.
func (s Schedule) Assignee(now time.Time) int64 {
	now = now.UTC()

	elapsedWeeks := s.elapsedWeeks(now)

	var timesInFullWeek uint64
	for _, times := range s.weeklyTimes {
		timesInFullWeek += uint64(len(times))
	}

	// Occurrences already elapsed within now's week.
	nowOrdinal := weekdayOrdinal(now.Weekday())
	nowTime := At(now)
	var timesThisWeek uint64
	for d, times := range s.weeklyTimes {
		switch ordinal := weekdayOrdinal(d); {
		case ordinal < nowOrdinal:
			timesThisWeek += uint64(len(times))
		case ordinal == nowOrdinal:
			for _, t := range times {
				if t > nowTime {
					break
				}
				timesThisWeek++
			}
		}
	}

	// Subtract 1 to convert the occurrence count into an index.
	index := satSub(satAdd(satMul(elapsedWeeks, timesInFullWeek), timesThisWeek), 1)

	return s.assignees[index%uint64(len(s.assignees))]
}

// NextDuration computes the non-negative duration from now until the
// next scheduled time of day, wrapping into the following week when
// nothing remains in this one. It reports false iff no weekday has any
// scheduled time.
func (s Schedule) NextDuration(now time.Time) (time.Duration, bool) {
	now = now.UTC()
	nowOrdinal := weekdayOrdinal(now.Weekday())
	nowTime := At(now)

	// First qualifying weekday at or after now within this week.
	for ordinal := nowOrdinal; ordinal <= 7; ordinal++ {
		times := s.weeklyTimes[weekdayFromOrdinal(ordinal)]
		if len(times) == 0 {
			continue
		}
		if ordinal > nowOrdinal {
			return time.Duration(ordinal-nowOrdinal)*day + times[0].Duration() - nowTime.Duration(), true
		}
		for _, t := range times {
			if t >= nowTime {
				return t.Duration() - nowTime.Duration(), true
			}
		}
	}

	// Nothing left this week: wrap to the earliest scheduled weekday.
	first := 0
	for ordinal := 1; ordinal <= 7; ordinal++ {
		if len(s.weeklyTimes[weekdayFromOrdinal(ordinal)]) > 0 {
			first = ordinal
			break
		}
	}
	if first == 0 {
		return 0, false
	}

	times := s.weeklyTimes[weekdayFromOrdinal(first)]
	if first == nowOrdinal {
		return week - (nowTime.Duration() - times[0].Duration()), true
	}
	days := (first - nowOrdinal + 7) % 7
	return time.Duration(days)*day + times[0].Duration() - nowTime.Duration(), true
}

// elapsedWeeks counts whole weeks between the start date and now,
// comparing dates only. Negative differences (now before the start)
// clamp to the maximum representable count.
func (s Schedule) elapsedWeeks(now time.Time) uint64 {
	startDay := midnight(s.startDate).Unix() / secondsPerDay
	nowDay := midnight(now).Unix() / secondsPerDay
	weeks := floorDiv(nowDay-startDay, 7)
	if weeks < 0 {
		return math.MaxUint64
	}
	return uint64(weeks)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekdayOrdinal numbers weekdays Monday=1 through Sunday=7.
func weekdayOrdinal(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

func weekdayFromOrdinal(ordinal int) time.Weekday {
	if ordinal == 7 {
		return time.Sunday
	}
	return time.Weekday(ordinal)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func satMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func satSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
