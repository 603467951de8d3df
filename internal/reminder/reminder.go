// Package reminder defines the reminder records tracked by the scheduler.
package reminder

import (
	"encoding/json"
	"errors"

	"remembear/internal/schedule"
)

// ErrNotFound is returned when a uid resolves to no reminder record.
var ErrNotFound = errors.New("reminder not found")

// Reminder is a named recurring reminder. It is immutable while tracked
// by the scheduler.
type Reminder struct {
	UID      int64
	Name     string
	Schedule schedule.Schedule
}

// MarshalJSON flattens the schedule's stored shape into the reminder
// object, matching the CLI output format.
func (r Reminder) MarshalJSON() ([]byte, error) {
	st, err := schedule.Store(r.Schedule)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		UID       int64           `json:"uid"`
		Name      string          `json:"name"`
		Schedule  json.RawMessage `json:"schedule"`
		StartWeek int             `json:"startweek"`
		Assignees json.RawMessage `json:"assignees"`
	}{
		UID:       r.UID,
		Name:      r.Name,
		Schedule:  json.RawMessage(st.WeeklyTimes),
		StartWeek: st.StartWeek,
		Assignees: json.RawMessage(st.Assignees),
	})
}
