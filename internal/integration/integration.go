// Package integration defines the notification sinks a firing reminder
// fans out to, plus the per-user settings records integrations keep in
// the store.
package integration

import (
	"context"
	"encoding/json"
	"time"

	"remembear/internal/reminder"
	"remembear/internal/user"
)

// UIDTypeUser marks an integration record as belonging to a user uid.
const UIDTypeUser = "user"

// Integration is a notification sink for triggered reminders.
//
// Notify failures are the caller's to log; an integration must not take
// down the scheduler loop, so errors carry context for logging only.
type Integration interface {
	Name() string
	Notify(ctx context.Context, rem reminder.Reminder, assignees []user.User, at time.Time) error
}

// Record is an integration's stored settings blob for a specific uid,
// e.g. a user's display color for the console integration.
type Record struct {
	UID     int64
	UIDType string
	Name    string
	Data    json.RawMessage
}

// Settings provides read access to stored integration records.
// A missing record yields a JSON null, not an error.
type Settings interface {
	IntegrationRecord(ctx context.Context, name, uidType string, uid int64) (json.RawMessage, error)
}

// NopSettings is a Settings that has no records.
type NopSettings struct{}

func (NopSettings) IntegrationRecord(context.Context, string, string, int64) (json.RawMessage, error) {
	return json.RawMessage("null"), nil
}
