package storage

import (
	"context"
	"encoding/json"
	"time"

	"remembear/internal/integration"
	"remembear/internal/reminder"
	"remembear/internal/schedule"
	"remembear/internal/user"
	"remembear/pkg/logx"
)

// Config configures the SQLite database.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Store is the persistence API used by the CLI and the daemon.
//
// Uids are assigned by the database on insert. ByUID lookups return the
// domain package's ErrNotFound when nothing matches.
type Store interface {
	AddUser(ctx context.Context, name string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	RemoveUser(ctx context.Context, uid int64) error
	Users(ctx context.Context) ([]user.User, error)
	UserByUID(ctx context.Context, uid int64) (user.User, error)

	AddReminder(ctx context.Context, name string, s schedule.Schedule) (reminder.Reminder, error)
	UpdateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error)
	RemoveReminder(ctx context.Context, uid int64) error
	Reminders(ctx context.Context) ([]reminder.Reminder, error)
	ReminderByUID(ctx context.Context, uid int64) (reminder.Reminder, error)

	SetIntegrationRecord(ctx context.Context, rec integration.Record) error
	IntegrationRecord(ctx context.Context, name, uidType string, uid int64) (json.RawMessage, error)
	RemoveIntegrationRecord(ctx context.Context, name, uidType string, uid int64) error

	Checkpoint(ctx context.Context) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
