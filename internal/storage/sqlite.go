package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"remembear/internal/integration"
	"remembear/internal/reminder"
	"remembear/internal/schedule"
	"remembear/internal/user"
	"remembear/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("database ready", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Checkpoint flushes the WAL back into the main database file.
func (s *sqliteStore) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// ---- Users ----

func (s *sqliteStore) AddUser(ctx context.Context, name string) (user.User, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users(name) VALUES(?)`, name)
	if err != nil {
		return user.User{}, err
	}
	uid, err := res.LastInsertId()
	if err != nil {
		return user.User{}, err
	}
	return user.User{UID: uid, Name: name}, nil
}

func (s *sqliteStore) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET name = ? WHERE uid = ?`, u.Name, u.UID)
	if err != nil {
		return user.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, fmt.Errorf("user %d: %w", u.UID, user.ErrNotFound)
	}
	return u, nil
}

func (s *sqliteStore) RemoveUser(ctx context.Context, uid int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE uid = ?`, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", uid, user.ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) Users(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uid, name FROM users ORDER BY uid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.UID, &u.Name); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *sqliteStore) UserByUID(ctx context.Context, uid int64) (user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx, `SELECT uid, name FROM users WHERE uid = ?`, uid).
		Scan(&u.UID, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user %d: %w", uid, user.ErrNotFound)
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// ---- Reminders ----

func (s *sqliteStore) AddReminder(ctx context.Context, name string, sched schedule.Schedule) (reminder.Reminder, error) {
	st, err := schedule.Store(sched)
	if err != nil {
		return reminder.Reminder{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(name, schedule, startweek, assignees) VALUES(?,?,?,?)`,
		name, st.WeeklyTimes, st.StartWeek, st.Assignees)
	if err != nil {
		return reminder.Reminder{}, err
	}
	uid, err := res.LastInsertId()
	if err != nil {
		return reminder.Reminder{}, err
	}
	return reminder.Reminder{UID: uid, Name: name, Schedule: sched}, nil
}

func (s *sqliteStore) UpdateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	st, err := schedule.Store(r.Schedule)
	if err != nil {
		return reminder.Reminder{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET name = ?, schedule = ?, startweek = ?, assignees = ? WHERE uid = ?`,
		r.Name, st.WeeklyTimes, st.StartWeek, st.Assignees, r.UID)
	if err != nil {
		return reminder.Reminder{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return reminder.Reminder{}, fmt.Errorf("reminder %d: %w", r.UID, reminder.ErrNotFound)
	}
	return r, nil
}

func (s *sqliteStore) RemoveReminder(ctx context.Context, uid int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE uid = ?`, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reminder %d: %w", uid, reminder.ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) Reminders(ctx context.Context) ([]reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uid, name, schedule, startweek, assignees FROM reminders ORDER BY uid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []reminder.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *sqliteStore) ReminderByUID(ctx context.Context, uid int64) (reminder.Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT uid, name, schedule, startweek, assignees FROM reminders WHERE uid = ?`, uid)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reminder.Reminder{}, fmt.Errorf("reminder %d: %w", uid, reminder.ErrNotFound)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(row scanner) (reminder.Reminder, error) {
	var (
		r  reminder.Reminder
		st schedule.Stored
	)
	if err := row.Scan(&r.UID, &r.Name, &st.WeeklyTimes, &st.StartWeek, &st.Assignees); err != nil {
		return reminder.Reminder{}, err
	}
	sched, err := st.Schedule()
	if err != nil {
		return reminder.Reminder{}, fmt.Errorf("reminder %d: %w", r.UID, err)
	}
	r.Schedule = sched
	return r, nil
}

// ---- Integration records ----

func (s *sqliteStore) SetIntegrationRecord(ctx context.Context, rec integration.Record) error {
	data := rec.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO integrations(uid, uid_type, name, data) VALUES(?,?,?,?)
		 ON CONFLICT(uid, uid_type, name) DO UPDATE SET data = excluded.data`,
		rec.UID, rec.UIDType, rec.Name, string(data))
	return err
}

// IntegrationRecord returns the stored settings blob, or a JSON null
// when no record exists.
func (s *sqliteStore) IntegrationRecord(ctx context.Context, name, uidType string, uid int64) (json.RawMessage, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM integrations WHERE uid = ? AND uid_type = ? AND name = ?`,
		uid, uidType, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return json.RawMessage("null"), nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (s *sqliteStore) RemoveIntegrationRecord(ctx context.Context, name, uidType string, uid int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM integrations WHERE uid = ? AND uid_type = ? AND name = ?`,
		uid, uidType, name)
	return err
}
