// Package command implements the CLI subcommands for managing users
// and reminders. Every command prints the affected records as
// pretty-printed JSON, so output can be piped into other tooling.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"remembear/internal/reminder"
	"remembear/internal/schedule"
	"remembear/internal/storage"
	"remembear/internal/user"
)

// ErrUsage marks argument errors, so the caller can print usage help
// instead of a bare error.
var ErrUsage = errors.New("usage error")

const usage = `usage:
  remembear user add <name>
  remembear user update <uid> <name>
  remembear user remove <uid>
  remembear user list
  remembear reminder add <name> <schedule> <assignee uid>...
  remembear reminder update <uid> [-name <name>] [-schedule <schedule>] [-assignees <uid,...>]
  remembear reminder remove <uid>
  remembear reminder list
  remembear start

A schedule is a JSON object of weekday to times, for example:
  {"mon":["10:30:00","22:30:00"],"wed":["12:30:00"]}`

// Usage returns the command synopsis.
func Usage() string { return usage }

// Execute dispatches a user or reminder subcommand against the store
// and returns its printable output. The "start" command is the
// daemon's; it is not handled here.
func Execute(ctx context.Context, store storage.Store, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: missing command", ErrUsage)
	}
	switch args[0] {
	case "user":
		return executeUser(ctx, store, args[1:])
	case "reminder":
		return executeReminder(ctx, store, args[1:])
	default:
		return "", fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
}

// ---- Users ----

func executeUser(ctx context.Context, store storage.Store, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: missing user subcommand", ErrUsage)
	}
	switch args[0] {
	case "add":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: user add <name>", ErrUsage)
		}
		u, err := store.AddUser(ctx, args[1])
		if err != nil {
			return "", err
		}
		return marshal(u)
	case "update":
		if len(args) != 3 {
			return "", fmt.Errorf("%w: user update <uid> <name>", ErrUsage)
		}
		uid, err := parseUID(args[1])
		if err != nil {
			return "", err
		}
		u, err := store.UpdateUser(ctx, user.User{UID: uid, Name: args[2]})
		if err != nil {
			return "", err
		}
		return marshal(u)
	case "remove":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: user remove <uid>", ErrUsage)
		}
		uid, err := parseUID(args[1])
		if err != nil {
			return "", err
		}
		u, err := store.UserByUID(ctx, uid)
		if err != nil {
			return "", err
		}
		if err := store.RemoveUser(ctx, uid); err != nil {
			return "", err
		}
		return marshal(u)
	case "list":
		users, err := store.Users(ctx)
		if err != nil {
			return "", err
		}
		return marshal(users)
	default:
		return "", fmt.Errorf("%w: unknown user subcommand %q", ErrUsage, args[0])
	}
}

// ---- Reminders ----

func executeReminder(ctx context.Context, store storage.Store, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: missing reminder subcommand", ErrUsage)
	}
	switch args[0] {
	case "add":
		return addReminder(ctx, store, args[1:])
	case "update":
		return updateReminder(ctx, store, args[1:])
	case "remove":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: reminder remove <uid>", ErrUsage)
		}
		uid, err := parseUID(args[1])
		if err != nil {
			return "", err
		}
		r, err := store.ReminderByUID(ctx, uid)
		if err != nil {
			return "", err
		}
		if err := store.RemoveReminder(ctx, uid); err != nil {
			return "", err
		}
		return marshal(r)
	case "list":
		reminders, err := store.Reminders(ctx)
		if err != nil {
			return "", err
		}
		return marshal(reminders)
	default:
		return "", fmt.Errorf("%w: unknown reminder subcommand %q", ErrUsage, args[0])
	}
}

func addReminder(ctx context.Context, store storage.Store, args []string) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("%w: reminder add <name> <schedule> <assignee uid>...", ErrUsage)
	}
	weekly, err := schedule.ParseWeeklyTimes(args[1])
	if err != nil {
		return "", err
	}
	assignees, err := parseAssignees(args[2:])
	if err != nil {
		return "", err
	}

	// New schedules are anchored at the current week, so the rotation
	// starts with the first assignee.
	start, err := schedule.ThisWeek(time.Now()).StartDate()
	if err != nil {
		return "", err
	}

	r, err := store.AddReminder(ctx, args[0], schedule.New(weekly, start, assignees))
	if err != nil {
		return "", err
	}
	return marshal(r)
}

func updateReminder(ctx context.Context, store storage.Store, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("%w: reminder update <uid> [flags]", ErrUsage)
	}
	uid, err := parseUID(args[0])
	if err != nil {
		return "", err
	}

	fs := flag.NewFlagSet("reminder update", flag.ContinueOnError)
	name := fs.String("name", "", "updated name")
	rawSchedule := fs.String("schedule", "", "updated schedule (weekday to times JSON)")
	rawAssignees := fs.String("assignees", "", "updated assignee uids, comma separated")
	if err := fs.Parse(args[1:]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUsage, err)
	}

	existing, err := store.ReminderByUID(ctx, uid)
	if err != nil {
		return "", err
	}

	weekly := existing.Schedule.WeeklyTimes()
	if *rawSchedule != "" {
		if weekly, err = schedule.ParseWeeklyTimes(*rawSchedule); err != nil {
			return "", err
		}
	}
	assignees := existing.Schedule.Assignees()
	if *rawAssignees != "" {
		if assignees, err = parseAssignees(strings.Split(*rawAssignees, ",")); err != nil {
			return "", err
		}
	}
	updatedName := existing.Name
	if *name != "" {
		updatedName = *name
	}

	// Updates re-anchor the schedule at the current week, restarting
	// the rotation from the first assignee.
	start, err := schedule.ThisWeek(time.Now()).StartDate()
	if err != nil {
		return "", err
	}

	r, err := store.UpdateReminder(ctx, reminder.Reminder{
		UID:      uid,
		Name:     updatedName,
		Schedule: schedule.New(weekly, start, assignees),
	})
	if err != nil {
		return "", err
	}
	return marshal(r)
}

// ---- Helpers ----

func parseUID(s string) (int64, error) {
	uid, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid uid %q", ErrUsage, s)
	}
	return uid, nil
}

func parseAssignees(args []string) ([]int64, error) {
	assignees := make([]int64, 0, len(args))
	for _, arg := range args {
		uid, err := parseUID(arg)
		if err != nil {
			return nil, err
		}
		assignees = append(assignees, uid)
	}
	return assignees, nil
}

func marshal(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
