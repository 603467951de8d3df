// Package scheduler runs the real-time delivery loop for scheduled
// reminders.
//
// One timer queue holds the next due instant per active reminder; a
// side index keeps the reminder state. The loop waits for the earliest
// instant, fans the firing out to the configured integrations, re-arms
// the reminder for its next occurrence and repeats until no occurrences
// remain anywhere.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"remembear/internal/integration"
	"remembear/internal/reminder"
	"remembear/internal/user"
	"remembear/pkg/logx"
)

// ErrInconsistent reports a fired uid with no matching reminder state.
// It is a programming-invariant breach, never expected in operation.
var ErrInconsistent = errors.New("scheduler: fired reminder missing from the active set")

// UserDirectory resolves assignee identities at firing time.
type UserDirectory interface {
	UserByUID(ctx context.Context, uid int64) (user.User, error)
}

// scheduled pairs a tracked reminder with its queue entry. A nil entry
// means the reminder is dormant: still indexed, but with no further
// occurrences to fire.
type scheduled struct {
	reminder reminder.Reminder
	entry    *entry
}

// Scheduler owns the reminder index and the timer queue for its
// lifetime; neither is touched from outside the loop.
type Scheduler struct {
	log   logx.Logger
	users UserDirectory
	sinks []integration.Integration

	reminders map[int64]*scheduled
	queue     timerQueue
}

// New builds a scheduler from a snapshot of reminders. Reminders whose
// schedule yields no occurrence are tracked but never queued.
func New(reminders []reminder.Reminder, users UserDirectory, sinks []integration.Integration, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		log:       log,
		users:     users,
		sinks:     sinks,
		reminders: make(map[int64]*scheduled, len(reminders)),
	}

	now := time.Now()
	for _, rem := range reminders {
		sc := &scheduled{reminder: rem}
		if d, ok := rem.Schedule.NextDuration(now); ok {
			sc.entry = s.queue.push(rem.UID, now.Add(d))
		} else {
			log.Debug("reminder has no occurrences", logx.Int64("uid", rem.UID), logx.String("name", rem.Name))
		}
		s.reminders[rem.UID] = sc
	}
	return s
}

// Pending reports how many reminders are armed in the timer queue.
func (s *Scheduler) Pending() int { return s.queue.len() }

// Tracked reports how many reminders are indexed, dormant ones included.
func (s *Scheduler) Tracked() int { return len(s.reminders) }

// Next processes the next scheduled reminder; applications will usually
// call Run instead.
//
// It blocks until the earliest queued instant elapses, notifies every
// configured integration, re-arms the reminder for its next occurrence
// and returns its uid with ok=true. An empty queue returns ok=false:
// the scheduler is idle and will stay so.
//
// Errors are fatal: context cancellation during the wait, a fired uid
// missing from the index (ErrInconsistent), or a failed assignee
// lookup, which abandons the firing before any integration is
// notified. Integration failures are logged and never returned.
func (s *Scheduler) Next(ctx context.Context) (int64, bool, error) {
	head, ok := s.queue.peek()
	if !ok {
		return 0, false, nil
	}

	timer := time.NewTimer(time.Until(head.at))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, false, ctx.Err()
	case <-timer.C:
	}

	fired := s.queue.pop()
	now := time.Now().UTC()

	sc, ok := s.reminders[fired.uid]
	if !ok {
		return 0, false, fmt.Errorf("%w (uid %d)", ErrInconsistent, fired.uid)
	}
	sc.entry = nil

	if err := s.notify(ctx, sc.reminder, now); err != nil {
		return 0, false, err
	}

	// Re-arm for the following occurrence, or go dormant.
	if d, ok := sc.reminder.Schedule.NextDuration(time.Now()); ok {
		sc.entry = s.queue.push(fired.uid, time.Now().Add(d))
	} else {
		s.log.Debug("reminder dormant", logx.Int64("uid", fired.uid))
	}

	return fired.uid, true, nil
}

// notify resolves the assignee on duty and fans out to every sink.
// A sink failure is logged and isolated; an assignee lookup failure is
// fatal because no notification can name its assignee without it.
func (s *Scheduler) notify(ctx context.Context, rem reminder.Reminder, now time.Time) error {
	if len(s.sinks) == 0 {
		return nil
	}

	assigneeUID := rem.Schedule.Assignee(now)
	assignee, err := s.users.UserByUID(ctx, assigneeUID)
	if err != nil {
		return fmt.Errorf("resolving assignee %d of reminder %d: %w", assigneeUID, rem.UID, err)
	}

	firingID := uuid.NewString()
	log := s.log.With(
		logx.String("firing_id", firingID),
		logx.Int64("uid", rem.UID),
		logx.String("reminder", rem.Name),
		logx.String("assignee", assignee.Name),
	)
	log.Info("reminder fired", logx.Time("at", now))

	for _, sink := range s.sinks {
		if err := sink.Notify(ctx, rem, []user.User{assignee}, now); err != nil {
			log.Error("integration notification failed",
				logx.String("integration", sink.Name()), logx.Err(err))
		}
	}
	return nil
}

// Run processes reminders until the queue naturally empties, then
// returns nil. Fatal errors from Next are returned as-is.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		_, ok, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}
