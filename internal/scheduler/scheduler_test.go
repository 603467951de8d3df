package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"remembear/internal/integration"
	"remembear/internal/reminder"
	"remembear/internal/schedule"
	"remembear/internal/scheduler"
	"remembear/internal/user"
	"remembear/pkg/logx"
)

type userDirectory map[int64]user.User

func (d userDirectory) UserByUID(_ context.Context, uid int64) (user.User, error) {
	u, ok := d[uid]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

type failingDirectory struct{}

func (failingDirectory) UserByUID(context.Context, int64) (user.User, error) {
	return user.User{}, errors.New("directory offline")
}

// captureSink records notifications and optionally fails every call.
type captureSink struct {
	name string
	err  error

	mu        sync.Mutex
	reminders []int64
	assignees [][]int64
}

func (c *captureSink) Name() string { return c.name }

func (c *captureSink) Notify(_ context.Context, rem reminder.Reminder, assignees []user.User, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reminders = append(c.reminders, rem.UID)
	uids := make([]int64, len(assignees))
	for i, a := range assignees {
		uids[i] = a.UID
	}
	c.assignees = append(c.assignees, uids)
	return c.err
}

func (c *captureSink) notified() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.reminders...)
}

// scheduleFromNow builds a single-weekday schedule whose times are the
// given offsets from now, assigned to user 1.
func scheduleFromNow(t *testing.T, offsets ...time.Duration) schedule.Schedule {
	t.Helper()
	now := time.Now().UTC()
	times := make([]schedule.TimeOfDay, len(offsets))
	for i, offset := range offsets {
		times[i] = schedule.At(now.Add(offset))
	}
	start, err := schedule.ISOWeek{Year: 2020, Week: 1}.StartDate()
	require.NoError(t, err)
	return schedule.New(schedule.WeeklyTimes{now.Weekday(): times}, start, []int64{1})
}

func emptySchedule(t *testing.T) schedule.Schedule {
	t.Helper()
	start, err := schedule.ISOWeek{Year: 2020, Week: 1}.StartDate()
	require.NoError(t, err)
	return schedule.New(schedule.WeeklyTimes{}, start, []int64{1})
}

func testUsers() userDirectory {
	return userDirectory{1: {UID: 1, Name: "Laura"}}
}

func TestNextFiresEarliestReminderFirst(t *testing.T) {
	reminders := []reminder.Reminder{
		{UID: 1, Name: "first", Schedule: scheduleFromNow(t, 5*time.Millisecond)},
		{UID: 2, Name: "second", Schedule: scheduleFromNow(t, 10*time.Millisecond)},
	}
	s := scheduler.New(reminders, testUsers(), nil, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	uid, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), uid)

	uid, ok, err = s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2), uid)
}

func TestNextReArmsForSecondOccurrence(t *testing.T) {
	reminders := []reminder.Reminder{
		{UID: 1, Name: "twice", Schedule: scheduleFromNow(t, 5*time.Millisecond, 30*time.Millisecond)},
	}
	s := scheduler.New(reminders, testUsers(), nil, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		uid, ok, err := s.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, int64(1), uid)
	}
}

func TestNextIdleWhenNothingQueued(t *testing.T) {
	s := scheduler.New(nil, testUsers(), nil, logx.Nop())

	_, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEmptySchedulesAreTrackedButDormant(t *testing.T) {
	reminders := []reminder.Reminder{
		{UID: 7, Name: "dormant", Schedule: emptySchedule(t)},
	}
	s := scheduler.New(reminders, testUsers(), nil, logx.Nop())

	require.Equal(t, 1, s.Tracked())
	require.Equal(t, 0, s.Pending())
	require.NoError(t, s.Run(context.Background()))
}

func TestNextNotifiesSinks(t *testing.T) {
	sink := &captureSink{name: "capture"}
	reminders := []reminder.Reminder{
		{UID: 3, Name: "notify me", Schedule: scheduleFromNow(t, 5*time.Millisecond)},
	}
	s := scheduler.New(reminders, testUsers(), []integration.Integration{sink}, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	uid, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(3), uid)
	require.Equal(t, []int64{3}, sink.notified())
	require.Equal(t, [][]int64{{1}}, sink.assignees)
}

func TestSinkFailureIsIsolated(t *testing.T) {
	failing := &captureSink{name: "broken", err: errors.New("sink down")}
	working := &captureSink{name: "working"}
	reminders := []reminder.Reminder{
		{UID: 4, Name: "resilient", Schedule: scheduleFromNow(t, 5*time.Millisecond, 30*time.Millisecond)},
	}
	s := scheduler.New(reminders, testUsers(),
		[]integration.Integration{failing, working}, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The failing sink neither fails Next nor blocks its sibling.
	uid, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(4), uid)
	require.Equal(t, []int64{4}, working.notified())

	// And the reminder was still re-armed for its second occurrence.
	uid, ok, err = s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(4), uid)
	require.Equal(t, []int64{4, 4}, working.notified())
}

func TestAssigneeLookupFailureIsFatal(t *testing.T) {
	sink := &captureSink{name: "capture"}
	reminders := []reminder.Reminder{
		{UID: 5, Name: "orphaned", Schedule: scheduleFromNow(t, 5*time.Millisecond)},
	}
	s := scheduler.New(reminders, failingDirectory{},
		[]integration.Integration{sink}, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := s.Next(ctx)
	require.Error(t, err)
	require.Empty(t, sink.notified())
}

func TestNextHonorsContextCancellation(t *testing.T) {
	reminders := []reminder.Reminder{
		{UID: 6, Name: "far away", Schedule: scheduleFromNow(t, time.Hour)},
	}
	s := scheduler.New(reminders, testUsers(), nil, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := s.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
