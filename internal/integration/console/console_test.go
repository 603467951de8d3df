package console_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"remembear/internal/integration"
	"remembear/internal/integration/console"
	"remembear/internal/reminder"
	"remembear/internal/user"
)

type settingsMap map[int64]json.RawMessage

func (m settingsMap) IntegrationRecord(_ context.Context, name, uidType string, uid int64) (json.RawMessage, error) {
	if name != "console" || uidType != integration.UIDTypeUser {
		return json.RawMessage("null"), nil
	}
	if data, ok := m[uid]; ok {
		return data, nil
	}
	return json.RawMessage("null"), nil
}

type failingSettings struct{}

func (failingSettings) IntegrationRecord(context.Context, string, string, int64) (json.RawMessage, error) {
	return nil, errors.New("store unavailable")
}

var (
	walkTheBear = reminder.Reminder{UID: 1, Name: "Walk the bear"}
	firedAt     = time.Date(2020, time.January, 1, 0, 1, 2, 0, time.UTC)
)

func TestNotifyWritesOneLine(t *testing.T) {
	var buf strings.Builder
	sink := console.New(&buf, nil)

	err := sink.Notify(context.Background(), walkTheBear,
		[]user.User{{UID: 1, Name: "Laura"}, {UID: 2, Name: "Donna"}}, firedAt)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	want := "[" + firedAt.Local().Format("2006-01-02 15:04:05 -07") + "] Walk the bear: Laura, Donna\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestNotifyWithoutAssignees(t *testing.T) {
	var buf strings.Builder
	sink := console.New(&buf, nil)

	if err := sink.Notify(context.Background(), walkTheBear, nil, firedAt); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "Walk the bear: \n") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestNotifyAppliesStoredColor(t *testing.T) {
	var buf strings.Builder
	sink := console.New(&buf, settingsMap{
		1: json.RawMessage(`{"color":"9"}`),
	})

	err := sink.Notify(context.Background(), walkTheBear,
		[]user.User{{UID: 1, Name: "Laura"}, {UID: 2, Name: "Donna"}}, firedAt)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	// Styling depends on the terminal profile; both names must appear
	// either way.
	out := buf.String()
	if !strings.Contains(out, "Laura") || !strings.Contains(out, "Donna") {
		t.Fatalf("output = %q", out)
	}
}

func TestNotifyToleratesSettingsFailure(t *testing.T) {
	var buf strings.Builder
	sink := console.New(&buf, failingSettings{})

	err := sink.Notify(context.Background(), walkTheBear,
		[]user.User{{UID: 1, Name: "Laura"}}, firedAt)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !strings.Contains(buf.String(), "Laura") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestNotifyToleratesMalformedSettings(t *testing.T) {
	var buf strings.Builder
	sink := console.New(&buf, settingsMap{
		1: json.RawMessage(`{"color":`),
	})

	err := sink.Notify(context.Background(), walkTheBear,
		[]user.User{{UID: 1, Name: "Laura"}}, firedAt)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !strings.Contains(buf.String(), "Laura") {
		t.Fatalf("output = %q", buf.String())
	}
}
