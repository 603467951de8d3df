package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"remembear/internal/integration"
	"remembear/internal/reminder"
	"remembear/internal/user"
)

type fakeSender struct {
	sent []sentMessage
	err  error
}

type sentMessage struct {
	to   tele.Recipient
	text string
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.sent = append(f.sent, sentMessage{to: to, text: what.(string)})
	if f.err != nil {
		return nil, f.err
	}
	return &tele.Message{}, nil
}

type settingsMap map[int64]json.RawMessage

func (m settingsMap) IntegrationRecord(_ context.Context, name, uidType string, uid int64) (json.RawMessage, error) {
	if name != "telegram" || uidType != integration.UIDTypeUser {
		return json.RawMessage("null"), nil
	}
	if data, ok := m[uid]; ok {
		return data, nil
	}
	return json.RawMessage("null"), nil
}

var (
	walkTheBear = reminder.Reminder{UID: 1, Name: "Walk the bear"}
	firedAt     = time.Date(2020, time.January, 1, 12, 30, 0, 0, time.UTC)
)

func TestNewRejectsMissingSettings(t *testing.T) {
	if _, err := New(Config{ChatID: 7}, nil); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := New(Config{Token: "t"}, nil); err == nil {
		t.Fatal("expected error for missing chat_id")
	}
}

func TestNotifySendsToDefaultChat(t *testing.T) {
	bot := &fakeSender{}
	tg := newWithSender(Config{Token: "t", ChatID: -100, RatePerSec: 100}, bot, nil)

	err := tg.Notify(context.Background(), walkTheBear,
		[]user.User{{UID: 1, Name: "Laura"}, {UID: 2, Name: "Donna"}}, firedAt)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bot.sent))
	}
	if bot.sent[0].to != tele.ChatID(-100) {
		t.Fatalf("recipient = %v", bot.sent[0].to)
	}
	if !strings.Contains(bot.sent[0].text, "Walk the bear: Laura, Donna") {
		t.Fatalf("text = %q", bot.sent[0].text)
	}
}

func TestNotifyFansOutToOverrideChats(t *testing.T) {
	bot := &fakeSender{}
	tg := newWithSender(Config{Token: "t", ChatID: -100, RatePerSec: 100}, bot, settingsMap{
		1: json.RawMessage(`{"chat_id":123}`),
		2: json.RawMessage(`{"chat_id":123}`), // duplicate, sent once
	})

	err := tg.Notify(context.Background(), walkTheBear,
		[]user.User{{UID: 1, Name: "Laura"}, {UID: 2, Name: "Donna"}}, firedAt)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(bot.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(bot.sent))
	}
	if bot.sent[0].to != tele.ChatID(-100) || bot.sent[1].to != tele.ChatID(123) {
		t.Fatalf("recipients = %v, %v", bot.sent[0].to, bot.sent[1].to)
	}
}

func TestNotifyReportsSendFailure(t *testing.T) {
	bot := &fakeSender{err: errors.New("flood wait")}
	tg := newWithSender(Config{Token: "t", ChatID: -100, RatePerSec: 100}, bot, nil)

	err := tg.Notify(context.Background(), walkTheBear,
		[]user.User{{UID: 1, Name: "Laura"}}, firedAt)
	if err == nil || !strings.Contains(err.Error(), "flood wait") {
		t.Fatalf("error = %v", err)
	}
}

func TestNotifyStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bot := &fakeSender{}
	tg := newWithSender(Config{Token: "t", ChatID: -100, RatePerSec: 1}, bot, nil)

	err := tg.Notify(ctx, walkTheBear, []user.User{{UID: 1, Name: "Laura"}}, firedAt)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(bot.sent) != 0 {
		t.Fatalf("sent %d messages after cancellation", len(bot.sent))
	}
}
