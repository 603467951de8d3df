// Package telegram delivers triggered reminders to a Telegram chat.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"remembear/internal/integration"
	"remembear/internal/reminder"
	"remembear/internal/user"
)

type Config struct {
	Token string
	// ChatID is the default chat reminders are sent to. A user record
	// with {"chat_id": ...} overrides it for that assignee.
	ChatID int64
	// RatePerSec caps outgoing messages; Telegram throttles bots hard.
	RatePerSec int
}

type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Telegram struct {
	cfg      Config
	bot      sender
	limiter  *rate.Limiter
	settings integration.Settings
}

func New(cfg Config, settings integration.Settings) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return newWithSender(cfg, bot, settings), nil
}

func newWithSender(cfg Config, bot sender, settings integration.Settings) *Telegram {
	if settings == nil {
		settings = integration.NopSettings{}
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Telegram{
		cfg:      cfg,
		bot:      bot,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		settings: settings,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(ctx context.Context, rem reminder.Reminder, assignees []user.User, at time.Time) error {
	names := make([]string, 0, len(assignees))
	for _, assignee := range assignees {
		names = append(names, assignee.Name)
	}
	text := fmt.Sprintf("⏰ %s: %s", rem.Name, strings.Join(names, ", "))

	var errs []error
	for _, chatID := range t.targets(ctx, assignees) {
		if err := t.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := t.bot.Send(tele.ChatID(chatID), text); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// targets collects the distinct chats to notify: the default chat plus
// any per-assignee overrides from stored settings.
func (t *Telegram) targets(ctx context.Context, assignees []user.User) []int64 {
	seen := map[int64]bool{t.cfg.ChatID: true}
	targets := []int64{t.cfg.ChatID}

	for _, assignee := range assignees {
		data, err := t.settings.IntegrationRecord(ctx, t.Name(), integration.UIDTypeUser, assignee.UID)
		if err != nil {
			continue
		}
		var settings struct {
			ChatID int64 `json:"chat_id"`
		}
		if err := json.Unmarshal(data, &settings); err != nil || settings.ChatID == 0 {
			continue
		}
		if !seen[settings.ChatID] {
			seen[settings.ChatID] = true
			targets = append(targets, settings.ChatID)
		}
	}
	return targets
}
