// Package console prints triggered reminders to a terminal.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"remembear/internal/integration"
	"remembear/internal/reminder"
	"remembear/internal/user"
)

const timestampFormat = "2006-01-02 15:04:05 -07"

// Console writes one line per firing to the given writer, in the form
//
//	[2020-01-01 00:01:02 +00] Walk the bear: Laura, Donna
//
// Assignee names are colored when the user's stored settings carry a
// {"color": ...} value (any terminal color lipgloss accepts).
type Console struct {
	out      io.Writer
	settings integration.Settings
}

func New(out io.Writer, settings integration.Settings) *Console {
	if settings == nil {
		settings = integration.NopSettings{}
	}
	return &Console{out: out, settings: settings}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Notify(ctx context.Context, rem reminder.Reminder, assignees []user.User, at time.Time) error {
	names := make([]string, 0, len(assignees))
	for _, assignee := range assignees {
		names = append(names, c.displayName(ctx, assignee))
	}

	_, err := fmt.Fprintf(c.out, "[%s] %s: %s\n",
		at.Local().Format(timestampFormat), rem.Name, strings.Join(names, ", "))
	return err
}

// displayName applies the user's configured color, if any. Settings
// lookup failures fall back to the plain name; a broken record must not
// suppress the reminder line.
func (c *Console) displayName(ctx context.Context, assignee user.User) string {
	data, err := c.settings.IntegrationRecord(ctx, c.Name(), integration.UIDTypeUser, assignee.UID)
	if err != nil {
		return assignee.Name
	}

	var settings struct {
		Color string `json:"color"`
	}
	if err := json.Unmarshal(data, &settings); err != nil || settings.Color == "" {
		return assignee.Name
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(settings.Color)).Render(assignee.Name)
}
