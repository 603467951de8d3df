// Package app wires the remembear daemon together: storage, the
// configured notification sinks, the reminder scheduler and periodic
// store maintenance.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"remembear/internal/config"
	"remembear/internal/integration"
	"remembear/internal/integration/console"
	"remembear/internal/integration/telegram"
	"remembear/internal/scheduler"
	"remembear/internal/storage"
	"remembear/pkg/logx"
)

type App struct {
	cfgPath string
	cfg     config.Config

	log   logx.Logger
	logs  *logx.Service
	store storage.Store
	sinks []integration.Integration
	sched *scheduler.Scheduler
	maint *cron.Cron
}

func New(cfgPath string, cfg config.Config, logs *logx.Service, store storage.Store) (*App, error) {
	a := &App{
		cfgPath: cfgPath,
		cfg:     cfg,
		log:     logs.Logger().With(logx.String("comp", "app")),
		logs:    logs,
		store:   store,
	}

	sinks, err := buildSinks(cfg, store, logs.Logger())
	if err != nil {
		return nil, err
	}
	a.sinks = sinks

	reminders, err := store.Reminders(context.Background())
	if err != nil {
		return nil, fmt.Errorf("loading reminders: %w", err)
	}
	a.sched = scheduler.New(reminders, store, sinks,
		logs.Logger().With(logx.String("comp", "scheduler")))

	a.maint = cron.New()
	if _, err := a.maint.AddFunc(cfg.Maintenance.Spec, a.maintain); err != nil {
		return nil, fmt.Errorf("invalid maintenance spec %q: %w", cfg.Maintenance.Spec, err)
	}
	return a, nil
}

// buildSinks instantiates every enabled integration. With no
// integrations section the console sink is enabled by default so a
// fresh install still prints reminders somewhere.
func buildSinks(cfg config.Config, store storage.Store, log logx.Logger) ([]integration.Integration, error) {
	var sinks []integration.Integration

	consoleCfg, hasConsole := cfg.Integrations["console"]
	if (!hasConsole && len(cfg.Integrations) == 0) || consoleCfg.Enabled {
		sinks = append(sinks, console.New(os.Stdout, store))
	}

	if tg, ok := cfg.Integrations["telegram"]; ok && tg.Enabled {
		sink, err := telegram.New(telegram.Config{
			Token:      tg.Token,
			ChatID:     tg.ChatID,
			RatePerSec: tg.RatePerSec,
		}, store)
		if err != nil {
			return nil, fmt.Errorf("building telegram integration: %w", err)
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 0 {
		log.Warn("no integrations enabled, reminders will fire silently")
	}
	return sinks, nil
}

// Run blocks until ctx is cancelled or the scheduler hits a fatal
// error.
func (a *App) Run(ctx context.Context) error {
	a.maint.Start()
	defer a.maint.Stop()

	go func() {
		if err := config.Watch(ctx, a.cfgPath, a.log, a.reload); err != nil {
			a.log.Warn("config watcher stopped", logx.Err(err))
		}
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	}
	a.log.Info("daemon started",
		logx.Int("tracked", a.sched.Tracked()),
		logx.Int("pending", a.sched.Pending()),
		logx.Int("sinks", len(a.sinks)))

	err := a.sched.Run(ctx)

	if _, nerr := daemon.SdNotify(false, daemon.SdNotifyStopping); nerr != nil {
		a.log.Warn("sd_notify failed", logx.Err(nerr))
	}
	if err != nil && ctx.Err() != nil {
		// Treated as a clean shutdown.
		a.log.Info("daemon stopping")
		return nil
	}
	return err
}

// reload re-applies the logging section on config file changes. The
// scheduler and store keep their boot-time configuration; a restart
// picks up the rest.
func (a *App) reload(cfg config.Config) {
	a.logs.Apply(cfg.LogConfig())
	a.log.Info("logging configuration reloaded", logx.String("level", cfg.Logging.Level))
}

func (a *App) maintain() {
	ctx := context.Background()
	if err := a.store.Checkpoint(ctx); err != nil {
		a.log.Warn("store checkpoint failed", logx.Err(err))
		return
	}
	a.log.Info("maintenance complete",
		logx.Int("tracked", a.sched.Tracked()),
		logx.Int("pending", a.sched.Pending()))
}
