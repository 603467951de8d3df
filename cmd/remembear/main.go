package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"remembear/internal/app"
	"remembear/internal/command"
	"remembear/internal/config"
	"remembear/internal/storage"
	"remembear/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./remembear.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath, flag.Args()); err != nil {
		if errors.Is(err, command.ErrUsage) {
			fmt.Fprintln(os.Stderr, "error:", err)
			fmt.Fprint(os.Stderr, command.Usage())
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", cfgPath, err)
	}

	logs, log := logx.New(cfg.LogConfig())
	defer logs.Close()

	store, err := storage.Open(storage.Config{
		Path:        cfg.Database.Sqlite.Path,
		BusyTimeout: cfg.SqliteBusyTimeout(),
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if len(args) == 1 && args[0] == "start" {
		daemon, err := app.New(cfgPath, cfg, logs, store)
		if err != nil {
			return err
		}
		return daemon.Run(ctx)
	}

	out, err := command.Execute(ctx, store, args)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
