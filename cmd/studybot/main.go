package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"studybot/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "./config.json",
		Usage:   "path to config file (json or yaml)",
		Sources: cli.EnvVars("STUDYBOT_CONFIG"),
	}

	cmd := &cli.Command{
		Name:  "studybot",
		Usage: "study-group chat bot: pomodoro timers, todo lists, voice-room leaderboard",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "start the bot",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "env-file",
						Value: ".env",
						Usage: "dotenv file with token overrides; missing file is ignored",
					},
				},
				Action: run,
			},
			{
				Name:   "check-config",
				Usage:  "validate the config file and exit",
				Flags:  []cli.Flag{configFlag},
				Action: checkConfig,
			},
		},
		DefaultCommand: "run",
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if err := loadEnv(cmd.String("env-file")); err != nil {
		return err
	}

	a, err := app.New(cmd.String("config"))
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(stopCtx)
		return fmt.Errorf("start: %w", err)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	select {
	case <-ctx.Done():
	case <-a.Done():
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		fmt.Fprintln(os.Stderr, "stop:", err)
	}
	return a.Err()
}

func checkConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := app.Check(ctx, path); err != nil {
		return err
	}
	fmt.Println("config ok:", path)
	return nil
}

// loadEnv never overrides variables already set in the process environment.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}
