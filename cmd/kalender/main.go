package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"kalender/internal/config"
	"kalender/internal/ics"
	appLog "kalender/internal/log"
	"kalender/internal/store"
)

const version = "0.1.0"

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "kalender",
		Usage:   "Shared office calendar with recurring events and Hijri holidays.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "./kalender.yaml",
				Usage:   "Path to config file (written with defaults if missing)",
				EnvVars: []string{"KALENDER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error (overrides config)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			expandCommand(),
			importCommand(),
			hijriCommand(),
			holidaysCommand(),
			snapshotCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("kalender failed", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the config named by --config and applies
// the log level.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	appLog.SetLevel(appLog.ParseLevel(level))
	return cfg, nil
}

// openStore opens the database and upserts the configured holidays.
func openStore(ctx context.Context, cfg *config.Config) (*store.Storage, error) {
	st, err := store.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database, err)
	}
	for i := range cfg.Holidays {
		if err := st.UpsertHoliday(ctx, &cfg.Holidays[i]); err != nil {
			st.Close()
			return nil, fmt.Errorf("seed holiday %q: %w", cfg.Holidays[i].Name, err)
		}
	}
	return st, nil
}

func sourcesFromConfig(cfg *config.Config) []ics.Source {
	out := make([]ics.Source, 0, len(cfg.Subscriptions))
	for _, s := range cfg.Subscriptions {
		out = append(out, ics.Source{ID: s.ID, URL: s.URL, Division: s.Division})
	}
	return out
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// parseDate reads a YYYY-MM-DD flag in loc; empty means today.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", raw)
	}
	return t, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
