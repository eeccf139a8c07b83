package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"kalender/internal/agenda"
	"kalender/internal/capture"
	"kalender/internal/hijri"
	"kalender/internal/holiday"
	"kalender/internal/ics"
	appLog "kalender/internal/log"
	"kalender/internal/scheduler"
	"kalender/internal/web"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the subscription sync scheduler.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config if set)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.String("listen") != "" {
				cfg.Listen = c.String("listen")
			}

			appLog.Info("kalender starting",
				"version", version,
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"database", cfg.Database,
				"refresh", cfg.RefreshCron,
				"subscriptions", len(cfg.Subscriptions),
				"holidays", len(cfg.Holidays),
			)

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := web.NewServer(cfg, web.Deps{
				Agenda:   agenda.NewService(st, cfg.ExpandWorkers),
				Events:   st,
				Holidays: st,
			})

			sources := sourcesFromConfig(cfg)
			syncer := scheduler.NewSyncer(st, ics.NewFetcher(cfg.CacheDir, nil))
			sched := scheduler.New(cfg.RefreshCron, cfg.Location(), func(ctx context.Context) {
				if len(sources) == 0 {
					return
				}
				if _, err := syncer.SyncAll(ctx, sources); err != nil {
					appLog.Warn("subscription sync had failures", "error", err.Error())
				}
				srv.InvalidateCache()
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(gctx) })
			g.Go(func() error { return sched.Start(gctx) })

			err = g.Wait()
			appLog.Info("kalender exiting")
			return err
		},
	}
}

func expandCommand() *cli.Command {
	return &cli.Command{
		Name:  "expand",
		Usage: "Print the agenda for a date range as JSON.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Usage: "First day (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "end", Usage: "Last day (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "q", Usage: "Text filter on title, description and location"},
			&cli.Int64SliceFlag{Name: "division", Usage: "Division ID filter (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			st, err := openStore(c.Context, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			q := agenda.Query{Text: c.String("q"), DivisionIDs: c.Int64Slice("division")}
			loc := cfg.Location()
			if c.IsSet("start") || c.IsSet("end") {
				start, err := parseDate(c.String("start"), loc)
				if err != nil {
					return err
				}
				end, err := parseDate(c.String("end"), loc)
				if err != nil {
					return err
				}
				q.Start, q.End = &start, &end
			}

			items, err := agenda.NewService(st, cfg.ExpandWorkers).List(c.Context, q)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"data": items})
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import an ICS file, or sync every configured subscription once.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "ICS file to import instead of the subscriptions"},
			&cli.StringFlag{Name: "source", Value: "file", Usage: "Source ID prefixing imported UIDs (with --file)"},
			&cli.StringFlag{Name: "division", Usage: "Division to tag imported events with (with --file)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			st, err := openStore(c.Context, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			syncer := scheduler.NewSyncer(st, ics.NewFetcher(cfg.CacheDir, nil))

			if path := c.String("file"); path != "" {
				body, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				src := ics.Source{ID: c.String("source"), URL: path, Division: c.String("division")}
				n, removed, err := syncer.Import(c.Context, src, body)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				appLog.Info("ics file imported", "file", path, "events", n, "removed", removed)
				return nil
			}

			if len(cfg.Subscriptions) == 0 {
				return fmt.Errorf("no subscriptions configured in %s", c.String("config"))
			}
			_, err = syncer.SyncAll(c.Context, sourcesFromConfig(cfg))
			return err
		},
	}
}

func hijriCommand() *cli.Command {
	return &cli.Command{
		Name:  "hijri",
		Usage: "Convert a Gregorian date to the tabular Hijri calendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Gregorian date (YYYY-MM-DD), default today"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			date, err := parseDate(c.String("date"), cfg.Location())
			if err != nil {
				return err
			}
			conv := hijri.FromTime(date)
			rng := hijri.MonthRange(date)
			fmt.Printf("%s  %s\n", date.Format("2006-01-02"), conv.String())
			fmt.Printf("%s: %s .. %s (%d days)\n",
				hijri.FormatMonth(date), rng.Start.Format("2006-01-02"), rng.End.Format("2006-01-02"), rng.DaysInMonth)
			return nil
		},
	}
}

func holidaysCommand() *cli.Command {
	return &cli.Command{
		Name:  "holidays",
		Usage: "List stored holidays, or those falling on --date.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Only holidays on this date (YYYY-MM-DD)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			st, err := openStore(c.Context, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			hs, err := st.ListHolidays(c.Context)
			if err != nil {
				return err
			}
			if c.IsSet("date") {
				date, err := parseDate(c.String("date"), cfg.Location())
				if err != nil {
					return err
				}
				hs = holiday.ForDate(date, hs)
			}
			for _, h := range hs {
				fmt.Printf("%-4d %-30s %s\n", h.ID, h.Name, holiday.Describe(h))
			}
			return nil
		},
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Capture the month view to PNG with headless Chromium (requires a running server).",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "month", Usage: "Month to capture (YYYY-MM), default current"},
			&cli.StringFlag{Name: "out", Value: "./var/calendar.png", Usage: "Output PNG path"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			target := cfg.Snapshot.URL
			if target == "" {
				target = "http://" + cfg.Listen + "/calendar"
			}
			if m := c.String("month"); m != "" {
				if _, err := time.Parse("2006-01", m); err != nil {
					return fmt.Errorf("month %q must be YYYY-MM", m)
				}
				u, err := url.Parse(target)
				if err != nil {
					return fmt.Errorf("snapshot url: %w", err)
				}
				qs := u.Query()
				qs.Set("month", m)
				u.RawQuery = qs.Encode()
				target = u.String()
			}

			opts := capture.Options{
				URL:        target,
				OutputPath: c.String("out"),
				Width:      cfg.Snapshot.Width,
				Height:     cfg.Snapshot.Height,
				Timeout:    time.Duration(cfg.Snapshot.TimeoutSec) * time.Second,
			}
			if cfg.BasicAuth != nil {
				opts.Username = cfg.BasicAuth.Username
				opts.Password = cfg.BasicAuth.Password
			}

			ctx, cancel := signalContext(c.Context)
			defer cancel()
			if err := capture.Snapshot(ctx, opts); err != nil {
				return err
			}
			appLog.Info("snapshot written", "out", opts.OutputPath, "url", target)
			return nil
		},
	}
}
