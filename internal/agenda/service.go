package agenda

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "kalender/internal/log"
	"kalender/internal/model"
	"kalender/internal/recurrence"
)

const defaultWorkers = 4

// Window is an inclusive, day-granular time span.
type Window struct {
	Start time.Time // start of the first day
	End   time.Time // end of the last day
}

// NewWindow builds the window covering the civil dates of from and to,
// swapping them if needed.
func NewWindow(from, to time.Time) Window {
	if to.Before(from) {
		from, to = to, from
	}
	return Window{
		Start: time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location()),
		End:   time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 999999999, to.Location()),
	}
}

// Filter narrows the events a Source returns.
type Filter struct {
	// Window, when set, restricts single events to those overlapping it.
	Window *Window
	// Text is matched as a substring of title, description or location.
	Text string
	// DivisionIDs matches events tagged with, or attended by someone from,
	// any of the divisions.
	DivisionIDs []int64
}

// Source supplies stored events. It is implemented by the sqlite store.
type Source interface {
	// SingleEvents returns non-recurring events overlapping f.Window, or every
	// event (recurring ones included, unexpanded) when f.Window is nil.
	SingleEvents(ctx context.Context, f Filter) ([]model.Event, error)
	// RecurringEvents returns every recurring definition matching the text and
	// division filters; the window is ignored.
	RecurringEvents(ctx context.Context, f Filter) ([]model.Event, error)
}

// Query is a client request for the agenda.
type Query struct {
	// Start and End are dates; recurring events are only expanded when both are set.
	Start *time.Time
	End   *time.Time

	Text        string
	DivisionIDs []int64
}

// Service answers agenda queries.
type Service struct {
	src     Source
	workers int
}

// NewService creates a Service expanding at most workers events at a time.
func NewService(src Source, workers int) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Service{src: src, workers: workers}
}

// List returns single events and expanded occurrences matching q, ordered by start.
func (s *Service) List(ctx context.Context, q Query) ([]Item, error) {
	f := Filter{Text: q.Text, DivisionIDs: q.DivisionIDs}
	if q.Start != nil && q.End != nil {
		w := NewWindow(*q.Start, *q.End)
		f.Window = &w
	}

	events, err := s.src.SingleEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list single events: %w", err)
	}
	singles := make([]Item, 0, len(events))
	for _, ev := range events {
		singles = append(singles, FromEvent(ev))
	}

	if f.Window == nil {
		appLog.Debug("agenda list without window; skipping expansion", "events", len(singles))
		return Merge(singles, nil), nil
	}

	series, err := s.src.RecurringEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list recurring events: %w", err)
	}

	expanded, err := s.expandAll(ctx, series, *f.Window)
	if err != nil {
		return nil, err
	}

	appLog.Debug("agenda list",
		"range_start", FormatTime(f.Window.Start),
		"range_end", FormatTime(f.Window.End),
		"singles", len(singles),
		"series", len(series),
		"occurrences", len(expanded),
	)

	return Merge(singles, expanded), nil
}

// expandAll expands every series concurrently. Output keeps the order of
// series so that results are deterministic.
func (s *Service) expandAll(ctx context.Context, series []model.Event, w Window) ([]Item, error) {
	results := make([][]Item, len(series))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, ev := range series {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			occs := recurrence.Expand(ev, w.Start, w.End)
			items := make([]Item, 0, len(occs))
			for _, occ := range occs {
				items = append(items, FromOccurrence(ev, occ))
			}
			results[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("expand recurring events: %w", err)
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]Item, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
