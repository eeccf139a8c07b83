package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kalender/internal/ics"
	appLog "kalender/internal/log"
	"kalender/internal/model"
	"kalender/internal/store"
)

// EventStore is the subset of the storage layer the sync needs.
type EventStore interface {
	UpsertEventBySourceUID(ctx context.Context, ev *model.Event, syncedAt time.Time) error
	DeleteStaleSourceEvents(ctx context.Context, prefix string, syncedAt time.Time) (int64, error)
	GetDivisionByName(ctx context.Context, name string) (*model.Division, error)
	CreateDivision(ctx context.Context, d *model.Division) error
}

// Fetcher downloads subscription payloads.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Report summarizes one sync run.
type Report struct {
	Sources  int
	Imported int
	Removed  int64
	Failed   int
}

// Syncer imports ICS subscriptions into the store.
type Syncer struct {
	store   EventStore
	fetcher Fetcher
	now     func() time.Time
}

func NewSyncer(st EventStore, f Fetcher) *Syncer {
	return &Syncer{store: st, fetcher: f, now: time.Now}
}

// SyncAll fetches every source and imports it. A failing source is counted
// and logged; the others still sync. The returned error joins all failures.
func (s *Syncer) SyncAll(ctx context.Context, sources []ics.Source) (Report, error) {
	rep := Report{Sources: len(sources)}

	results, fetchErrs := s.fetcher.FetchAll(ctx, sources)
	rep.Failed = len(fetchErrs)
	errs := append([]error(nil), fetchErrs...)

	for _, res := range results {
		n, removed, err := s.Import(ctx, res.Source, res.Body)
		if err != nil {
			rep.Failed++
			errs = append(errs, fmt.Errorf("source %s: %w", res.Source.ID, err))
			appLog.Error("ics import failed", err, "id", res.Source.ID)
			continue
		}
		rep.Imported += n
		rep.Removed += removed
	}

	appLog.Info("subscription sync finished",
		"sources", rep.Sources, "imported", rep.Imported, "removed", rep.Removed, "failed", rep.Failed)
	return rep, errors.Join(errs...)
}

// Import parses body and upserts its events under src. Events of src that
// are no longer in the feed are removed.
func (s *Syncer) Import(ctx context.Context, src ics.Source, body []byte) (int, int64, error) {
	events, err := ics.Parse(src, body)
	if err != nil {
		return 0, 0, err
	}

	var division *model.Division
	if src.Division != "" {
		division, err = s.ensureDivision(ctx, src.Division)
		if err != nil {
			return 0, 0, err
		}
	}

	syncedAt := s.now()
	for i := range events {
		ev := &events[i]
		if division != nil {
			ev.Divisions = []model.Division{*division}
		}
		if err := s.store.UpsertEventBySourceUID(ctx, ev, syncedAt); err != nil {
			return i, 0, err
		}
	}

	removed, err := s.store.DeleteStaleSourceEvents(ctx, ics.SourceUID(src.ID, ""), syncedAt)
	if err != nil {
		return len(events), 0, err
	}
	return len(events), removed, nil
}

func (s *Syncer) ensureDivision(ctx context.Context, name string) (*model.Division, error) {
	d, err := s.store.GetDivisionByName(ctx, name)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	d = &model.Division{Name: name}
	if err := s.store.CreateDivision(ctx, d); err != nil {
		return nil, fmt.Errorf("create division %q: %w", name, err)
	}
	return d, nil
}
