package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalender/internal/agenda"
	"kalender/internal/ics"
	"kalender/internal/store"
)

func vevent(uid, summary, start string) string {
	return "BEGIN:VEVENT\r\n" +
		"UID:" + uid + "\r\n" +
		"DTSTAMP:20250101T000000Z\r\n" +
		"DTSTART:" + start + "\r\n" +
		"DTEND:" + start + "\r\n" +
		"SUMMARY:" + summary + "\r\n" +
		"END:VEVENT\r\n"
}

func calendar(events ...string) []byte {
	return []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		strings.Join(events, "") + "END:VCALENDAR\r\n")
}

type fakeFetcher struct {
	bodies map[string][]byte
}

func (f *fakeFetcher) FetchAll(_ context.Context, sources []ics.Source) ([]ics.FetchResult, []error) {
	var out []ics.FetchResult
	var errs []error
	for _, src := range sources {
		body, ok := f.bodies[src.ID]
		if !ok {
			errs = append(errs, errors.New("unreachable: "+src.ID))
			continue
		}
		out = append(out, ics.FetchResult{Source: src, Body: body})
	}
	return out, errs
}

func newStore(t *testing.T) *store.Storage {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "kalender.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func allTitles(t *testing.T, st *store.Storage) []string {
	t.Helper()
	events, err := st.SingleEvents(context.Background(), agenda.Filter{})
	require.NoError(t, err)
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Title
	}
	return out
}

func TestSyncAll(t *testing.T) {
	st := newStore(t)
	fetcher := &fakeFetcher{bodies: map[string][]byte{
		"team": calendar(
			vevent("a", "Planning", "20250106T020000Z"),
			vevent("b", "Review", "20250107T020000Z"),
		),
		"ops": calendar(vevent("a", "Deploy", "20250108T020000Z")),
	}}
	syncer := NewSyncer(st, fetcher)
	clock := time.Unix(1_736_000_000, 0)
	syncer.now = func() time.Time { return clock }

	sources := []ics.Source{
		{ID: "team", Division: "IT"},
		{ID: "ops"},
		{ID: "down"},
	}
	rep, err := syncer.SyncAll(context.Background(), sources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable: down")
	assert.Equal(t, Report{Sources: 3, Imported: 3, Failed: 1}, rep)
	assert.Equal(t, []string{"Planning", "Review", "Deploy"}, allTitles(t, st))

	div, err := st.GetDivisionByName(context.Background(), "IT")
	require.NoError(t, err)
	items, err := st.SingleEvents(context.Background(), agenda.Filter{DivisionIDs: []int64{div.ID}})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// Review disappears from the team feed and Planning is renamed.
	fetcher.bodies["team"] = calendar(vevent("a", "Planning v2", "20250106T020000Z"))
	clock = clock.Add(time.Hour)
	rep, err = syncer.SyncAll(context.Background(), sources[:2])
	require.NoError(t, err)
	assert.Equal(t, Report{Sources: 2, Imported: 2, Removed: 1}, rep)
	assert.Equal(t, []string{"Planning v2", "Deploy"}, allTitles(t, st))
}

func TestSyncAll_BadPayloadDoesNotStopOthers(t *testing.T) {
	st := newStore(t)
	fetcher := &fakeFetcher{bodies: map[string][]byte{
		"empty": []byte(" "),
		"ok":    calendar(vevent("x", "Kept", "20250106T020000Z")),
	}}
	rep, err := NewSyncer(st, fetcher).SyncAll(context.Background(), []ics.Source{{ID: "empty"}, {ID: "ok"}})
	assert.ErrorIs(t, err, ics.ErrEmptyBody)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, []string{"Kept"}, allTitles(t, st))
}

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	s := New("*/30 * * * *", time.UTC, func(context.Context) {
		runs++
		cancel()
	})

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 1, runs)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New("not a spec", nil, func(context.Context) {})
	assert.Error(t, s.Start(context.Background()))
	assert.Error(t, ValidateSpec("61 * * * *"))
	assert.NoError(t, ValidateSpec("*/15 * * * *"))
}
