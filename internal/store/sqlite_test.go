package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalender/internal/agenda"
	"kalender/internal/model"
)

var wib = time.FixedZone("", 7*60*60)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, wib)
}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "kalender.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type fixture struct {
	it, hr   model.Division
	alice    *model.Participant
	kickoff  model.Event
	standup  model.Event
	offsite  model.Event
	payroll  model.Event
	untagged model.Event
}

func seed(t *testing.T, s *Storage) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture

	f.it = model.Division{Name: "IT"}
	f.hr = model.Division{Name: "HR"}
	require.NoError(t, s.CreateDivision(ctx, &f.it))
	require.NoError(t, s.CreateDivision(ctx, &f.hr))

	alice, err := s.CreateUser(ctx, "Alice", &f.hr.ID)
	require.NoError(t, err)
	f.alice = alice

	until := time.Date(2025, 3, 31, 0, 0, 0, 0, wib)
	f.kickoff = model.Event{
		Title: "Kickoff", Description: "Quarter planning", Location: "Hall",
		Start: at(2025, 1, 7, 13, 0), End: at(2025, 1, 7, 14, 0),
		Divisions: []model.Division{f.it},
	}
	f.standup = model.Event{
		Title: "Standup", Location: "Room 1",
		Start: at(2025, 1, 6, 9, 0), End: at(2025, 1, 6, 9, 15),
		Recurrence: &model.Recurrence{
			Pattern: model.Weekly{Interval: 1, Days: []int{3, 1}},
			Until:   &until,
		},
		Divisions: []model.Division{f.it},
	}
	f.offsite = model.Event{
		Title: "Offsite",
		Start: at(2025, 1, 1, 8, 0), End: at(2025, 1, 20, 17, 0),
		Participants: []model.Participant{*alice},
	}
	f.payroll = model.Event{
		Title: "Payroll 100%",
		Start: at(2024, 12, 25, 10, 0), End: at(2024, 12, 25, 11, 0),
		Recurrence: &model.Recurrence{Pattern: model.Monthly{Interval: 1, MonthDays: []int{25}}},
		Divisions:  []model.Division{f.hr},
	}
	f.untagged = model.Event{
		Title: "Later",
		Start: at(2025, 2, 10, 9, 0), End: at(2025, 2, 10, 10, 0),
	}

	for _, ev := range []*model.Event{&f.kickoff, &f.standup, &f.offsite, &f.payroll, &f.untagged} {
		require.NoError(t, s.CreateEvent(ctx, ev))
		require.NotZero(t, ev.ID)
	}
	return f
}

func titles(events []model.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Title
	}
	return out
}

func window(from, to time.Time) *agenda.Window {
	w := agenda.NewWindow(from, to)
	return &w
}

func TestEventRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	f := seed(t, s)

	got, err := s.GetEvent(context.Background(), f.standup.ID)
	require.NoError(t, err)

	assert.Equal(t, "Standup", got.Title)
	assert.True(t, got.Start.Equal(f.standup.Start))
	_, offset := got.Start.Zone()
	assert.Equal(t, 7*60*60, offset)
	assert.Equal(t, 9, got.Start.Hour())

	require.NotNil(t, got.Recurrence)
	assert.Equal(t, model.Weekly{Interval: 1, Days: []int{1, 3}}, got.Recurrence.Pattern)
	require.NotNil(t, got.Recurrence.Until)
	assert.Equal(t, "2025-03-31", got.Recurrence.Until.Format(dateLayout))
	assert.Equal(t, []model.Division{f.it}, got.Divisions)
	assert.Empty(t, got.Participants)

	got, err = s.GetEvent(context.Background(), f.offsite.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, "Alice", got.Participants[0].Name)
	require.NotNil(t, got.Participants[0].Division)
	assert.Equal(t, "HR", got.Participants[0].Division.Name)
	assert.Nil(t, got.Recurrence)

	_, err = s.GetEvent(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSingleEvents_Overlap(t *testing.T) {
	s := newTestStorage(t)
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to time.Time
		want     []string
	}{
		{"start inside", at(2025, 1, 7, 0, 0), at(2025, 1, 7, 0, 0), []string{"Offsite", "Kickoff"}},
		{"end inside", at(2025, 1, 20, 0, 0), at(2025, 1, 25, 0, 0), []string{"Offsite"}},
		{"spanning", at(2025, 1, 10, 0, 0), at(2025, 1, 11, 0, 0), []string{"Offsite"}},
		{"nothing", at(2025, 3, 1, 0, 0), at(2025, 3, 5, 0, 0), []string{}},
		{"reversed", at(2025, 2, 28, 0, 0), at(2025, 2, 1, 0, 0), []string{"Later"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SingleEvents(ctx, agenda.Filter{Window: window(tt.from, tt.to)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestSingleEvents_NoWindowReturnsEverything(t *testing.T) {
	s := newTestStorage(t)
	seed(t, s)

	got, err := s.SingleEvents(context.Background(), agenda.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Payroll 100%", "Offsite", "Standup", "Kickoff", "Later"}, titles(got))
}

func TestFilters(t *testing.T) {
	s := newTestStorage(t)
	f := seed(t, s)
	ctx := context.Background()

	got, err := s.SingleEvents(ctx, agenda.Filter{Text: "hall"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Kickoff"}, titles(got))

	got, err = s.SingleEvents(ctx, agenda.Filter{Text: "planning"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Kickoff"}, titles(got))

	got, err = s.SingleEvents(ctx, agenda.Filter{Text: "%"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Payroll 100%"}, titles(got))

	got, err = s.SingleEvents(ctx, agenda.Filter{DivisionIDs: []int64{f.hr.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Payroll 100%", "Offsite"}, titles(got), "event division or participant division")

	got, err = s.RecurringEvents(ctx, agenda.Filter{DivisionIDs: []int64{f.it.ID, f.hr.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Payroll 100%", "Standup"}, titles(got))

	got, err = s.RecurringEvents(ctx, agenda.Filter{Text: "room", Window: window(at(2030, 1, 1, 0, 0), at(2030, 1, 2, 0, 0))})
	require.NoError(t, err)
	assert.Equal(t, []string{"Standup"}, titles(got), "window is ignored for recurring events")
}

func TestStorageAsAgendaSource(t *testing.T) {
	s := newTestStorage(t)
	f := seed(t, s)

	svc := agenda.NewService(s, 2)
	start, end := at(2025, 1, 6, 0, 0), at(2025, 1, 8, 0, 0)
	items, err := svc.List(context.Background(), agenda.Query{Start: &start, End: &end})
	require.NoError(t, err)

	var got []string
	for _, it := range items {
		got = append(got, it.StartAt+" "+it.Title)
	}
	assert.Equal(t, []string{
		"2025-01-01T08:00:00+07:00 Offsite",
		"2025-01-06T09:00:00+07:00 Standup",
		"2025-01-07T13:00:00+07:00 Kickoff",
		"2025-01-08T09:00:00+07:00 Standup",
	}, got)
	assert.Equal(t, model.OccurrenceKey(f.standup.ID, at(2025, 1, 6, 9, 0)), items[1].OccurrenceKey)
}

func TestUpsertEventBySourceUID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first := time.Unix(1_700_000_000, 0)
	ev := model.Event{
		Title: "Imported", SourceUID: "feed:abc",
		Start: at(2025, 1, 6, 9, 0), End: at(2025, 1, 6, 10, 0),
	}
	require.NoError(t, s.UpsertEventBySourceUID(ctx, &ev, first))
	id := ev.ID

	stale := model.Event{Title: "Stale", SourceUID: "feed:old", Start: ev.Start, End: ev.End}
	require.NoError(t, s.UpsertEventBySourceUID(ctx, &stale, first))

	other := model.Event{Title: "Other", SourceUID: "other:1", Start: ev.Start, End: ev.End}
	require.NoError(t, s.UpsertEventBySourceUID(ctx, &other, first))

	second := first.Add(time.Hour)
	ev.Title = "Imported (moved)"
	ev.Start, ev.End = at(2025, 1, 7, 9, 0), at(2025, 1, 7, 10, 0)
	require.NoError(t, s.UpsertEventBySourceUID(ctx, &ev, second))
	assert.Equal(t, id, ev.ID)

	n, err := s.DeleteStaleSourceEvents(ctx, "feed:", second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := s.SingleEvents(ctx, agenda.Filter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Imported (moved)", "Other"}, titles(all))

	assert.Error(t, s.UpsertEventBySourceUID(ctx, &model.Event{Title: "x"}, second))
}

func TestDeleteEvent(t *testing.T) {
	s := newTestStorage(t)
	f := seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeleteEvent(ctx, f.kickoff.ID))
	assert.ErrorIs(t, s.DeleteEvent(ctx, f.kickoff.ID), ErrNotFound)
}

func TestDivisions(t *testing.T) {
	s := newTestStorage(t)
	f := seed(t, s)
	ctx := context.Background()

	list, err := s.ListDivisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Division{f.hr, f.it}, list)

	d, err := s.GetDivisionByName(ctx, "IT")
	require.NoError(t, err)
	assert.Equal(t, f.it.ID, d.ID)

	_, err = s.GetDivisionByName(ctx, "Ops")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.CreateDivision(ctx, &model.Division{Name: "IT"}))
}

func TestHolidays(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	newYear := model.Holiday{
		Name: "New Year", CalendarType: model.CalendarGregorian,
		GregorianMonth: model.IntPtr(1), GregorianDay: model.IntPtr(1),
	}
	require.NoError(t, s.CreateHoliday(ctx, &newYear))

	ramadan := model.Holiday{
		Name: "Ramadan", CalendarType: model.CalendarHijri,
		HijriMonth: model.IntPtr(9), HijriDay: model.IntPtr(1), HijriYear: model.IntPtr(1447),
	}
	require.NoError(t, s.UpsertHoliday(ctx, &ramadan))

	ramadan.HijriYear = nil
	require.NoError(t, s.UpsertHoliday(ctx, &ramadan))

	bad := model.Holiday{Name: "Bad", CalendarType: model.CalendarHijri}
	assert.Error(t, s.CreateHoliday(ctx, &bad))

	list, err := s.ListHolidays(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newYear, list[0])
	assert.Equal(t, "Ramadan", list[1].Name)
	assert.Nil(t, list[1].HijriYear)
	assert.Nil(t, list[1].GregorianMonth)
	assert.Equal(t, 9, *list[1].HijriMonth)

	require.NoError(t, s.DeleteHoliday(ctx, newYear.ID))
	assert.ErrorIs(t, s.DeleteHoliday(ctx, newYear.ID), ErrNotFound)
}
