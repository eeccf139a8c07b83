// Package agenda combines single events and expanded recurring occurrences
// into the ordered list served to clients.
package agenda

import (
	"slices"
	"strings"
	"time"

	"kalender/internal/model"
)

// TimeLayout is ISO 8601 with a numeric offset and no fractional seconds.
// It never emits "Z", so strings with the same offset sort chronologically.
const TimeLayout = "2006-01-02T15:04:05-07:00"

// Item is the serialized form of an event or of one occurrence of a series.
type Item struct {
	ID            int64               `json:"id"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Location      string              `json:"location"`
	StartAt       string              `json:"start_at"`
	EndAt         string              `json:"end_at"`
	AllDay        bool                `json:"all_day"`
	Divisions     []model.Division    `json:"divisions"`
	Participants  []model.Participant `json:"participants"`
	OccurrenceKey string              `json:"occurrence_key,omitempty"`
}

// FormatTime renders t with TimeLayout, keeping t's own offset.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// FromEvent serializes a stored event as-is.
func FromEvent(ev model.Event) Item {
	return Item{
		ID:           ev.ID,
		Title:        ev.Title,
		Description:  ev.Description,
		Location:     ev.Location,
		StartAt:      FormatTime(ev.Start),
		EndAt:        FormatTime(ev.End),
		AllDay:       ev.AllDay,
		Divisions:    nonNil(ev.Divisions),
		Participants: nonNil(ev.Participants),
	}
}

// FromOccurrence serializes one occurrence of ev.
func FromOccurrence(ev model.Event, occ model.Occurrence) Item {
	it := FromEvent(ev)
	it.StartAt = FormatTime(occ.Start)
	it.EndAt = FormatTime(occ.End)
	it.OccurrenceKey = occ.Key
	return it
}

// Merge concatenates singles and expanded and stable-sorts the result by the
// StartAt string. Items with equal starts keep their input order, singles first.
func Merge(singles, expanded []Item) []Item {
	merged := make([]Item, 0, len(singles)+len(expanded))
	merged = append(merged, singles...)
	merged = append(merged, expanded...)
	slices.SortStableFunc(merged, func(a, b Item) int {
		return strings.Compare(a.StartAt, b.StartAt)
	})
	return merged
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
