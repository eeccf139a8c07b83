package store

import (
	"context"
	"database/sql"
	"fmt"

	"kalender/internal/holiday"
	"kalender/internal/model"
)

const holidayColumns = `id, name, calendar_type, gregorian_month, gregorian_day, gregorian_year,
	hijri_month, hijri_day, hijri_year`

func holidayArgs(h *model.Holiday) []any {
	return []any{
		h.Name, string(h.CalendarType),
		nullInt(h.GregorianMonth), nullInt(h.GregorianDay), nullInt(h.GregorianYear),
		nullInt(h.HijriMonth), nullInt(h.HijriDay), nullInt(h.HijriYear),
	}
}

// CreateHoliday validates and stores h.
func (s *Storage) CreateHoliday(ctx context.Context, h *model.Holiday) error {
	if err := holiday.Validate(*h); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_holidays (name, calendar_type, gregorian_month, gregorian_day, gregorian_year,
			hijri_month, hijri_day, hijri_year)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		holidayArgs(h)...,
	)
	if err != nil {
		return fmt.Errorf("insert holiday: %w", err)
	}
	id, _ := res.LastInsertId()
	h.ID = id
	return nil
}

// UpsertHoliday validates h and stores it, replacing a holiday with the same name.
func (s *Storage) UpsertHoliday(ctx context.Context, h *model.Holiday) error {
	if err := holiday.Validate(*h); err != nil {
		return err
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO calendar_holidays (name, calendar_type, gregorian_month, gregorian_day, gregorian_year,
			hijri_month, hijri_day, hijri_year)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			calendar_type = excluded.calendar_type,
			gregorian_month = excluded.gregorian_month,
			gregorian_day = excluded.gregorian_day,
			gregorian_year = excluded.gregorian_year,
			hijri_month = excluded.hijri_month,
			hijri_day = excluded.hijri_day,
			hijri_year = excluded.hijri_year
		 RETURNING id`,
		holidayArgs(h)...,
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("upsert holiday %q: %w", h.Name, err)
	}
	return nil
}

func (s *Storage) DeleteHoliday(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calendar_holidays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHolidays returns every holiday in insertion order.
func (s *Storage) ListHolidays(ctx context.Context) ([]model.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+holidayColumns+` FROM calendar_holidays ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	out := make([]model.Holiday, 0)
	for rows.Next() {
		var h model.Holiday
		var typ string
		var gm, gd, gy, hm, hd, hy sql.NullInt64
		if err := rows.Scan(&h.ID, &h.Name, &typ, &gm, &gd, &gy, &hm, &hd, &hy); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		h.CalendarType = model.CalendarType(typ)
		h.GregorianMonth, h.GregorianDay, h.GregorianYear = intPtr(gm), intPtr(gd), intPtr(gy)
		h.HijriMonth, h.HijriDay, h.HijriYear = intPtr(hm), intPtr(hd), intPtr(hy)
		out = append(out, h)
	}
	return out, rows.Err()
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	return model.IntPtr(int(n.Int64))
}
