package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kalender/internal/model"
)

// === Divisions ===

func (s *Storage) CreateDivision(ctx context.Context, d *model.Division) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO divisions (name) VALUES (?)`, d.Name)
	if err != nil {
		return fmt.Errorf("insert division: %w", err)
	}
	id, _ := res.LastInsertId()
	d.ID = id
	return nil
}

// GetDivisionByName returns ErrNotFound when no division has that name.
func (s *Storage) GetDivisionByName(ctx context.Context, name string) (*model.Division, error) {
	d := &model.Division{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM divisions WHERE name = ?`, name,
	).Scan(&d.ID, &d.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get division: %w", err)
	}
	return d, nil
}

func (s *Storage) ListDivisions(ctx context.Context) ([]model.Division, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM divisions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list divisions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Division, 0)
	for rows.Next() {
		var d model.Division
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// === Users ===

// CreateUser stores a user; divisionID may be nil.
func (s *Storage) CreateUser(ctx context.Context, name string, divisionID *int64) (*model.Participant, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, division_id) VALUES (?, ?)`, name, divisionID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, _ := res.LastInsertId()

	p := &model.Participant{ID: id, Name: name}
	if divisionID != nil {
		d := &model.Division{ID: *divisionID}
		if err := s.db.QueryRowContext(ctx,
			`SELECT name FROM divisions WHERE id = ?`, *divisionID,
		).Scan(&d.Name); err != nil {
			return nil, fmt.Errorf("load user division: %w", err)
		}
		p.Division = d
	}
	return p, nil
}
