package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mclemens/timekeep/internal/model"
)

// ActiveFilter selects which timers List returns.
type ActiveFilter int

const (
	FilterAny ActiveFilter = iota
	FilterActiveOnly
	FilterInactiveOnly
)

type TimerStore struct {
	db *sql.DB
}

func NewTimerStore(db *sql.DB) *TimerStore {
	return &TimerStore{db: db}
}

func scanTimer(scanner interface{ Scan(...any) error }) (*model.Timer, error) {
	var t model.Timer
	var end, duration sql.NullInt64
	err := scanner.Scan(&t.ID, &t.UserID, &t.Description, &t.Start, &end, &duration, &t.IsActive)
	if err != nil {
		return nil, err
	}
	if end.Valid {
		t.End = &end.Int64
	}
	if duration.Valid {
		t.Duration = &duration.Int64
	}
	return &t, nil
}

const timerCols = `id, user_id, description, start_ms, end_ms, duration_ms, is_active`

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Start creates an active timer with start set to the current time.
func (s *TimerStore) Start(userID, description string) (*model.Timer, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}

	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO timers (id, user_id, description, start_ms, is_active) VALUES (?, ?, ?, ?, 1)`,
		id, userID, description, nowMillis(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert timer: %w", err)
	}
	return s.getByID(id)
}

// Stop ends the active timer with the given id and owner, fixing end and
// duration. The update predicate matches is_active = 1, so of two concurrent
// stops at most one sees a row to update; the other gets ErrNotFound. A
// nonexistent id, a foreign owner, and an already-stopped timer are the same
// failure.
func (s *TimerStore) Stop(userID, timerID string) (*model.Timer, error) {
	now := nowMillis()
	result, err := s.db.Exec(
		`UPDATE timers SET is_active = 0, end_ms = ?, duration_ms = ? - start_ms
		 WHERE id = ? AND user_id = ? AND is_active = 1`,
		now, now, timerID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("stop timer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: active timer", ErrNotFound)
	}
	return s.getByID(timerID)
}

// List returns the user's timers matching the filter. Active timers are
// enriched with progress at read time. Inactive-only queries are sorted by
// start descending; other modes return insertion order.
func (s *TimerStore) List(userID string, filter ActiveFilter) ([]model.Timer, error) {
	query := `SELECT ` + timerCols + ` FROM timers WHERE user_id = ?`
	switch filter {
	case FilterActiveOnly:
		query += ` AND is_active = 1`
	case FilterInactiveOnly:
		query += ` AND is_active = 0 ORDER BY start_ms DESC`
	}

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	now := nowMillis()
	var timers []model.Timer
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		enrich(t, now)
		timers = append(timers, *t)
	}
	return timers, rows.Err()
}

// ListAll returns every timer for the user regardless of state, active ones
// enriched with progress. Used for full-snapshot pushes.
func (s *TimerStore) ListAll(userID string) ([]model.Timer, error) {
	return s.List(userID, FilterAny)
}

// ListActive returns the user's running timers enriched with progress. Used
// by the periodic broadcast tick.
func (s *TimerStore) ListActive(userID string) ([]model.Timer, error) {
	return s.List(userID, FilterActiveOnly)
}

func (s *TimerStore) getByID(id string) (*model.Timer, error) {
	row := s.db.QueryRow(`SELECT `+timerCols+` FROM timers WHERE id = ?`, id)
	t, err := scanTimer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get timer: %w", err)
	}
	return t, nil
}

// enrich sets progress on an active timer. Stopped timers never carry
// progress.
func enrich(t *model.Timer, now int64) {
	if !t.IsActive {
		return
	}
	p := now - t.Start
	t.Progress = &p
}
