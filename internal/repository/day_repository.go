package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hwlab/labtrack-api/internal/models"
)

// DayRepository manages lab days and their scheduled experiment events.
type DayRepository struct {
	db *sqlx.DB
}

// NewDayRepository constructs a DayRepository.
func NewDayRepository(db *sqlx.DB) *DayRepository {
	return &DayRepository{db: db}
}

// ListByYear returns the lab days of a year ordered by name.
func (r *DayRepository) ListByYear(ctx context.Context, year int) ([]models.Day, error) {
	days := []models.Day{}
	if err := r.db.SelectContext(ctx, &days, "SELECT id, name, year FROM days WHERE year = $1 ORDER BY name ASC", year); err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	return days, nil
}

// Find returns a single day.
func (r *DayRepository) Find(ctx context.Context, id int64) (*models.Day, error) {
	var day models.Day
	if err := r.db.GetContext(ctx, &day, "SELECT id, name, year FROM days WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &day, nil
}

// Create inserts a lab day and returns the generated id.
func (r *DayRepository) Create(ctx context.Context, q sqlx.ExtContext, day models.Day) (int64, error) {
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, "INSERT INTO days (name, year) VALUES ($1, $2) RETURNING id", day.Name, day.Year); err != nil {
		return 0, classify(err, "create day")
	}
	return id, nil
}

// Delete removes a single day row.
func (r *DayRepository) Delete(ctx context.Context, q sqlx.ExtContext, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM days WHERE id = $1", id)
	if err != nil {
		return classify(err, "delete day")
	}
	return expectOne(res, "delete day")
}

// IDsForYear returns every day id of a year. The year teardown collects
// them up front because later steps key off the same id set.
func (r *DayRepository) IDsForYear(ctx context.Context, q sqlx.ExtContext, year int) ([]int64, error) {
	ids := []int64{}
	if err := sqlx.SelectContext(ctx, q, &ids, "SELECT id FROM days WHERE year = $1", year); err != nil {
		return nil, fmt.Errorf("day ids for year: %w", err)
	}
	return ids, nil
}

// DeleteEventsForDays removes all scheduled events of the given days.
func (r *DayRepository) DeleteEventsForDays(ctx context.Context, q sqlx.ExtContext, dayIDs []int64) error {
	if len(dayIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM events WHERE day_id IN (?)", dayIDs)
	if err != nil {
		return fmt.Errorf("delete events for days: %w", err)
	}
	if _, err := q.ExecContext(ctx, q.Rebind(query), args...); err != nil {
		return classify(err, "delete events for days")
	}
	return nil
}

// DeleteForYear removes the day rows of a year.
func (r *DayRepository) DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM days WHERE year = $1", year); err != nil {
		return classify(err, "delete days for year")
	}
	return nil
}

// EventsForYear lists scheduled events of a year ordered by experiment
// then date, which is the order the plan view renders them in.
func (r *DayRepository) EventsForYear(ctx context.Context, year int) ([]models.Event, error) {
	events := []models.Event{}
	query := `SELECT e.day_id, e.experiment_id, e.date FROM events e
        JOIN days d ON d.id = e.day_id
        WHERE d.year = $1 ORDER BY e.experiment_id ASC, e.date ASC`
	if err := r.db.SelectContext(ctx, &events, query, year); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// UpsertEvent schedules an experiment on a day, replacing an existing
// date for the same (day, experiment) pair.
func (r *DayRepository) UpsertEvent(ctx context.Context, q sqlx.ExtContext, event models.Event) error {
	query := `INSERT INTO events (day_id, experiment_id, date) VALUES ($1, $2, $3)
        ON CONFLICT (day_id, experiment_id) DO UPDATE SET date = EXCLUDED.date`
	if _, err := q.ExecContext(ctx, query, event.DayID, event.ExperimentID, event.Date); err != nil {
		return classify(err, "upsert event")
	}
	return nil
}

// DeleteEvent removes a single scheduled event.
func (r *DayRepository) DeleteEvent(ctx context.Context, q sqlx.ExtContext, dayID, experimentID int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM events WHERE day_id = $1 AND experiment_id = $2", dayID, experimentID)
	if err != nil {
		return classify(err, "delete event")
	}
	return expectOne(res, "delete event")
}
