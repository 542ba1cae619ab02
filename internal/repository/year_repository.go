package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hwlab/labtrack-api/internal/models"
)

// YearRepository manages persistence for course years. Methods that
// participate in larger transactions accept an sqlx.ExtContext so the
// caller controls the transaction boundary.
type YearRepository struct {
	db *sqlx.DB
}

// NewYearRepository constructs a YearRepository.
func NewYearRepository(db *sqlx.DB) *YearRepository {
	return &YearRepository{db: db}
}

// List returns all years ordered chronologically.
func (r *YearRepository) List(ctx context.Context) ([]models.Year, error) {
	years := []models.Year{}
	if err := r.db.SelectContext(ctx, &years, "SELECT id, writable FROM years ORDER BY id ASC"); err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	return years, nil
}

// Find returns a single year. A missing row surfaces as sql.ErrNoRows.
func (r *YearRepository) Find(ctx context.Context, id int) (*models.Year, error) {
	var year models.Year
	if err := r.db.GetContext(ctx, &year, "SELECT id, writable FROM years WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &year, nil
}

// Count reports how many years exist. Used by bootstrap seeding.
func (r *YearRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM years"); err != nil {
		return 0, fmt.Errorf("count years: %w", err)
	}
	return count, nil
}

// Create inserts a new year in the writable state.
func (r *YearRepository) Create(ctx context.Context, q sqlx.ExtContext, id int) error {
	if _, err := q.ExecContext(ctx, "INSERT INTO years (id, writable) VALUES ($1, TRUE)", id); err != nil {
		return classify(err, "create year")
	}
	return nil
}

// SetWritable flips the writable flag for a year.
func (r *YearRepository) SetWritable(ctx context.Context, q sqlx.ExtContext, id int, writable bool) error {
	res, err := q.ExecContext(ctx, "UPDATE years SET writable = $1 WHERE id = $2", writable, id)
	if err != nil {
		return fmt.Errorf("set year writable: %w", err)
	}
	return expectOne(res, "set year writable")
}

// FindWritableYearForGroup resolves the year a group belongs to by
// walking group -> day -> year. A missing row means the group does not
// exist; callers distinguish a locked year from a missing one.
func (r *YearRepository) FindWritableYearForGroup(ctx context.Context, q sqlx.ExtContext, groupID int64) (*models.Year, error) {
	var year models.Year
	query := `SELECT y.id, y.writable FROM years y
        JOIN days d ON d.year = y.id
        JOIN groups g ON g.day_id = d.id
        WHERE g.id = $1`
	if err := sqlx.GetContext(ctx, q, &year, query, groupID); err != nil {
		return nil, err
	}
	return &year, nil
}

// DeleteRow removes the year row itself. Dependent rows must already be
// gone; the service layer drives the full cascade in order.
func (r *YearRepository) DeleteRow(ctx context.Context, q sqlx.ExtContext, id int) error {
	res, err := q.ExecContext(ctx, "DELETE FROM years WHERE id = $1", id)
	if err != nil {
		return classify(err, "delete year")
	}
	return expectOne(res, "delete year")
}
