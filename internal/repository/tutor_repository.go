package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hwlab/labtrack-api/internal/models"
)

// TutorRepository manages tutor memberships across years.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository constructs a TutorRepository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// FindByUsername returns every year membership of a username. Login
// folds these rows into the principal.
func (r *TutorRepository) FindByUsername(ctx context.Context, username string) ([]models.Tutor, error) {
	tutors := []models.Tutor{}
	if err := r.db.SelectContext(ctx, &tutors, "SELECT id, username, year, is_admin FROM tutors WHERE username = $1 ORDER BY year ASC", username); err != nil {
		return nil, fmt.Errorf("find tutors by username: %w", err)
	}
	return tutors, nil
}

// ListByYear returns the tutors of a year ordered by username.
func (r *TutorRepository) ListByYear(ctx context.Context, year int) ([]models.Tutor, error) {
	tutors := []models.Tutor{}
	if err := r.db.SelectContext(ctx, &tutors, "SELECT id, username, year, is_admin FROM tutors WHERE year = $1 ORDER BY username ASC", year); err != nil {
		return nil, fmt.Errorf("list tutors: %w", err)
	}
	return tutors, nil
}

// Find returns a single tutor membership.
func (r *TutorRepository) Find(ctx context.Context, id int64) (*models.Tutor, error) {
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, "SELECT id, username, year, is_admin FROM tutors WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// Create inserts a tutor membership and returns the generated id.
func (r *TutorRepository) Create(ctx context.Context, q sqlx.ExtContext, tutor models.Tutor) (int64, error) {
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, "INSERT INTO tutors (username, year, is_admin) VALUES ($1, $2, $3) RETURNING id", tutor.Username, tutor.Year, tutor.IsAdmin); err != nil {
		return 0, classify(err, "create tutor")
	}
	return id, nil
}

// Delete removes a tutor membership.
func (r *TutorRepository) Delete(ctx context.Context, q sqlx.ExtContext, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM tutors WHERE id = $1", id)
	if err != nil {
		return classify(err, "delete tutor")
	}
	return expectOne(res, "delete tutor")
}

// SetAdmin grants or revokes per-year admin for a membership.
func (r *TutorRepository) SetAdmin(ctx context.Context, q sqlx.ExtContext, id int64, isAdmin bool) error {
	res, err := q.ExecContext(ctx, "UPDATE tutors SET is_admin = $1 WHERE id = $2", isAdmin, id)
	if err != nil {
		return fmt.Errorf("set tutor admin: %w", err)
	}
	return expectOne(res, "set tutor admin")
}

// DeleteForYear removes the tutor rows of a year.
func (r *TutorRepository) DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM tutors WHERE year = $1", year); err != nil {
		return classify(err, "delete tutors for year")
	}
	return nil
}
