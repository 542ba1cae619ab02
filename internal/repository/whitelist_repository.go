package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hwlab/labtrack-api/internal/models"
)

// WhitelistRepository manages the per-year IP whitelist consulted at login.
type WhitelistRepository struct {
	db *sqlx.DB
}

// NewWhitelistRepository constructs a WhitelistRepository.
func NewWhitelistRepository(db *sqlx.DB) *WhitelistRepository {
	return &WhitelistRepository{db: db}
}

// ListByYear returns the whitelist entries of a year.
func (r *WhitelistRepository) ListByYear(ctx context.Context, year int) ([]models.IPWhitelistEntry, error) {
	entries := []models.IPWhitelistEntry{}
	if err := r.db.SelectContext(ctx, &entries, "SELECT id, ipnet, year FROM ip_whitelist WHERE year = $1 ORDER BY ipnet ASC", year); err != nil {
		return nil, fmt.Errorf("list whitelist: %w", err)
	}
	return entries, nil
}

// ListForYears returns the entries covering any of the given years. The
// login gate only considers years the candidate actually tutors.
func (r *WhitelistRepository) ListForYears(ctx context.Context, years []int) ([]models.IPWhitelistEntry, error) {
	if len(years) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT id, ipnet, year FROM ip_whitelist WHERE year IN (?)", years)
	if err != nil {
		return nil, fmt.Errorf("whitelist for years: %w", err)
	}
	entries := []models.IPWhitelistEntry{}
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("whitelist for years: %w", err)
	}
	return entries, nil
}

// Find returns a single whitelist entry.
func (r *WhitelistRepository) Find(ctx context.Context, id int64) (*models.IPWhitelistEntry, error) {
	var entry models.IPWhitelistEntry
	if err := r.db.GetContext(ctx, &entry, "SELECT id, ipnet, year FROM ip_whitelist WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create inserts a whitelist entry and returns the generated id.
func (r *WhitelistRepository) Create(ctx context.Context, q sqlx.ExtContext, entry models.IPWhitelistEntry) (int64, error) {
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, "INSERT INTO ip_whitelist (ipnet, year) VALUES ($1, $2) RETURNING id", entry.IPNet, entry.Year); err != nil {
		return 0, classify(err, "create whitelist entry")
	}
	return id, nil
}

// Delete removes a whitelist entry.
func (r *WhitelistRepository) Delete(ctx context.Context, q sqlx.ExtContext, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM ip_whitelist WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete whitelist entry: %w", err)
	}
	return expectOne(res, "delete whitelist entry")
}

// DeleteForYear removes the whitelist rows of a year.
func (r *WhitelistRepository) DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM ip_whitelist WHERE year = $1", year); err != nil {
		return classify(err, "delete whitelist for year")
	}
	return nil
}
