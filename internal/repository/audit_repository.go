package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hwlab/labtrack-api/internal/models"
)

// AuditRepository persists and queries the append-only audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends an audit entry. The timestamp is taken here so entries
// written inside one transaction still order by wall clock.
func (r *AuditRepository) Insert(ctx context.Context, q sqlx.ExtContext, entry models.AuditLogEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := "INSERT INTO audit_logs (created_at, year, author, affected_group, change) VALUES ($1, $2, $3, $4, $5)"
	if _, err := q.ExecContext(ctx, query, createdAt, entry.Year, entry.Author, entry.AffectedGroup, entry.Change); err != nil {
		return classify(err, "insert audit entry")
	}
	return nil
}

// Query returns audit entries matching the filter, newest first. Search
// terms are whitespace-split by the service and each must match the
// change text. The author filter is exact and case-sensitive.
func (r *AuditRepository) Query(ctx context.Context, filter models.AuditFilter) ([]models.AuditLogEntry, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, *filter.Year)
	}
	for _, term := range strings.Fields(filter.Search) {
		conditions = append(conditions, fmt.Sprintf("change ILIKE $%d", len(args)+1))
		args = append(args, "%"+term+"%")
	}
	if filter.Group != nil {
		conditions = append(conditions, fmt.Sprintf("affected_group = $%d", len(args)+1))
		args = append(args, *filter.Group)
	}
	if filter.Author != "" {
		conditions = append(conditions, fmt.Sprintf("author = $%d", len(args)+1))
		args = append(args, filter.Author)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT id, created_at, year, author, affected_group, change FROM audit_logs
        WHERE %s ORDER BY created_at DESC LIMIT %d`, strings.Join(conditions, " AND "), limit)

	entries := []models.AuditLogEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	return entries, nil
}

// Authors returns the distinct authors present in the trail, for the
// filter dropdown.
func (r *AuditRepository) Authors(ctx context.Context) ([]string, error) {
	authors := []string{}
	if err := r.db.SelectContext(ctx, &authors, "SELECT DISTINCT author FROM audit_logs ORDER BY author ASC"); err != nil {
		return nil, fmt.Errorf("list audit authors: %w", err)
	}
	return authors, nil
}

// DeleteForYear removes the audit rows of a year.
func (r *AuditRepository) DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM audit_logs WHERE year = $1", year); err != nil {
		return classify(err, "delete audit log for year")
	}
	return nil
}
