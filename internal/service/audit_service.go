package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

type auditRepository interface {
	Insert(ctx context.Context, q sqlx.ExtContext, entry models.AuditLogEntry) error
	Query(ctx context.Context, filter models.AuditFilter) ([]models.AuditLogEntry, error)
	Authors(ctx context.Context) ([]string, error)
}

// AuditService records human-readable change descriptions and serves the
// filtered history view.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record appends one entry inside the caller's transaction, so the audit
// line commits or rolls back together with the change it describes.
func (s *AuditService) Record(ctx context.Context, q sqlx.ExtContext, year int, author string, group *int64, format string, args ...interface{}) error {
	entry := models.AuditLogEntry{
		Year:          year,
		Author:        author,
		AffectedGroup: group,
		Change:        fmt.Sprintf(format, args...),
	}
	if err := s.repo.Insert(ctx, q, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// Query returns the filtered history. Tutors must scope the query to a
// year they belong to; only site admins may query across years.
func (s *AuditService) Query(ctx context.Context, principal *models.Principal, filter models.AuditFilter) ([]models.AuditLogEntry, error) {
	if filter.Year == nil {
		if err := principal.EnsureSiteAdmin(); err != nil {
			return nil, err
		}
	} else if err := principal.EnsureTutorFor(*filter.Year); err != nil {
		return nil, err
	}

	entries, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query audit log")
	}
	return entries, nil
}

// Authors lists the distinct authors for the history filter dropdown.
func (s *AuditService) Authors(ctx context.Context) ([]string, error) {
	authors, err := s.repo.Authors(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit authors")
	}
	return authors, nil
}
