package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	"github.com/hwlab/labtrack-api/pkg/database"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

type whitelistRepository interface {
	ListByYear(ctx context.Context, year int) ([]models.IPWhitelistEntry, error)
	Find(ctx context.Context, id int64) (*models.IPWhitelistEntry, error)
	Create(ctx context.Context, q sqlx.ExtContext, entry models.IPWhitelistEntry) (int64, error)
	Delete(ctx context.Context, q sqlx.ExtContext, id int64) error
}

// CreateWhitelistRequest is the payload for allowing a network range.
type CreateWhitelistRequest struct {
	IPNet string `json:"ipnet" validate:"required"`
}

// WhitelistService manages the per-year login IP whitelist. Mutations
// require admin rights for the year; entries must parse as an address or
// CIDR range before they are stored.
type WhitelistService struct {
	db        *sqlx.DB
	entries   whitelistRepository
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWhitelistService constructs a WhitelistService.
func NewWhitelistService(db *sqlx.DB, entries whitelistRepository, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *WhitelistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WhitelistService{db: db, entries: entries, audit: audit, validator: validate, logger: logger}
}

// ListByYear returns the whitelist entries of a year.
func (s *WhitelistService) ListByYear(ctx context.Context, principal *models.Principal, year int) ([]models.IPWhitelistEntry, error) {
	if err := principal.EnsureAdminFor(year); err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByYear(ctx, year)
	if err != nil {
		return nil, serviceError(err, "failed to list whitelist")
	}
	return entries, nil
}

// Create allows a network range for a year.
func (s *WhitelistService) Create(ctx context.Context, principal *models.Principal, year int, req CreateWhitelistRequest) (*models.IPWhitelistEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid whitelist payload")
	}
	if err := principal.EnsureAdminFor(year); err != nil {
		return nil, err
	}

	entry := models.IPWhitelistEntry{IPNet: req.IPNet, Year: year}
	if _, err := entry.Prefix(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "not a valid IP address or CIDR range")
	}

	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := s.entries.Create(ctx, tx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return s.audit.Record(ctx, tx, year, principal.Name, nil, "Allowed logins from %s for year %d", entry.IPNet, year)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create whitelist entry")
	}

	s.logger.Info("whitelist entry added", zap.String("ipnet", entry.IPNet), zap.Int("year", year))
	return &entry, nil
}

// Delete removes a whitelist entry.
func (s *WhitelistService) Delete(ctx context.Context, principal *models.Principal, id int64) error {
	entry, err := s.entries.Find(ctx, id)
	if err != nil {
		return serviceError(err, "failed to fetch whitelist entry")
	}
	if err := principal.EnsureAdminFor(entry.Year); err != nil {
		return err
	}

	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.entries.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, entry.Year, principal.Name, nil, "Disallowed logins from %s for year %d", entry.IPNet, entry.Year)
	})
	if err != nil {
		return serviceError(err, "failed to delete whitelist entry")
	}
	return nil
}
