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

type tutorRepository interface {
	ListByYear(ctx context.Context, year int) ([]models.Tutor, error)
	Find(ctx context.Context, id int64) (*models.Tutor, error)
	Create(ctx context.Context, q sqlx.ExtContext, tutor models.Tutor) (int64, error)
	Delete(ctx context.Context, q sqlx.ExtContext, id int64) error
	SetAdmin(ctx context.Context, q sqlx.ExtContext, id int64, isAdmin bool) error
}

// CreateTutorRequest is the payload for granting tutor rights.
type CreateTutorRequest struct {
	Username string `json:"username" validate:"required"`
	IsAdmin  bool   `json:"is_admin"`
}

// TutorService manages per-year tutor memberships. All mutations require
// admin rights for the targeted year; changes take effect on the
// affected user's next login.
type TutorService struct {
	db        *sqlx.DB
	tutors    tutorRepository
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTutorService constructs a TutorService.
func NewTutorService(db *sqlx.DB, tutors tutorRepository, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *TutorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TutorService{db: db, tutors: tutors, audit: audit, validator: validate, logger: logger}
}

// ListByYear returns the tutors of a year.
func (s *TutorService) ListByYear(ctx context.Context, principal *models.Principal, year int) ([]models.Tutor, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}
	tutors, err := s.tutors.ListByYear(ctx, year)
	if err != nil {
		return nil, serviceError(err, "failed to list tutors")
	}
	return tutors, nil
}

// Create grants a username tutor rights for a year.
func (s *TutorService) Create(ctx context.Context, principal *models.Principal, year int, req CreateTutorRequest) (*models.Tutor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tutor payload")
	}
	if err := principal.EnsureAdminFor(year); err != nil {
		return nil, err
	}

	tutor := models.Tutor{Username: req.Username, Year: year, IsAdmin: req.IsAdmin}
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := s.tutors.Create(ctx, tx, tutor)
		if err != nil {
			return err
		}
		tutor.ID = id
		role := "tutor"
		if tutor.IsAdmin {
			role = "admin"
		}
		return s.audit.Record(ctx, tx, year, principal.Name, nil, "Added %s as %s for year %d", tutor.Username, role, year)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create tutor")
	}

	s.logger.Info("tutor added", zap.String("username", tutor.Username), zap.Int("year", year), zap.Bool("admin", tutor.IsAdmin))
	return &tutor, nil
}

// Delete revokes a tutor membership.
func (s *TutorService) Delete(ctx context.Context, principal *models.Principal, id int64) error {
	tutor, err := s.tutors.Find(ctx, id)
	if err != nil {
		return serviceError(err, "failed to fetch tutor")
	}
	if err := principal.EnsureAdminFor(tutor.Year); err != nil {
		return err
	}

	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.tutors.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, tutor.Year, principal.Name, nil, "Removed %s from year %d", tutor.Username, tutor.Year)
	})
	if err != nil {
		return serviceError(err, "failed to delete tutor")
	}
	return nil
}

// SetAdmin grants or revokes the per-year admin flag of a membership.
func (s *TutorService) SetAdmin(ctx context.Context, principal *models.Principal, id int64, isAdmin bool) error {
	tutor, err := s.tutors.Find(ctx, id)
	if err != nil {
		return serviceError(err, "failed to fetch tutor")
	}
	if err := principal.EnsureAdminFor(tutor.Year); err != nil {
		return err
	}

	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.tutors.SetAdmin(ctx, tx, id, isAdmin); err != nil {
			return err
		}
		verb := "Granted"
		if !isAdmin {
			verb = "Revoked"
		}
		return s.audit.Record(ctx, tx, tutor.Year, principal.Name, nil, "%s admin for %s in year %d", verb, tutor.Username, tutor.Year)
	})
	if err != nil {
		return serviceError(err, "failed to update tutor admin flag")
	}
	return nil
}
