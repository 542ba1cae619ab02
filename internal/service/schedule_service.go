package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	"github.com/hwlab/labtrack-api/pkg/database"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

type scheduleDayRepository interface {
	ListByYear(ctx context.Context, year int) ([]models.Day, error)
	Find(ctx context.Context, id int64) (*models.Day, error)
	Create(ctx context.Context, q sqlx.ExtContext, day models.Day) (int64, error)
	Delete(ctx context.Context, q sqlx.ExtContext, id int64) error
	EventsForYear(ctx context.Context, year int) ([]models.Event, error)
	UpsertEvent(ctx context.Context, q sqlx.ExtContext, event models.Event) error
	DeleteEvent(ctx context.Context, q sqlx.ExtContext, dayID, experimentID int64) error
}

type scheduleExperimentRepository interface {
	Find(ctx context.Context, id int64) (*models.Experiment, error)
}

// CreateDayRequest is the payload for adding a lab day.
type CreateDayRequest struct {
	Name string `json:"name" validate:"required"`
}

// ScheduleEventRequest is the payload for scheduling an experiment.
type ScheduleEventRequest struct {
	ExperimentID int64     `json:"experiment_id" validate:"required"`
	Date         time.Time `json:"date" validate:"required"`
}

// ScheduleService manages lab days and the experiment plan: which
// experiment runs on which day at which date.
type ScheduleService struct {
	db          *sqlx.DB
	days        scheduleDayRepository
	experiments scheduleExperimentRepository
	years       *YearService
	audit       *AuditService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(db *sqlx.DB, days scheduleDayRepository, experiments scheduleExperimentRepository, years *YearService, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ScheduleService{
		db:          db,
		days:        days,
		experiments: experiments,
		years:       years,
		audit:       audit,
		validator:   validate,
		logger:      logger,
	}
}

func (s *ScheduleService) guardMutation(ctx context.Context, principal *models.Principal, year int) error {
	if err := principal.EnsureAdminFor(year); err != nil {
		return err
	}
	return s.years.EnsureWritable(ctx, year)
}

// ListDays returns the lab days of a year.
func (s *ScheduleService) ListDays(ctx context.Context, principal *models.Principal, year int) ([]models.Day, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}
	days, err := s.days.ListByYear(ctx, year)
	if err != nil {
		return nil, serviceError(err, "failed to list days")
	}
	return days, nil
}

// ListEvents returns the experiment plan of a year.
func (s *ScheduleService) ListEvents(ctx context.Context, principal *models.Principal, year int) ([]models.Event, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}
	events, err := s.days.EventsForYear(ctx, year)
	if err != nil {
		return nil, serviceError(err, "failed to list events")
	}
	return events, nil
}

// CreateDay adds a lab day to a year.
func (s *ScheduleService) CreateDay(ctx context.Context, principal *models.Principal, year int, req CreateDayRequest) (*models.Day, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day payload")
	}
	if err := s.guardMutation(ctx, principal, year); err != nil {
		return nil, err
	}

	day := models.Day{Name: req.Name, Year: year}
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := s.days.Create(ctx, tx, day)
		if err != nil {
			return err
		}
		day.ID = id
		return s.audit.Record(ctx, tx, year, principal.Name, nil, "Created day %s", day.Name)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create day")
	}
	return &day, nil
}

// DeleteDay removes a lab day. Days with groups fail with a constraint
// violation from the database.
func (s *ScheduleService) DeleteDay(ctx context.Context, principal *models.Principal, id int64) error {
	day, err := s.days.Find(ctx, id)
	if err != nil {
		return serviceError(err, "failed to fetch day")
	}
	if err := s.guardMutation(ctx, principal, day.Year); err != nil {
		return err
	}

	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.days.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, day.Year, principal.Name, nil, "Deleted day %s", day.Name)
	})
	if err != nil {
		return serviceError(err, "failed to delete day")
	}
	return nil
}

// ScheduleEvent puts an experiment on a day's plan, replacing a previous
// date for the same pair.
func (s *ScheduleService) ScheduleEvent(ctx context.Context, principal *models.Principal, dayID int64, req ScheduleEventRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	day, err := s.days.Find(ctx, dayID)
	if err != nil {
		return serviceError(err, "failed to fetch day")
	}
	if err := s.guardMutation(ctx, principal, day.Year); err != nil {
		return err
	}

	experiment, err := s.experiments.Find(ctx, req.ExperimentID)
	if err != nil {
		return serviceError(err, "failed to fetch experiment")
	}
	if experiment.Year != day.Year {
		return appErrors.Clone(appErrors.ErrConstraintViolation, "experiment belongs to a different year")
	}

	event := models.Event{DayID: dayID, ExperimentID: req.ExperimentID, Date: req.Date}
	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.days.UpsertEvent(ctx, tx, event); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, day.Year, principal.Name, nil, "Scheduled %s on %s for %s", experiment.Name, day.Name, req.Date.Format("2006-01-02"))
	})
	if err != nil {
		return serviceError(err, "failed to schedule event")
	}
	return nil
}

// DeleteEvent removes an experiment from a day's plan.
func (s *ScheduleService) DeleteEvent(ctx context.Context, principal *models.Principal, dayID, experimentID int64) error {
	day, err := s.days.Find(ctx, dayID)
	if err != nil {
		return serviceError(err, "failed to fetch day")
	}
	if err := s.guardMutation(ctx, principal, day.Year); err != nil {
		return err
	}

	experiment, err := s.experiments.Find(ctx, experimentID)
	if err != nil {
		return serviceError(err, "failed to fetch experiment")
	}

	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.days.DeleteEvent(ctx, tx, dayID, experimentID); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, day.Year, principal.Name, nil, "Unscheduled %s from %s", experiment.Name, day.Name)
	})
	if err != nil {
		return serviceError(err, "failed to delete event")
	}
	return nil
}
