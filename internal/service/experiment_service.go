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

type experimentRepository interface {
	ListByYear(ctx context.Context, year int) ([]models.Experiment, error)
	Find(ctx context.Context, id int64) (*models.Experiment, error)
	Create(ctx context.Context, q sqlx.ExtContext, experiment models.Experiment) (int64, error)
	Delete(ctx context.Context, q sqlx.ExtContext, id int64) error
	TasksForYear(ctx context.Context, year int, includeExtra bool) ([]models.Task, error)
	TasksForExperiment(ctx context.Context, experimentID int64) ([]models.Task, error)
	FindTask(ctx context.Context, id int64) (*models.TaskDetail, error)
	CreateTask(ctx context.Context, q sqlx.ExtContext, task models.Task) (int64, error)
	DeleteTask(ctx context.Context, q sqlx.ExtContext, id int64) error
}

// ExperimentWithTasks pairs an experiment with its task list.
type ExperimentWithTasks struct {
	Experiment models.Experiment `json:"experiment"`
	Tasks      []models.Task     `json:"tasks"`
}

// CreateExperimentRequest is the payload for adding an experiment.
type CreateExperimentRequest struct {
	Name string `json:"name" validate:"required"`
}

// CreateTaskRequest is the payload for adding a task to an experiment.
type CreateTaskRequest struct {
	Name string `json:"name" validate:"required"`
}

// ExperimentService manages the course structure of a year: experiments
// and their tasks. Structural changes are admin operations and require a
// writable year.
type ExperimentService struct {
	db          *sqlx.DB
	experiments experimentRepository
	years       *YearService
	audit       *AuditService
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewExperimentService constructs an ExperimentService.
func NewExperimentService(db *sqlx.DB, experiments experimentRepository, years *YearService, audit *AuditService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ExperimentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ExperimentService{
		db:          db,
		experiments: experiments,
		years:       years,
		audit:       audit,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

func (s *ExperimentService) guardMutation(ctx context.Context, principal *models.Principal, year int) error {
	if err := principal.EnsureAdminFor(year); err != nil {
		return err
	}
	return s.years.EnsureWritable(ctx, year)
}

// ListByYear returns the experiments of a year with their tasks.
func (s *ExperimentService) ListByYear(ctx context.Context, principal *models.Principal, year int) ([]ExperimentWithTasks, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}

	experiments, err := s.experiments.ListByYear(ctx, year)
	if err != nil {
		return nil, serviceError(err, "failed to list experiments")
	}

	result := make([]ExperimentWithTasks, 0, len(experiments))
	for _, experiment := range experiments {
		tasks, err := s.experiments.TasksForExperiment(ctx, experiment.ID)
		if err != nil {
			return nil, serviceError(err, "failed to list tasks")
		}
		result = append(result, ExperimentWithTasks{Experiment: experiment, Tasks: tasks})
	}
	return result, nil
}

// Create adds an experiment to a year.
func (s *ExperimentService) Create(ctx context.Context, principal *models.Principal, year int, req CreateExperimentRequest) (*models.Experiment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid experiment payload")
	}
	if err := s.guardMutation(ctx, principal, year); err != nil {
		return nil, err
	}

	experiment := models.Experiment{Name: req.Name, Year: year}
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := s.experiments.Create(ctx, tx, experiment)
		if err != nil {
			return err
		}
		experiment.ID = id
		return s.audit.Record(ctx, tx, year, principal.Name, nil, "Created experiment %s (#%d)", experiment.Name, id)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create experiment")
	}

	if s.cache != nil {
		s.cache.InvalidateYear(ctx, year)
	}
	return &experiment, nil
}

// Delete removes an experiment. Experiments with tasks, events or
// elaborations fail with a constraint violation from the database.
func (s *ExperimentService) Delete(ctx context.Context, principal *models.Principal, id int64) error {
	experiment, err := s.experiments.Find(ctx, id)
	if err != nil {
		return serviceError(err, "failed to fetch experiment")
	}
	if err := s.guardMutation(ctx, principal, experiment.Year); err != nil {
		return err
	}

	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.experiments.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, experiment.Year, principal.Name, nil, "Deleted experiment %s (#%d)", experiment.Name, id)
	})
	if err != nil {
		return serviceError(err, "failed to delete experiment")
	}

	if s.cache != nil {
		s.cache.InvalidateYear(ctx, experiment.Year)
	}
	return nil
}

// CreateTask adds a task to an experiment. A name starting with Z marks
// the task as extra credit.
func (s *ExperimentService) CreateTask(ctx context.Context, principal *models.Principal, experimentID int64, req CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}

	experiment, err := s.experiments.Find(ctx, experimentID)
	if err != nil {
		return nil, serviceError(err, "failed to fetch experiment")
	}
	if err := s.guardMutation(ctx, principal, experiment.Year); err != nil {
		return nil, err
	}

	task := models.Task{Name: req.Name, ExperimentID: experimentID}
	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := s.experiments.CreateTask(ctx, tx, task)
		if err != nil {
			return err
		}
		task.ID = id
		return s.audit.Record(ctx, tx, experiment.Year, principal.Name, nil, "Created task %s (#%d) in %s", task.Name, id, experiment.Name)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create task")
	}

	if s.cache != nil {
		s.cache.InvalidateYear(ctx, experiment.Year)
	}
	return &task, nil
}

// DeleteTask removes a task. Tasks with recorded completions fail with a
// constraint violation from the database.
func (s *ExperimentService) DeleteTask(ctx context.Context, principal *models.Principal, id int64) error {
	task, err := s.experiments.FindTask(ctx, id)
	if err != nil {
		return serviceError(err, "failed to fetch task")
	}
	if err := s.guardMutation(ctx, principal, task.Year); err != nil {
		return err
	}

	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.experiments.DeleteTask(ctx, tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, task.Year, principal.Name, nil, "Deleted task %s (#%d) of %s", task.Name, task.ID, task.ExperimentName)
	})
	if err != nil {
		return serviceError(err, "failed to delete task")
	}

	if s.cache != nil {
		s.cache.InvalidateYear(ctx, task.Year)
	}
	return nil
}
