package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hwlab/labtrack-api/internal/models"
)

// ExperimentRepository manages experiments and their tasks.
type ExperimentRepository struct {
	db *sqlx.DB
}

// NewExperimentRepository constructs an ExperimentRepository.
func NewExperimentRepository(db *sqlx.DB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

// ListByYear returns the experiments of a year ordered by id.
func (r *ExperimentRepository) ListByYear(ctx context.Context, year int) ([]models.Experiment, error) {
	experiments := []models.Experiment{}
	if err := r.db.SelectContext(ctx, &experiments, "SELECT id, name, year FROM experiments WHERE year = $1 ORDER BY id ASC", year); err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	return experiments, nil
}

// Find returns a single experiment.
func (r *ExperimentRepository) Find(ctx context.Context, id int64) (*models.Experiment, error) {
	var experiment models.Experiment
	if err := r.db.GetContext(ctx, &experiment, "SELECT id, name, year FROM experiments WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &experiment, nil
}

// Create inserts an experiment and returns the generated id.
func (r *ExperimentRepository) Create(ctx context.Context, q sqlx.ExtContext, experiment models.Experiment) (int64, error) {
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, "INSERT INTO experiments (name, year) VALUES ($1, $2) RETURNING id", experiment.Name, experiment.Year); err != nil {
		return 0, classify(err, "create experiment")
	}
	return id, nil
}

// Delete removes a single experiment row.
func (r *ExperimentRepository) Delete(ctx context.Context, q sqlx.ExtContext, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM experiments WHERE id = $1", id)
	if err != nil {
		return classify(err, "delete experiment")
	}
	return expectOne(res, "delete experiment")
}

// IDsForYear returns every experiment id of a year.
func (r *ExperimentRepository) IDsForYear(ctx context.Context, q sqlx.ExtContext, year int) ([]int64, error) {
	ids := []int64{}
	if err := sqlx.SelectContext(ctx, q, &ids, "SELECT id FROM experiments WHERE year = $1", year); err != nil {
		return nil, fmt.Errorf("experiment ids for year: %w", err)
	}
	return ids, nil
}

// DeleteForYear removes the experiment rows of a year.
func (r *ExperimentRepository) DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM experiments WHERE year = $1", year); err != nil {
		return classify(err, "delete experiments for year")
	}
	return nil
}

// TasksForYear returns the tasks of a year ordered by experiment then
// name. Extra tasks (names starting with Z) are excluded unless asked
// for, since they do not count towards the required set.
func (r *ExperimentRepository) TasksForYear(ctx context.Context, year int, includeExtra bool) ([]models.Task, error) {
	tasks := []models.Task{}
	query := `SELECT t.id, t.name, t.experiment_id FROM tasks t
        JOIN experiments e ON e.id = t.experiment_id
        WHERE e.year = $1`
	if !includeExtra {
		query += " AND t.name NOT ILIKE 'Z%'"
	}
	query += " ORDER BY t.experiment_id ASC, t.name ASC"
	if err := r.db.SelectContext(ctx, &tasks, query, year); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// TasksForExperiment returns the tasks of one experiment ordered by name.
func (r *ExperimentRepository) TasksForExperiment(ctx context.Context, experimentID int64) ([]models.Task, error) {
	tasks := []models.Task{}
	if err := r.db.SelectContext(ctx, &tasks, "SELECT id, name, experiment_id FROM tasks WHERE experiment_id = $1 ORDER BY name ASC", experimentID); err != nil {
		return nil, fmt.Errorf("list experiment tasks: %w", err)
	}
	return tasks, nil
}

// FindTask returns a task with its experiment name and year attached.
func (r *ExperimentRepository) FindTask(ctx context.Context, id int64) (*models.TaskDetail, error) {
	var detail models.TaskDetail
	query := `SELECT t.id, t.name, t.experiment_id, e.name AS experiment_name, e.year FROM tasks t
        JOIN experiments e ON e.id = t.experiment_id
        WHERE t.id = $1`
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateTask inserts a task and returns the generated id.
func (r *ExperimentRepository) CreateTask(ctx context.Context, q sqlx.ExtContext, task models.Task) (int64, error) {
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, "INSERT INTO tasks (name, experiment_id) VALUES ($1, $2) RETURNING id", task.Name, task.ExperimentID); err != nil {
		return 0, classify(err, "create task")
	}
	return id, nil
}

// DeleteTask removes a single task row.
func (r *ExperimentRepository) DeleteTask(ctx context.Context, q sqlx.ExtContext, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return classify(err, "delete task")
	}
	return expectOne(res, "delete task")
}

// DeleteTasksForExperiments removes the tasks belonging to the given
// experiments. The year teardown runs this before dropping experiments.
func (r *ExperimentRepository) DeleteTasksForExperiments(ctx context.Context, q sqlx.ExtContext, experimentIDs []int64) error {
	if len(experimentIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM tasks WHERE experiment_id IN (?)", experimentIDs)
	if err != nil {
		return fmt.Errorf("delete tasks for experiments: %w", err)
	}
	if _, err := q.ExecContext(ctx, q.Rebind(query), args...); err != nil {
		return classify(err, "delete tasks for experiments")
	}
	return nil
}
