package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

type mockExperimentRepo struct {
	experiments map[int64]models.Experiment
	tasks       map[int64]models.Task
	nextID      int64
	deleteErr   error
}

func (m *mockExperimentRepo) ListByYear(ctx context.Context, year int) ([]models.Experiment, error) {
	var out []models.Experiment
	for _, e := range m.experiments {
		if e.Year == year {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockExperimentRepo) Find(ctx context.Context, id int64) (*models.Experiment, error) {
	if e, ok := m.experiments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExperimentRepo) Create(ctx context.Context, q sqlx.ExtContext, experiment models.Experiment) (int64, error) {
	m.nextID++
	experiment.ID = m.nextID
	m.experiments[experiment.ID] = experiment
	return experiment.ID, nil
}

func (m *mockExperimentRepo) Delete(ctx context.Context, q sqlx.ExtContext, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.experiments, id)
	return nil
}

func (m *mockExperimentRepo) TasksForYear(ctx context.Context, year int, includeExtra bool) ([]models.Task, error) {
	var out []models.Task
	for _, t := range m.tasks {
		experiment, ok := m.experiments[t.ExperimentID]
		if !ok || experiment.Year != year {
			continue
		}
		if !includeExtra && t.IsExtra() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockExperimentRepo) TasksForExperiment(ctx context.Context, experimentID int64) ([]models.Task, error) {
	var out []models.Task
	for _, t := range m.tasks {
		if t.ExperimentID == experimentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockExperimentRepo) FindTask(ctx context.Context, id int64) (*models.TaskDetail, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	experiment := m.experiments[t.ExperimentID]
	return &models.TaskDetail{
		ID:             t.ID,
		Name:           t.Name,
		ExperimentID:   t.ExperimentID,
		ExperimentName: experiment.Name,
		Year:           experiment.Year,
	}, nil
}

func (m *mockExperimentRepo) CreateTask(ctx context.Context, q sqlx.ExtContext, task models.Task) (int64, error) {
	m.nextID++
	task.ID = m.nextID
	m.tasks[task.ID] = task
	return task.ID, nil
}

func (m *mockExperimentRepo) DeleteTask(ctx context.Context, q sqlx.ExtContext, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.tasks, id)
	return nil
}

type experimentServiceFixture struct {
	svc         *ExperimentService
	experiments *mockExperimentRepo
	audit       *recordingAuditRepo
	mock        sqlmock.Sqlmock
}

func newExperimentServiceFixture(t *testing.T) *experimentServiceFixture {
	t.Helper()
	db, mock, cleanup := newTxMockDB(t)
	t.Cleanup(cleanup)

	repo := &mockExperimentRepo{
		experiments: map[int64]models.Experiment{
			3: {ID: 3, Name: "Oszilloskop", Year: 2025},
			4: {ID: 4, Name: "Transistor", Year: 2024},
		},
		tasks: map[int64]models.Task{
			7: {ID: 7, ExperimentID: 3, Name: "1.1"},
			8: {ID: 8, ExperimentID: 4, Name: "2.1"},
		},
		nextID: 10,
	}
	audit := &recordingAuditRepo{}
	auditSvc := NewAuditService(audit, zap.NewNop())

	yearRepoOps := []string{}
	years := NewYearService(db, &mockYearRepo{
		years: map[int]*models.Year{
			2025: {ID: 2025, Writable: true},
			2024: {ID: 2024, Writable: false},
		},
		ops: &yearRepoOps,
	}, nil, nil, nil, nil, nil, nil, nil, auditSvc, nil, zap.NewNop())

	svc := NewExperimentService(db, repo, years, auditSvc, nil, nil, zap.NewNop())
	return &experimentServiceFixture{svc: svc, experiments: repo, audit: audit, mock: mock}
}

func (f *experimentServiceFixture) tx() sqlmockTx {
	return sqlmockTx{f.mock}
}

func TestExperimentServiceCreate(t *testing.T) {
	f := newExperimentServiceFixture(t)
	f.tx().expectCommit(1)

	experiment, err := f.svc.Create(context.Background(), adminFor(2025), 2025, CreateExperimentRequest{Name: "Halbleiter"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), experiment.ID)
	assert.Equal(t, 2025, experiment.Year)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Created experiment Halbleiter (#11)", f.audit.entries[0].Change)
}

func TestExperimentServiceCreateRequiresAdmin(t *testing.T) {
	f := newExperimentServiceFixture(t)

	_, err := f.svc.Create(context.Background(), tutorFor(2025), 2025, CreateExperimentRequest{Name: "Halbleiter"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestExperimentServiceCreateClosedYear(t *testing.T) {
	f := newExperimentServiceFixture(t)

	_, err := f.svc.Create(context.Background(), adminFor(2024), 2024, CreateExperimentRequest{Name: "Halbleiter"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLocked))
}

func TestExperimentServiceCreateValidation(t *testing.T) {
	f := newExperimentServiceFixture(t)

	_, err := f.svc.Create(context.Background(), adminFor(2025), 2025, CreateExperimentRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExperimentServiceListByYear(t *testing.T) {
	f := newExperimentServiceFixture(t)

	result, err := f.svc.ListByYear(context.Background(), tutorFor(2025), 2025)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Oszilloskop", result[0].Experiment.Name)
	require.Len(t, result[0].Tasks, 1)
	assert.Equal(t, "1.1", result[0].Tasks[0].Name)
}

func TestExperimentServiceListForbidden(t *testing.T) {
	f := newExperimentServiceFixture(t)

	_, err := f.svc.ListByYear(context.Background(), tutorFor(2024), 2025)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestExperimentServiceDelete(t *testing.T) {
	f := newExperimentServiceFixture(t)
	f.tx().expectCommit(1)

	require.NoError(t, f.svc.Delete(context.Background(), adminFor(2025), 3))
	assert.NotContains(t, f.experiments.experiments, int64(3))
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Deleted experiment Oszilloskop (#3)", f.audit.entries[0].Change)
}

func TestExperimentServiceDeleteMissing(t *testing.T) {
	f := newExperimentServiceFixture(t)

	err := f.svc.Delete(context.Background(), adminFor(2025), 99)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExperimentServiceDeleteConstraintViolation(t *testing.T) {
	f := newExperimentServiceFixture(t)
	f.experiments.deleteErr = appErrors.Clone(appErrors.ErrConstraintViolation, "experiment still referenced")
	f.tx().expectRollback(1)

	err := f.svc.Delete(context.Background(), adminFor(2025), 3)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConstraintViolation))
}

func TestExperimentServiceCreateTask(t *testing.T) {
	f := newExperimentServiceFixture(t)
	f.tx().expectCommit(1)

	task, err := f.svc.CreateTask(context.Background(), adminFor(2025), 3, CreateTaskRequest{Name: "1.2"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), task.ID)
	assert.Equal(t, int64(3), task.ExperimentID)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Created task 1.2 (#11) in Oszilloskop", f.audit.entries[0].Change)
}

func TestExperimentServiceCreateTaskClosedYear(t *testing.T) {
	f := newExperimentServiceFixture(t)

	_, err := f.svc.CreateTask(context.Background(), adminFor(2024), 4, CreateTaskRequest{Name: "2.2"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLocked))
}

func TestExperimentServiceCreateTaskMissingExperiment(t *testing.T) {
	f := newExperimentServiceFixture(t)

	_, err := f.svc.CreateTask(context.Background(), adminFor(2025), 99, CreateTaskRequest{Name: "1.2"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExperimentServiceDeleteTask(t *testing.T) {
	f := newExperimentServiceFixture(t)
	f.tx().expectCommit(1)

	require.NoError(t, f.svc.DeleteTask(context.Background(), adminFor(2025), 7))
	assert.NotContains(t, f.experiments.tasks, int64(7))
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Deleted task 1.1 (#7) of Oszilloskop", f.audit.entries[0].Change)
}

func TestExperimentServiceDeleteTaskForbidden(t *testing.T) {
	f := newExperimentServiceFixture(t)

	err := f.svc.DeleteTask(context.Background(), adminFor(2025), 8)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
