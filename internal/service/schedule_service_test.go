package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

type mockScheduleDayRepo struct {
	days   map[int64]models.Day
	events map[string]models.Event
	nextID int64
}

func eventKey(dayID, experimentID int64) string {
	return fmt.Sprintf("%d:%d", dayID, experimentID)
}

func (m *mockScheduleDayRepo) ListByYear(ctx context.Context, year int) ([]models.Day, error) {
	var out []models.Day
	for _, d := range m.days {
		if d.Year == year {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockScheduleDayRepo) Find(ctx context.Context, id int64) (*models.Day, error) {
	if d, ok := m.days[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockScheduleDayRepo) Create(ctx context.Context, q sqlx.ExtContext, day models.Day) (int64, error) {
	m.nextID++
	day.ID = m.nextID
	m.days[day.ID] = day
	return day.ID, nil
}

func (m *mockScheduleDayRepo) Delete(ctx context.Context, q sqlx.ExtContext, id int64) error {
	delete(m.days, id)
	return nil
}

func (m *mockScheduleDayRepo) EventsForYear(ctx context.Context, year int) ([]models.Event, error) {
	var out []models.Event
	for _, e := range m.events {
		if d, ok := m.days[e.DayID]; ok && d.Year == year {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockScheduleDayRepo) UpsertEvent(ctx context.Context, q sqlx.ExtContext, event models.Event) error {
	m.events[eventKey(event.DayID, event.ExperimentID)] = event
	return nil
}

func (m *mockScheduleDayRepo) DeleteEvent(ctx context.Context, q sqlx.ExtContext, dayID, experimentID int64) error {
	delete(m.events, eventKey(dayID, experimentID))
	return nil
}

type mockScheduleExperimentRepo struct {
	experiments map[int64]models.Experiment
}

func (m *mockScheduleExperimentRepo) Find(ctx context.Context, id int64) (*models.Experiment, error) {
	if e, ok := m.experiments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

type scheduleServiceFixture struct {
	svc   *ScheduleService
	days  *mockScheduleDayRepo
	audit *recordingAuditRepo
	mock  sqlmock.Sqlmock
}

func newScheduleServiceFixture(t *testing.T) *scheduleServiceFixture {
	t.Helper()
	db, mock, cleanup := newTxMockDB(t)
	t.Cleanup(cleanup)

	days := &mockScheduleDayRepo{
		days: map[int64]models.Day{
			10: {ID: 10, Name: "Monday A", Year: 2025},
			11: {ID: 11, Name: "Friday B", Year: 2024},
		},
		events: map[string]models.Event{},
		nextID: 11,
	}
	experiments := &mockScheduleExperimentRepo{experiments: map[int64]models.Experiment{
		3: {ID: 3, Name: "Oszilloskop", Year: 2025},
		4: {ID: 4, Name: "Transistor", Year: 2024},
	}}
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

	svc := NewScheduleService(db, days, experiments, years, auditSvc, nil, zap.NewNop())
	return &scheduleServiceFixture{svc: svc, days: days, audit: audit, mock: mock}
}

func (f *scheduleServiceFixture) tx() sqlmockTx {
	return sqlmockTx{f.mock}
}

func TestScheduleServiceCreateDay(t *testing.T) {
	f := newScheduleServiceFixture(t)
	f.tx().expectCommit(1)

	day, err := f.svc.CreateDay(context.Background(), adminFor(2025), 2025, CreateDayRequest{Name: "Tuesday A"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), day.ID)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Created day Tuesday A", f.audit.entries[0].Change)
}

func TestScheduleServiceCreateDayClosedYear(t *testing.T) {
	f := newScheduleServiceFixture(t)

	_, err := f.svc.CreateDay(context.Background(), adminFor(2024), 2024, CreateDayRequest{Name: "Tuesday A"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLocked))
}

func TestScheduleServiceCreateDayRequiresAdmin(t *testing.T) {
	f := newScheduleServiceFixture(t)

	_, err := f.svc.CreateDay(context.Background(), tutorFor(2025), 2025, CreateDayRequest{Name: "Tuesday A"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestScheduleServiceDeleteDay(t *testing.T) {
	f := newScheduleServiceFixture(t)
	f.tx().expectCommit(1)

	require.NoError(t, f.svc.DeleteDay(context.Background(), adminFor(2025), 10))
	assert.NotContains(t, f.days.days, int64(10))
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Deleted day Monday A", f.audit.entries[0].Change)
}

func TestScheduleServiceDeleteDayMissing(t *testing.T) {
	f := newScheduleServiceFixture(t)

	err := f.svc.DeleteDay(context.Background(), adminFor(2025), 99)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestScheduleServiceScheduleEvent(t *testing.T) {
	f := newScheduleServiceFixture(t)
	f.tx().expectCommit(1)

	date := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	err := f.svc.ScheduleEvent(context.Background(), adminFor(2025), 10, ScheduleEventRequest{ExperimentID: 3, Date: date})
	require.NoError(t, err)
	assert.Contains(t, f.days.events, eventKey(10, 3))

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Scheduled Oszilloskop on Monday A for 2025-04-07", f.audit.entries[0].Change)
}

func TestScheduleServiceScheduleEventCrossYear(t *testing.T) {
	f := newScheduleServiceFixture(t)

	date := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	err := f.svc.ScheduleEvent(context.Background(), adminFor(2025), 10, ScheduleEventRequest{ExperimentID: 4, Date: date})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConstraintViolation))
	assert.Empty(t, f.days.events)
}

func TestScheduleServiceScheduleEventReplacesDate(t *testing.T) {
	f := newScheduleServiceFixture(t)
	f.tx().expectCommit(2)

	first := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	second := time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC)
	principal := adminFor(2025)

	require.NoError(t, f.svc.ScheduleEvent(context.Background(), principal, 10, ScheduleEventRequest{ExperimentID: 3, Date: first}))
	require.NoError(t, f.svc.ScheduleEvent(context.Background(), principal, 10, ScheduleEventRequest{ExperimentID: 3, Date: second}))

	require.Len(t, f.days.events, 1)
	assert.Equal(t, second, f.days.events[eventKey(10, 3)].Date)
}

func TestScheduleServiceDeleteEvent(t *testing.T) {
	f := newScheduleServiceFixture(t)
	f.days.events[eventKey(10, 3)] = models.Event{DayID: 10, ExperimentID: 3}
	f.tx().expectCommit(1)

	require.NoError(t, f.svc.DeleteEvent(context.Background(), adminFor(2025), 10, 3))
	assert.Empty(t, f.days.events)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Unscheduled Oszilloskop from Monday A", f.audit.entries[0].Change)
}

func TestScheduleServiceListEvents(t *testing.T) {
	f := newScheduleServiceFixture(t)
	f.days.events[eventKey(10, 3)] = models.Event{DayID: 10, ExperimentID: 3}
	f.days.events[eventKey(11, 4)] = models.Event{DayID: 11, ExperimentID: 4}

	events, err := f.svc.ListEvents(context.Background(), tutorFor(2025), 2025)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(10), events[0].DayID)
}
