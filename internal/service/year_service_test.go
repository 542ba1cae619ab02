package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

func newTxMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return sqlxDB, mock, cleanup
}

// sqlmockTx arms transaction expectations on a mock DB whose statements run
// against in-memory repos, so only Begin/Commit/Rollback reach the driver.
type sqlmockTx struct {
	mock sqlmock.Sqlmock
}

func (m sqlmockTx) expectCommit(n int) {
	for i := 0; i < n; i++ {
		m.mock.ExpectBegin()
		m.mock.ExpectCommit()
	}
}

func (m sqlmockTx) expectRollback(n int) {
	for i := 0; i < n; i++ {
		m.mock.ExpectBegin()
		m.mock.ExpectRollback()
	}
}

type recordingAuditRepo struct {
	entries []models.AuditLogEntry
	queried models.AuditFilter
	result  []models.AuditLogEntry
	authors []string
}

func (m *recordingAuditRepo) Insert(ctx context.Context, q sqlx.ExtContext, entry models.AuditLogEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *recordingAuditRepo) Query(ctx context.Context, filter models.AuditFilter) ([]models.AuditLogEntry, error) {
	m.queried = filter
	return m.result, nil
}

func (m *recordingAuditRepo) Authors(ctx context.Context) ([]string, error) {
	return m.authors, nil
}

// mockYearRepo implements yearRepository and appends every mutation to a
// shared op log so cascade ordering can be asserted.
type mockYearRepo struct {
	years map[int]*models.Year
	ops   *[]string
	count int
}

func (m *mockYearRepo) List(ctx context.Context) ([]models.Year, error) {
	out := make([]models.Year, 0, len(m.years))
	for _, y := range m.years {
		out = append(out, *y)
	}
	return out, nil
}

func (m *mockYearRepo) Find(ctx context.Context, id int) (*models.Year, error) {
	if y, ok := m.years[id]; ok {
		copied := *y
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockYearRepo) Count(ctx context.Context) (int, error) {
	return m.count, nil
}

func (m *mockYearRepo) Create(ctx context.Context, q sqlx.ExtContext, id int) error {
	if m.years == nil {
		m.years = map[int]*models.Year{}
	}
	m.years[id] = &models.Year{ID: id, Writable: true}
	*m.ops = append(*m.ops, fmt.Sprintf("years.create %d", id))
	return nil
}

func (m *mockYearRepo) SetWritable(ctx context.Context, q sqlx.ExtContext, id int, writable bool) error {
	y, ok := m.years[id]
	if !ok {
		return sql.ErrNoRows
	}
	y.Writable = writable
	*m.ops = append(*m.ops, fmt.Sprintf("years.writable %d %v", id, writable))
	return nil
}

func (m *mockYearRepo) DeleteRow(ctx context.Context, q sqlx.ExtContext, id int) error {
	delete(m.years, id)
	*m.ops = append(*m.ops, "years.delete")
	return nil
}

type mockYearDayRepo struct {
	dayIDs []int64
	ops    *[]string
}

func (m *mockYearDayRepo) IDsForYear(ctx context.Context, q sqlx.ExtContext, year int) ([]int64, error) {
	return m.dayIDs, nil
}

func (m *mockYearDayRepo) DeleteEventsForDays(ctx context.Context, q sqlx.ExtContext, dayIDs []int64) error {
	*m.ops = append(*m.ops, "events.delete")
	return nil
}

func (m *mockYearDayRepo) DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error {
	*m.ops = append(*m.ops, "days.delete")
	return nil
}

type mockYearGroupRepo struct {
	groupIDs []int64
	ops      *[]string
}

func (m *mockYearGroupRepo) IDsForDays(ctx context.Context, q sqlx.ExtContext, dayIDs []int64) ([]int64, error) {
	return m.groupIDs, nil
}

func (m *mockYearGroupRepo) DeleteCascade(ctx context.Context, q sqlx.ExtContext, groupID int64) error {
	*m.ops = append(*m.ops, fmt.Sprintf("groups.cascade %d", groupID))
	return nil
}

type mockYearExperimentRepo struct {
	experimentIDs []int64
	ops           *[]string
}

func (m *mockYearExperimentRepo) IDsForYear(ctx context.Context, q sqlx.ExtContext, year int) ([]int64, error) {
	return m.experimentIDs, nil
}

func (m *mockYearExperimentRepo) DeleteTasksForExperiments(ctx context.Context, q sqlx.ExtContext, experimentIDs []int64) error {
	*m.ops = append(*m.ops, "tasks.delete")
	return nil
}

func (m *mockYearExperimentRepo) DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error {
	*m.ops = append(*m.ops, "experiments.delete")
	return nil
}

type mockScopedRepo struct {
	name string
	ops  *[]string
	err  error
}

func (m *mockScopedRepo) DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error {
	if m.err != nil {
		return m.err
	}
	*m.ops = append(*m.ops, m.name+".delete")
	return nil
}

type yearServiceFixture struct {
	svc      *YearService
	mock     sqlmock.Sqlmock
	ops      []string
	years    *mockYearRepo
	students *mockScopedRepo
	audit    *recordingAuditRepo
	cleanup  func()
}

func newYearServiceFixture(t *testing.T, existing map[int]*models.Year) *yearServiceFixture {
	t.Helper()
	db, mock, cleanup := newTxMockDB(t)

	f := &yearServiceFixture{mock: mock, cleanup: cleanup}
	f.years = &mockYearRepo{years: existing, ops: &f.ops, count: len(existing)}
	f.students = &mockScopedRepo{name: "students", ops: &f.ops}
	f.audit = &recordingAuditRepo{}

	f.svc = NewYearService(
		db,
		f.years,
		&mockYearDayRepo{dayIDs: []int64{10, 11}, ops: &f.ops},
		&mockYearGroupRepo{groupIDs: []int64{100, 101}, ops: &f.ops},
		&mockYearExperimentRepo{experimentIDs: []int64{7}, ops: &f.ops},
		f.students,
		&mockScopedRepo{name: "tutors", ops: &f.ops},
		&mockScopedRepo{name: "whitelist", ops: &f.ops},
		&mockScopedRepo{name: "audit", ops: &f.ops},
		NewAuditService(f.audit, zap.NewNop()),
		nil,
		zap.NewNop(),
	)
	return f
}

func siteAdmin() *models.Principal {
	return &models.Principal{Name: "root", SiteAdmin: true}
}

func tutorFor(year int) *models.Principal {
	return &models.Principal{Name: "alice", TutorYears: map[int]bool{year: true}}
}

func adminFor(year int) *models.Principal {
	return &models.Principal{
		Name:       "alice",
		TutorYears: map[int]bool{year: true},
		AdminYears: map[int]bool{year: true},
	}
}

func TestYearServiceCreate(t *testing.T) {
	f := newYearServiceFixture(t, map[int]*models.Year{})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	year, err := f.svc.Create(context.Background(), siteAdmin(), 2026)
	require.NoError(t, err)
	assert.True(t, year.Writable)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Created year 2026", f.audit.entries[0].Change)
	assert.Equal(t, "root", f.audit.entries[0].Author)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestYearServiceCreateRequiresSiteAdmin(t *testing.T) {
	f := newYearServiceFixture(t, map[int]*models.Year{})
	defer f.cleanup()

	_, err := f.svc.Create(context.Background(), adminFor(2026), 2026)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, f.ops)
}

func TestYearServiceClose(t *testing.T) {
	f := newYearServiceFixture(t, map[int]*models.Year{
		2025: {ID: 2025, Writable: true},
	})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.Close(context.Background(), siteAdmin(), 2025))
	assert.False(t, f.years.years[2025].Writable)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Closed year 2025", f.audit.entries[0].Change)

	// The closed year now rejects every mutation with a locked error.
	err := f.svc.EnsureWritable(context.Background(), 2025)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLocked))
}

func TestYearServiceCloseRequiresSiteAdmin(t *testing.T) {
	f := newYearServiceFixture(t, map[int]*models.Year{
		2025: {ID: 2025, Writable: true},
	})
	defer f.cleanup()

	// Even an admin of the year itself cannot close it.
	err := f.svc.Close(context.Background(), adminFor(2025), 2025)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.True(t, f.years.years[2025].Writable)
}

func TestYearServiceEnsureWritableMissingYear(t *testing.T) {
	f := newYearServiceFixture(t, map[int]*models.Year{})
	defer f.cleanup()

	err := f.svc.EnsureWritable(context.Background(), 1999)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestYearServiceDeleteCascadeOrder(t *testing.T) {
	f := newYearServiceFixture(t, map[int]*models.Year{
		2025: {ID: 2025, Writable: false},
	})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.Delete(context.Background(), siteAdmin(), 2025))

	assert.Equal(t, []string{
		"groups.cascade 100",
		"groups.cascade 101",
		"events.delete",
		"days.delete",
		"tasks.delete",
		"experiments.delete",
		"students.delete",
		"tutors.delete",
		"whitelist.delete",
		"audit.delete",
		"years.delete",
	}, f.ops)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestYearServiceDeleteMissingYear(t *testing.T) {
	f := newYearServiceFixture(t, map[int]*models.Year{})
	defer f.cleanup()

	err := f.svc.Delete(context.Background(), siteAdmin(), 1999)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestYearServiceDeleteRollsBackOnFailure(t *testing.T) {
	f := newYearServiceFixture(t, map[int]*models.Year{
		2025: {ID: 2025, Writable: true},
	})
	defer f.cleanup()
	f.students.err = errors.New("disk on fire")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.Delete(context.Background(), siteAdmin(), 2025)
	require.Error(t, err)
	// Nothing after the failing step ran, the year row is untouched.
	assert.NotContains(t, f.ops, "tutors.delete")
	assert.NotContains(t, f.ops, "years.delete")
	assert.Contains(t, f.years.years, 2025)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestYearServiceBootstrapSeedsEmptyDatabase(t *testing.T) {
	f := newYearServiceFixture(t, map[int]*models.Year{})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.Bootstrap(context.Background(), false, 2026))
	assert.Contains(t, f.years.years, 2026)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "system", f.audit.entries[0].Author)
}

func TestYearServiceBootstrapSkipsSeedWhenYearsExist(t *testing.T) {
	f := newYearServiceFixture(t, map[int]*models.Year{
		2025: {ID: 2025, Writable: true},
	})
	defer f.cleanup()

	require.NoError(t, f.svc.Bootstrap(context.Background(), false, 2026))
	assert.NotContains(t, f.years.years, 2026)
	assert.Empty(t, f.audit.entries)
}
