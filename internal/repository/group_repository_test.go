package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwlab/labtrack-api/internal/models"
)

func TestGroupRepositoryDeleteCascadeOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM completions WHERE group_id = $1")).
		WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM elaborations WHERE group_id = $1")).
		WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM group_mappings WHERE group_id = $1")).
		WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM groups WHERE id = $1")).
		WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteCascade(context.Background(), db, 5))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositorySetCompletionIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (group_id, task_id) DO NOTHING")).
		WithArgs(int64(5), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetCompletion(context.Background(), db, models.Completion{GroupID: 5, TaskID: 9}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryDeleteCompletionMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM completions WHERE group_id = $1 AND task_id = $2")).
		WithArgs(int64(5), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteCompletion(context.Background(), db, 5, 9)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGroupRepositoryUpsertElaboration(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (group_id, experiment_id) DO UPDATE SET rework_required = EXCLUDED.rework_required, accepted = EXCLUDED.accepted")).
		WithArgs(int64(5), int64(3), true, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertElaboration(context.Background(), db, models.Elaboration{
		GroupID:        5,
		ExperimentID:   3,
		ReworkRequired: true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositorySearchBuildsTermConditions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	rows := sqlmock.NewRows([]string{"id", "desk", "day_id", "comment"}).
		AddRow(int64(5), 2, int64(10), "")

	mock.ExpectQuery(`s\.year = \$1 AND \(s\.given_name ILIKE \$2 OR s\.family_name ILIKE \$2 OR s\.matrikel ILIKE \$2\) AND \(s\.given_name ILIKE \$3 OR s\.family_name ILIKE \$3 OR s\.matrikel ILIKE \$3\)`).
		WithArgs(2025, "%ada%", "%love%").
		WillReturnRows(rows)

	groups, err := repo.Search(context.Background(), 2025, []string{"ada", "love"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(5), groups[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryUpdateCommentMissingGroup(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET comment = $1 WHERE id = $2")).
		WithArgs("(ENDE)", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateComment(context.Background(), db, 99, "(ENDE)")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGroupRepositoryIDsForDaysEmptyInput(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	ids, err := repo.IDsForDays(context.Background(), db, nil)
	require.NoError(t, err)
	assert.Nil(t, ids)
}
