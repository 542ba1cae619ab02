package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwlab/labtrack-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestAuditRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	group := int64(7)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs (created_at, year, author, affected_group, change) VALUES ($1, $2, $3, $4, $5)")).
		WithArgs(sqlmock.AnyArg(), 2025, "alice", group, "Moved group 7 to desk 4").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), db, models.AuditLogEntry{
		Year:          2025,
		Author:        "alice",
		AffectedGroup: &group,
		Change:        "Moved group 7 to desk 4",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryQueryBuildsConditions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	rows := sqlmock.NewRows([]string{"id", "created_at", "year", "author", "affected_group", "change"}).
		AddRow(int64(1), time.Now(), 2025, "alice", nil, "Created group 5 at desk 2 on Monday A")

	mock.ExpectQuery(`WHERE 1=1 AND year = \$1 AND change ILIKE \$2 AND change ILIKE \$3 AND affected_group = \$4 AND author = \$5 ORDER BY created_at DESC LIMIT 50`).
		WithArgs(2025, "%group%", "%desk%", int64(5), "alice").
		WillReturnRows(rows)

	year := 2025
	group := int64(5)
	entries, err := repo.Query(context.Background(), models.AuditFilter{
		Year:   &year,
		Search: " group  desk ",
		Group:  &group,
		Author: "alice",
		Limit:  50,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Author)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryQueryClampsLimit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	rows := sqlmock.NewRows([]string{"id", "created_at", "year", "author", "affected_group", "change"})

	// Zero and oversized limits both fall back to the default of 100.
	mock.ExpectQuery(`LIMIT 100`).WillReturnRows(rows)
	_, err := repo.Query(context.Background(), models.AuditFilter{})
	require.NoError(t, err)

	mock.ExpectQuery(`LIMIT 100`).WillReturnRows(rows)
	_, err = repo.Query(context.Background(), models.AuditFilter{Limit: 5000})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryAuthors(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	rows := sqlmock.NewRows([]string{"author"}).AddRow("alice").AddRow("bob").AddRow("system")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT author FROM audit_logs ORDER BY author ASC")).
		WillReturnRows(rows)

	authors, err := repo.Authors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "system"}, authors)
}

func TestAuditRepositoryDeleteForYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_logs WHERE year = $1")).
		WithArgs(2025).
		WillReturnResult(sqlmock.NewResult(0, 12))

	require.NoError(t, repo.DeleteForYear(context.Background(), db, 2025))
	require.NoError(t, mock.ExpectationsWereMet())
}
