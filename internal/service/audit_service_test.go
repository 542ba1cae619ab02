package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

func TestAuditServiceRecordFormatsChange(t *testing.T) {
	repo := &recordingAuditRepo{}
	svc := NewAuditService(repo, zap.NewNop())

	group := int64(7)
	require.NoError(t, svc.Record(context.Background(), nil, 2025, "alice", &group, "Moved group %d to desk %d", group, 4))

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, 2025, entry.Year)
	assert.Equal(t, "alice", entry.Author)
	assert.Equal(t, "Moved group 7 to desk 4", entry.Change)
	require.NotNil(t, entry.AffectedGroup)
	assert.Equal(t, int64(7), *entry.AffectedGroup)
}

func TestAuditServiceQueryScopedToYear(t *testing.T) {
	repo := &recordingAuditRepo{result: []models.AuditLogEntry{{ID: 1, Year: 2025}}}
	svc := NewAuditService(repo, zap.NewNop())

	year := 2025
	entries, err := svc.Query(context.Background(), tutorFor(2025), models.AuditFilter{Year: &year, Search: "group 7"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "group 7", repo.queried.Search)
}

func TestAuditServiceQueryForeignYearForbidden(t *testing.T) {
	svc := NewAuditService(&recordingAuditRepo{}, zap.NewNop())

	year := 2024
	_, err := svc.Query(context.Background(), tutorFor(2025), models.AuditFilter{Year: &year})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAuditServiceQueryAcrossYearsRequiresSiteAdmin(t *testing.T) {
	repo := &recordingAuditRepo{}
	svc := NewAuditService(repo, zap.NewNop())

	_, err := svc.Query(context.Background(), adminFor(2025), models.AuditFilter{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Query(context.Background(), siteAdmin(), models.AuditFilter{})
	require.NoError(t, err)
}

func TestAuditServiceAuthors(t *testing.T) {
	repo := &recordingAuditRepo{authors: []string{"alice", "bob", "system"}}
	svc := NewAuditService(repo, zap.NewNop())

	authors, err := svc.Authors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "system"}, authors)
}
