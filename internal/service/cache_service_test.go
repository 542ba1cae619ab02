package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

type mapCacheRepo struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	deleted []string
}

func (m *mapCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = raw
	return nil
}

func (m *mapCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	return nil
}

func TestAnalysisKey(t *testing.T) {
	assert.Equal(t, "analysis:2025:eligible", AnalysisKey(2025, "eligible"))
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := &mapCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	key := AnalysisKey(2025, "tasks")
	hit, err := svc.Get(context.Background(), key, &map[string]int{})
	require.NoError(t, err)
	assert.False(t, hit)

	svc.Set(context.Background(), key, map[string]int{"rows": 3})

	out := map[string]int{}
	hit, err = svc.Get(context.Background(), key, &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, out["rows"])
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &mapCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)

	svc.Set(context.Background(), "k", "v")
	hit, err := svc.Get(context.Background(), "k", new(string))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, repo.data)
}

func TestCacheServiceNilReceiver(t *testing.T) {
	var svc *CacheService

	assert.False(t, svc.Enabled())
	hit, err := svc.Get(context.Background(), "k", new(string))
	require.NoError(t, err)
	assert.False(t, hit)
	svc.Set(context.Background(), "k", "v")
	svc.InvalidateYear(context.Background(), 2025)
}

func TestCacheServiceSetFailureIsSwallowed(t *testing.T) {
	repo := &mapCacheRepo{setErr: errors.New("redis down")}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	svc.Set(context.Background(), "k", "v")

	hit, err := svc.Get(context.Background(), "k", new(string))
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceInvalidateYear(t *testing.T) {
	repo := &mapCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	svc.InvalidateYear(context.Background(), 2025)
	assert.Equal(t, []string{"analysis:2025:*"}, repo.deleted)
}
