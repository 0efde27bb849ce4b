package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servisfon/transfer-api/internal/models"
	appErrors "github.com/servisfon/transfer-api/pkg/errors"
)

type mockStatusCounter struct {
	counts map[models.TransferStatus]int
	calls  int
}

func (m *mockStatusCounter) CountByStatus(ctx context.Context, scope models.VisibilityScope) (map[models.TransferStatus]int, error) {
	m.calls++
	return m.counts, nil
}

type mockSummaryCache struct {
	data    map[string][]byte
	deleted []string
}

func newMockSummaryCache() *mockSummaryCache {
	return &mockSummaryCache{data: make(map[string][]byte)}
}

func (m *mockSummaryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockSummaryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *mockSummaryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	m.data = make(map[string][]byte)
	return nil
}

func TestDashboardServiceSummaryFillsAllStatuses(t *testing.T) {
	counter := &mockStatusCounter{counts: map[models.TransferStatus]int{
		models.StatusPending: 3,
		models.StatusDone:    1,
	}}
	svc := NewDashboardService(counter, nil, nil, time.Minute)

	summary, err := svc.Summary(context.Background(), admin())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Len(t, summary.ByStatus, 5)
	assert.Equal(t, 3, summary.ByStatus[models.StatusPending])
	assert.Equal(t, 0, summary.ByStatus[models.StatusInRepair])
}

func TestDashboardServiceSummaryUsesCache(t *testing.T) {
	counter := &mockStatusCounter{counts: map[models.TransferStatus]int{models.StatusPending: 1}}
	cache := newMockSummaryCache()
	svc := NewDashboardService(counter, cache, nil, time.Minute)

	_, err := svc.Summary(context.Background(), admin())
	require.NoError(t, err)
	assert.Equal(t, 1, counter.calls)

	_, err = svc.Summary(context.Background(), admin())
	require.NoError(t, err)
	assert.Equal(t, 1, counter.calls, "second call should hit the cache")
}

func TestDashboardServiceSummaryScopedKeys(t *testing.T) {
	counter := &mockStatusCounter{counts: map[models.TransferStatus]int{}}
	cache := newMockSummaryCache()
	svc := NewDashboardService(counter, cache, nil, time.Minute)

	_, err := svc.Summary(context.Background(), hqStaff())
	require.NoError(t, err)
	_, err = svc.Summary(context.Background(), technician())
	require.NoError(t, err)

	assert.Equal(t, 2, counter.calls, "different scopes must not share cache entries")
	assert.Len(t, cache.data, 2)
}

func TestDashboardServiceInvalidate(t *testing.T) {
	counter := &mockStatusCounter{counts: map[models.TransferStatus]int{}}
	cache := newMockSummaryCache()
	svc := NewDashboardService(counter, cache, nil, time.Minute)

	_, err := svc.Summary(context.Background(), admin())
	require.NoError(t, err)
	require.NotEmpty(t, cache.data)

	svc.Invalidate(context.Background())
	assert.Empty(t, cache.data)
	require.Len(t, cache.deleted, 1)
	assert.Equal(t, "dashboard:summary:*", cache.deleted[0])
}
