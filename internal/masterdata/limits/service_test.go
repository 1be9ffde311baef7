package limits

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	limits map[int64][]DiscountLimit
	calls  int
	err    error
}

func (m *mockRepo) ListBySalesperson(ctx context.Context, salespersonID int64) ([]DiscountLimit, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.limits[salespersonID], nil
}

func newCachedService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, client, time.Minute, logger)
}

func TestForSalespersonCachesResult(t *testing.T) {
	max2 := 5.0
	repo := &mockRepo{limits: map[int64][]DiscountLimit{
		5: {{ID: 1, SalespersonID: 5, ProductGroupCode: "PUMPS", MaxDiscount1: 15, MaxDiscount2: &max2}},
	}}
	svc := newCachedService(t, repo)

	first, err := svc.ForSalesperson(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, repo.calls)

	second, err := svc.ForSalesperson(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.calls)
}

func TestForSalespersonInvalidate(t *testing.T) {
	repo := &mockRepo{limits: map[int64][]DiscountLimit{
		5: {{ID: 1, SalespersonID: 5, ProductGroupCode: "PUMPS", MaxDiscount1: 15}},
	}}
	svc := newCachedService(t, repo)

	_, err := svc.ForSalesperson(context.Background(), 5)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(context.Background(), 5))

	_, err = svc.ForSalesperson(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestForSalespersonNoCache(t *testing.T) {
	repo := &mockRepo{limits: map[int64][]DiscountLimit{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, nil, time.Minute, logger)

	lims, err := svc.ForSalesperson(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, lims)
	require.NoError(t, svc.Invalidate(context.Background(), 5))
}

func TestForSalespersonRepoError(t *testing.T) {
	repo := &mockRepo{err: errors.New("db down")}
	svc := newCachedService(t, repo)

	_, err := svc.ForSalesperson(context.Background(), 5)
	assert.Error(t, err)
}
