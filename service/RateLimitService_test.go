package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeRateLimitRepository struct {
	counts map[string]map[time.Time]int
}

func newFakeRateLimitRepository() *fakeRateLimitRepository {
	return &fakeRateLimitRepository{counts: make(map[string]map[time.Time]int)}
}

func (f *fakeRateLimitRepository) IncrementWindow(ctx context.Context, actor string, windowStart time.Time) (int, error) {
	if f.counts[actor] == nil {
		f.counts[actor] = make(map[time.Time]int)
	}
	f.counts[actor][windowStart]++
	return f.counts[actor][windowStart], nil
}

func (f *fakeRateLimitRepository) GetWindowCount(ctx context.Context, actor string, windowStart time.Time) (int, error) {
	return f.counts[actor][windowStart], nil
}

func (f *fakeRateLimitRepository) PurgeExpired(ctx context.Context, olderThan time.Time) (int, error) {
	purged := 0
	for _, windows := range f.counts {
		for start := range windows {
			if start.Before(olderThan) {
				delete(windows, start)
				purged++
			}
		}
	}
	return purged, nil
}

func newRateLimitFixture(limit int, now time.Time) (*rateLimitServiceImpl, *fakeRateLimitRepository) {
	repo := newFakeRateLimitRepository()
	svc := &rateLimitServiceImpl{
		rateLimitRepo:  repo,
		monitoring:     NewMonitoringService(),
		limitPerMinute: limit,
		now:            func() time.Time { return now },
	}
	return svc, repo
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	svc, _ := newRateLimitFixture(5, time.Date(2026, 8, 31, 12, 0, 30, 0, time.UTC))

	for i := 0; i < 5; i++ {
		decision, err := svc.Check(context.Background(), "10.0.0.1")
		assert.NoError(t, err)
		assert.True(t, decision.Allowed)
	}

	decision, err := svc.Check(context.Background(), "10.0.0.1")
	assert.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestRateLimitIsPerActor(t *testing.T) {
	svc, _ := newRateLimitFixture(1, time.Date(2026, 8, 31, 12, 0, 30, 0, time.UTC))

	first, err := svc.Check(context.Background(), "10.0.0.1")
	assert.NoError(t, err)
	assert.True(t, first.Allowed)

	other, err := svc.Check(context.Background(), "10.0.0.2")
	assert.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestRateLimitWeighsPreviousWindow(t *testing.T) {
	// 30s into the current window: half the previous window still
	// overlaps, so 8 previous requests count as 4.
	now := time.Date(2026, 8, 31, 12, 1, 30, 0, time.UTC)
	svc, repo := newRateLimitFixture(5, now)
	previousWindow := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	repo.counts["10.0.0.1"] = map[time.Time]int{previousWindow: 8}

	first, err := svc.Check(context.Background(), "10.0.0.1")
	assert.NoError(t, err)
	assert.True(t, first.Allowed) // 1 + 4 = 5, at the limit

	second, err := svc.Check(context.Background(), "10.0.0.1")
	assert.NoError(t, err)
	assert.False(t, second.Allowed) // 2 + 4 = 6, over
}

func TestRateLimitApproachingFlag(t *testing.T) {
	svc, _ := newRateLimitFixture(10, time.Date(2026, 8, 31, 12, 0, 30, 0, time.UTC))

	for i := 0; i < 7; i++ {
		d, err := svc.Check(context.Background(), "10.0.0.1")
		assert.NoError(t, err)
		assert.False(t, d.Approaching)
	}

	d, err := svc.Check(context.Background(), "10.0.0.1")
	assert.NoError(t, err)
	assert.True(t, d.Approaching)
	assert.True(t, d.Allowed)
}
