package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/utils"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	log "github.com/sirupsen/logrus"
)

const (
	rateLimitWindow = time.Minute
	// approachingFraction triggers the warning flag once an actor has
	// used this share of their budget.
	approachingFraction = 0.8
)

// RateLimitService implements a sliding window over two fixed one-minute
// buckets: the current bucket counts fully and the previous one
// proportionally to how much of it still overlaps the sliding window.
// Counters live in the database so all instances share the same budget.
type RateLimitService interface {
	Check(ctx context.Context, actor string) (*view.RateLimitDecision, error)
	StartPurgeJob()
}

type rateLimitServiceImpl struct {
	rateLimitRepo  repository.RateLimitRepository
	monitoring     MonitoringService
	limitPerMinute int
	now            func() time.Time
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, monitoring MonitoringService, limitPerMinute int) RateLimitService {
	return &rateLimitServiceImpl{
		rateLimitRepo:  rateLimitRepo,
		monitoring:     monitoring,
		limitPerMinute: limitPerMinute,
		now:            time.Now,
	}
}

func (s *rateLimitServiceImpl) Check(ctx context.Context, actor string) (*view.RateLimitDecision, error) {
	now := s.now()
	currentWindow := now.Truncate(rateLimitWindow)
	previousWindow := currentWindow.Add(-rateLimitWindow)

	currentCount, err := s.rateLimitRepo.IncrementWindow(ctx, actor, currentWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to increment rate limit window: %w", err)
	}
	previousCount, err := s.rateLimitRepo.GetWindowCount(ctx, actor, previousWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to read previous rate limit window: %w", err)
	}

	overlap := 1.0 - float64(now.Sub(currentWindow))/float64(rateLimitWindow)
	weighted := float64(currentCount) + float64(previousCount)*overlap

	decision := &view.RateLimitDecision{
		Allowed: weighted <= float64(s.limitPerMinute),
	}
	remaining := s.limitPerMinute - int(weighted)
	if remaining > 0 {
		decision.Remaining = remaining
	}
	decision.Approaching = weighted >= float64(s.limitPerMinute)*approachingFraction

	s.monitoring.AddRateLimitEvent(actor, decision.Allowed)
	if !decision.Allowed {
		log.Warnf("Rate limit exceeded for %s: %.1f requests in sliding window (limit %d)", actor, weighted, s.limitPerMinute)
	}
	return decision, nil
}

// StartPurgeJob periodically drops window rows old enough to never
// contribute to a sliding window again.
func (s *rateLimitServiceImpl) StartPurgeJob() {
	utils.SafeAsync(func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			purged, err := s.rateLimitRepo.PurgeExpired(context.Background(), s.now().Add(-3*rateLimitWindow))
			if err != nil {
				log.Errorf("Failed to purge expired rate limit windows: %v", err)
				continue
			}
			if purged > 0 {
				log.Debugf("Purged %d expired rate limit windows", purged)
			}
		}
	})
}
