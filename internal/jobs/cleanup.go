package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/repository"
)

// SubscriptionExpirer marks subscriptions past their end date as expired.
type SubscriptionExpirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

type CleanupJob struct {
	subscriptions SubscriptionExpirer
	msgRepo       repository.ScheduledMessageRepository
	retention     time.Duration
	interval      time.Duration
	now           func() time.Time
	done          chan struct{}
}

func NewCleanupJob(
	subscriptions SubscriptionExpirer,
	msgRepo repository.ScheduledMessageRepository,
	retention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		subscriptions: subscriptions,
		msgRepo:       msgRepo,
		retention:     retention,
		interval:      interval,
		now:           time.Now,
		done:          make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "subscriptions", j.subscriptions.ExpireOverdue)
	j.runCleanup(ctx, "scheduled messages", func(ctx context.Context) (int64, error) {
		return j.msgRepo.DeleteFinishedBefore(ctx, j.now().Add(-j.retention))
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
