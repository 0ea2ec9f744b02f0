// backend/services/poll_service.go
package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gewnthar/density/backend/collector"
	"github.com/gewnthar/density/backend/database"
)

// PollService drives the collector: one fetch-and-insert per tick. A failed
// cycle is logged and dropped; the loop only stops when the context does.
// Cycles run strictly in sequence, so a slow cycle delays the next tick
// rather than overlapping it.
type PollService struct {
	feed     *collector.FeedClient
	store    *database.DensityStore
	interval time.Duration
	logger   *zap.Logger
}

func NewPollService(feed *collector.FeedClient, store *database.DensityStore, interval time.Duration, logger *zap.Logger) *PollService {
	return &PollService{
		feed:     feed,
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Run polls immediately, then on every tick until ctx is cancelled.
func (s *PollService) Run(ctx context.Context) {
	s.logger.Info("collector started", zap.Duration("interval", s.interval))

	s.pollOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("collector stopped")
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *PollService) pollOnce(ctx context.Context) {
	payload, err := s.feed.FetchSnapshot(ctx)
	if err != nil {
		s.logger.Error("fetch cycle failed", zap.Error(err))
		return
	}
	if len(payload) == 0 {
		s.logger.Warn("feed returned no groups, skipping insert")
		return
	}

	result := s.store.InsertSnapshot(payload)
	if !result.OK() {
		s.logger.Error("insert cycle failed",
			zap.Time("dump_time", result.DumpTime),
			zap.Error(result.Err))
		return
	}

	s.logger.Info("snapshot stored",
		zap.Time("dump_time", result.DumpTime),
		zap.Int("rows", result.Inserted))
}
