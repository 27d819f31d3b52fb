package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReplayService returns parked events to the dispatcher, for operators
// recovering from a long webhook outage. Delivery itself stays with the
// dispatcher so there is exactly one path to the sink.
type ReplayService struct {
	repo   *Repository
	logger *zap.Logger
}

func NewReplayService(repo *Repository, logger *zap.Logger) *ReplayService {
	return &ReplayService{repo: repo, logger: logger}
}

// ReplayFailed resets up to limit failed events to pending and reports
// how many were requeued. Events that fail delivery again park again.
func (s *ReplayService) ReplayFailed(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.FailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("load failed events: %w", err)
	}

	replayed := 0
	for _, event := range events {
		if err := s.repo.Replay(ctx, event.ID); err != nil {
			s.logger.Warn("Failed to requeue outbox event",
				zap.Int64("event_id", event.ID),
				zap.Int64("job_id", event.JobID),
				zap.Error(err),
			)
			continue
		}
		replayed++
	}
	if replayed > 0 {
		s.logger.Info("Requeued failed outbox events", zap.Int("count", replayed))
	}
	return replayed, nil
}
