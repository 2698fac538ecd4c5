package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler handles automatic subscription updates
type Scheduler struct {
	scheduler gocron.Scheduler
	manager   *Manager
	log       *zap.Logger
	running   bool
}

// checkEvery is how often the scheduler looks for due subscriptions.
const checkEvery = 5 * time.Minute

// NewScheduler creates a new subscription scheduler
func NewScheduler(manager *Manager, log *zap.Logger) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Scheduler{
		scheduler: scheduler,
		manager:   manager,
		log:       log,
	}, nil
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(checkEvery),
		gocron.NewTask(func() {
			s.checkAndUpdateDue(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create update job: %w", err)
	}

	s.scheduler.Start()
	s.running = true

	// Run initial check
	go s.checkAndUpdateDue(ctx)

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	if !s.running {
		return fmt.Errorf("scheduler is not running")
	}

	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	s.running = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	return s.running
}

// checkAndUpdateDue refreshes all due subscriptions and logs the outcome.
func (s *Scheduler) checkAndUpdateDue(ctx context.Context) {
	results, err := s.manager.UpdateAllDue(ctx)
	if err != nil {
		s.log.Warn("due subscription check failed", zap.Error(err))
		return
	}

	for _, result := range results {
		if result.Err != nil {
			s.log.Warn("subscription update failed",
				zap.String("name", result.Name),
				zap.Error(result.Err))
			continue
		}
		s.log.Info("subscription updated",
			zap.String("name", result.Name),
			zap.Int("nodes", result.NodeCount))
	}
}

// ForceUpdateAll forces an update of all due subscriptions.
func (s *Scheduler) ForceUpdateAll(ctx context.Context) ([]*UpdateResult, error) {
	return s.manager.UpdateAllDue(ctx)
}
