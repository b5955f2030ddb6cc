// -----------------------------------------------------------------------
// Retention Service - scheduled purge of soft-deleted jobs
// -----------------------------------------------------------------------

package retention

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/interfaces"
)

// Service hard-deletes soft-deleted jobs once they age past the
// configured purge window, removing their records, quizzes, and any
// generated artifact files.
type Service struct {
	config  *common.Config
	storage interfaces.StorageManager
	cron    *cron.Cron
	logger  arbor.ILogger

	mu      sync.Mutex
	running bool
}

// NewService creates a new retention service
func NewService(config *common.Config, storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		config:  config,
		storage: storage,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start schedules the purge sweep on the configured cron expression
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Retention.Enabled {
		s.logger.Info().Msg("Retention sweeper disabled")
		return nil
	}
	if s.running {
		return nil
	}

	_, err := s.cron.AddFunc(s.config.Retention.Schedule, s.runSweep)
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.config.Retention.Schedule).
		Str("purge_after", s.config.Retention.PurgeAfter).
		Msg("Retention sweeper started")

	return nil
}

// Stop halts the scheduled sweeps, waiting for a running sweep to finish
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Retention sweeper stopped")
}

// runSweep is the scheduled entry point
func (s *Service) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	purged, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Retention sweep failed")
		return
	}
	if purged > 0 {
		s.logger.Info().Int("purged", purged).Msg("Retention sweep complete")
	}
}

// Sweep purges all soft-deleted jobs older than the purge window and
// returns how many were removed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.config.RetentionPurgeAfter())

	jobs, err := s.storage.JobStorage().GetDeletedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list purgeable jobs: %w", err)
	}

	purged := 0
	for _, job := range jobs {
		s.removeArtifacts(job.ID, job.SourceFilePath, job.PDFPath, job.AudioPath)

		if err := s.storage.QuizStorage().DeleteQuiz(ctx, job.ID); err != nil {
			s.logger.Debug().Str("job_id", job.ID).Err(err).Msg("No quiz to purge")
		}
		if err := s.storage.JobStorage().DeleteJob(ctx, job.ID); err != nil {
			s.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to purge job record")
			continue
		}

		s.logger.Debug().Str("job_id", job.ID).Msg("Purged deleted job")
		purged++
	}

	if purged > 0 {
		if err := s.storage.RunGC(); err != nil {
			s.logger.Debug().Err(err).Msg("Value log GC skipped")
		}
	}

	return purged, nil
}

// removeArtifacts deletes any on-disk files a job left behind
func (s *Service) removeArtifacts(jobID string, paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Str("job_id", jobID).Str("path", path).Err(err).Msg("Failed to remove artifact file")
		}
	}
}
