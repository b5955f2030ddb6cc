package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/socratic/internal/models"
)

// Attempt describes where a delivery sits in the retry budget
type Attempt struct {
	Receive int  // 1-based delivery number
	Max     int  // Max deliveries allowed
	Final   bool // True when no further redelivery will happen
}

// JobHandler processes a queue message for a single delivery attempt.
// A returned error triggers redelivery after the pool's retry backoff,
// unless the attempt was final.
type JobHandler func(ctx context.Context, msg *models.QueueMessage, attempt Attempt) error

// WorkerPool runs a fixed set of workers polling the queue
type WorkerPool struct {
	queueMgr     *BadgerManager
	handler      JobHandler
	logger       arbor.ILogger
	concurrency  int
	pollInterval time.Duration
	retryBackoff time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queueMgr *BadgerManager, handler JobHandler, concurrency int, pollInterval, retryBackoff time.Duration, logger arbor.ILogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if concurrency <= 0 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &WorkerPool{
		queueMgr:     queueMgr,
		handler:      handler,
		logger:       logger,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		retryBackoff: retryBackoff,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Start starts the worker pool
func (wp *WorkerPool) Start() error {
	wp.logger.Info().
		Int("concurrency", wp.concurrency).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		go wp.worker(i)
	}

	return nil
}

// Stop gracefully stops the worker pool
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	return nil
}

// worker is the main worker loop that processes messages
func (wp *WorkerPool) worker(workerID int) {
	// Stagger worker starts to reduce lock contention on the database
	staggerDelay := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		time.Sleep(staggerDelay)
	}

	wp.logger.Debug().
		Int("worker_id", workerID).
		Dur("stagger_delay", staggerDelay).
		Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processMessage(workerID); err != nil {
				if !errors.Is(err, models.ErrNoMessage) {
					wp.logger.Warn().
						Err(err).
						Int("worker_id", workerID).
						Msg("Error processing message")
				}
			}
		}
	}
}

// runHandler invokes the handler for one delivery, converting a panic
// into a handler error so one bad job cannot take down the pool. The
// delivery then follows the normal failure path: released for retry,
// or dropped on the final attempt.
func (wp *WorkerPool) runHandler(msg *models.QueueMessage, attempt Attempt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Str("job_id", msg.JobID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Job handler panicked")
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return wp.handler(wp.ctx, msg, attempt)
}

// processMessage receives and processes a single message
func (wp *WorkerPool) processMessage(workerID int) error {
	delivery, err := wp.queueMgr.Receive(wp.ctx)
	if err != nil {
		return err
	}

	attempt := Attempt{
		Receive: delivery.ReceiveCount,
		Max:     delivery.MaxReceive,
		Final:   delivery.Final(),
	}

	wp.logger.Debug().
		Str("job_id", delivery.Body.JobID).
		Int("worker_id", workerID).
		Int("receive_count", attempt.Receive).
		Msg("Processing message")

	startTime := time.Now()
	handlerErr := wp.runHandler(&delivery.Body, attempt)
	duration := time.Since(startTime)

	if handlerErr != nil {
		wp.logger.Error().
			Err(handlerErr).
			Str("job_id", delivery.Body.JobID).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Int("receive_count", attempt.Receive).
			Msg("Job handler failed")

		if attempt.Final {
			// No retries left, drop the message
			if delErr := delivery.Delete(); delErr != nil {
				wp.logger.Warn().
					Err(delErr).
					Str("job_id", delivery.Body.JobID).
					Msg("Failed to delete message after final failure")
			}
			return handlerErr
		}

		// Make the message visible again after the backoff
		if relErr := delivery.Release(wp.retryBackoff); relErr != nil {
			wp.logger.Warn().
				Err(relErr).
				Str("job_id", delivery.Body.JobID).
				Msg("Failed to release message for retry")
		}
		return handlerErr
	}

	wp.logger.Info().
		Str("job_id", delivery.Body.JobID).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Job completed successfully")

	if err := delivery.Delete(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("job_id", delivery.Body.JobID).
			Msg("Failed to delete message after successful processing")
		return err
	}

	return nil
}
