package notification

import (
	"context"

	"github.com/rs/zerolog/log"

	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/metrics"
)

// Channel delivers a notice to one destination such as web push or Slack.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notice) error
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size     int
	jobs     chan Notice
	channels []Channel
}

// NewWorkerPool creates a new worker pool that fans every notice out to channels.
func NewWorkerPool(size, queueSize int, channels ...Channel) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize < size {
		queueSize = size
	}
	return &WorkerPool{
		size:     size,
		jobs:     make(chan Notice, queueSize), // Buffered channel
		channels: channels,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	logger := logging.GetLoggerFromContext(ctx).With().Int("worker", id).Logger()
	logger.Debug().Msg("notification worker started")
	for {
		select {
		case n := <-wp.jobs:
			wp.deliver(ctx, n)
		case <-ctx.Done():
			logger.Debug().Msg("notification worker shutting down")
			return
		}
	}
}

// Dispatch queues a notice without blocking. It returns false and drops the
// notice when the queue is full.
func (wp *WorkerPool) Dispatch(n Notice) bool {
	select {
	case wp.jobs <- n:
		return true
	default:
		metrics.NotificationsDropped.Inc()
		log.Warn().
			Str("kind", string(n.Kind)).Uint("machine_id", n.MachineID).
			Msg("notification queue full, dropping notice")
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Notice {
	return wp.jobs
}

func (wp *WorkerPool) deliver(ctx context.Context, n Notice) {
	logger := logging.GetLoggerFromContext(ctx)
	for _, ch := range wp.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			logger.Error().Err(err).
				Str("channel", ch.Name()).Str("kind", string(n.Kind)).Uint("machine_id", n.MachineID).
				Msg("failed to deliver notice")
		}
	}
}
