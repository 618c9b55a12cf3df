package duewatch

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"shopfloor-ops-backend/config"
	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/notification"
)

// RemindEvery is how long a machine stays quiet after a reminder.
const RemindEvery = 24 * time.Hour

// DueSource lists machines due for maintenance at or before a time.
type DueSource interface {
	DueForMaintenance(ctx context.Context, before time.Time) ([]model.Machine, error)
}

type Dispatcher interface {
	Dispatch(n notification.Notice) bool
}

// Watcher periodically reminds about overdue maintenance. It only reads
// machines and never changes their state.
type Watcher struct {
	cfg      config.DueWatchConfig
	source   DueSource
	dispatch Dispatcher
	sent     *cache.Cache
	now      func() time.Time
}

func New(cfg config.DueWatchConfig, source DueSource, dispatch Dispatcher) *Watcher {
	return &Watcher{
		cfg:      cfg,
		source:   source,
		dispatch: dispatch,
		sent:     cache.New(RemindEvery, time.Hour),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run checks once immediately and then on every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	logger := logging.GetLoggerFromContext(ctx)
	if !w.cfg.Enabled {
		logger.Info().Msg("due watch is disabled, not starting")
		return
	}
	logger.Info().Dur("interval", w.cfg.Interval).Msg("starting due watch")

	w.CheckOnce(ctx)

	timer := time.NewTimer(w.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("due watch shutting down")
			return
		case <-timer.C:
			w.CheckOnce(ctx)
			timer.Reset(w.cfg.Interval)
		}
	}
}

// CheckOnce dispatches a reminder for every due machine not reminded about
// within RemindEvery. It returns the number of reminders queued.
func (w *Watcher) CheckOnce(ctx context.Context) int {
	logger := logging.GetLoggerFromContext(ctx)

	due, err := w.source.DueForMaintenance(ctx, w.now())
	if err != nil {
		logger.Error().Err(err).Msg("failed to list machines due for maintenance")
		return 0
	}

	queued := 0
	for _, m := range due {
		key := strconv.FormatUint(uint64(m.ID), 10)
		if _, seen := w.sent.Get(key); seen {
			continue
		}
		ok := w.dispatch.Dispatch(notification.Notice{
			Kind:        notification.KindMaintenanceDue,
			MachineID:   m.ID,
			MachineName: m.Name,
			Location:    m.Location,
			DueAt:       m.NextScheduledMaintenance,
		})
		if !ok {
			// retried on the next tick
			logger.Warn().Uint("machine_id", m.ID).Msg("notification queue full, reminder dropped")
			continue
		}
		w.sent.SetDefault(key, struct{}{})
		queued++
	}

	if queued > 0 {
		logger.Info().Int("due", len(due)).Int("queued", queued).Msg("maintenance reminders dispatched")
	}
	return queued
}
