package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/five82/labbcat/internal/state"
	"github.com/five82/labbcat/model"
)

const (
	defaultPollInterval = 2 * time.Second
	maxBackoff          = 30 * time.Second
)

// TaskSource reports the status of one server task.
type TaskSource interface {
	TaskStatus(ctx context.Context, id string) (*model.TaskStatus, error)
}

// StartPoller launches a background goroutine that refreshes the store
// until every watched task has finished or ctx ends. It returns immediately;
// the returned channel is closed when the goroutine exits. Consecutive
// failures stretch the interval up to maxBackoff.
func StartPoller(ctx context.Context, store *state.Store, source TaskSource, ids []string, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)

		failures := 0
		for {
			if err := refresh(ctx, store, source, ids); err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				logger.Warn("task poll failed", zap.Int("failures", failures), zap.Error(err))
			} else {
				failures = 0
			}
			if store.Snapshot().Done() {
				logger.Debug("all watched tasks finished")
				return
			}

			timer := time.NewTimer(calculateBackoff(failures, interval))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
	return done
}

// refresh fetches every task and stores the batch. One failed task fails
// the batch so the view never mixes fresh and stale rows.
func refresh(ctx context.Context, store *state.Store, source TaskSource, ids []string) error {
	tasks := make([]model.TaskStatus, 0, len(ids))
	for _, id := range ids {
		status, err := source.TaskStatus(ctx, id)
		if err != nil {
			err = fmt.Errorf("task %s: %w", id, err)
			store.Update(nil, err)
			return err
		}
		tasks = append(tasks, *status)
	}
	store.Update(tasks, nil)
	return nil
}

// calculateBackoff doubles base once per failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
