package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hanchul-app/koquest/koquest/config"
	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/hanchul-app/koquest/koquest/remote"
)

// UserSyncer pushes one user's state to the remote store.
type UserSyncer interface {
	SyncToServer(ctx context.Context, userID string) (int, error)
}

// StaleLister finds users whose last successful sync is older than a cutoff.
type StaleLister interface {
	ListNeedingSync(ctx context.Context, syncedBefore time.Time) ([]*models.UserGamification, error)
}

// Result summarizes one sync pass.
type Result struct {
	Synced    int
	Retryable int
	Failed    int
}

// Worker drains the backlog of users whose state has drifted from the
// remote store. A retryable outcome (network, 5xx) leaves last_synced_at
// untouched so the user is picked up again next pass; anything else is a
// local bug and is logged loudly.
type Worker struct {
	lister    StaleLister
	syncer    UserSyncer
	interval  time.Duration
	batchSize int
	sem       *semaphore.Weighted
	now       func() time.Time
}

func NewWorker(lister StaleLister, syncer UserSyncer, interval time.Duration, batchSize int) *Worker {
	if interval <= 0 {
		interval = config.SyncInterval
	}
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	return &Worker{
		lister:    lister,
		syncer:    syncer,
		interval:  interval,
		batchSize: batchSize,
		sem:       semaphore.NewWeighted(config.MaxConcurrentSyncs),
		now:       time.Now,
	}
}

// RunOnce performs a single sync pass over at most batchSize stale users.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	cutoff := w.now().Add(-w.interval)
	users, err := w.lister.ListNeedingSync(ctx, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list stale users: %w", err)
	}
	if len(users) == 0 {
		return Result{}, nil
	}
	if len(users) > w.batchSize {
		users = users[:w.batchSize]
	}

	var synced, retryable, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, user := range users {
		user := user
		g.Go(func() error {
			if err := w.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer w.sem.Release(1)

			if _, err := w.syncer.SyncToServer(gctx, user.UserID); err != nil {
				var reqErr *remote.RequestError
				if errors.As(err, &reqErr) {
					retryable.Add(1)
					slog.Warn("Sync deferred, will retry next pass",
						slog.String("type", "sync"),
						slog.String("user_id", user.UserID),
						slog.String("reason", reqErr.Message()))
					return nil
				}
				failed.Add(1)
				slog.Error("Sync failed",
					slog.String("type", "sync"),
					slog.String("user_id", user.UserID),
					slog.Any("error", err))
				return nil
			}
			synced.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("sync pass aborted: %w", err)
	}

	result := Result{
		Synced:    int(synced.Load()),
		Retryable: int(retryable.Load()),
		Failed:    int(failed.Load()),
	}
	slog.Info("Sync pass finished",
		slog.String("type", "sync"),
		slog.Int("synced", result.Synced),
		slog.Int("retryable", result.Retryable),
		slog.Int("failed", result.Failed))
	return result, nil
}

// Start runs sync passes on the worker's interval until ctx is cancelled.
// The first pass runs immediately.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Initial sync pass failed", slog.Any("error", err))
		}

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("Sync worker stopped", slog.String("type", "sync"))
				return
			case <-ticker.C:
				if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("Sync pass failed", slog.Any("error", err))
				}
			}
		}
	}()
}
