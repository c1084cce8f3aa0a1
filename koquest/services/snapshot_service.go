package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hanchul-app/koquest/koquest/config"
	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/hanchul-app/koquest/koquest/database/repositories"
)

// SnapshotStore is the blob sink snapshots are written to.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, body []byte) error
	SnapshotURL(key string) string
}

// SnapshotService exports per-user gamification state as JSON objects to
// durable storage, one object per user plus a manifest. Exports are
// best-effort backups and never block the main sync loop.
type SnapshotService struct {
	gamRepo repositories.GamificationRepository
	store   SnapshotStore
	sem     *semaphore.Weighted
	now     func() time.Time
}

type snapshotRecord struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	TotalXP      int64     `json:"total_xp"`
	Level        int       `json:"level"`
	Achievements []string  `json:"achievements"`
	Rank         int       `json:"rank"`
	ExportedAt   time.Time `json:"exported_at"`
}

type snapshotManifest struct {
	ExportedAt time.Time `json:"exported_at"`
	UserCount  int       `json:"user_count"`
	Failed     int       `json:"failed"`
}

func NewSnapshotService(gamRepo repositories.GamificationRepository, store SnapshotStore) *SnapshotService {
	return &SnapshotService{
		gamRepo: gamRepo,
		store:   store,
		sem:     semaphore.NewWeighted(config.MaxConcurrentExports),
		now:     time.Now,
	}
}

// ExportAll writes a snapshot object for every user and a manifest for the
// run. Individual user failures are counted and logged but do not abort the
// export.
func (ss *SnapshotService) ExportAll(ctx context.Context) error {
	users, err := ss.gamRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users for export: %w", err)
	}

	exportedAt := ss.now().UTC()
	prefix := exportedAt.Format("2006-01-02T15-04-05")

	failed := make(chan string, len(users))
	g, gctx := errgroup.WithContext(ctx)
	for _, user := range users {
		user := user
		g.Go(func() error {
			if err := ss.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer ss.sem.Release(1)

			if err := ss.exportUser(gctx, prefix, user, exportedAt); err != nil {
				slog.Error("Snapshot export failed for user",
					slog.String("user_id", user.UserID),
					slog.Any("error", err))
				failed <- user.UserID
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("snapshot export aborted: %w", err)
	}
	close(failed)

	failedCount := 0
	for range failed {
		failedCount++
	}

	manifest := snapshotManifest{
		ExportedAt: exportedAt,
		UserCount:  len(users),
		Failed:     failedCount,
	}
	body, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestKey := prefix + "/manifest.json"
	if err := ss.store.PutSnapshot(ctx, manifestKey, body); err != nil {
		return err
	}

	slog.Info("Snapshot export finished",
		slog.String("prefix", prefix),
		slog.String("manifest_url", ss.store.SnapshotURL(manifestKey)),
		slog.Int("users", len(users)),
		slog.Int("failed", failedCount))
	return nil
}

func (ss *SnapshotService) exportUser(ctx context.Context, prefix string, user *models.UserGamification, at time.Time) error {
	record := snapshotRecord{
		UserID:       user.UserID,
		Username:     user.Username,
		TotalXP:      user.TotalXP,
		Level:        user.Level,
		Achievements: user.Achievements,
		Rank:         user.Rank,
		ExportedAt:   at,
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return ss.store.PutSnapshot(ctx, fmt.Sprintf("%s/users/%s.json", prefix, user.UserID), body)
}
