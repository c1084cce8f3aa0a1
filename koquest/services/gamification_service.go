package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/hanchul-app/koquest/koquest/database/repositories"
	"github.com/hanchul-app/koquest/koquest/events"
	"github.com/hanchul-app/koquest/koquest/gamification"
	"github.com/hanchul-app/koquest/koquest/remote"
)

// RemoteSyncClient is the write path against the remote aggregation service.
type RemoteSyncClient interface {
	PushState(ctx context.Context, payload remote.SyncPayload) (*remote.SyncResult, error)
}

// GamificationService owns cumulative per-user totals: XP, level, unlocked
// achievements, last known rank, and reconciliation with the remote store.
type GamificationService struct {
	gamRepo repositories.GamificationRepository
	achRepo repositories.AchievementRepository
	client  RemoteSyncClient
	bus     *events.Bus
	config  *gamification.Config
	now     func() time.Time
}

func NewGamificationService(
	gamRepo repositories.GamificationRepository,
	achRepo repositories.AchievementRepository,
	client RemoteSyncClient,
	bus *events.Bus,
	config *gamification.Config,
) *GamificationService {
	if config == nil {
		config = gamification.NewDefaultConfig()
	}
	return &GamificationService{
		gamRepo: gamRepo,
		achRepo: achRepo,
		client:  client,
		bus:     bus,
		config:  config,
		now:     time.Now,
	}
}

// Profile returns the user's state, creating the level-1 zero row on first
// login.
func (gs *GamificationService) Profile(ctx context.Context, userID string) (*models.UserGamification, error) {
	return gs.gamRepo.GetOrCreate(ctx, userID)
}

// AddExperience credits XP and emits ExperienceEarned, plus LevelUp when the
// credit crosses a level threshold. Non-positive amounts are silent no-ops.
func (gs *GamificationService) AddExperience(ctx context.Context, userID string, amount int64, source string) error {
	if amount <= 0 {
		slog.Debug("Ignoring non-positive experience credit",
			slog.String("user_id", userID),
			slog.Int64("amount", amount),
			slog.String("source", source))
		return nil
	}

	if _, err := gs.gamRepo.GetOrCreate(ctx, userID); err != nil {
		return fmt.Errorf("failed to load gamification state: %w", err)
	}

	state, previousLevel, err := gs.gamRepo.AddExperience(ctx, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to add experience: %w", err)
	}

	slog.Info("Experience credited",
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
		slog.String("source", source),
		slog.Int64("total_xp", state.TotalXP))

	gs.bus.Publish(events.ExperienceEarned{UserID: userID, Amount: amount, Source: source})
	if state.Level > previousLevel {
		slog.Info("User leveled up",
			slog.String("user_id", userID),
			slog.Int("new_level", state.Level))
		gs.bus.Publish(events.LevelUp{UserID: userID, NewLevel: state.Level})
	}

	return nil
}

// UnlockAchievement records the achievement id exactly once. The first call
// credits the achievement's XP reward and emits AchievementUnlocked; repeat
// calls are silent no-ops.
func (gs *GamificationService) UnlockAchievement(ctx context.Context, userID, achievementID string) error {
	achievement, err := gs.achRepo.GetAchievementDefinition(ctx, achievementID)
	if err != nil {
		return fmt.Errorf("unknown achievement %q: %w", achievementID, err)
	}

	if _, err := gs.gamRepo.GetOrCreate(ctx, userID); err != nil {
		return fmt.Errorf("failed to load gamification state: %w", err)
	}

	unlockedNow, err := gs.gamRepo.UnlockAchievement(ctx, userID, achievementID)
	if err != nil {
		return fmt.Errorf("failed to unlock achievement: %w", err)
	}
	if !unlockedNow {
		slog.Debug("Achievement already unlocked",
			slog.String("user_id", userID),
			slog.String("achievement_id", achievementID))
		return nil
	}

	slog.Info("Achievement unlocked",
		slog.String("user_id", userID),
		slog.String("achievement_id", achievementID))

	if err := gs.AddExperience(ctx, userID, int64(achievement.RewardXP), "achievement:"+achievementID); err != nil {
		return err
	}

	gs.bus.Publish(events.AchievementUnlocked{UserID: userID, Achievement: achievement})
	return nil
}

// NeedsSync reports whether the user's last successful reconciliation is
// older than the sync interval.
func (gs *GamificationService) NeedsSync(ctx context.Context, userID string) (bool, error) {
	state, err := gs.gamRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	if state.LastSyncedAt.IsZero() {
		return true, nil
	}
	return gs.now().Sub(state.LastSyncedAt) > gs.config.SyncInterval, nil
}

// SyncToServer pushes the user's totals to the remote store and records the
// returned rank. On failure local state is left exactly as it was; the
// error is a *remote.RequestError for recoverable transport failures.
func (gs *GamificationService) SyncToServer(ctx context.Context, userID string) (int, error) {
	state, err := gs.gamRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}

	payload := remote.SyncPayload{
		UserID:         state.UserID,
		Username:       state.Username,
		TotalXP:        state.TotalXP,
		Level:          state.Level,
		AchievementIDs: state.Achievements,
	}

	result, err := gs.client.PushState(ctx, payload)
	if err != nil {
		return 0, fmt.Errorf("sync to server failed: %w", err)
	}

	syncedAt := gs.now()
	if err := gs.gamRepo.MarkSynced(ctx, userID, result.Rank, syncedAt); err != nil {
		return 0, fmt.Errorf("failed to record sync: %w", err)
	}

	slog.Info("Gamification state synced",
		slog.String("type", "sync"),
		slog.String("user_id", userID),
		slog.Int64("total_xp", state.TotalXP),
		slog.Int("rank", result.Rank))

	return result.Rank, nil
}
