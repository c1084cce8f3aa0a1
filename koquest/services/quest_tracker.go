package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/hanchul-app/koquest/koquest/database/repositories"
)

// QuestTracker is the fire-and-forget hook surface the app calls from its
// feature code paths. Tracking failures are logged, never returned, so a
// broken quest write can never break a search or a quiz.
type QuestTracker struct {
	quests *QuestService
}

func NewQuestTracker(quests *QuestService) *QuestTracker {
	return &QuestTracker{quests: quests}
}

func (qt *QuestTracker) track(ctx context.Context, userID, action string, amount int) {
	if userID == "" {
		// Signed-out users have no quest state; nothing to do.
		return
	}
	if err := qt.quests.TrackAction(ctx, userID, action, amount); err != nil {
		if errors.Is(err, repositories.ErrNoUser) {
			return
		}
		slog.Error("Quest tracking failed",
			slog.String("user_id", userID),
			slog.String("action", action),
			slog.Any("error", err))
	}
}

func (qt *QuestTracker) OnWordSearched(ctx context.Context, userID string) {
	qt.track(ctx, userID, models.ActionWordSearch, 1)
}

func (qt *QuestTracker) OnQuizCompleted(ctx context.Context, userID string) {
	qt.track(ctx, userID, models.ActionQuizComplete, 1)
}

func (qt *QuestTracker) OnFavoriteSaved(ctx context.Context, userID string) {
	qt.track(ctx, userID, models.ActionFavoriteSave, 1)
}

func (qt *QuestTracker) OnDailyLogin(ctx context.Context, userID string) {
	qt.track(ctx, userID, models.ActionDailyLogin, 1)
}
