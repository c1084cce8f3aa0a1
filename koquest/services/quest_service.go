package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/hanchul-app/koquest/koquest/database/repositories"
	"github.com/hanchul-app/koquest/koquest/events"
)

// DailyQuestState is a quest definition joined with the user's progress for
// the current day. Progress is zero-valued when the user has not acted on
// the quest yet.
type DailyQuestState struct {
	Quest           *models.QuestDefinition `json:"quest"`
	CurrentProgress int                     `json:"current_progress"`
	ProgressPercent float64                 `json:"progress_percent"`
	Completed       bool                    `json:"completed"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
}

// QuestService tracks per-user daily quest progress. All reads and writes
// resolve "today" at call time, so the day rollover wipe happens lazily on
// the first touch after midnight.
type QuestService struct {
	questRepo repositories.QuestRepository
	gamSvc    *GamificationService
	bus       *events.Bus
	now       func() time.Time
}

func NewQuestService(
	questRepo repositories.QuestRepository,
	gamSvc *GamificationService,
	bus *events.Bus,
) *QuestService {
	return &QuestService{
		questRepo: questRepo,
		gamSvc:    gamSvc,
		bus:       bus,
		now:       time.Now,
	}
}

// today returns the current date key in server-local time.
func (qs *QuestService) today() string {
	return models.DateKey(qs.now())
}

// rolloverIfNeeded discards every progress row the user holds for a date
// other than today. Run before any read or write so stale rows from a
// previous day never surface.
func (qs *QuestService) rolloverIfNeeded(ctx context.Context, userID, today string) error {
	latest, err := qs.questRepo.LatestProgressDate(ctx, userID)
	if err != nil {
		return err
	}
	if latest == "" || latest == today {
		return nil
	}

	slog.Info("Rolling over daily quests",
		slog.String("user_id", userID),
		slog.String("previous_date", latest),
		slog.String("current_date", today))

	return qs.questRepo.WipeProgressExcept(ctx, userID, today)
}

// DailyState returns today's active quests for the user, in catalog order,
// each paired with the user's progress so far.
func (qs *QuestService) DailyState(ctx context.Context, userID string) ([]*DailyQuestState, error) {
	if userID == "" {
		return nil, repositories.ErrNoUser
	}

	now := qs.now()
	today := models.DateKey(now)
	if err := qs.rolloverIfNeeded(ctx, userID, today); err != nil {
		return nil, fmt.Errorf("failed to roll over quests: %w", err)
	}

	catalog, err := qs.questRepo.GetAllQuestDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load quest catalog: %w", err)
	}
	active := models.QuestsForDay(catalog, now.Weekday())

	progress, err := qs.questRepo.GetProgressForDate(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load quest progress: %w", err)
	}
	byQuest := make(map[string]*models.UserQuestProgress, len(progress))
	for _, p := range progress {
		byQuest[p.QuestID] = p
	}

	states := make([]*DailyQuestState, 0, len(active))
	for _, quest := range active {
		state := &DailyQuestState{Quest: quest}
		// A quest with no real target is complete from the first read; it
		// never accumulates progress and never pays out.
		if quest.Target <= 0 {
			state.Completed = true
		}
		if p, ok := byQuest[quest.QuestID]; ok {
			p.QuestDefinition = quest
			state.CurrentProgress = p.CurrentProgress
			state.Completed = state.Completed || p.Completed
			state.CompletedAt = p.CompletedAt
			state.ProgressPercent = p.ProgressPercentage()
		}
		if state.Completed {
			state.ProgressPercent = 100
		}
		states = append(states, state)
	}
	return states, nil
}

// IncrementQuest advances the user's progress on one quest by amount,
// clamped to the quest's target. Completing the quest awards its XP reward
// exactly once, after the progress write has committed. Increments against
// an already completed quest, a quest inactive today, a quest without a
// positive target, or with a non-positive amount are no-ops.
func (qs *QuestService) IncrementQuest(ctx context.Context, userID, questID string, amount int) error {
	if userID == "" {
		return repositories.ErrNoUser
	}
	if amount <= 0 {
		return nil
	}

	now := qs.now()
	today := models.DateKey(now)
	if err := qs.rolloverIfNeeded(ctx, userID, today); err != nil {
		return fmt.Errorf("failed to roll over quests: %w", err)
	}

	quest, err := qs.questRepo.GetQuestDefinition(ctx, questID)
	if err != nil {
		return fmt.Errorf("unknown quest %q: %w", questID, err)
	}
	if !quest.ActiveOn(now.Weekday()) {
		return nil
	}
	// Complete-from-the-start quests have nothing to advance and must never
	// reach the reward path.
	if quest.Target <= 0 {
		return nil
	}

	progress, completedNow, err := qs.questRepo.IncrementProgress(ctx, userID, questID, today, amount, quest.Target)
	if err != nil {
		return fmt.Errorf("failed to increment quest progress: %w", err)
	}

	qs.bus.Publish(events.QuestProgressChanged{
		UserID:   userID,
		QuestID:  questID,
		Progress: progress.CurrentProgress,
		Target:   quest.Target,
	})

	if !completedNow {
		return nil
	}

	slog.Info("Daily quest completed",
		slog.String("user_id", userID),
		slog.String("quest_id", questID),
		slog.Int("reward_xp", quest.RewardXP))

	// Reward after the progress commit so a failed XP write can never leave
	// the quest stuck below its target.
	if err := qs.gamSvc.AddExperience(ctx, userID, int64(quest.RewardXP), "quest:"+questID); err != nil {
		return fmt.Errorf("quest completed but reward failed: %w", err)
	}

	qs.bus.Publish(events.QuestCompleted{
		UserID:   userID,
		QuestID:  questID,
		RewardXP: quest.RewardXP,
	})
	return nil
}

// TrackAction fans one user action out to every quest active today whose
// action kind matches.
func (qs *QuestService) TrackAction(ctx context.Context, userID, action string, amount int) error {
	if userID == "" {
		return repositories.ErrNoUser
	}
	if amount <= 0 {
		return nil
	}

	catalog, err := qs.questRepo.GetAllQuestDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load quest catalog: %w", err)
	}

	day := qs.now().Weekday()
	for _, quest := range catalog {
		if quest.Action != action || !quest.ActiveOn(day) {
			continue
		}
		if err := qs.IncrementQuest(ctx, userID, quest.QuestID, amount); err != nil {
			return err
		}
	}
	return nil
}
