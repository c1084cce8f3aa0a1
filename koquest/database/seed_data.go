package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanchul-app/koquest/koquest/database/models"
)

// InitializeQuestData inserts the daily quest catalog into the database.
// Skips when definitions already exist, so startup stays idempotent.
func (db *DB) InitializeQuestData(ctx context.Context) error {
	var questCount int
	err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM quest_definitions").Scan(&questCount)
	if err == nil && questCount > 0 {
		slog.Info("Quest data already initialized, skipping",
			slog.Int("existing_quests", questCount))
		return nil
	}

	slog.Info("Initializing quest definitions...")

	quests := []models.QuestDefinition{
		{
			QuestID:     "search_3_words",
			Title:       "Word Hunter",
			Description: "Look up 3 words in the dictionary",
			Action:      models.ActionWordSearch,
			Target:      3,
			RewardXP:    10,
			Icon:        "ic_quest_search",
			SortOrder:   1,
		},
		{
			QuestID:     "complete_quiz",
			Title:       "Quiz Time",
			Description: "Finish 1 quiz",
			Action:      models.ActionQuizComplete,
			Target:      1,
			RewardXP:    15,
			Icon:        "ic_quest_quiz",
			SortOrder:   2,
		},
		{
			QuestID:     "save_3_favorites",
			Title:       "Collector",
			Description: "Save 3 words to your favorites",
			Action:      models.ActionFavoriteSave,
			Target:      3,
			RewardXP:    10,
			Icon:        "ic_quest_favorite",
			SortOrder:   3,
		},
		{
			QuestID:     "daily_login",
			Title:       "Daily Greeting",
			Description: "Open the app today",
			Action:      models.ActionDailyLogin,
			Target:      1,
			RewardXP:    5,
			Icon:        "ic_quest_login",
			SortOrder:   4,
		},
		{
			QuestID:     "weekend_marathon",
			Title:       "Weekend Marathon",
			Description: "Look up 10 words over the weekend",
			Action:      models.ActionWordSearch,
			Target:      10,
			RewardXP:    30,
			Icon:        "ic_quest_marathon",
			ActiveDays:  []int{6, 7},
			SortOrder:   5,
		},
	}

	now := time.Now()
	for i := range quests {
		quests[i].CreatedAt = now
		quests[i].UpdatedAt = now
	}

	if _, err := db.bunDB.NewInsert().Model(&quests).Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed quest definitions: %w", err)
	}

	slog.Info("Quest definitions seeded",
		slog.Int("count", len(quests)))
	return nil
}

// InitializeAchievementData inserts the achievement catalog. Same idempotency
// rule as the quest catalog.
func (db *DB) InitializeAchievementData(ctx context.Context) error {
	var count int
	err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM achievement_definitions").Scan(&count)
	if err == nil && count > 0 {
		slog.Info("Achievement data already initialized, skipping",
			slog.Int("existing_achievements", count))
		return nil
	}

	slog.Info("Initializing achievement definitions...")

	achievements := []models.AchievementDefinition{
		{
			AchievementID: "first_search",
			Title:         "First Steps",
			Description:   "Look up your first word",
			Category:      models.CategoryVocabulary,
			RewardXP:      10,
			Icon:          "ic_ach_first_search",
		},
		{
			AchievementID: "words_100",
			Title:         "Vocabulary Builder",
			Description:   "Look up 100 words",
			Category:      models.CategoryVocabulary,
			RewardXP:      50,
			Icon:          "ic_ach_words_100",
		},
		{
			AchievementID: "quiz_perfect",
			Title:         "Perfect Score",
			Description:   "Answer every question in a quiz correctly",
			Category:      models.CategoryQuiz,
			RewardXP:      30,
			Icon:          "ic_ach_quiz_perfect",
		},
		{
			AchievementID: "quiz_10",
			Title:         "Quiz Regular",
			Description:   "Complete 10 quizzes",
			Category:      models.CategoryQuiz,
			RewardXP:      40,
			Icon:          "ic_ach_quiz_10",
		},
		{
			AchievementID: "streak_7",
			Title:         "One Week Strong",
			Description:   "Complete all daily quests 7 days in a row",
			Category:      models.CategoryStreak,
			RewardXP:      70,
			Icon:          "ic_ach_streak_7",
		},
		{
			AchievementID: "streak_30",
			Title:         "Habit Formed",
			Description:   "Complete all daily quests 30 days in a row",
			Category:      models.CategoryStreak,
			RewardXP:      200,
			Icon:          "ic_ach_streak_30",
		},
		{
			AchievementID: "level_10",
			Title:         "Serious Learner",
			Description:   "Reach level 10",
			Category:      models.CategoryLearning,
			RewardXP:      100,
			Icon:          "ic_ach_level_10",
		},
	}

	now := time.Now()
	for i := range achievements {
		achievements[i].CreatedAt = now
		achievements[i].UpdatedAt = now
	}

	if _, err := db.bunDB.NewInsert().Model(&achievements).Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed achievement definitions: %w", err)
	}

	slog.Info("Achievement definitions seeded",
		slog.Int("count", len(achievements)))
	return nil
}
