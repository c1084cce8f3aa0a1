package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AchievementDefinition is one template from the fixed achievement catalog.
// Unlock predicates live with the callers; recording here is idempotent.
type AchievementDefinition struct {
	bun.BaseModel `bun:"table:achievement_definitions,alias:ad"`

	ID            int64     `bun:"id,pk,autoincrement"`
	AchievementID string    `bun:"achievement_id,notnull,unique"`
	Title         string    `bun:"title,notnull"`
	Description   string    `bun:"description,notnull"`
	Category      string    `bun:"category,notnull"`
	RewardXP      int       `bun:"reward_xp,notnull,default:0"`
	Icon          string    `bun:"icon"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// Achievement category constants
const (
	CategoryLearning   = "learning"
	CategoryStreak     = "streak"
	CategoryQuiz       = "quiz"
	CategoryVocabulary = "vocabulary"
)
