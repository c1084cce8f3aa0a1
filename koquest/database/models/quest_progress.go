package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserQuestProgress is one user's counter for one quest on one calendar day.
// Rows for a previous day are wiped, not zeroed, on rollover.
type UserQuestProgress struct {
	bun.BaseModel `bun:"table:user_quest_progress,alias:uqp"`

	ID              int64      `bun:"id,pk,autoincrement"`
	UserID          string     `bun:"user_id,notnull"`
	QuestID         string     `bun:"quest_id,notnull"`
	QuestDate       string     `bun:"quest_date,notnull"` // YYYY-MM-DD
	CurrentProgress int        `bun:"current_progress,notnull,default:0"`
	Completed       bool       `bun:"completed,notnull,default:false"`
	CompletedAt     *time.Time `bun:"completed_at"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull"`

	QuestDefinition *QuestDefinition `bun:"rel:has-one,join:quest_id=quest_id"`
}

// Apply clamps an increment against the quest target and flips the completion
// flag on the incomplete-to-complete transition. It returns true exactly once
// per row, on that transition; increments past completion are no-ops. A quest
// with a non-positive target counts as complete from the start, so it can
// never make the transition here.
func (p *UserQuestProgress) Apply(amount, target int, now time.Time) bool {
	if p.Completed || amount <= 0 || target <= 0 {
		return false
	}

	next := p.CurrentProgress + amount
	if next > target {
		next = target
	}
	p.CurrentProgress = next

	if p.CurrentProgress >= target {
		p.Completed = true
		completedAt := now
		p.CompletedAt = &completedAt
		return true
	}
	return false
}

// ProgressPercentage returns current progress over the target as a
// percentage. A quest with a non-positive target is complete from the start
// and always reports 100.
func (p *UserQuestProgress) ProgressPercentage() float64 {
	if p.QuestDefinition == nil {
		return 0
	}
	if p.QuestDefinition.Target <= 0 {
		return 100
	}
	percentage := float64(p.CurrentProgress) / float64(p.QuestDefinition.Target) * 100
	if percentage > 100 {
		percentage = 100
	}
	return percentage
}

// DateKey formats a time as the quest_date column value using the service's
// local calendar day.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
