package models

import (
	"time"

	"github.com/uptrace/bun"
)

// QuestDefinition is one template from the fixed daily quest catalog.
type QuestDefinition struct {
	bun.BaseModel `bun:"table:quest_definitions,alias:qd"`

	ID          int64  `bun:"id,pk,autoincrement"`
	QuestID     string `bun:"quest_id,notnull,unique"`
	Title       string `bun:"title,notnull"`
	Description string `bun:"description,notnull"`
	Action      string `bun:"action,notnull"`
	Target      int    `bun:"target,notnull"`
	RewardXP    int    `bun:"reward_xp,notnull,default:0"`
	Icon        string `bun:"icon"`
	// ISO weekdays 1 (Monday) .. 7 (Sunday); empty means every day.
	ActiveDays []int     `bun:"active_days,type:jsonb"`
	SortOrder  int       `bun:"sort_order,notnull,default:0"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

// Action constants mirror the client-side trigger hooks.
const (
	ActionWordSearch   = "word_search"
	ActionQuizComplete = "quiz_complete"
	ActionFavoriteSave = "favorite_save"
	ActionDailyLogin   = "daily_login"
)

// ISOWeekday converts time.Weekday to ISO numbering (Monday=1 .. Sunday=7).
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// ActiveOn reports whether the quest applies on the given weekday.
func (q *QuestDefinition) ActiveOn(day time.Weekday) bool {
	if len(q.ActiveDays) == 0 {
		return true
	}
	iso := ISOWeekday(day)
	for _, d := range q.ActiveDays {
		if d == iso {
			return true
		}
	}
	return false
}

// QuestsForDay filters the catalog down to the quests applicable on the given
// weekday, preserving catalog order. Pure helper, no side effects.
func QuestsForDay(catalog []*QuestDefinition, day time.Weekday) []*QuestDefinition {
	active := make([]*QuestDefinition, 0, len(catalog))
	for _, q := range catalog {
		if q.ActiveOn(day) {
			active = append(active, q)
		}
	}
	return active
}
