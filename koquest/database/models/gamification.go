package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserGamification is the per-user cumulative state mirrored to the remote
// aggregation service. TotalXP never decreases locally and the achievement
// set only grows; the remote store is the eventual source of truth across
// devices, this row is the serving cache.
type UserGamification struct {
	bun.BaseModel `bun:"table:user_gamification,alias:ug"`

	ID           int64     `bun:"id,pk,autoincrement"`
	UserID       string    `bun:"user_id,notnull,unique"`
	Username     string    `bun:"username"`
	TotalXP      int64     `bun:"total_xp,notnull,default:0"`
	Level        int       `bun:"level,notnull,default:1"`
	Achievements []string  `bun:"achievements,type:jsonb"`
	Rank         int       `bun:"rank,notnull,default:0"`
	LastSyncedAt time.Time `bun:"last_synced_at"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

func (g *UserGamification) HasAchievement(id string) bool {
	for _, a := range g.Achievements {
		if a == id {
			return true
		}
	}
	return false
}
