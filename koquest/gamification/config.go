package gamification

import "time"

type Config struct {
	// XP required per level; level = totalXP/XPPerLevel + 1
	XPPerLevel int64

	// Minimum interval between successful reconciliations with the remote
	// aggregation service
	SyncInterval time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		XPPerLevel:   100,
		SyncInterval: 15 * time.Minute,
	}
}
