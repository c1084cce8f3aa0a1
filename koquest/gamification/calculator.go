package gamification

type Calculator struct {
	config *Config
}

func NewCalculator(config *Config) *Calculator {
	return &Calculator{config: config}
}

// Level derives the level from total XP. Deterministic and shared by every
// path that touches a level, so local and reconciled state can never
// disagree about the mapping. Negative totals are treated as zero.
func (c *Calculator) Level(totalXP int64) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return int(totalXP/c.config.XPPerLevel) + 1
}

// XPForLevel returns the total XP at which the given level begins.
func (c *Calculator) XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(level-1) * c.config.XPPerLevel
}

// ProgressToNextLevel returns the XP earned within the current level and the
// XP span of the level.
func (c *Calculator) ProgressToNextLevel(totalXP int64) (current, span int64) {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP % c.config.XPPerLevel, c.config.XPPerLevel
}
