package migration

import "time"

// LegacyUser mirrors a user document from the first-generation app backend,
// which stored gamification state in MongoDB. Only the fields the
// gamification tables care about are decoded; everything else in the
// document is ignored.
type LegacyUser struct {
	ID           string    `bson:"_id,omitempty"`
	UserID       string    `bson:"userId,omitempty"`
	Username     string    `bson:"username"`
	TotalXP      int64     `bson:"totalXp"`
	Level        int       `bson:"level"`
	Achievements []string  `bson:"achievements"`
	CreatedAt    time.Time `bson:"createdAt,omitempty"`
	UpdatedAt    time.Time `bson:"updatedAt,omitempty"`
}
