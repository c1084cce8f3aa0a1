package repositories

import (
	"context"
	"time"

	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/uptrace/bun"
)

type AchievementRepository interface {
	GetAchievementDefinition(ctx context.Context, achievementID string) (*models.AchievementDefinition, error)
	GetAllAchievementDefinitions(ctx context.Context) ([]*models.AchievementDefinition, error)
	CreateAchievementDefinition(ctx context.Context, achievement *models.AchievementDefinition) error
}

type achievementRepository struct {
	*BaseRepository
}

func NewAchievementRepository(db *bun.DB) AchievementRepository {
	return &achievementRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *achievementRepository) GetAchievementDefinition(ctx context.Context, achievementID string) (*models.AchievementDefinition, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	achievement := new(models.AchievementDefinition)
	err := r.db.NewSelect().
		Model(achievement).
		Where("achievement_id = ?", achievementID).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "achievement", achievementID, err)
	}

	return achievement, nil
}

func (r *achievementRepository) GetAllAchievementDefinitions(ctx context.Context) ([]*models.AchievementDefinition, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var achievements []*models.AchievementDefinition
	err := r.db.NewSelect().
		Model(&achievements).
		Order("category ASC", "achievement_id ASC").
		Scan(ctx)

	return achievements, r.HandleError("list", "achievement catalog", err)
}

func (r *achievementRepository) CreateAchievementDefinition(ctx context.Context, achievement *models.AchievementDefinition) error {
	achievement.CreatedAt = time.Now()
	achievement.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(achievement).Exec(ctx)
	return r.HandleErrorWithID("create", "achievement", achievement.AchievementID, err)
}
