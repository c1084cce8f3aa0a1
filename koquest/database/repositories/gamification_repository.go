package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/hanchul-app/koquest/koquest/config"
	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/hanchul-app/koquest/koquest/gamification"
	"github.com/uptrace/bun"
)

type GamificationRepository interface {
	Get(ctx context.Context, userID string) (*models.UserGamification, error)
	GetOrCreate(ctx context.Context, userID string) (*models.UserGamification, error)
	SetUsername(ctx context.Context, userID, username string) error

	// AddExperience atomically credits XP and recomputes the level. It
	// returns the updated row plus the level before the credit so callers
	// can detect level-ups.
	AddExperience(ctx context.Context, userID string, amount int64) (*models.UserGamification, int, error)

	// UnlockAchievement records the id in the unlocked set. Returns false
	// when the id was already present; the set never shrinks.
	UnlockAchievement(ctx context.Context, userID, achievementID string) (bool, error)

	MarkSynced(ctx context.Context, userID string, rank int, at time.Time) error
	ListNeedingSync(ctx context.Context, syncedBefore time.Time) ([]*models.UserGamification, error)
	ListAll(ctx context.Context) ([]*models.UserGamification, error)
}

type gamificationRepository struct {
	*BaseRepository
	calc *gamification.Calculator
}

func NewGamificationRepository(db *bun.DB) GamificationRepository {
	return &gamificationRepository{
		BaseRepository: NewBaseRepository(db),
		calc:           gamification.NewCalculator(gamification.NewDefaultConfig()),
	}
}

func (r *gamificationRepository) Get(ctx context.Context, userID string) (*models.UserGamification, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	state := new(models.UserGamification)
	err := r.db.NewSelect().
		Model(state).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "gamification state", userID, err)
	}

	return state, nil
}

func (r *gamificationRepository) GetOrCreate(ctx context.Context, userID string) (*models.UserGamification, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	state, err := r.Get(ctx, userID)
	if err == nil {
		return state, nil
	}
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	now := time.Now()
	fresh := &models.UserGamification{
		UserID:       userID,
		Level:        1,
		Achievements: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.db.NewInsert().
		Model(fresh).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, r.HandleErrorWithID("create", "gamification state", userID, err)
	}

	return r.Get(ctx, userID)
}

func (r *gamificationRepository) SetUsername(ctx context.Context, userID, username string) error {
	if userID == "" {
		return ErrNoUser
	}

	_, err := r.db.NewUpdate().
		Model((*models.UserGamification)(nil)).
		Set("username = ?", username).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	return r.HandleErrorWithID("update", "gamification state", userID, err)
}

func (r *gamificationRepository) AddExperience(ctx context.Context, userID string, amount int64) (*models.UserGamification, int, error) {
	if userID == "" {
		return nil, 0, ErrNoUser
	}

	var state *models.UserGamification
	var previousLevel int

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		state = new(models.UserGamification)
		err := tx.NewSelect().
			Model(state).
			Where("user_id = ?", userID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return err
		}

		previousLevel = state.Level
		state.TotalXP += amount
		state.Level = r.calc.Level(state.TotalXP)
		state.UpdatedAt = time.Now()

		_, err = tx.NewUpdate().
			Model(state).
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, 0, r.HandleErrorWithID("add experience", "gamification state", userID, err)
	}

	return state, previousLevel, nil
}

func (r *gamificationRepository) UnlockAchievement(ctx context.Context, userID, achievementID string) (bool, error) {
	if userID == "" {
		return false, ErrNoUser
	}

	var unlockedNow bool

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		state := new(models.UserGamification)
		err := tx.NewSelect().
			Model(state).
			Where("user_id = ?", userID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return err
		}

		if state.HasAchievement(achievementID) {
			unlockedNow = false
			return nil
		}

		state.Achievements = append(state.Achievements, achievementID)
		state.UpdatedAt = time.Now()
		unlockedNow = true

		_, err = tx.NewUpdate().
			Model(state).
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return false, r.HandleErrorWithID("unlock achievement", "gamification state", userID, err)
	}

	return unlockedNow, nil
}

func (r *gamificationRepository) MarkSynced(ctx context.Context, userID string, rank int, at time.Time) error {
	if userID == "" {
		return ErrNoUser
	}

	_, err := r.db.NewUpdate().
		Model((*models.UserGamification)(nil)).
		Set("rank = ?", rank).
		Set("last_synced_at = ?", at).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	return r.HandleErrorWithID("mark synced", "gamification state", userID, err)
}

func (r *gamificationRepository) ListNeedingSync(ctx context.Context, syncedBefore time.Time) ([]*models.UserGamification, error) {
	ctx, cancel := context.WithTimeout(ctx, config.StatsQueryTimeout)
	defer cancel()

	var states []*models.UserGamification
	err := r.db.NewSelect().
		Model(&states).
		Where("last_synced_at IS NULL OR last_synced_at < ?", syncedBefore).
		Order("last_synced_at ASC NULLS FIRST").
		Scan(ctx)

	return states, r.HandleError("list", "sync backlog", err)
}

func (r *gamificationRepository) ListAll(ctx context.Context) ([]*models.UserGamification, error) {
	ctx, cancel := context.WithTimeout(ctx, config.StatsQueryTimeout)
	defer cancel()

	var states []*models.UserGamification
	err := r.db.NewSelect().
		Model(&states).
		Order("user_id ASC").
		Scan(ctx)

	return states, r.HandleError("list", "gamification state", err)
}
