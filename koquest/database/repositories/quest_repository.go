package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/uptrace/bun"
)

type QuestRepository interface {
	// Quest catalog
	GetQuestDefinition(ctx context.Context, questID string) (*models.QuestDefinition, error)
	GetAllQuestDefinitions(ctx context.Context) ([]*models.QuestDefinition, error)
	CreateQuestDefinition(ctx context.Context, quest *models.QuestDefinition) error

	// Per-user, per-day progress
	GetProgressForDate(ctx context.Context, userID string, date string) ([]*models.UserQuestProgress, error)
	LatestProgressDate(ctx context.Context, userID string) (string, error)
	WipeProgressExcept(ctx context.Context, userID string, keepDate string) error
	IncrementProgress(ctx context.Context, userID, questID, date string, amount, target int) (*models.UserQuestProgress, bool, error)
}

type questRepository struct {
	*BaseRepository
}

func NewQuestRepository(db *bun.DB) QuestRepository {
	return &questRepository{BaseRepository: NewBaseRepository(db)}
}

// Quest catalog
func (r *questRepository) GetQuestDefinition(ctx context.Context, questID string) (*models.QuestDefinition, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	quest := new(models.QuestDefinition)
	err := r.db.NewSelect().
		Model(quest).
		Where("quest_id = ?", questID).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "quest definition", questID, err)
	}

	return quest, nil
}

func (r *questRepository) GetAllQuestDefinitions(ctx context.Context) ([]*models.QuestDefinition, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var quests []*models.QuestDefinition
	err := r.db.NewSelect().
		Model(&quests).
		Order("sort_order ASC", "quest_id ASC").
		Scan(ctx)

	return quests, r.HandleError("list", "quest catalog", err)
}

func (r *questRepository) CreateQuestDefinition(ctx context.Context, quest *models.QuestDefinition) error {
	quest.CreatedAt = time.Now()
	quest.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(quest).Exec(ctx)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return &ConflictError{Entity: "quest definition", Field: "quest_id", Value: quest.QuestID}
	}
	return r.HandleErrorWithID("create", "quest definition", quest.QuestID, err)
}

// User progress
func (r *questRepository) GetProgressForDate(ctx context.Context, userID string, date string) ([]*models.UserQuestProgress, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	var progress []*models.UserQuestProgress
	err := r.db.NewSelect().
		Model(&progress).
		Relation("QuestDefinition").
		Where("uqp.user_id = ?", userID).
		Where("uqp.quest_date = ?", date).
		Order("uqp.quest_id ASC").
		Scan(ctx)

	if err != nil {
		slog.Error("Failed to get quest progress",
			slog.String("type", "db"),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, r.HandleErrorWithID("list", "quest progress", userID, err)
	}

	return progress, nil
}

// LatestProgressDate returns the most recent quest_date stored for the user,
// or "" when the user has no progress rows at all.
func (r *questRepository) LatestProgressDate(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrNoUser
	}

	var date string
	err := r.db.NewSelect().
		Model((*models.UserQuestProgress)(nil)).
		ColumnExpr("COALESCE(MAX(quest_date), '')").
		Where("user_id = ?", userID).
		Scan(ctx, &date)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", r.HandleErrorWithID("get", "quest progress", userID, err)
	}

	return date, nil
}

// WipeProgressExcept deletes every progress row for the user that is not on
// keepDate. Day rollover is a full wipe of stale rows, never a zeroing.
func (r *questRepository) WipeProgressExcept(ctx context.Context, userID string, keepDate string) error {
	if userID == "" {
		return ErrNoUser
	}

	res, err := r.db.NewDelete().
		Model((*models.UserQuestProgress)(nil)).
		Where("user_id = ?", userID).
		Where("quest_date != ?", keepDate).
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("wipe", "quest progress", userID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.Info("Wiped stale quest progress",
			slog.String("type", "db"),
			slog.String("user_id", userID),
			slog.Int64("rows", n))
	}
	return nil
}

// IncrementProgress applies one progress increment inside a transaction with
// a row lock, creating the zero row on first touch. It returns the updated
// row and whether this call completed the quest. Increments against an
// already completed quest are no-ops. The caller awards XP after this
// transaction commits, never inside it.
func (r *questRepository) IncrementProgress(ctx context.Context, userID, questID, date string, amount, target int) (*models.UserQuestProgress, bool, error) {
	if userID == "" {
		return nil, false, ErrNoUser
	}

	var progress *models.UserQuestProgress
	var completedNow bool

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		progress = new(models.UserQuestProgress)
		err := tx.NewSelect().
			Model(progress).
			Where("user_id = ?", userID).
			Where("quest_id = ?", questID).
			Where("quest_date = ?", date).
			For("UPDATE").
			Scan(ctx)

		if errors.Is(err, sql.ErrNoRows) {
			now := time.Now()
			fresh := &models.UserQuestProgress{
				UserID:    userID,
				QuestID:   questID,
				QuestDate: date,
				CreatedAt: now,
				UpdatedAt: now,
			}
			// A concurrent first increment may have inserted the row between
			// the select and here; the conflict clause makes that benign and
			// the re-select below takes the lock either way.
			if _, err := tx.NewInsert().
				Model(fresh).
				On("CONFLICT (user_id, quest_id, quest_date) DO NOTHING").
				Exec(ctx); err != nil {
				return err
			}

			progress = new(models.UserQuestProgress)
			err = tx.NewSelect().
				Model(progress).
				Where("user_id = ?", userID).
				Where("quest_id = ?", questID).
				Where("quest_date = ?", date).
				For("UPDATE").
				Scan(ctx)
		}
		if err != nil {
			return err
		}

		completedNow = progress.Apply(amount, target, time.Now())
		progress.UpdatedAt = time.Now()

		_, err = tx.NewUpdate().
			Model(progress).
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, false, r.HandleErrorWithID("increment", "quest progress", questID, err)
	}

	return progress, completedNow, nil
}
