package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/hanchul-app/koquest/koquest/database/repositories"
	"github.com/hanchul-app/koquest/koquest/remote"
)

// In-memory repository stand-ins. They mirror the Postgres repositories'
// contracts closely enough to drive the service-level scenarios without a
// database.

type fakeQuestRepo struct {
	catalog  []*models.QuestDefinition
	progress map[string]*models.UserQuestProgress // userID|questID|date
	now      func() time.Time
}

func newFakeQuestRepo(catalog []*models.QuestDefinition) *fakeQuestRepo {
	return &fakeQuestRepo{
		catalog:  catalog,
		progress: make(map[string]*models.UserQuestProgress),
		now:      time.Now,
	}
}

func progressKey(userID, questID, date string) string {
	return userID + "|" + questID + "|" + date
}

func (f *fakeQuestRepo) GetQuestDefinition(ctx context.Context, questID string) (*models.QuestDefinition, error) {
	for _, q := range f.catalog {
		if q.QuestID == questID {
			return q, nil
		}
	}
	return nil, &repositories.NotFoundError{Entity: "quest definition", ID: questID}
}

func (f *fakeQuestRepo) GetAllQuestDefinitions(ctx context.Context) ([]*models.QuestDefinition, error) {
	return f.catalog, nil
}

func (f *fakeQuestRepo) CreateQuestDefinition(ctx context.Context, quest *models.QuestDefinition) error {
	for _, q := range f.catalog {
		if q.QuestID == quest.QuestID {
			return &repositories.ConflictError{Entity: "quest definition", Field: "quest_id", Value: quest.QuestID}
		}
	}
	f.catalog = append(f.catalog, quest)
	return nil
}

func (f *fakeQuestRepo) GetProgressForDate(ctx context.Context, userID, date string) ([]*models.UserQuestProgress, error) {
	if userID == "" {
		return nil, repositories.ErrNoUser
	}
	var out []*models.UserQuestProgress
	for _, p := range f.progress {
		if p.UserID == userID && p.QuestDate == date {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestID < out[j].QuestID })
	return out, nil
}

func (f *fakeQuestRepo) LatestProgressDate(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", repositories.ErrNoUser
	}
	latest := ""
	for _, p := range f.progress {
		if p.UserID == userID && p.QuestDate > latest {
			latest = p.QuestDate
		}
	}
	return latest, nil
}

func (f *fakeQuestRepo) WipeProgressExcept(ctx context.Context, userID, keepDate string) error {
	if userID == "" {
		return repositories.ErrNoUser
	}
	for key, p := range f.progress {
		if p.UserID == userID && p.QuestDate != keepDate {
			delete(f.progress, key)
		}
	}
	return nil
}

func (f *fakeQuestRepo) IncrementProgress(ctx context.Context, userID, questID, date string, amount, target int) (*models.UserQuestProgress, bool, error) {
	if userID == "" {
		return nil, false, repositories.ErrNoUser
	}
	key := progressKey(userID, questID, date)
	p, ok := f.progress[key]
	if !ok {
		p = &models.UserQuestProgress{
			UserID:    userID,
			QuestID:   questID,
			QuestDate: date,
		}
		f.progress[key] = p
	}
	completedNow := p.Apply(amount, target, f.now())
	return p, completedNow, nil
}

type fakeGamRepo struct {
	users      map[string]*models.UserGamification
	xpPerLevel int64
}

func newFakeGamRepo() *fakeGamRepo {
	return &fakeGamRepo{
		users:      make(map[string]*models.UserGamification),
		xpPerLevel: 100,
	}
}

func (f *fakeGamRepo) Get(ctx context.Context, userID string) (*models.UserGamification, error) {
	if userID == "" {
		return nil, repositories.ErrNoUser
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "gamification state", ID: userID}
	}
	return u, nil
}

func (f *fakeGamRepo) GetOrCreate(ctx context.Context, userID string) (*models.UserGamification, error) {
	if userID == "" {
		return nil, repositories.ErrNoUser
	}
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	u := &models.UserGamification{UserID: userID, Level: 1, Achievements: []string{}}
	f.users[userID] = u
	return u, nil
}

func (f *fakeGamRepo) SetUsername(ctx context.Context, userID, username string) error {
	u, err := f.Get(ctx, userID)
	if err != nil {
		return err
	}
	u.Username = username
	return nil
}

func (f *fakeGamRepo) AddExperience(ctx context.Context, userID string, amount int64) (*models.UserGamification, int, error) {
	u, err := f.Get(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	previousLevel := u.Level
	u.TotalXP += amount
	u.Level = int(u.TotalXP/f.xpPerLevel) + 1
	return u, previousLevel, nil
}

func (f *fakeGamRepo) UnlockAchievement(ctx context.Context, userID, achievementID string) (bool, error) {
	u, err := f.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if u.HasAchievement(achievementID) {
		return false, nil
	}
	u.Achievements = append(u.Achievements, achievementID)
	return true, nil
}

func (f *fakeGamRepo) MarkSynced(ctx context.Context, userID string, rank int, at time.Time) error {
	u, err := f.Get(ctx, userID)
	if err != nil {
		return err
	}
	u.Rank = rank
	u.LastSyncedAt = at
	return nil
}

func (f *fakeGamRepo) ListNeedingSync(ctx context.Context, syncedBefore time.Time) ([]*models.UserGamification, error) {
	var out []*models.UserGamification
	for _, u := range f.users {
		if u.LastSyncedAt.IsZero() || u.LastSyncedAt.Before(syncedBefore) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeGamRepo) ListAll(ctx context.Context) ([]*models.UserGamification, error) {
	var out []*models.UserGamification
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type fakeAchRepo struct {
	defs map[string]*models.AchievementDefinition
}

func newFakeAchRepo(defs ...*models.AchievementDefinition) *fakeAchRepo {
	m := make(map[string]*models.AchievementDefinition, len(defs))
	for _, d := range defs {
		m[d.AchievementID] = d
	}
	return &fakeAchRepo{defs: m}
}

func (f *fakeAchRepo) GetAchievementDefinition(ctx context.Context, achievementID string) (*models.AchievementDefinition, error) {
	d, ok := f.defs[achievementID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "achievement definition", ID: achievementID}
	}
	return d, nil
}

func (f *fakeAchRepo) GetAllAchievementDefinitions(ctx context.Context) ([]*models.AchievementDefinition, error) {
	var out []*models.AchievementDefinition
	for _, d := range f.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

func (f *fakeAchRepo) CreateAchievementDefinition(ctx context.Context, achievement *models.AchievementDefinition) error {
	if _, ok := f.defs[achievement.AchievementID]; ok {
		return fmt.Errorf("achievement %s already exists", achievement.AchievementID)
	}
	f.defs[achievement.AchievementID] = achievement
	return nil
}

type fakeSyncClient struct {
	rank     int
	err      error
	payloads []remote.SyncPayload
}

func (f *fakeSyncClient) PushState(ctx context.Context, payload remote.SyncPayload) (*remote.SyncResult, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	return &remote.SyncResult{Rank: f.rank}, nil
}
