package services

import (
	"context"
	"testing"
	"time"

	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/hanchul-app/koquest/koquest/events"
	"github.com/hanchul-app/koquest/koquest/gamification"
)

func testCatalog() []*models.QuestDefinition {
	return []*models.QuestDefinition{
		{QuestID: "search_3_words", Action: models.ActionWordSearch, Target: 3, RewardXP: 10, SortOrder: 1},
		{QuestID: "complete_quiz", Action: models.ActionQuizComplete, Target: 1, RewardXP: 15, SortOrder: 2},
		{QuestID: "weekend_marathon", Action: models.ActionWordSearch, Target: 10, RewardXP: 30, ActiveDays: []int{6, 7}, SortOrder: 3},
	}
}

// newTestStack wires a quest service over in-memory fakes with a frozen
// clock. The returned setter moves the clock.
func newTestStack(t *testing.T) (*QuestService, *GamificationService, *fakeQuestRepo, *fakeGamRepo, func(time.Time)) {
	t.Helper()

	questRepo := newFakeQuestRepo(testCatalog())
	gamRepo := newFakeGamRepo()
	bus := events.NewBus()

	gamSvc := NewGamificationService(gamRepo, newFakeAchRepo(), &fakeSyncClient{}, bus, gamification.NewDefaultConfig())
	questSvc := NewQuestService(questRepo, gamSvc, bus)

	setNow := func(tm time.Time) {
		questSvc.now = func() time.Time { return tm }
		gamSvc.now = func() time.Time { return tm }
		questRepo.now = func() time.Time { return tm }
	}
	// A Tuesday, so the weekend quest is inactive by default.
	setNow(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	return questSvc, gamSvc, questRepo, gamRepo, setNow
}

func TestQuestService_IncrementCompletesOnceAndAwardsOnce(t *testing.T) {
	questSvc, _, _, gamRepo, _ := newTestStack(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := questSvc.IncrementQuest(ctx, "u1", "search_3_words", 1); err != nil {
			t.Fatalf("increment %d: %v", i+1, err)
		}
	}

	states, err := questSvc.DailyState(ctx, "u1")
	if err != nil {
		t.Fatalf("DailyState: %v", err)
	}
	var quest *DailyQuestState
	for _, s := range states {
		if s.Quest.QuestID == "search_3_words" {
			quest = s
		}
	}
	if quest == nil {
		t.Fatal("quest missing from daily state")
	}
	if !quest.Completed || quest.CurrentProgress != 3 {
		t.Errorf("state = %+v, want completed at 3", quest)
	}
	if quest.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}
	if quest.ProgressPercent != 100 {
		t.Errorf("ProgressPercent = %v, want 100", quest.ProgressPercent)
	}

	user := gamRepo.users["u1"]
	if user.TotalXP != 10 {
		t.Errorf("TotalXP = %d, want exactly one 10 XP reward", user.TotalXP)
	}

	// Further increments change nothing.
	if err := questSvc.IncrementQuest(ctx, "u1", "search_3_words", 5); err != nil {
		t.Fatalf("post-completion increment: %v", err)
	}
	if gamRepo.users["u1"].TotalXP != 10 {
		t.Errorf("TotalXP = %d after extra increment, reward must not repeat", gamRepo.users["u1"].TotalXP)
	}
}

func TestQuestService_IncrementClampsOvershoot(t *testing.T) {
	questSvc, _, questRepo, gamRepo, _ := newTestStack(t)
	ctx := context.Background()

	if err := questSvc.IncrementQuest(ctx, "u1", "search_3_words", 100); err != nil {
		t.Fatalf("increment: %v", err)
	}

	p := questRepo.progress[progressKey("u1", "search_3_words", "2026-03-10")]
	if p.CurrentProgress != 3 {
		t.Errorf("progress = %d, want clamped to 3", p.CurrentProgress)
	}
	if gamRepo.users["u1"].TotalXP != 10 {
		t.Errorf("TotalXP = %d, want 10", gamRepo.users["u1"].TotalXP)
	}
}

func TestQuestService_NonPositiveAmountIsNoOp(t *testing.T) {
	questSvc, _, questRepo, _, _ := newTestStack(t)
	ctx := context.Background()

	if err := questSvc.IncrementQuest(ctx, "u1", "search_3_words", 0); err != nil {
		t.Fatalf("zero increment: %v", err)
	}
	if err := questSvc.IncrementQuest(ctx, "u1", "search_3_words", -4); err != nil {
		t.Fatalf("negative increment: %v", err)
	}
	if len(questRepo.progress) != 0 {
		t.Errorf("progress rows = %d, want none", len(questRepo.progress))
	}
}

func TestQuestService_InactiveQuestIsSkipped(t *testing.T) {
	questSvc, _, questRepo, _, _ := newTestStack(t)
	ctx := context.Background()

	// Tuesday: the weekend quest must not accept increments.
	if err := questSvc.IncrementQuest(ctx, "u1", "weekend_marathon", 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if len(questRepo.progress) != 0 {
		t.Error("inactive quest accumulated progress")
	}

	states, err := questSvc.DailyState(ctx, "u1")
	if err != nil {
		t.Fatalf("DailyState: %v", err)
	}
	for _, s := range states {
		if s.Quest.QuestID == "weekend_marathon" {
			t.Error("weekend quest listed on a tuesday")
		}
	}
}

func TestQuestService_ZeroTargetQuestIsCompleteFromFirstRead(t *testing.T) {
	questSvc, _, questRepo, gamRepo, _ := newTestStack(t)
	ctx := context.Background()

	err := questRepo.CreateQuestDefinition(ctx, &models.QuestDefinition{
		QuestID: "open_app", Action: models.ActionDailyLogin, Target: 0, RewardXP: 10, SortOrder: 4,
	})
	if err != nil {
		t.Fatalf("CreateQuestDefinition: %v", err)
	}

	states, err := questSvc.DailyState(ctx, "u1")
	if err != nil {
		t.Fatalf("DailyState: %v", err)
	}
	var quest *DailyQuestState
	for _, s := range states {
		if s.Quest.QuestID == "open_app" {
			quest = s
		}
	}
	if quest == nil {
		t.Fatal("zero-target quest missing from daily state")
	}
	if !quest.Completed {
		t.Error("zero-target quest must read as completed without any action")
	}
	if quest.ProgressPercent != 100 {
		t.Errorf("ProgressPercent = %v, want 100", quest.ProgressPercent)
	}

	// Increments cannot re-trigger completion, so the reward never pays out.
	if err := questSvc.IncrementQuest(ctx, "u1", "open_app", 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if len(questRepo.progress) != 0 {
		t.Errorf("progress rows = %d, want none for a zero-target quest", len(questRepo.progress))
	}
	if u, ok := gamRepo.users["u1"]; ok && u.TotalXP != 0 {
		t.Errorf("TotalXP = %d, want 0", u.TotalXP)
	}
}

func TestQuestService_TrackActionFansOutToMatchingQuests(t *testing.T) {
	questSvc, _, questRepo, _, setNow := newTestStack(t)
	ctx := context.Background()

	// Saturday: both word_search quests are active.
	setNow(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	if err := questSvc.TrackAction(ctx, "u1", models.ActionWordSearch, 1); err != nil {
		t.Fatalf("TrackAction: %v", err)
	}

	daily := questRepo.progress[progressKey("u1", "search_3_words", "2026-03-14")]
	weekend := questRepo.progress[progressKey("u1", "weekend_marathon", "2026-03-14")]
	if daily == nil || daily.CurrentProgress != 1 {
		t.Errorf("daily quest progress = %+v, want 1", daily)
	}
	if weekend == nil || weekend.CurrentProgress != 1 {
		t.Errorf("weekend quest progress = %+v, want 1", weekend)
	}

	quiz := questRepo.progress[progressKey("u1", "complete_quiz", "2026-03-14")]
	if quiz != nil {
		t.Error("quiz quest advanced by a word search")
	}
}

func TestQuestService_DayRolloverWipesPreviousProgress(t *testing.T) {
	questSvc, _, questRepo, gamRepo, setNow := newTestStack(t)
	ctx := context.Background()

	if err := questSvc.IncrementQuest(ctx, "u1", "search_3_words", 2); err != nil {
		t.Fatalf("day one increment: %v", err)
	}

	// Next day: first touch wipes yesterday's rows, XP total survives.
	setNow(time.Date(2026, 3, 11, 0, 5, 0, 0, time.UTC))
	states, err := questSvc.DailyState(ctx, "u1")
	if err != nil {
		t.Fatalf("DailyState: %v", err)
	}

	for _, s := range states {
		if s.CurrentProgress != 0 || s.Completed {
			t.Errorf("quest %s carried over progress: %+v", s.Quest.QuestID, s)
		}
	}
	if old := questRepo.progress[progressKey("u1", "search_3_words", "2026-03-10")]; old != nil {
		t.Error("yesterday's progress row survived the rollover")
	}

	// Completing the quest again on the new day awards again.
	if err := questSvc.IncrementQuest(ctx, "u1", "search_3_words", 3); err != nil {
		t.Fatalf("day two increment: %v", err)
	}
	if gamRepo.users["u1"].TotalXP != 10 {
		t.Errorf("TotalXP = %d, want 10 from day-two completion", gamRepo.users["u1"].TotalXP)
	}
}

func TestQuestService_ProgressIsolatedPerUser(t *testing.T) {
	questSvc, _, _, gamRepo, _ := newTestStack(t)
	ctx := context.Background()

	if err := questSvc.IncrementQuest(ctx, "u1", "search_3_words", 3); err != nil {
		t.Fatalf("u1 increment: %v", err)
	}
	if err := questSvc.IncrementQuest(ctx, "u2", "search_3_words", 1); err != nil {
		t.Fatalf("u2 increment: %v", err)
	}

	states, err := questSvc.DailyState(ctx, "u2")
	if err != nil {
		t.Fatalf("DailyState: %v", err)
	}
	for _, s := range states {
		if s.Quest.QuestID == "search_3_words" {
			if s.Completed || s.CurrentProgress != 1 {
				t.Errorf("u2 state = %+v, want progress 1 incomplete", s)
			}
		}
	}
	if gamRepo.users["u1"].TotalXP != 10 {
		t.Errorf("u1 TotalXP = %d, want 10", gamRepo.users["u1"].TotalXP)
	}
	if u2, ok := gamRepo.users["u2"]; ok && u2.TotalXP != 0 {
		t.Errorf("u2 TotalXP = %d, want 0", u2.TotalXP)
	}
}

func TestQuestService_MissingUserIDRejected(t *testing.T) {
	questSvc, _, _, _, _ := newTestStack(t)
	ctx := context.Background()

	if _, err := questSvc.DailyState(ctx, ""); err == nil {
		t.Error("DailyState with empty user must fail")
	}
	if err := questSvc.IncrementQuest(ctx, "", "search_3_words", 1); err == nil {
		t.Error("IncrementQuest with empty user must fail")
	}
	if err := questSvc.TrackAction(ctx, "", models.ActionWordSearch, 1); err == nil {
		t.Error("TrackAction with empty user must fail")
	}
}

func TestQuestService_CompletionPublishesEvents(t *testing.T) {
	questSvc, _, _, _, _ := newTestStack(t)
	ctx := context.Background()

	ch, cancel := questSvc.bus.Subscribe()
	defer cancel()

	if err := questSvc.IncrementQuest(ctx, "u1", "complete_quiz", 1); err != nil {
		t.Fatalf("increment: %v", err)
	}

	var sawProgress, sawCompleted, sawXP bool
	timeout := time.After(time.Second)
	for !(sawProgress && sawCompleted && sawXP) {
		select {
		case evt := <-ch:
			switch e := evt.(type) {
			case events.QuestProgressChanged:
				sawProgress = true
			case events.QuestCompleted:
				sawCompleted = true
				if e.RewardXP != 15 {
					t.Errorf("QuestCompleted.RewardXP = %d, want 15", e.RewardXP)
				}
			case events.ExperienceEarned:
				sawXP = true
				if e.Source != "quest:complete_quiz" {
					t.Errorf("ExperienceEarned.Source = %q", e.Source)
				}
			}
		case <-timeout:
			t.Fatalf("missing events: progress=%v completed=%v xp=%v", sawProgress, sawCompleted, sawXP)
		}
	}
}
