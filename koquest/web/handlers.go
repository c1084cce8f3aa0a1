package web

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/hanchul-app/koquest/koquest/database/repositories"
	"github.com/hanchul-app/koquest/koquest/remote"
)

// HealthCheck reports service liveness.
func HealthCheck(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": s.Version,
		})
	}
}

// QuestCatalog returns every quest definition.
func QuestCatalog(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		catalog, err := s.QuestRepo.GetAllQuestDefinitions(c.UserContext())
		if err != nil {
			slog.Error("Failed to load quest catalog", slog.Any("error", err))
			return SendInternalServerError(c, "Failed to load quest catalog")
		}
		return SendSuccess(c, catalog, "")
	}
}

// AchievementCatalog returns every achievement definition.
func AchievementCatalog(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		catalog, err := s.AchievementRepo.GetAllAchievementDefinitions(c.UserContext())
		if err != nil {
			slog.Error("Failed to load achievement catalog", slog.Any("error", err))
			return SendInternalServerError(c, "Failed to load achievement catalog")
		}
		return SendSuccess(c, catalog, "")
	}
}

// DailyQuests returns today's quests with the user's progress.
func DailyQuests(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		states, err := s.Quests.DailyState(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, repositories.ErrNoUser) {
				return SendBadRequest(c, "Missing user id", nil)
			}
			slog.Error("Failed to load daily quests",
				slog.String("user_id", userID),
				slog.Any("error", err))
			return SendInternalServerError(c, "Failed to load daily quests")
		}
		return SendSuccess(c, states, "")
	}
}

type trackActionRequest struct {
	Action string `json:"action"`
	Amount int    `json:"amount"`
}

// TrackAction applies one user action to every matching active quest. The
// mobile client calls this from its feature hooks after a search, a quiz,
// a favorite save, or the first open of the day.
func TrackAction(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("userId")

		var req trackActionRequest
		if err := c.BodyParser(&req); err != nil {
			return SendBadRequest(c, "Invalid request body", nil)
		}
		if req.Action == "" {
			return SendBadRequest(c, "Missing action", nil)
		}
		if req.Amount == 0 {
			req.Amount = 1
		}

		if err := s.Quests.TrackAction(c.UserContext(), userID, req.Action, req.Amount); err != nil {
			if errors.Is(err, repositories.ErrNoUser) {
				return SendBadRequest(c, "Missing user id", nil)
			}
			slog.Error("Failed to track action",
				slog.String("user_id", userID),
				slog.String("action", req.Action),
				slog.Any("error", err))
			return SendInternalServerError(c, "Failed to track action")
		}

		states, err := s.Quests.DailyState(c.UserContext(), userID)
		if err != nil {
			return SendInternalServerError(c, "Failed to load daily quests")
		}
		return SendSuccess(c, states, "")
	}
}

// Profile returns the user's gamification state.
func Profile(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		state, err := s.Gamification.Profile(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, repositories.ErrNoUser) {
				return SendBadRequest(c, "Missing user id", nil)
			}
			slog.Error("Failed to load profile",
				slog.String("user_id", userID),
				slog.Any("error", err))
			return SendInternalServerError(c, "Failed to load profile")
		}
		return SendSuccess(c, state, "")
	}
}

// UnlockAchievement records one achievement for the user.
func UnlockAchievement(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		achievementID := c.Params("achievementId")

		err := s.Gamification.UnlockAchievement(c.UserContext(), userID, achievementID)
		if err != nil {
			var notFound *repositories.NotFoundError
			if errors.As(err, &notFound) {
				return SendNotFound(c, "Unknown achievement")
			}
			if errors.Is(err, repositories.ErrNoUser) {
				return SendBadRequest(c, "Missing user id", nil)
			}
			slog.Error("Failed to unlock achievement",
				slog.String("user_id", userID),
				slog.String("achievement_id", achievementID),
				slog.Any("error", err))
			return SendInternalServerError(c, "Failed to unlock achievement")
		}

		state, err := s.Gamification.Profile(c.UserContext(), userID)
		if err != nil {
			return SendInternalServerError(c, "Failed to load profile")
		}
		return SendSuccess(c, state, "")
	}
}

// SyncUser forces an immediate push of the user's state to the remote
// store, outside the periodic worker cadence.
func SyncUser(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		rank, err := s.Gamification.SyncToServer(c.UserContext(), userID)
		if err != nil {
			var reqErr *remote.RequestError
			if errors.As(err, &reqErr) {
				// Remote hiccup; the periodic worker will retry.
				return SendError(c, fiber.StatusBadGateway, "REMOTE_UNAVAILABLE", reqErr.Message(), nil)
			}
			slog.Error("Failed to sync user",
				slog.String("user_id", userID),
				slog.Any("error", err))
			return SendInternalServerError(c, "Failed to sync user")
		}
		return SendSuccess(c, fiber.Map{"rank": rank}, "")
	}
}

// Leaderboard returns the global ranking, served from cache when the
// remote store is unreachable.
func Leaderboard(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit"))
		entries, err := s.LeaderboardSvc.Leaderboard(c.UserContext(), limit)
		if err != nil {
			if len(entries) > 0 {
				return SendSuccess(c, fiber.Map{
					"entries": entries,
					"stale":   true,
				}, "Serving cached leaderboard")
			}
			return SendError(c, fiber.StatusBadGateway, "REMOTE_UNAVAILABLE", "Leaderboard is unavailable", nil)
		}

		response := fiber.Map{"entries": entries, "stale": false}
		if userID := c.Query("user_id"); userID != "" {
			if me := s.LeaderboardSvc.CurrentUserEntry(entries, userID); me != nil {
				response["me"] = me
			}
		}
		return SendSuccess(c, response, "")
	}
}

// SearchLeaderboard fuzzy-matches usernames against the last fetched
// leaderboard.
func SearchLeaderboard(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return SendBadRequest(c, "Missing query", nil)
		}
		return SendSuccess(c, s.LeaderboardSvc.SearchByUsername(query), "")
	}
}

// CreateQuest registers a new quest definition. Operator endpoint; the
// client catalog is otherwise fixed at seed time.
func CreateQuest(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var quest models.QuestDefinition
		if err := c.BodyParser(&quest); err != nil {
			return SendBadRequest(c, "Invalid request body", nil)
		}
		if quest.QuestID == "" || quest.Action == "" || quest.Target <= 0 {
			return SendBadRequest(c, "quest_id, action and a positive target are required", nil)
		}
		if err := s.QuestRepo.CreateQuestDefinition(c.UserContext(), &quest); err != nil {
			var conflict *repositories.ConflictError
			if errors.As(err, &conflict) {
				return SendError(c, fiber.StatusConflict, "CONFLICT", "Quest already exists", nil)
			}
			slog.Error("Failed to create quest", slog.Any("error", err))
			return SendInternalServerError(c, "Failed to create quest")
		}
		return c.Status(fiber.StatusCreated).JSON(APIResponse{Success: true, Data: quest})
	}
}
