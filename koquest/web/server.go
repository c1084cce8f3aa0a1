package web

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/hanchul-app/koquest/koquest/config"
	"github.com/hanchul-app/koquest/koquest/database/repositories"
	"github.com/hanchul-app/koquest/koquest/remote"
	"github.com/hanchul-app/koquest/koquest/services"
)

// Options configures the HTTP server.
type Options struct {
	Addr      string
	APIKey    string
	CORSAllow []string
	Version   string
}

// Server is the HTTP surface the mobile client talks to.
type Server struct {
	App     *fiber.App
	Version string
	addr    string

	QuestRepo       repositories.QuestRepository
	AchievementRepo repositories.AchievementRepository
	Quests          *services.QuestService
	Gamification    *services.GamificationService
	LeaderboardSvc  *remote.LeaderboardService
}

func NewServer(
	opts Options,
	questRepo repositories.QuestRepository,
	achievementRepo repositories.AchievementRepository,
	quests *services.QuestService,
	gamification *services.GamificationService,
	leaderboard *remote.LeaderboardService,
) *Server {
	s := &Server{
		Version:         opts.Version,
		addr:            opts.Addr,
		QuestRepo:       questRepo,
		AchievementRepo: achievementRepo,
		Quests:          quests,
		Gamification:    gamification,
		LeaderboardSvc:  leaderboard,
	}

	app := fiber.New(fiber.Config{
		AppName:      "KoQuest API",
		ServerHeader: "KoQuest",
		BodyLimit:    config.MaxRequestSize,
		ErrorHandler: CustomErrorHandler,
	})

	app.Use(recover.New())
	app.Use(SecurityHeaders())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(opts.CORSAllow, ","),
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key",
	}))
	app.Use(LoggingMiddleware())

	s.App = app
	s.setupRoutes(opts.APIKey)
	return s
}

func (s *Server) setupRoutes(apiKey string) {
	s.App.Get("/health", HealthCheck(s))

	v1 := s.App.Group("/v1")
	v1.Use(APIKeyRequired(apiKey))
	v1.Use(RateLimitMiddleware())

	v1.Get("/quests", QuestCatalog(s))
	v1.Post("/quests", CreateQuest(s))
	v1.Get("/achievements", AchievementCatalog(s))

	users := v1.Group("/users/:userId")
	users.Get("/quests", DailyQuests(s))
	users.Post("/actions", TrackAction(s))
	users.Get("/profile", Profile(s))
	users.Post("/achievements/:achievementId/unlock", UnlockAchievement(s))
	users.Post("/sync", SyncUser(s))

	v1.Get("/leaderboard", Leaderboard(s))
	v1.Get("/leaderboard/search", SearchLeaderboard(s))
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting API server", slog.String("address", s.addr))
	return s.App.Listen(s.addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.App.ShutdownWithContext(ctx)
}
