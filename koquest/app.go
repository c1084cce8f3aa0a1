package koquest

import (
	"context"
	"log/slog"

	"github.com/hanchul-app/koquest/koquest/database"
	"github.com/hanchul-app/koquest/koquest/database/repositories"
	"github.com/hanchul-app/koquest/koquest/events"
	"github.com/hanchul-app/koquest/koquest/gamification"
	"github.com/hanchul-app/koquest/koquest/remote"
	"github.com/hanchul-app/koquest/koquest/services"
	"github.com/hanchul-app/koquest/koquest/sync"
	"github.com/hanchul-app/koquest/koquest/web"
)

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:     cfg,
		Bus:     events.NewBus(),
		Version: version,
		Commit:  commit,
	}
}

// App aggregates every long-lived component of the service.
type App struct {
	Cfg     Config
	Version string
	Commit  string
	Bus     *events.Bus
	DB      *database.DB

	QuestRepository        repositories.QuestRepository
	GamificationRepository repositories.GamificationRepository
	AchievementRepository  repositories.AchievementRepository

	RemoteClient        *remote.Client
	LeaderboardService  *remote.LeaderboardService
	GamificationService *services.GamificationService
	QuestService        *services.QuestService
	QuestTracker        *services.QuestTracker
	SpacesService       *services.SpacesService
	SnapshotService     *services.SnapshotService
	SyncWorker          *sync.Worker
	Server              *web.Server
}

// Setup wires repositories and services on top of an open database handle.
// The DB field must be set before calling.
func (a *App) Setup() {
	bunDB := a.DB.BunDB()
	a.QuestRepository = repositories.NewQuestRepository(bunDB)
	a.GamificationRepository = repositories.NewGamificationRepository(bunDB)
	a.AchievementRepository = repositories.NewAchievementRepository(bunDB)

	a.RemoteClient = remote.NewClient(a.Cfg.Remote.BaseURL, a.Cfg.Remote.APIKey, a.Cfg.Remote.Timeout)
	a.LeaderboardService = remote.NewLeaderboardService(a.RemoteClient)

	gamCfg := &gamification.Config{
		XPPerLevel:   gamification.NewDefaultConfig().XPPerLevel,
		SyncInterval: a.Cfg.Sync.Interval,
	}
	a.GamificationService = services.NewGamificationService(
		a.GamificationRepository,
		a.AchievementRepository,
		a.RemoteClient,
		a.Bus,
		gamCfg,
	)
	a.QuestService = services.NewQuestService(a.QuestRepository, a.GamificationService, a.Bus)
	a.QuestTracker = services.NewQuestTracker(a.QuestService)

	a.SyncWorker = sync.NewWorker(
		a.GamificationRepository,
		a.GamificationService,
		a.Cfg.Sync.Interval,
		a.Cfg.Sync.BatchSize,
	)

	a.Server = web.NewServer(
		web.Options{
			Addr:      a.Cfg.Web.Addr,
			APIKey:    a.Cfg.Web.APIKey,
			CORSAllow: a.Cfg.Web.CORSAllow,
			Version:   a.Version,
		},
		a.QuestRepository,
		a.AchievementRepository,
		a.QuestService,
		a.GamificationService,
		a.LeaderboardService,
	)
}

// SetupSpaces wires the optional snapshot exporter. Skipped entirely when
// no bucket is configured.
func (a *App) SetupSpaces() error {
	if a.Cfg.Spaces.Bucket == "" {
		slog.Info("No Spaces bucket configured, snapshot export disabled")
		return nil
	}
	spaces, err := services.NewSpacesService(
		a.Cfg.Spaces.Key,
		a.Cfg.Spaces.Secret,
		a.Cfg.Spaces.Region,
		a.Cfg.Spaces.Bucket,
		a.Cfg.Spaces.SnapshotRoot,
	)
	if err != nil {
		return err
	}
	a.SpacesService = spaces
	a.SnapshotService = services.NewSnapshotService(a.GamificationRepository, spaces)
	return nil
}

// Start launches the background sync worker and begins serving HTTP. It
// blocks until the HTTP listener stops.
func (a *App) Start(ctx context.Context) error {
	a.SyncWorker.Start(ctx)
	return a.Server.Start()
}

// Shutdown drains the HTTP server and closes the database.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.Server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown error", slog.Any("error", err))
	}
	a.Bus.Close()
	a.DB.Close()
}
