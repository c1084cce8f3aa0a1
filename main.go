package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hanchul-app/koquest/koquest"
	"github.com/hanchul-app/koquest/koquest/database"
	"github.com/hanchul-app/koquest/koquest/gamification"
	"github.com/hanchul-app/koquest/koquest/logger"
	"github.com/hanchul-app/koquest/koquest/migration"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Initialize custom logger
	customHandler := logger.NewHandler("KoQuest")
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting KoQuest gamification service",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	importLegacy := flag.String("import-legacy", "", "import legacy users from a BSON dump directory and exit")
	importMongoURI := flag.String("import-mongo-uri", "", "import legacy users from a live MongoDB instance and exit")
	importMongoDB := flag.String("import-mongo-db", "legacy", "database name used with -import-mongo-uri")
	exportSnapshot := flag.Bool("export-snapshot", false, "export a state snapshot on startup")
	flag.Parse()

	cfg, err := koquest.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dbConfig := database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	}

	db, err := database.New(ctx, dbConfig)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	slog.Info("Initializing database schema...")
	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}

	if err := db.InitializeQuestData(ctx); err != nil {
		slog.Error("Failed to seed quest catalog", slog.Any("error", err))
		os.Exit(-1)
	}
	if err := db.InitializeAchievementData(ctx); err != nil {
		slog.Error("Failed to seed achievement catalog", slog.Any("error", err))
		os.Exit(-1)
	}

	if *importLegacy != "" || *importMongoURI != "" {
		calc := gamification.NewCalculator(gamification.NewDefaultConfig())
		importer := migration.NewImporter(db.BunDB(), *importLegacy, calc)

		var importErr error
		if *importMongoURI != "" {
			client, err := mongo.Connect(ctx, options.Client().ApplyURI(*importMongoURI))
			if err != nil {
				slog.Error("Failed to connect to MongoDB", slog.Any("error", err))
				db.Close()
				os.Exit(-1)
			}
			importer.UseMongo(client, *importMongoDB)
			importErr = importer.ImportUsersFromMongo(ctx)
			if err := client.Disconnect(ctx); err != nil {
				slog.Warn("MongoDB disconnect failed", slog.Any("error", err))
			}
		} else {
			importErr = importer.ImportUsers(ctx)
		}

		if importErr != nil {
			slog.Error("Legacy import failed", slog.Any("error", importErr))
			db.Close()
			os.Exit(-1)
		}
		db.Close()
		return
	}

	app := koquest.New(*cfg, version, commit)
	app.DB = db
	app.Setup()
	if err := app.SetupSpaces(); err != nil {
		slog.Error("Failed to set up Spaces", slog.Any("error", err))
		os.Exit(-1)
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if *exportSnapshot && app.SnapshotService != nil {
		go func() {
			if err := app.SnapshotService.ExportAll(runCtx); err != nil {
				slog.Error("Snapshot export failed", slog.Any("error", err))
			}
		}()
	}

	go func() {
		if err := app.Start(runCtx); err != nil {
			slog.Error("Server stopped", slog.Any("error", err))
			stop()
		}
	}()

	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	select {
	case <-s:
	case <-runCtx.Done():
	}

	slog.Info("Shutting down...")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	app.Shutdown(shutdownCtx)
	slog.Info("Shutdown complete")
}
