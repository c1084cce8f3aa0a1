package migration

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hanchul-app/koquest/koquest/database/models"
	"github.com/hanchul-app/koquest/koquest/gamification"
)

// Importer loads legacy user records, either from a raw BSON dump file
// (users.bson, concatenated framed documents) or directly from a live
// MongoDB instance, and upserts them into the gamification tables.
type Importer struct {
	pgDB      *bun.DB
	dataDir   string
	usersPath string
	batchSize int
	calc      *gamification.Calculator
	// Optional direct Mongo access
	mongoDB  *mongo.Database
	collName string
	stats    ImportStats
}

// ImportStats records one import run.
type ImportStats struct {
	Read       int
	Imported   int
	Duplicates int
	Skipped    int
	StartTime  time.Time
	EndTime    time.Time
}

func NewImporter(pgDB *bun.DB, dataDir string, calc *gamification.Calculator) *Importer {
	return &Importer{
		pgDB:      pgDB,
		dataDir:   dataDir,
		usersPath: filepath.Join(dataDir, "users.bson"),
		batchSize: 1000,
		calc:      calc,
		collName:  "users",
	}
}

// SetBatchSize overrides the default insert batch size.
func (im *Importer) SetBatchSize(size int) {
	if size > 0 {
		im.batchSize = size
	}
}

// UseMongo enables direct-from-Mongo import mode.
func (im *Importer) UseMongo(client *mongo.Client, dbName string) {
	if client != nil && dbName != "" {
		im.mongoDB = client.Database(dbName)
	}
}

// Stats returns the statistics of the last import run.
func (im *Importer) Stats() ImportStats { return im.stats }

// ImportUsers reads users.bson and upserts every legacy user.
func (im *Importer) ImportUsers(ctx context.Context) error {
	slog.Info("Starting legacy user import",
		slog.String("path", im.usersPath),
		slog.Int("batch_size", im.batchSize))
	im.stats = ImportStats{StartTime: time.Now()}

	legacyUsers, err := im.readLegacyDump()
	if err != nil {
		return err
	}

	slog.Info("Loaded legacy users from BSON file", slog.Int("count", len(legacyUsers)))
	return im.processUsers(ctx, legacyUsers)
}

// readLegacyDump loads every legacy user document out of users.bson.
func (im *Importer) readLegacyDump() ([]LegacyUser, error) {
	file, err := os.Open(im.usersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open users BSON file: %w", err)
	}
	defer file.Close()

	return decodeUserDocuments(bufio.NewReader(file))
}

// decodeUserDocuments parses a mongodump-style stream of concatenated framed
// BSON documents. A truncated frame or a nonsense length prefix aborts the
// whole read; a partial import would be worse than none.
func decodeUserDocuments(reader io.Reader) ([]LegacyUser, error) {
	var legacyUsers []LegacyUser
	for {
		// Each BSON document starts with an int32 length that includes the
		// four length bytes themselves.
		lengthBytes := make([]byte, 4)
		_, err := io.ReadFull(reader, lengthBytes)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read document length: %w", err)
		}

		length := int32(binary.LittleEndian.Uint32(lengthBytes))
		if length <= 4 {
			return nil, fmt.Errorf("invalid document length: %d", length)
		}

		docBytes := make([]byte, length-4)
		if _, err := io.ReadFull(reader, docBytes); err != nil {
			return nil, fmt.Errorf("failed to read document bytes: %w", err)
		}

		var lu LegacyUser
		if err := bson.Unmarshal(append(lengthBytes, docBytes...), &lu); err != nil {
			return nil, fmt.Errorf("failed to decode users BSON: %w", err)
		}
		legacyUsers = append(legacyUsers, lu)
	}
	return legacyUsers, nil
}

// ImportUsersFromMongo imports users straight from a live Mongo database.
func (im *Importer) ImportUsersFromMongo(ctx context.Context) error {
	if im.mongoDB == nil {
		return fmt.Errorf("mongoDB not configured; call UseMongo first")
	}
	im.stats = ImportStats{StartTime: time.Now()}

	cur, err := im.mongoDB.Collection(im.collName).Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query users: %w", err)
	}
	defer cur.Close(ctx)

	var legacyUsers []LegacyUser
	for cur.Next(ctx) {
		var lu LegacyUser
		if err := cur.Decode(&lu); err != nil {
			im.stats.Skipped++
			continue
		}
		legacyUsers = append(legacyUsers, lu)
	}
	if err := cur.Err(); err != nil {
		return err
	}
	return im.processUsers(ctx, legacyUsers)
}

func (im *Importer) processUsers(ctx context.Context, legacyUsers []LegacyUser) error {
	im.stats.Read = len(legacyUsers)

	// Deduplicate by user id, keeping the latest record.
	byID := make(map[string]*models.UserGamification)
	for _, lu := range legacyUsers {
		converted := im.convertUser(lu)
		if converted == nil {
			im.stats.Skipped++
			continue
		}
		if _, exists := byID[converted.UserID]; exists {
			im.stats.Duplicates++
		}
		byID[converted.UserID] = converted
	}

	users := make([]*models.UserGamification, 0, len(byID))
	for _, u := range byID {
		users = append(users, u)
	}

	for i := 0; i < len(users); i += im.batchSize {
		end := i + im.batchSize
		if end > len(users) {
			end = len(users)
		}
		batch := users[i:end]
		if err := im.batchUpsert(ctx, batch); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
		slog.Info("Upserted legacy user batch",
			slog.Int("batch", len(batch)),
			slog.String("progress", fmt.Sprintf("%d/%d", end, len(users))))
	}

	im.stats.Imported = len(users)
	im.stats.EndTime = time.Now()
	slog.Info("Legacy user import completed",
		slog.Int("read", im.stats.Read),
		slog.Int("imported", im.stats.Imported),
		slog.Int("duplicates", im.stats.Duplicates),
		slog.Int("skipped", im.stats.Skipped),
		slog.Duration("took", im.stats.EndTime.Sub(im.stats.StartTime)))
	return nil
}

// convertUser maps a legacy document to a gamification row. The level is
// recomputed from total XP rather than trusted from the dump.
func (im *Importer) convertUser(lu LegacyUser) *models.UserGamification {
	userID := lu.UserID
	if userID == "" {
		userID = lu.ID
	}
	if userID == "" {
		return nil
	}

	totalXP := lu.TotalXP
	if totalXP < 0 {
		totalXP = 0
	}

	achievements := lu.Achievements
	if achievements == nil {
		achievements = []string{}
	}

	now := time.Now()
	return &models.UserGamification{
		UserID:       userID,
		Username:     lu.Username,
		TotalXP:      totalXP,
		Level:        im.calc.Level(totalXP),
		Achievements: achievements,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// batchUpsert inserts the batch, updating totals only when the legacy dump
// carries more XP than the existing row. A user who already progressed past
// the dump is never moved backwards.
func (im *Importer) batchUpsert(ctx context.Context, batch []*models.UserGamification) error {
	_, err := im.pgDB.NewInsert().
		Model(&batch).
		On("CONFLICT (user_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("total_xp = GREATEST(ug.total_xp, EXCLUDED.total_xp)").
		Set("level = GREATEST(ug.level, EXCLUDED.level)").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
