package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/parley-ai/parley/types"
)

const sqliteLocationPrefix = "sqlite:"

type sessionRow struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"index"`
	Topic        string
	CreatedAt    time.Time
	LastActivity time.Time
	Compressions int
}

func (sessionRow) TableName() string { return "sessions" }

type messageRow struct {
	ID         string `gorm:"primaryKey"`
	SessionID  string `gorm:"index"`
	Seq        int
	Role       string
	Content    string
	Timestamp  time.Time
	Importance float64
	TokenCount int
}

func (messageRow) TableName() string { return "messages" }

// SQLiteStore is a SessionStore backed by a local SQLite database.
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the schema.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open session archive %s: %w", path, err)
	}
	if err := db.AutoMigrate(&sessionRow{}, &messageRow{}); err != nil {
		return nil, fmt.Errorf("migrate session archive: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.With(zap.String("component", "session_archive")),
	}, nil
}

// ExportSession implements SessionStore.ExportSession. Re-exporting a
// session replaces its previous archive.
func (s *SQLiteStore) ExportSession(ctx context.Context, session *types.Session) (string, error) {
	if session == nil || session.ID == "" {
		return "", fmt.Errorf("session with id is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", session.ID).Delete(&messageRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", session.ID).Delete(&sessionRow{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&sessionRow{
			ID:           session.ID,
			UserID:       session.UserID,
			Topic:        session.Topic,
			CreatedAt:    session.CreatedAt,
			LastActivity: session.LastActivity,
			Compressions: session.Compressions,
		}).Error; err != nil {
			return err
		}
		for i, m := range session.Messages {
			if err := tx.Create(&messageRow{
				ID:         m.ID,
				SessionID:  session.ID,
				Seq:        i,
				Role:       string(m.Role),
				Content:    m.Content,
				Timestamp:  m.Timestamp,
				Importance: m.Importance,
				TokenCount: m.TokenCount,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("export session %s: %w", session.ID, err)
	}

	s.logger.Info("session exported",
		zap.String("session_id", session.ID),
		zap.Int("messages", len(session.Messages)))
	return sqliteLocationPrefix + session.ID, nil
}

// ImportSession implements SessionStore.ImportSession.
func (s *SQLiteStore) ImportSession(ctx context.Context, location string) (*types.Session, error) {
	id := strings.TrimPrefix(location, sqliteLocationPrefix)

	var row sessionRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewError(types.ErrNotFound, fmt.Sprintf("no archived session at %s", location))
		}
		return nil, fmt.Errorf("import session %s: %w", id, err)
	}

	var msgRows []messageRow
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", id).
		Order("seq asc").
		Find(&msgRows).Error; err != nil {
		return nil, fmt.Errorf("import session messages %s: %w", id, err)
	}

	session := &types.Session{
		ID:           row.ID,
		UserID:       row.UserID,
		Topic:        row.Topic,
		CreatedAt:    row.CreatedAt,
		LastActivity: row.LastActivity,
		Compressions: row.Compressions,
		Messages:     make([]types.Message, 0, len(msgRows)),
	}
	for _, m := range msgRows {
		session.Messages = append(session.Messages, types.Message{
			ID:         m.ID,
			Role:       types.Role(m.Role),
			Content:    m.Content,
			Timestamp:  m.Timestamp,
			Importance: m.Importance,
			TokenCount: m.TokenCount,
		})
	}
	return session, nil
}
