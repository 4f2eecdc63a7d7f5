package services

import (
	"testing"
	"time"

	"trivia-match-system/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A pooled second connection would see an empty in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.MatchSession{},
		&models.AnswerRecord{},
		&models.PlayerStats{},
		&models.MatchNotification{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// newActiveMatch creates and accepts a challenge between player1 and player2.
func newActiveMatch(t *testing.T, db *gorm.DB) *models.MatchSession {
	t.Helper()

	ms := NewMatchService(db)
	session, err := ms.CreateChallenge("player1", "player2", "trivia")
	if err != nil {
		t.Fatalf("CreateChallenge failed: %v", err)
	}
	session, err = ms.AcceptChallenge(session.ID, "player2")
	if err != nil {
		t.Fatalf("AcceptChallenge failed: %v", err)
	}
	return session
}

// expireDeadline backdates the current question's deadline so the sweep
// treats it as expired.
func expireDeadline(t *testing.T, db *gorm.DB, sessionID string) {
	t.Helper()

	past := time.Now().Add(-time.Minute)
	if err := db.Model(&models.MatchSession{}).
		Where("id = ?", sessionID).
		Update("question_deadline_at", past).Error; err != nil {
		t.Fatalf("failed to expire deadline: %v", err)
	}
}

func reloadSession(t *testing.T, db *gorm.DB, sessionID string) *models.MatchSession {
	t.Helper()

	var session models.MatchSession
	if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
		t.Fatalf("failed to reload session %s: %v", sessionID, err)
	}
	return &session
}
