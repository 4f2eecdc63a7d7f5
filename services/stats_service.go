package services

import (
	"errors"
	"time"

	"trivia-match-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outcomeWon   = "won"
	outcomeLost  = "lost"
	outcomeDrawn = "drawn"
)

// StatsService exposes the lifetime aggregates kept per player. Counters are
// only ever written inside the finalize / forfeit transactions.
type StatsService struct {
	DB *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// ensureStatsRecord ensures a PlayerStats row exists (idempotent). The read
// takes a row lock so that two matches finishing for the same player in
// overlapping transactions cannot both save from the same stale counters.
func ensureStatsRecord(tx *gorm.DB, playerID string) (*models.PlayerStats, error) {
	var stats models.PlayerStats
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("player_id = ?", playerID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.PlayerStats{
			ID:       uuid.NewString(),
			PlayerID: playerID,
		}
		if err := tx.Create(&stats).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost the create race: the other transaction's row is
				// committed or about to be, so wait on its lock instead.
				err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
					Where("player_id = ?", playerID).First(&stats).Error
				if err != nil {
					return nil, err
				}
				return &stats, nil
			}
			return nil, err
		}
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// applyMatchOutcome folds one finished match into a player's counters,
// inside the caller's transaction. forfeited marks a loss by the player's
// own accepted forfeit.
func applyMatchOutcome(tx *gorm.DB, playerID, outcome string, points int64, forfeited bool, at time.Time) error {
	stats, err := ensureStatsRecord(tx, playerID)
	if err != nil {
		return err
	}

	stats.MatchesPlayed++
	switch outcome {
	case outcomeWon:
		stats.MatchesWon++
	case outcomeLost:
		stats.MatchesLost++
	case outcomeDrawn:
		stats.MatchesDrawn++
	}
	if forfeited {
		stats.MatchesForfeited++
	}
	stats.TotalPoints += points
	stats.LastMatchAt = &at

	return tx.Save(stats).Error
}

// GetStats returns a player's aggregates, zero-valued if they never played.
func (s *StatsService) GetStats(playerID string) (*models.PlayerStats, error) {
	var stats models.PlayerStats
	err := s.DB.Where("player_id = ?", playerID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.PlayerStats{PlayerID: playerID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *StatsService) GetMyStatsEndpoint(c *fiber.Ctx) error {
	callerID, _ := c.Locals("user_id").(string)
	stats, err := s.GetStats(callerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(stats)
}
