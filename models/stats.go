package models

import (
	"time"

	"gorm.io/gorm"
)

// PlayerStats tracks lifetime match aggregates for each player (denormalized for performance)
type PlayerStats struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	PlayerID string `gorm:"uniqueIndex;not null" json:"player_id"` // gateway user id

	MatchesPlayed    int64 `json:"matches_played" gorm:"default:0"`
	MatchesWon       int64 `json:"matches_won" gorm:"default:0"`
	MatchesLost      int64 `json:"matches_lost" gorm:"default:0"`
	MatchesDrawn     int64 `json:"matches_drawn" gorm:"default:0"`
	MatchesForfeited int64 `json:"matches_forfeited" gorm:"default:0"` // lost by own forfeit

	TotalPoints int64 `json:"total_points" gorm:"default:0"`

	LastMatchAt *time.Time `json:"last_match_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
