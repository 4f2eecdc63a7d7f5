package models

import (
	"time"
)

// Session lifecycle states
const (
	MatchStatusPending  = "pending"
	MatchStatusActive   = "active"
	MatchStatusFinished = "finished"
)

// Forfeit negotiation states
const (
	ForfeitNone      = "none"
	ForfeitRequested = "requested"
	ForfeitAccepted  = "accepted"
	ForfeitDeclined  = "declined"
)

// MatchSession records a single two-player trivia match from challenge to
// terminal outcome. Status moves pending→active exactly once (on accept)
// and active→finished exactly once (finalize or forfeit accept).
type MatchSession struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	Player1ID string `gorm:"index;not null" json:"player1_id"` // challenger
	Player2ID string `gorm:"index;not null" json:"player2_id"` // challenged
	GameKind  string `gorm:"type:varchar(32);default:'trivia'" json:"game_kind"`

	QuestionCount int    `gorm:"default:10" json:"question_count"`
	Status        string `gorm:"type:varchar(16);default:'pending';index;check:status IN ('pending','active','finished')" json:"status"`

	// Forfeit sub-state. At most one request can be outstanding.
	ForfeitStatus      string `gorm:"type:varchar(16);default:'none'" json:"forfeit_status"`
	ForfeitRequestedBy string `gorm:"default:''" json:"forfeit_requested_by,omitempty"`

	// WinnerID is set iff Status == finished; "" on a finished match means a draw.
	WinnerID string `gorm:"default:''" json:"winner_id,omitempty"`

	// Server-tracked question cursor and deadline. CurrentQuestion is 0 while
	// pending, then 1..QuestionCount while active.
	CurrentQuestion    int        `gorm:"default:0" json:"current_question"`
	QuestionDeadlineAt *time.Time `json:"question_deadline_at,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Timestamps
}

// IsParticipant reports whether userID is one of the two players.
func (m *MatchSession) IsParticipant(userID string) bool {
	return userID != "" && (userID == m.Player1ID || userID == m.Player2ID)
}

// OpponentOf returns the other player's ID, or "" if userID is not a participant.
func (m *MatchSession) OpponentOf(userID string) string {
	switch userID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	}
	return ""
}
