package models

import (
	"time"
)

// AnswerRecord is one player's response to one question in one session.
// The composite unique index on (session_id, player_id, question_number) is
// the idempotency anchor: a retried or double-fired submission hits the
// constraint and is rejected, never merged or overwritten. Records are
// append-only — created by the owning player, never updated, never deleted.
type AnswerRecord struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	SessionID      string `gorm:"not null;uniqueIndex:idx_answer_once;index" json:"session_id"`
	PlayerID       string `gorm:"not null;uniqueIndex:idx_answer_once" json:"player_id"`
	QuestionNumber int    `gorm:"not null;uniqueIndex:idx_answer_once" json:"question_number"`

	// The correct option is recorded at submission time so the ledger stays
	// self-contained and auditable without a question lookup.
	SelectedOption int  `json:"selected_option"`
	CorrectOption  int  `json:"correct_option"`
	IsCorrect      bool `json:"is_correct"`

	PointsEarned   int `gorm:"default:0" json:"points_earned"`
	ElapsedSeconds int `gorm:"default:0" json:"elapsed_seconds"`

	AnsweredAt time.Time `json:"answered_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
