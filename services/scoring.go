package services

import (
	"time"

	"trivia-match-system/models"
)

// Scoring constants shared with the clients. A correct answer earns
// BasePoints plus a speed bonus of floor(remaining/2), where remaining is
// the unspent part of the per-question time limit. Incorrect or missing
// answers earn nothing.
const (
	QuestionCount     = 10
	QuestionTimeLimit = 20 // seconds per question
	BasePoints        = 10
)

// questionDeadlineSlack pads the server-enforced deadline to absorb polling
// latency: clients only learn the question advanced on their next 2s poll.
const questionDeadlineSlack = 5 * time.Second

// ScoreAnswer maps one answer to points. Pure.
func ScoreAnswer(isCorrect bool, elapsedSeconds int) int {
	if !isCorrect {
		return 0
	}
	remaining := QuestionTimeLimit - elapsedSeconds
	if remaining < 0 {
		remaining = 0
	}
	return BasePoints + remaining/2
}

// TallyScores sums the ledger into per-player totals. Absent records simply
// contribute nothing — a player who let the clock run out on a question is
// not an error condition.
func TallyScores(records []models.AnswerRecord, player1ID, player2ID string) (p1Total, p2Total int) {
	for _, r := range records {
		switch r.PlayerID {
		case player1ID:
			p1Total += r.PointsEarned
		case player2ID:
			p2Total += r.PointsEarned
		}
	}
	return p1Total, p2Total
}

// nextDeadline returns the submission deadline for a question that becomes
// current at now.
func nextDeadline(now time.Time) time.Time {
	return now.Add(QuestionTimeLimit*time.Second + questionDeadlineSlack)
}
