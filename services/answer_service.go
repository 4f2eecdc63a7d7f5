package services

import (
	"errors"
	"log"
	"time"

	"trivia-match-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnswerService is the append-only answer ledger. One record per
// (session, player, question); the storage-layer unique constraint — not
// just the application check — is what keeps double-clicks and retried
// requests safe under concurrency.
type AnswerService struct {
	DB *gorm.DB
}

func NewAnswerService(db *gorm.DB) *AnswerService {
	return &AnswerService{DB: db}
}

// SubmitAnswer validates and persists one answer. When the second player's
// record for the current question lands, the question cursor advances and
// the deadline resets in the same transaction; resolving the last question
// finalizes the match.
func (s *AnswerService) SubmitAnswer(sessionID, playerID string, questionNumber, selectedOption, correctOption, elapsedSeconds int) (*models.AnswerRecord, error) {
	var record *models.AnswerRecord

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Lock the session row so concurrent submissions serialize: the
		// second one must see the first's insert when counting answers.
		session, err := loadSessionForUpdate(tx, sessionID)
		if err != nil {
			return err
		}
		if !session.IsParticipant(playerID) {
			return ErrNotParticipant
		}
		if session.Status != models.MatchStatusActive {
			return ErrMatchNotActive
		}
		if questionNumber < 1 || questionNumber > session.QuestionCount {
			return ErrInvalidQuestion
		}

		// Duplicate check first so a retry of an earlier submission reports
		// the conflict rather than an ordering error.
		var existing int64
		if err := tx.Model(&models.AnswerRecord{}).
			Where("session_id = ? AND player_id = ? AND question_number = ?", sessionID, playerID, questionNumber).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyAnswered
		}

		now := time.Now()
		if questionNumber > session.CurrentQuestion {
			return ErrQuestionNotCurrent
		}
		if questionNumber < session.CurrentQuestion {
			// The sweep already moved past this question.
			return ErrDeadlineExceeded
		}
		if session.QuestionDeadlineAt != nil && now.After(*session.QuestionDeadlineAt) {
			return ErrDeadlineExceeded
		}

		if elapsedSeconds < 0 {
			elapsedSeconds = 0
		}
		isCorrect := selectedOption == correctOption

		record = &models.AnswerRecord{
			ID:             uuid.NewString(),
			SessionID:      sessionID,
			PlayerID:       playerID,
			QuestionNumber: questionNumber,
			SelectedOption: selectedOption,
			CorrectOption:  correctOption,
			IsCorrect:      isCorrect,
			PointsEarned:   ScoreAnswer(isCorrect, elapsedSeconds),
			ElapsedSeconds: elapsedSeconds,
			AnsweredAt:     now,
		}
		if err := tx.Create(record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Concurrent retry lost the insert race at the constraint.
				return ErrAlreadyAnswered
			}
			return err
		}

		var answered int64
		if err := tx.Model(&models.AnswerRecord{}).
			Where("session_id = ? AND question_number = ?", sessionID, questionNumber).
			Count(&answered).Error; err != nil {
			return err
		}
		if answered < 2 {
			return nil
		}

		// Both players answered: the question is resolved.
		if questionNumber >= session.QuestionCount {
			return finalizeMatch(tx, session)
		}
		deadline := nextDeadline(now)
		return tx.Model(&models.MatchSession{}).
			Where("id = ? AND status = ? AND current_question = ?", sessionID, models.MatchStatusActive, questionNumber).
			Updates(map[string]interface{}{
				"current_question":     questionNumber + 1,
				"question_deadline_at": deadline,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📝 [ANSWER] %s q%d by %s: correct=%t points=%d", sessionID, questionNumber, playerID, record.IsCorrect, record.PointsEarned)
	return record, nil
}

func (s *AnswerService) SubmitAnswerEndpoint(c *fiber.Ctx) error {
	type Req struct {
		QuestionNumber int `json:"question_number"`
		SelectedOption int `json:"selected_option"`
		CorrectOption  int `json:"correct_option"`
		ElapsedSeconds int `json:"elapsed_seconds"`
	}

	callerID, _ := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	record, err := s.SubmitAnswer(c.Params("id"), callerID, req.QuestionNumber, req.SelectedOption, req.CorrectOption, req.ElapsedSeconds)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(201).JSON(record)
}
