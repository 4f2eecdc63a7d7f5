package services

import (
	"log"
	"time"

	"trivia-match-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ForfeitService runs the negotiated early-termination sub-state-machine
// layered on the session: none → requested → accepted | declined. Accepting
// is a direct terminal transition that bypasses normal finalize scoring;
// declining puts the match back exactly where it was.
type ForfeitService struct {
	DB *gorm.DB
}

func NewForfeitService(db *gorm.DB) *ForfeitService {
	return &ForfeitService{DB: db}
}

// RequestForfeit moves forfeit_status none→requested. The guard on the
// update means only one of two simultaneously requesting players wins the
// transition; the other gets ErrForfeitPending.
func (s *ForfeitService) RequestForfeit(sessionID, requesterID string) (*models.MatchSession, error) {
	session, err := loadSession(s.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(requesterID) {
		return nil, ErrNotParticipant
	}
	if session.Status != models.MatchStatusActive {
		return nil, ErrMatchNotActive
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MatchSession{}).
			Where("id = ? AND status = ? AND forfeit_status = ?", sessionID, models.MatchStatusActive, models.ForfeitNone).
			Updates(map[string]interface{}{
				"forfeit_status":       models.ForfeitRequested,
				"forfeit_requested_by": requesterID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			current, err := loadSession(tx, sessionID)
			if err != nil {
				return err
			}
			if current.Status != models.MatchStatusActive {
				return ErrMatchNotActive
			}
			return ErrForfeitPending
		}
		return enqueueNotification(tx, session.OpponentOf(requesterID), sessionID, models.NotifyForfeitRequested, map[string]interface{}{
			"requested_by": requesterID,
		})
	})
	if err != nil {
		return nil, err
	}

	session.ForfeitStatus = models.ForfeitRequested
	session.ForfeitRequestedBy = requesterID
	log.Printf("🏳️ [FORFEIT] Requested on %s by %s", sessionID, requesterID)
	return session, nil
}

// RespondForfeit resolves a pending request. Only the non-requesting player
// may respond. Accept finishes the match with the responder as winner;
// decline clears the request and play resumes with scores untouched.
func (s *ForfeitService) RespondForfeit(sessionID, responderID string, accept bool) (*models.MatchSession, error) {
	var session *models.MatchSession

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = loadSessionForUpdate(tx, sessionID)
		if err != nil {
			return err
		}
		if !session.IsParticipant(responderID) {
			return ErrNotParticipant
		}
		if session.ForfeitStatus != models.ForfeitRequested {
			return ErrNoForfeitPending
		}
		if session.ForfeitRequestedBy == responderID {
			return ErrOwnForfeit
		}
		if session.Status != models.MatchStatusActive {
			return ErrMatchNotActive
		}

		if !accept {
			res := tx.Model(&models.MatchSession{}).
				Where("id = ? AND forfeit_status = ?", sessionID, models.ForfeitRequested).
				Updates(map[string]interface{}{
					"forfeit_status":       models.ForfeitNone,
					"forfeit_requested_by": "",
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNoForfeitPending
			}
			session.ForfeitStatus = models.ForfeitNone
			session.ForfeitRequestedBy = ""
			return enqueueNotification(tx, session.OpponentOf(responderID), sessionID, models.NotifyForfeitDeclined, map[string]interface{}{
				"declined_by": responderID,
			})
		}

		now := time.Now()
		res := tx.Model(&models.MatchSession{}).
			Where("id = ? AND status = ? AND forfeit_status = ?", sessionID, models.MatchStatusActive, models.ForfeitRequested).
			Updates(map[string]interface{}{
				"forfeit_status":       models.ForfeitAccepted,
				"status":               models.MatchStatusFinished,
				"winner_id":            responderID,
				"finished_at":          now,
				"question_deadline_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoForfeitPending
		}

		requesterID := session.ForfeitRequestedBy
		session.ForfeitStatus = models.ForfeitAccepted
		session.Status = models.MatchStatusFinished
		session.WinnerID = responderID
		session.FinishedAt = &now
		session.QuestionDeadlineAt = nil

		var records []models.AnswerRecord
		if err := tx.Where("session_id = ?", sessionID).Find(&records).Error; err != nil {
			return err
		}
		p1, p2 := TallyScores(records, session.Player1ID, session.Player2ID)
		totals := map[string]int{session.Player1ID: p1, session.Player2ID: p2}

		if err := applyMatchOutcome(tx, responderID, outcomeWon, int64(totals[responderID]), false, now); err != nil {
			return err
		}
		if err := applyMatchOutcome(tx, requesterID, outcomeLost, int64(totals[requesterID]), true, now); err != nil {
			return err
		}

		for _, playerID := range []string{session.Player1ID, session.Player2ID} {
			if err := enqueueNotification(tx, playerID, sessionID, models.NotifyMatchFinished, map[string]interface{}{
				"winner_id":      responderID,
				"forfeit_status": models.ForfeitAccepted,
				"player1_score":  p1,
				"player2_score":  p2,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "declined"
	if accept {
		outcome = "accepted"
	}
	log.Printf("🏳️ [FORFEIT] %s on %s by %s", outcome, sessionID, responderID)
	return session, nil
}

// --- Fiber endpoints ---

func (s *ForfeitService) RequestForfeitEndpoint(c *fiber.Ctx) error {
	callerID, _ := c.Locals("user_id").(string)
	session, err := s.RequestForfeit(c.Params("id"), callerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(session)
}

func (s *ForfeitService) RespondForfeitEndpoint(c *fiber.Ctx) error {
	type Req struct {
		Accept bool `json:"accept"`
	}

	callerID, _ := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	session, err := s.RespondForfeit(c.Params("id"), callerID, req.Accept)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(session)
}
