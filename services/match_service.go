package services

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"trivia-match-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchService owns the session lifecycle (challenge → accept → active →
// finished), the read-only state reconciler both clients poll, and finalize.
type MatchService struct {
	DB *gorm.DB
}

func NewMatchService(db *gorm.DB) *MatchService {
	return &MatchService{DB: db}
}

// MatchState is the reconciler response. Scores are sums over the answer
// ledger so far and never decrease while a match is in progress.
type MatchState struct {
	SessionID          string     `json:"session_id"`
	Status             string     `json:"status"`
	CurrentQuestion    int        `json:"current_question"`
	QuestionDeadlineAt *time.Time `json:"question_deadline_at,omitempty"`
	MyScore            int        `json:"my_score"`
	OpponentScore      int        `json:"opponent_score"`
	MyAnswered         bool       `json:"my_answered"`
	OpponentAnswered   bool       `json:"opponent_answered"`
	ForfeitStatus      string     `json:"forfeit_status"`
	ForfeitRequestedBy string     `json:"forfeit_requested_by,omitempty"`
	WinnerID           string     `json:"winner_id,omitempty"`
}

// MatchResult is the final summary for a finished match.
type MatchResult struct {
	SessionID     string     `json:"session_id"`
	GameKind      string     `json:"game_kind"`
	Player1ID     string     `json:"player1_id"`
	Player2ID     string     `json:"player2_id"`
	Player1Score  int        `json:"player1_score"`
	Player2Score  int        `json:"player2_score"`
	WinnerID      string     `json:"winner_id,omitempty"`
	Draw          bool       `json:"draw"`
	ForfeitStatus string     `json:"forfeit_status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// loadSession fetches a session or maps the miss to ErrMatchNotFound.
func loadSession(db *gorm.DB, sessionID string) (*models.MatchSession, error) {
	var m models.MatchSession
	if err := db.First(&m, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &m, nil
}

// loadSessionForUpdate locks the session row for the rest of the caller's
// transaction. Writers that read the ledger before deciding a transition
// (submission cursor advance, forfeit respond, the deadline sweep) must go
// through this: under READ COMMITTED two overlapping submissions would each
// count only their own insert and neither would advance the cursor.
func loadSessionForUpdate(tx *gorm.DB, sessionID string) (*models.MatchSession, error) {
	var m models.MatchSession
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &m, nil
}

// enqueueNotification writes an outbox row inside the caller's transaction.
// The notification worker delivers it out of band.
func enqueueNotification(tx *gorm.DB, recipientID, sessionID, kind string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&models.MatchNotification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		SessionID:   sessionID,
		Kind:        kind,
		Payload:     string(body),
		Status:      models.NotificationPending,
	}).Error
}

// CreateChallenge creates a pending session on behalf of the challenger and
// notifies the opponent. The invitation UX itself (expiry, decline copy)
// lives with the social CRUD features, not here.
func (s *MatchService) CreateChallenge(challengerID, opponentID, gameKind string) (*models.MatchSession, error) {
	if opponentID == challengerID {
		return nil, ErrSelfChallenge
	}
	if gameKind == "" {
		gameKind = "trivia"
	}

	session := models.MatchSession{
		ID:            uuid.NewString(),
		Player1ID:     challengerID,
		Player2ID:     opponentID,
		GameKind:      gameKind,
		QuestionCount: QuestionCount,
		Status:        models.MatchStatusPending,
		ForfeitStatus: models.ForfeitNone,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		return enqueueNotification(tx, opponentID, session.ID, models.NotifyChallengeReceived, map[string]interface{}{
			"challenger_id": challengerID,
			"game_kind":     gameKind,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎯 [MATCH] Challenge created: %s (%s vs %s)", session.ID, challengerID, opponentID)
	return &session, nil
}

// AcceptChallenge activates a pending session. The pending→active transition
// happens exactly once: the update is guarded on status, so a racing double
// accept loses and gets ErrMatchNotPending.
func (s *MatchService) AcceptChallenge(sessionID, callerID string) (*models.MatchSession, error) {
	session, err := loadSession(s.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(callerID) {
		return nil, ErrNotParticipant
	}
	if callerID != session.Player2ID {
		return nil, ErrNotChallenged
	}

	now := time.Now()
	deadline := nextDeadline(now)
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MatchSession{}).
			Where("id = ? AND status = ?", sessionID, models.MatchStatusPending).
			Updates(map[string]interface{}{
				"status":               models.MatchStatusActive,
				"started_at":           now,
				"current_question":     1,
				"question_deadline_at": deadline,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrMatchNotPending
		}
		return enqueueNotification(tx, session.Player1ID, sessionID, models.NotifyChallengeAccepted, map[string]interface{}{
			"opponent_id": callerID,
		})
	})
	if err != nil {
		return nil, err
	}

	session.Status = models.MatchStatusActive
	session.StartedAt = &now
	session.CurrentQuestion = 1
	session.QuestionDeadlineAt = &deadline
	log.Printf("✅ [MATCH] Challenge accepted: %s, first question deadline %s", sessionID, deadline.Format(time.RFC3339))
	return session, nil
}

// GetMatchState is the poll endpoint. Pure read — it never mutates, so any
// polling cadence is safe. questionNumber selects which question the
// answered flags refer to; 0 means the server-side current question.
func (s *MatchService) GetMatchState(sessionID, callerID string, questionNumber int) (*MatchState, error) {
	session, err := loadSession(s.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(callerID) {
		return nil, ErrNotParticipant
	}

	if questionNumber < 1 {
		questionNumber = session.CurrentQuestion
	}
	if questionNumber > session.QuestionCount {
		questionNumber = session.QuestionCount
	}

	opponentID := session.OpponentOf(callerID)

	myScore, err := s.playerScore(sessionID, callerID)
	if err != nil {
		return nil, err
	}
	opponentScore, err := s.playerScore(sessionID, opponentID)
	if err != nil {
		return nil, err
	}

	myAnswered, err := s.hasAnswered(sessionID, callerID, questionNumber)
	if err != nil {
		return nil, err
	}
	opponentAnswered, err := s.hasAnswered(sessionID, opponentID, questionNumber)
	if err != nil {
		return nil, err
	}

	return &MatchState{
		SessionID:          session.ID,
		Status:             session.Status,
		CurrentQuestion:    session.CurrentQuestion,
		QuestionDeadlineAt: session.QuestionDeadlineAt,
		MyScore:            myScore,
		OpponentScore:      opponentScore,
		MyAnswered:         myAnswered,
		OpponentAnswered:   opponentAnswered,
		ForfeitStatus:      session.ForfeitStatus,
		ForfeitRequestedBy: session.ForfeitRequestedBy,
		WinnerID:           session.WinnerID,
	}, nil
}

func (s *MatchService) playerScore(sessionID, playerID string) (int, error) {
	var total int
	err := s.DB.Model(&models.AnswerRecord{}).
		Where("session_id = ? AND player_id = ?", sessionID, playerID).
		Select("COALESCE(SUM(points_earned), 0)").
		Scan(&total).Error
	return total, err
}

func (s *MatchService) hasAnswered(sessionID, playerID string, questionNumber int) (bool, error) {
	var count int64
	err := s.DB.Model(&models.AnswerRecord{}).
		Where("session_id = ? AND player_id = ? AND question_number = ?", sessionID, playerID, questionNumber).
		Count(&count).Error
	return count > 0, err
}

// GetResults returns the final summary. Totals are recomputed from the
// ledger, so repeated calls are deterministic.
func (s *MatchService) GetResults(sessionID, callerID string) (*MatchResult, error) {
	session, err := loadSession(s.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(callerID) {
		return nil, ErrNotParticipant
	}
	if session.Status != models.MatchStatusFinished {
		return nil, ErrMatchNotFinished
	}

	var records []models.AnswerRecord
	if err := s.DB.Where("session_id = ?", sessionID).Find(&records).Error; err != nil {
		return nil, err
	}
	p1, p2 := TallyScores(records, session.Player1ID, session.Player2ID)

	return &MatchResult{
		SessionID:     session.ID,
		GameKind:      session.GameKind,
		Player1ID:     session.Player1ID,
		Player2ID:     session.Player2ID,
		Player1Score:  p1,
		Player2Score:  p2,
		WinnerID:      session.WinnerID,
		Draw:          session.WinnerID == "",
		ForfeitStatus: session.ForfeitStatus,
		StartedAt:     session.StartedAt,
		FinishedAt:    session.FinishedAt,
	}, nil
}

// ListMatches returns the caller's match history, newest first.
func (s *MatchService) ListMatches(callerID string) ([]models.MatchSession, error) {
	var sessions []models.MatchSession
	err := s.DB.Where("player1_id = ? OR player2_id = ?", callerID, callerID).
		Order("created_at DESC").
		Limit(50).
		Find(&sessions).Error
	return sessions, err
}

// finalizeMatch closes out an active session: totals from the ledger (absent
// records count as zero), winner by higher total, "" on an exact tie — a
// draw is a real outcome, not an error and not an arbitrary pick. Guarded on
// status so a repeated or racing call is a no-op that observes the already
// finalized row.
func finalizeMatch(tx *gorm.DB, m *models.MatchSession) error {
	if m.Status == models.MatchStatusFinished {
		return nil
	}

	var records []models.AnswerRecord
	if err := tx.Where("session_id = ?", m.ID).Find(&records).Error; err != nil {
		return err
	}
	p1, p2 := TallyScores(records, m.Player1ID, m.Player2ID)

	winnerID := ""
	switch {
	case p1 > p2:
		winnerID = m.Player1ID
	case p2 > p1:
		winnerID = m.Player2ID
	}

	now := time.Now()
	res := tx.Model(&models.MatchSession{}).
		Where("id = ? AND status = ?", m.ID, models.MatchStatusActive).
		Updates(map[string]interface{}{
			"status":               models.MatchStatusFinished,
			"winner_id":            winnerID,
			"finished_at":          now,
			"question_deadline_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race — reload so the caller sees the terminal state.
		return tx.First(m, "id = ?", m.ID).Error
	}

	m.Status = models.MatchStatusFinished
	m.WinnerID = winnerID
	m.FinishedAt = &now
	m.QuestionDeadlineAt = nil

	totals := map[string]int{m.Player1ID: p1, m.Player2ID: p2}
	for _, playerID := range []string{m.Player1ID, m.Player2ID} {
		outcome := outcomeLost
		if winnerID == "" {
			outcome = outcomeDrawn
		} else if winnerID == playerID {
			outcome = outcomeWon
		}
		if err := applyMatchOutcome(tx, playerID, outcome, int64(totals[playerID]), false, now); err != nil {
			return err
		}
		if err := enqueueNotification(tx, playerID, m.ID, models.NotifyMatchFinished, map[string]interface{}{
			"winner_id":     winnerID,
			"player1_score": p1,
			"player2_score": p2,
		}); err != nil {
			return err
		}
	}

	log.Printf("🏁 [MATCH] Finalized %s: %s=%d, %s=%d, winner=%q", m.ID, m.Player1ID, p1, m.Player2ID, p2, winnerID)
	return nil
}

// --- Fiber endpoints ---

func (s *MatchService) CreateChallengeEndpoint(c *fiber.Ctx) error {
	type Req struct {
		OpponentID string `json:"opponent_id"`
		GameKind   string `json:"game_kind,omitempty"`
	}

	callerID, _ := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.OpponentID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "opponent_id is required"})
	}

	session, err := s.CreateChallenge(callerID, req.OpponentID, req.GameKind)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(201).JSON(session)
}

func (s *MatchService) AcceptChallengeEndpoint(c *fiber.Ctx) error {
	callerID, _ := c.Locals("user_id").(string)
	session, err := s.AcceptChallenge(c.Params("id"), callerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(session)
}

func (s *MatchService) GetMatchStateEndpoint(c *fiber.Ctx) error {
	callerID, _ := c.Locals("user_id").(string)
	questionNumber := c.QueryInt("question", 0)

	state, err := s.GetMatchState(c.Params("id"), callerID, questionNumber)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(state)
}

func (s *MatchService) GetResultsEndpoint(c *fiber.Ctx) error {
	callerID, _ := c.Locals("user_id").(string)
	result, err := s.GetResults(c.Params("id"), callerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(result)
}

func (s *MatchService) ListMatchesEndpoint(c *fiber.Ctx) error {
	callerID, _ := c.Locals("user_id").(string)
	sessions, err := s.ListMatches(callerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"matches": sessions})
}
