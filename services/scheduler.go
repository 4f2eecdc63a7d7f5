// services/scheduler.go
package services

import (
	"log"
	"time"

	"trivia-match-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// StartDeadlineScheduler runs the question-deadline sweep. A question whose
// deadline passes advances without the missing answers (they score zero);
// when the last question expires, the match is finalized. This keeps the
// state reconciler a pure read: stalled matches move forward here, never in
// the polling path.
func (s *MatchService) StartDeadlineScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(2*time.Second),
		gocron.NewTask(func() {
			if err := s.sweepExpiredQuestions(); err != nil {
				log.Printf("[Scheduler] deadline sweep error: %v", err)
			}
		}),
	)
}

func (s *MatchService) sweepExpiredQuestions() error {
	var expired []models.MatchSession
	now := time.Now()
	if err := s.DB.Where("status = ? AND question_deadline_at <= ?", models.MatchStatusActive, now).
		Find(&expired).Error; err != nil {
		return err
	}

	for i := range expired {
		sessionID := expired[i].ID
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			session, err := loadSessionForUpdate(tx, sessionID)
			if err != nil {
				return err
			}
			if session.Status != models.MatchStatusActive ||
				session.QuestionDeadlineAt == nil || session.QuestionDeadlineAt.After(now) {
				return nil // already advanced or finished meanwhile
			}

			if session.CurrentQuestion >= session.QuestionCount {
				return finalizeMatch(tx, session)
			}

			deadline := nextDeadline(time.Now())
			res := tx.Model(&models.MatchSession{}).
				Where("id = ? AND status = ? AND current_question = ?", sessionID, models.MatchStatusActive, session.CurrentQuestion).
				Updates(map[string]interface{}{
					"current_question":     session.CurrentQuestion + 1,
					"question_deadline_at": deadline,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				log.Printf("⏱️ [SWEEP] %s q%d expired, advancing to q%d", sessionID, session.CurrentQuestion, session.CurrentQuestion+1)
			}
			return nil
		})
		if err != nil {
			log.Printf("[Scheduler] failed to advance session %s: %v", sessionID, err)
		}
	}
	return nil
}
