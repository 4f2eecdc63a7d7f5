package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"trivia-match-system/models"
)

func TestSubmitAnswerRecordsScore(t *testing.T) {
	db := newTestDB(t)
	session := newActiveMatch(t, db)
	as := NewAnswerService(db)

	// Correct answer with 18s elapsed of the 20s limit: 10 + floor(2/2) = 11.
	record, err := as.SubmitAnswer(session.ID, "player1", 1, 2, 2, 18)
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if !record.IsCorrect {
		t.Error("expected is_correct=true")
	}
	if record.PointsEarned != 11 {
		t.Errorf("points earned = %d, want 11", record.PointsEarned)
	}
}

func TestSubmitAnswerIdempotent(t *testing.T) {
	db := newTestDB(t)
	session := newActiveMatch(t, db)
	as := NewAnswerService(db)

	first, err := as.SubmitAnswer(session.ID, "player1", 1, 2, 2, 18)
	if err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	// A retry with a different payload is rejected, not merged.
	if _, err := as.SubmitAnswer(session.ID, "player1", 1, 3, 2, 5); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("second submission error = %v, want ErrAlreadyAnswered", err)
	}

	var records []models.AnswerRecord
	if err := db.Where("session_id = ? AND player_id = ? AND question_number = ?", session.ID, "player1", 1).
		Find(&records).Error; err != nil {
		t.Fatalf("failed to load records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("stored records = %d, want exactly 1", len(records))
	}
	if records[0].SelectedOption != first.SelectedOption || records[0].PointsEarned != first.PointsEarned {
		t.Errorf("stored record %+v does not match the first submission %+v", records[0], first)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	db := newTestDB(t)
	session := newActiveMatch(t, db)
	as := NewAnswerService(db)

	ms := NewMatchService(db)
	pending, err := ms.CreateChallenge("player1", "player3", "trivia")
	if err != nil {
		t.Fatalf("CreateChallenge failed: %v", err)
	}

	tests := []struct {
		name      string
		sessionID string
		playerID  string
		question  int
		wantErr   error
	}{
		{"unknown session", "no-such-id", "player1", 1, ErrMatchNotFound},
		{"not a participant", session.ID, "intruder", 1, ErrNotParticipant},
		{"question below range", session.ID, "player1", 0, ErrInvalidQuestion},
		{"question above range", session.ID, "player1", 11, ErrInvalidQuestion},
		{"session not active", pending.ID, "player1", 1, ErrMatchNotActive},
		{"question ahead of cursor", session.ID, "player1", 2, ErrQuestionNotCurrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := as.SubmitAnswer(tt.sessionID, tt.playerID, tt.question, 1, 1, 5)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SubmitAnswer error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubmitAnswerAfterDeadline(t *testing.T) {
	db := newTestDB(t)
	session := newActiveMatch(t, db)
	as := NewAnswerService(db)

	expireDeadline(t, db, session.ID)

	if _, err := as.SubmitAnswer(session.ID, "player1", 1, 1, 1, 30); !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("late submission error = %v, want ErrDeadlineExceeded", err)
	}
}

func TestCursorAdvancesWhenBothAnswer(t *testing.T) {
	db := newTestDB(t)
	session := newActiveMatch(t, db)
	as := NewAnswerService(db)

	if _, err := as.SubmitAnswer(session.ID, "player1", 1, 1, 1, 5); err != nil {
		t.Fatalf("player1 submission failed: %v", err)
	}

	// One answer in: the question is still open.
	if got := reloadSession(t, db, session.ID).CurrentQuestion; got != 1 {
		t.Fatalf("current question after one answer = %d, want 1", got)
	}

	if _, err := as.SubmitAnswer(session.ID, "player2", 1, 0, 1, 5); err != nil {
		t.Fatalf("player2 submission failed: %v", err)
	}

	updated := reloadSession(t, db, session.ID)
	if updated.CurrentQuestion != 2 {
		t.Fatalf("current question after both answered = %d, want 2", updated.CurrentQuestion)
	}
	if updated.QuestionDeadlineAt == nil || !updated.QuestionDeadlineAt.After(time.Now()) {
		t.Error("expected a fresh future deadline for the next question")
	}
}

func TestConcurrentSubmissionsAdvanceCursor(t *testing.T) {
	db := newTestDB(t)
	session := newActiveMatch(t, db)
	as := NewAnswerService(db)

	// Both players submit every question at the same time. The cursor must
	// still advance after each pair lands, without waiting for the sweep.
	for q := 1; q <= QuestionCount; q++ {
		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for _, playerID := range []string{"player1", "player2"} {
			wg.Add(1)
			go func(playerID string) {
				defer wg.Done()
				if _, err := as.SubmitAnswer(session.ID, playerID, q, 1, 1, 5); err != nil {
					errs <- err
				}
			}(playerID)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("question %d submission failed: %v", q, err)
		}

		updated := reloadSession(t, db, session.ID)
		if q < QuestionCount {
			if updated.CurrentQuestion != q+1 {
				t.Fatalf("cursor after question %d = %d, want %d", q, updated.CurrentQuestion, q+1)
			}
		} else if updated.Status != models.MatchStatusFinished {
			t.Fatalf("status after last question = %q, want %q", updated.Status, models.MatchStatusFinished)
		}
	}
}

func TestSweepAdvancesExpiredQuestion(t *testing.T) {
	db := newTestDB(t)
	session := newActiveMatch(t, db)
	as := NewAnswerService(db)
	ms := NewMatchService(db)

	// player1 answers; player2 lets the clock run out.
	if _, err := as.SubmitAnswer(session.ID, "player1", 1, 1, 1, 5); err != nil {
		t.Fatalf("submission failed: %v", err)
	}
	expireDeadline(t, db, session.ID)

	if err := ms.sweepExpiredQuestions(); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if got := reloadSession(t, db, session.ID).CurrentQuestion; got != 2 {
		t.Fatalf("current question after sweep = %d, want 2", got)
	}

	// player2's straggler answer for the swept question is refused.
	if _, err := as.SubmitAnswer(session.ID, "player2", 1, 1, 1, 25); !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("straggler submission error = %v, want ErrDeadlineExceeded", err)
	}
}
