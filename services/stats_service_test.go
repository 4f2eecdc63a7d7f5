package services

import (
	"testing"

	"trivia-match-system/models"
)

func TestStatsAccumulateAcrossMatches(t *testing.T) {
	db := newTestDB(t)
	ss := NewStatsService(db)

	// Two full matches with the same pair; the second fold must build on the
	// first's committed counters, not re-save from a stale read.
	for i := 0; i < 2; i++ {
		session := newActiveMatch(t, db)
		playFullMatch(t, db, session.ID, true, false, 18)

		finished := reloadSession(t, db, session.ID)
		if finished.Status != models.MatchStatusFinished {
			t.Fatalf("match %d status = %q, want finished", i+1, finished.Status)
		}
	}

	p1Stats, err := ss.GetStats("player1")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if p1Stats.MatchesPlayed != 2 || p1Stats.MatchesWon != 2 {
		t.Errorf("player1 stats = %+v, want played=2 won=2", p1Stats)
	}
	if p1Stats.TotalPoints != 220 { // 2 matches × 10 questions × (10 + floor(2/2))
		t.Errorf("player1 total points = %d, want 220", p1Stats.TotalPoints)
	}

	p2Stats, err := ss.GetStats("player2")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if p2Stats.MatchesPlayed != 2 || p2Stats.MatchesLost != 2 || p2Stats.TotalPoints != 0 {
		t.Errorf("player2 stats = %+v, want played=2 lost=2 points=0", p2Stats)
	}
	if p2Stats.LastMatchAt == nil {
		t.Error("expected last_match_at to be set after playing")
	}
}

func TestGetStatsZeroValueForNewPlayer(t *testing.T) {
	db := newTestDB(t)
	ss := NewStatsService(db)

	stats, err := ss.GetStats("never-played")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.PlayerID != "never-played" || stats.MatchesPlayed != 0 || stats.TotalPoints != 0 {
		t.Errorf("fresh player stats = %+v, want zero values", stats)
	}
}
