package game

import (
	"math"
	"strings"
	"time"
)

// ScoringPolicy tunes the guess reward curve. Values are policy; the
// invariant ScoreGuess preserves for any positive policy is that a later
// correct guess in the same round never outscores an earlier one made with
// the same time remaining.
type ScoringPolicy struct {
	Base         int
	FirstBonus   int
	RepeatFactor float64
	// DrawerShare is what the drawer earns per player who guessed the word.
	DrawerShare int
}

func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		Base:         100,
		FirstBonus:   25,
		RepeatFactor: 0.8,
		DrawerShare:  20,
	}
}

// MatchesWord is the submission rule for both game modes: trimmed,
// case-insensitive, exact. No partial credit, no fuzzing.
func MatchesWord(submission, target string) bool {
	return strings.EqualFold(strings.TrimSpace(submission), strings.TrimSpace(target))
}

// ScoreGuess scores one guess. priorCorrect is how many players already
// guessed the word this round; remaining/total is the round clock. A correct
// guess is always worth at least one point.
func ScoreGuess(submission, target string, remaining, total time.Duration, priorCorrect int, p ScoringPolicy) (correct bool, points int) {
	if !MatchesWord(submission, target) {
		return false, 0
	}

	frac := 0.0
	if total > 0 {
		frac = float64(remaining) / float64(total)
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	points = int(float64(p.Base) * frac * math.Pow(p.RepeatFactor, float64(priorCorrect)))
	if priorCorrect == 0 {
		points += p.FirstBonus
	}
	if points < 1 {
		points = 1
	}
	return true, points
}
