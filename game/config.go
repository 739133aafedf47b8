package game

import "time"

// Settings are the engine tunables. Numeric values are policy, not
// correctness: the ordering invariants hold for any positive choice.
type Settings struct {
	// Draw & Guess.
	RoundDuration time.Duration
	MinDrawRounds int
	MaxDrawRounds int
	Scoring       ScoringPolicy

	// Undercover.
	MinUndercoverRoomSize int
	UndercoverCount       int
	MaxUndercoverGuesses  int
	MinVoteDuration       time.Duration
	MaxVoteDuration       time.Duration
	DefaultVoteDuration   time.Duration

	// Shared.
	MinPlayers    int
	MaxPlayersCap int
	EndedGrace    time.Duration
	MaxCASRetries int
	WinnerPoints  int
}

func DefaultSettings() Settings {
	return Settings{
		RoundDuration: 90 * time.Second,
		MinDrawRounds: 1,
		MaxDrawRounds: 10,
		Scoring:       DefaultScoringPolicy(),

		MinUndercoverRoomSize: 3,
		UndercoverCount:       1,
		MaxUndercoverGuesses:  3,
		MinVoteDuration:       30 * time.Second,
		MaxVoteDuration:       10 * time.Minute,
		DefaultVoteDuration:   2 * time.Minute,

		MinPlayers:    2,
		MaxPlayersCap: 20,
		EndedGrace:    60 * time.Second,
		MaxCASRetries: 5,
		WinnerPoints:  10,
	}
}
