package game

import (
	"slices"
	"time"
)

type GameMode string

const (
	ModeDrawGuess  GameMode = "draw_guess"
	ModeUndercover GameMode = "undercover"
)

type RoomStatus string

const (
	StatusWaiting RoomStatus = "waiting"
	StatusPlaying RoomStatus = "playing"
	StatusEnded   RoomStatus = "ended"
)

type GameResult string

const (
	ResultNone              GameResult = ""
	ResultCivilianWin       GameResult = "civilian-win"
	ResultUndercoverWin     GameResult = "undercover-win"
	ResultUndercoverGuessed GameResult = "undercover-guessed"
)

// DrawState is the Draw & Guess half of a snapshot, nil for other modes.
type DrawState struct {
	Round           int            `json:"round"`
	TotalRounds     int            `json:"totalRounds"`
	CreatorOnly     bool           `json:"creatorOnly"`
	Category        string         `json:"category,omitempty"`
	Rotation        []string       `json:"rotation"`
	DrawerID        string         `json:"drawerId"`
	Word            string         `json:"word"`
	Hint            string         `json:"hint"`
	RoundEndAt      time.Time      `json:"roundEndAt"`
	CorrectGuessers []string       `json:"correctGuessers"`
	Scores          map[string]int `json:"scores"`
}

// UndercoverState is the social-deduction half of a snapshot, nil for other
// modes. The role partition is fixed once the room starts; EliminatedIDs only
// ever grows.
type UndercoverState struct {
	UndercoverIDs  []string          `json:"undercoverIds"`
	CivilianIDs    []string          `json:"civilianIds"`
	EliminatedIDs  []string          `json:"eliminatedIds"`
	CivilianWord   string            `json:"civilianWord"`
	UndercoverWord string            `json:"undercoverWord"`
	Votes          map[string]string `json:"votes"`
	GuessAttempts  map[string]int    `json:"guessAttempts"`
	Ordered        []string          `json:"ordered"`
	VoteRound      int               `json:"voteRound"`
	VoteEndAt      time.Time         `json:"voteEndAt"`
	VoteDuration   time.Duration     `json:"voteDuration"`
	Result         GameResult        `json:"result"`
}

// RoomSnapshot is the unit the RoomStore versions. Transitions are computed
// purely from (snapshot, event); the store's CAS decides which computation
// commits.
type RoomSnapshot struct {
	ID           string           `json:"id"`
	Mode         GameMode         `json:"mode"`
	Status       RoomStatus       `json:"status"`
	CreatorID    string           `json:"creatorId"`
	MaxPlayers   int              `json:"maxPlayers"`
	CreatedAt    time.Time        `json:"createdAt"`
	StartedAt    time.Time        `json:"startedAt"`
	Participants []string         `json:"participants"`
	PhaseToken   int64            `json:"phaseToken"`
	Draw         *DrawState       `json:"draw,omitempty"`
	Undercover   *UndercoverState `json:"undercover,omitempty"`
}

func (s *RoomSnapshot) HasParticipant(userID string) bool {
	return slices.Contains(s.Participants, userID)
}

func (s *RoomSnapshot) RemoveParticipant(userID string) {
	s.Participants = slices.DeleteFunc(s.Participants, func(id string) bool {
		return id == userID
	})
}

// bumpPhase invalidates every timer scheduled against the previous phase.
func (s *RoomSnapshot) bumpPhase() int64 {
	s.PhaseToken++
	return s.PhaseToken
}

func (u *UndercoverState) IsEliminated(userID string) bool {
	return slices.Contains(u.EliminatedIDs, userID)
}

func (u *UndercoverState) IsUndercover(userID string) bool {
	return slices.Contains(u.UndercoverIDs, userID)
}

// Alive returns the participants still in play, in display order.
func (u *UndercoverState) Alive() []string {
	alive := make([]string, 0, len(u.Ordered))
	for _, id := range u.Ordered {
		if !u.IsEliminated(id) {
			alive = append(alive, id)
		}
	}
	return alive
}

func (u *UndercoverState) aliveCounts() (undercover, civilian int) {
	for _, id := range u.UndercoverIDs {
		if !u.IsEliminated(id) {
			undercover++
		}
	}
	for _, id := range u.CivilianIDs {
		if !u.IsEliminated(id) {
			civilian++
		}
	}
	return undercover, civilian
}
