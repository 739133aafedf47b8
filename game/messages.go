package game

import "time"

// Envelope is the platform's generic typed realtime message. Data is a JSON
// document encoded as a string, matching the rest of the platform's traffic.
type Envelope struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Data   string `json:"data"`
}

// Inbound event types. EventTimeout is synthetic: only the scheduler emits
// it, the transport layer must never accept it from a client.
const (
	EventDrawCreate = "dg_create"
	EventDrawJoin   = "dg_join"
	EventDrawQuit   = "dg_quit"
	EventDrawStart  = "dg_start"
	EventDrawSubmit = "dg_draw"
	EventDrawGuess  = "dg_guess"

	EventCoverCreate = "uc_create"
	EventCoverJoin   = "uc_join"
	EventCoverQuit   = "uc_quit"
	EventCoverStart  = "uc_start"
	EventCoverVote   = "uc_vote"
	EventCoverGuess  = "uc_guess"

	EventTimeout = "timeout"
)

type CreateDrawRoomRequest struct {
	MaxPlayers      int    `json:"maxPlayers"`
	TotalRounds     int    `json:"totalRounds"`
	CreatorOnlyMode bool   `json:"creatorOnlyMode"`
	Category        string `json:"category,omitempty"`
}

type CreateUndercoverRoomRequest struct {
	CivilianWord    string `json:"civilianWord,omitempty"`
	UndercoverWord  string `json:"undercoverWord,omitempty"`
	Category        string `json:"category,omitempty"`
	DurationSeconds int    `json:"duration"`
}

type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type GuessRequest struct {
	RoomID    string `json:"roomId"`
	GuessWord string `json:"guessWord"`
}

type DrawingRequest struct {
	RoomID     string `json:"roomId"`
	CanvasData string `json:"canvasData"`
}

type VoteRequest struct {
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
}

// Outbound message types.
const (
	MsgRoomState   = "room_state"
	MsgSecretWord  = "secret_word"
	MsgDrawing     = "drawing"
	MsgGuessResult = "guess_result"
	MsgVoteResult  = "vote_result"
	MsgGameOver    = "game_over"
	MsgError       = "error"
)

type Outbound struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// RoomView is the public projection of a snapshot: no secret words, no role
// partition until the game is over.
type RoomView struct {
	ID           string          `json:"id"`
	Mode         GameMode        `json:"mode"`
	Status       RoomStatus      `json:"status"`
	CreatorID    string          `json:"creatorId"`
	MaxPlayers   int             `json:"maxPlayers"`
	Participants []string        `json:"participants"`
	Draw         *DrawView       `json:"draw,omitempty"`
	Undercover   *UndercoverView `json:"undercover,omitempty"`
}

type DrawView struct {
	Round           int            `json:"round"`
	TotalRounds     int            `json:"totalRounds"`
	DrawerID        string         `json:"drawerId"`
	RoundEndAt      int64          `json:"roundEndAt"`
	CorrectGuessers []string       `json:"correctGuessers"`
	Scores          map[string]int `json:"scores"`
}

type UndercoverView struct {
	Ordered       []string   `json:"ordered"`
	EliminatedIDs []string   `json:"eliminatedIds"`
	VoteRound     int        `json:"voteRound"`
	VoteEndAt     int64      `json:"voteEndAt"`
	VotedCount    int        `json:"votedCount"`
	Result        GameResult `json:"result"`
	// Revealed only once the room has ended.
	UndercoverIDs  []string `json:"undercoverIds,omitempty"`
	CivilianWord   string   `json:"civilianWord,omitempty"`
	UndercoverWord string   `json:"undercoverWord,omitempty"`
}

type GuessResult struct {
	UserID       string `json:"userId"`
	Correct      bool   `json:"correct"`
	Points       int    `json:"points,omitempty"`
	AttemptsLeft int    `json:"attemptsLeft,omitempty"`
}

type VoteResult struct {
	VoteRound    int            `json:"voteRound"`
	EliminatedID string         `json:"eliminatedId,omitempty"`
	Tie          bool           `json:"tie"`
	Counts       map[string]int `json:"counts"`
}

// View builds the public projection of a snapshot.
func (s *RoomSnapshot) View() RoomView {
	v := RoomView{
		ID:           s.ID,
		Mode:         s.Mode,
		Status:       s.Status,
		CreatorID:    s.CreatorID,
		MaxPlayers:   s.MaxPlayers,
		Participants: append([]string(nil), s.Participants...),
	}

	if s.Draw != nil {
		v.Draw = &DrawView{
			Round:           s.Draw.Round,
			TotalRounds:     s.Draw.TotalRounds,
			DrawerID:        s.Draw.DrawerID,
			RoundEndAt:      unixMilliOrZero(s.Draw.RoundEndAt),
			CorrectGuessers: append([]string(nil), s.Draw.CorrectGuessers...),
			Scores:          copyScores(s.Draw.Scores),
		}
	}

	if s.Undercover != nil {
		uv := &UndercoverView{
			Ordered:       append([]string(nil), s.Undercover.Ordered...),
			EliminatedIDs: append([]string(nil), s.Undercover.EliminatedIDs...),
			VoteRound:     s.Undercover.VoteRound,
			VoteEndAt:     unixMilliOrZero(s.Undercover.VoteEndAt),
			VotedCount:    len(s.Undercover.Votes),
			Result:        s.Undercover.Result,
		}
		if s.Status == StatusEnded {
			uv.UndercoverIDs = append([]string(nil), s.Undercover.UndercoverIDs...)
			uv.CivilianWord = s.Undercover.CivilianWord
			uv.UndercoverWord = s.Undercover.UndercoverWord
		}
		v.Undercover = uv
	}

	return v
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func copyScores(scores map[string]int) map[string]int {
	out := make(map[string]int, len(scores))
	for k, v := range scores {
		out[k] = v
	}
	return out
}
