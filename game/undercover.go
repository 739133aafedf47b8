package game

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/lhccong/fish-island-backend-sub001/domain"
)

// UndercoverEngine owns the social-deduction state machine. The role
// partition is fixed at start and never reassigned; elimination only ever
// appends.
type UndercoverEngine struct {
	cfg   Settings
	words *WordSource
	now   func() time.Time
	// shuffle is swappable so tests get deterministic partitions.
	shuffle func(n int, swap func(i, j int))
}

func NewUndercoverEngine(cfg Settings, words *WordSource) *UndercoverEngine {
	return &UndercoverEngine{
		cfg:     cfg,
		words:   words,
		now:     time.Now,
		shuffle: rand.Shuffle,
	}
}

func (e *UndercoverEngine) Create(ctx context.Context, creatorID string, req CreateUndercoverRoomRequest) (RoomSnapshot, error) {
	voteDuration := time.Duration(req.DurationSeconds) * time.Second
	if req.DurationSeconds == 0 {
		voteDuration = e.cfg.DefaultVoteDuration
	}
	if voteDuration < e.cfg.MinVoteDuration || voteDuration > e.cfg.MaxVoteDuration {
		return RoomSnapshot{}, fmt.Errorf("%w: duration out of range", ErrValidation)
	}

	// The drawn or supplied pair is consumed on the day ledger by the caller
	// once the room is actually stored.
	var pair domain.WordPair
	switch {
	case req.CivilianWord != "" && req.UndercoverWord != "":
		pair = domain.WordPair{Civilian: req.CivilianWord, Undercover: req.UndercoverWord}
		if pair.Civilian == pair.Undercover {
			return RoomSnapshot{}, fmt.Errorf("%w: words must differ", ErrValidation)
		}
	case req.CivilianWord == "" && req.UndercoverWord == "":
		var err error
		pair, err = e.words.NextPair(ctx, req.Category)
		if err != nil {
			return RoomSnapshot{}, err
		}
	default:
		return RoomSnapshot{}, fmt.Errorf("%w: supply both words or neither", ErrValidation)
	}

	return RoomSnapshot{
		ID:           uuid.NewString(),
		Mode:         ModeUndercover,
		Status:       StatusWaiting,
		CreatorID:    creatorID,
		MaxPlayers:   e.cfg.MaxPlayersCap,
		CreatedAt:    e.now(),
		Participants: []string{creatorID},
		Undercover: &UndercoverState{
			CivilianWord:   pair.Civilian,
			UndercoverWord: pair.Undercover,
			VoteDuration:   voteDuration,
			Votes:          map[string]string{},
			GuessAttempts:  map[string]int{},
		},
	}, nil
}

func (e *UndercoverEngine) Join(snap *RoomSnapshot, userID string) (*effects, error) {
	if snap.Status != StatusWaiting {
		return nil, fmt.Errorf("%w: room already started", ErrBadPhase)
	}
	if snap.HasParticipant(userID) {
		return nil, ErrAlreadyInRoom
	}
	if len(snap.Participants) >= snap.MaxPlayers {
		return nil, ErrRoomFull
	}

	snap.Participants = append(snap.Participants, userID)
	return (&effects{}).broadcast(stateDelivery(snap)), nil
}

// Leave removes a waiting participant outright. During play the user is
// marked eliminated instead so the vote history stays coherent, and the win
// conditions are re-checked since the alive counts moved.
func (e *UndercoverEngine) Leave(snap *RoomSnapshot, userID string) (*effects, error) {
	if !snap.HasParticipant(userID) {
		return nil, ErrNotInRoom
	}

	if snap.Status == StatusWaiting {
		snap.RemoveParticipant(userID)
		if len(snap.Participants) == 0 {
			return &effects{destroy: true}, nil
		}
		if snap.CreatorID == userID {
			snap.CreatorID = snap.Participants[0]
		}
		return (&effects{}).broadcast(stateDelivery(snap)), nil
	}

	u := snap.Undercover
	if snap.Status == StatusPlaying && !u.IsEliminated(userID) {
		u.EliminatedIDs = append(u.EliminatedIDs, userID)
	}
	snap.RemoveParticipant(userID)
	if len(snap.Participants) == 0 {
		return &effects{destroy: true}, nil
	}

	eff := (&effects{}).broadcast(stateDelivery(snap))
	if snap.Status == StatusPlaying {
		e.checkWin(snap, eff)
	}
	return eff, nil
}

func (e *UndercoverEngine) Start(snap *RoomSnapshot, userID string) (*effects, error) {
	if snap.Status != StatusWaiting {
		return nil, fmt.Errorf("%w: room already started", ErrBadPhase)
	}
	if userID != snap.CreatorID {
		return nil, fmt.Errorf("%w: only the creator can start", ErrValidation)
	}
	// Three is the floor for the deduction to mean anything.
	if len(snap.Participants) < e.cfg.MinUndercoverRoomSize {
		return nil, fmt.Errorf("%w: need at least %d players", ErrValidation, e.cfg.MinUndercoverRoomSize)
	}

	u := snap.Undercover
	n := len(snap.Participants)
	undercoverCount := e.cfg.UndercoverCount
	if undercoverCount > (n-1)/2 {
		undercoverCount = (n - 1) / 2
	}
	if undercoverCount < 1 {
		undercoverCount = 1
	}

	// Role partition: shuffled copy, first k are undercover. Fixed from here
	// on; nothing reassigns roles after start.
	pool := append([]string(nil), snap.Participants...)
	e.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	u.UndercoverIDs = append([]string(nil), pool[:undercoverCount]...)
	u.CivilianIDs = append([]string(nil), pool[undercoverCount:]...)

	// Separate shuffle for the stable display order.
	ordered := append([]string(nil), snap.Participants...)
	e.shuffle(len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
	u.Ordered = ordered

	snap.Status = StatusPlaying
	snap.StartedAt = e.now()
	u.VoteRound = 1
	u.VoteEndAt = e.now().Add(u.VoteDuration)

	token := snap.bumpPhase()
	eff := &effects{schedule: &deadline{at: u.VoteEndAt, token: token}}
	eff.broadcast(stateDelivery(snap))
	for _, id := range u.UndercoverIDs {
		eff.sendTo(id, Outbound{Type: MsgSecretWord, RoomID: snap.ID, Data: map[string]string{"word": u.UndercoverWord}})
	}
	for _, id := range u.CivilianIDs {
		eff.sendTo(id, Outbound{Type: MsgSecretWord, RoomID: snap.ID, Data: map[string]string{"word": u.CivilianWord}})
	}
	return eff, nil
}

// Vote records a vote, overwriting any earlier one by the same voter this
// round. When every alive player has voted the tally runs immediately.
func (e *UndercoverEngine) Vote(snap *RoomSnapshot, voterID, targetID string) (*effects, error) {
	if snap.Status != StatusPlaying {
		return nil, fmt.Errorf("%w: room is not playing", ErrBadPhase)
	}
	u := snap.Undercover
	if !snap.HasParticipant(voterID) {
		return nil, ErrNotInRoom
	}
	if u.IsEliminated(voterID) {
		return nil, fmt.Errorf("%w: eliminated players cannot vote", ErrBadPhase)
	}
	if voterID == targetID {
		return nil, fmt.Errorf("%w: cannot vote for yourself", ErrValidation)
	}
	if u.IsEliminated(targetID) || indexOf(u.Ordered, targetID) < 0 {
		return nil, fmt.Errorf("%w: target is not in play", ErrValidation)
	}

	u.Votes[voterID] = targetID

	alive := u.Alive()
	voted := 0
	for _, id := range alive {
		if _, ok := u.Votes[id]; ok {
			voted++
		}
	}

	eff := (&effects{}).broadcast(stateDelivery(snap))
	if voted == len(alive) {
		e.tally(snap, eff)
	}
	return eff, nil
}

// UndercoverGuess is the undercover's gamble: name the civilian word and win
// outright. Attempts are capped; a miss just burns one.
func (e *UndercoverEngine) UndercoverGuess(snap *RoomSnapshot, userID, word string) (*effects, error) {
	if snap.Status != StatusPlaying {
		return nil, fmt.Errorf("%w: room is not playing", ErrBadPhase)
	}
	u := snap.Undercover
	if !u.IsUndercover(userID) {
		return nil, fmt.Errorf("%w: only the undercover can guess", ErrValidation)
	}
	if u.IsEliminated(userID) {
		return nil, fmt.Errorf("%w: eliminated players cannot guess", ErrBadPhase)
	}
	if u.GuessAttempts[userID] >= e.cfg.MaxUndercoverGuesses {
		return nil, fmt.Errorf("%w: no guess attempts left", ErrBadPhase)
	}

	u.GuessAttempts[userID]++

	if MatchesWord(word, u.CivilianWord) {
		eff := &effects{}
		e.endGame(snap, ResultUndercoverGuessed, eff)
		return eff, nil
	}

	left := e.cfg.MaxUndercoverGuesses - u.GuessAttempts[userID]
	eff := &effects{}
	eff.sendTo(userID, Outbound{Type: MsgGuessResult, RoomID: snap.ID, Data: GuessResult{UserID: userID, Correct: false, AttemptsLeft: left}})
	return eff, nil
}

// Timeout handles a fired deadline: vote end during play, the destroy grace
// after the game ends. Stale tokens are no-ops.
func (e *UndercoverEngine) Timeout(snap *RoomSnapshot, token int64) (*effects, error) {
	if snap.PhaseToken != token {
		return noopEffects, nil
	}
	if snap.Status == StatusEnded {
		return &effects{destroy: true}, nil
	}
	if snap.Status != StatusPlaying {
		return noopEffects, nil
	}

	eff := &effects{}
	e.tally(snap, eff)
	return eff, nil
}

func (e *UndercoverEngine) tally(snap *RoomSnapshot, eff *effects) {
	u := snap.Undercover

	eliminated, counts, ok := ResolveElimination(u.Alive(), u.Votes)
	if ok {
		u.EliminatedIDs = append(u.EliminatedIDs, eliminated)
	}
	u.Votes = map[string]string{}

	eff.broadcast(Outbound{Type: MsgVoteResult, RoomID: snap.ID, Data: VoteResult{
		VoteRound:    u.VoteRound,
		EliminatedID: eliminated,
		Tie:          !ok,
		Counts:       counts,
	}})

	if e.checkWin(snap, eff) {
		return
	}

	u.VoteRound++
	u.VoteEndAt = e.now().Add(u.VoteDuration)
	token := snap.bumpPhase()
	eff.schedule = &deadline{at: u.VoteEndAt, token: token}
	eff.broadcast(stateDelivery(snap))
}

// checkWin applies the win conditions in order: all undercover out means the
// civilians win; undercover reaching parity with civilians means the
// undercover win.
func (e *UndercoverEngine) checkWin(snap *RoomSnapshot, eff *effects) bool {
	undercover, civilian := snap.Undercover.aliveCounts()
	switch {
	case undercover == 0:
		e.endGame(snap, ResultCivilianWin, eff)
		return true
	case undercover >= civilian:
		e.endGame(snap, ResultUndercoverWin, eff)
		return true
	}
	return false
}

func (e *UndercoverEngine) endGame(snap *RoomSnapshot, result GameResult, eff *effects) {
	u := snap.Undercover
	snap.Status = StatusEnded
	u.Result = result

	token := snap.bumpPhase()
	eff.schedule = &deadline{at: e.now().Add(e.cfg.EndedGrace), token: token}
	eff.broadcast(Outbound{Type: MsgGameOver, RoomID: snap.ID, Data: snap.View()})

	var winners []string
	var reason string
	if result == ResultCivilianWin {
		winners = u.CivilianIDs
		reason = "undercover-civilian-win"
	} else {
		winners = u.UndercoverIDs
		reason = "undercover-win"
	}
	for _, uid := range winners {
		eff.awards = append(eff.awards, award{userID: uid, points: e.cfg.WinnerPoints, reason: reason})
	}
}
