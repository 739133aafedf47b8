package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DrawGuessEngine owns the sketch-and-guess state machine. Its methods are
// transition functions over snapshots: they mutate the passed snapshot and
// return the side effects to run once the coordinator's CAS commits.
type DrawGuessEngine struct {
	cfg   Settings
	words *WordSource
	now   func() time.Time
}

func NewDrawGuessEngine(cfg Settings, words *WordSource) *DrawGuessEngine {
	return &DrawGuessEngine{cfg: cfg, words: words, now: time.Now}
}

func (e *DrawGuessEngine) Create(creatorID string, req CreateDrawRoomRequest) (RoomSnapshot, error) {
	if req.MaxPlayers < e.cfg.MinPlayers {
		return RoomSnapshot{}, fmt.Errorf("%w: maxPlayers must be at least %d", ErrValidation, e.cfg.MinPlayers)
	}
	if req.MaxPlayers > e.cfg.MaxPlayersCap {
		return RoomSnapshot{}, fmt.Errorf("%w: maxPlayers cannot exceed %d", ErrValidation, e.cfg.MaxPlayersCap)
	}
	if req.TotalRounds < e.cfg.MinDrawRounds {
		return RoomSnapshot{}, fmt.Errorf("%w: totalRounds must be at least %d", ErrValidation, e.cfg.MinDrawRounds)
	}
	if req.TotalRounds > e.cfg.MaxDrawRounds {
		return RoomSnapshot{}, fmt.Errorf("%w: totalRounds cannot exceed %d", ErrValidation, e.cfg.MaxDrawRounds)
	}

	return RoomSnapshot{
		ID:           uuid.NewString(),
		Mode:         ModeDrawGuess,
		Status:       StatusWaiting,
		CreatorID:    creatorID,
		MaxPlayers:   req.MaxPlayers,
		CreatedAt:    e.now(),
		Participants: []string{creatorID},
		Draw: &DrawState{
			TotalRounds: req.TotalRounds,
			CreatorOnly: req.CreatorOnlyMode,
			Category:    req.Category,
			Scores:      map[string]int{},
		},
	}, nil
}

func (e *DrawGuessEngine) Join(snap *RoomSnapshot, userID string) (*effects, error) {
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

func (e *DrawGuessEngine) Leave(ctx context.Context, snap *RoomSnapshot, userID string) (*effects, error) {
	if !snap.HasParticipant(userID) {
		return nil, ErrNotInRoom
	}

	wasDrawer := snap.Status == StatusPlaying && snap.Draw.DrawerID == userID

	snap.RemoveParticipant(userID)

	if len(snap.Participants) == 0 {
		return &effects{destroy: true}, nil
	}
	if snap.CreatorID == userID {
		snap.CreatorID = snap.Participants[0]
	}

	if snap.Status == StatusPlaying && len(snap.Participants) < e.cfg.MinPlayers {
		e.dropFromRotation(snap, userID)
		eff := &effects{}
		e.endGame(snap, eff)
		return eff, nil
	}
	if wasDrawer {
		// The round cannot continue without its drawer; advance as if the
		// clock ran out. The leaver stays in the rotation until the walk
		// picks the successor, so join order is preserved past them.
		eff := (&effects{}).broadcast(stateDelivery(snap))
		if err := e.advanceRound(ctx, snap, eff); err != nil {
			return nil, err
		}
		e.dropFromRotation(snap, userID)
		return eff, nil
	}

	e.dropFromRotation(snap, userID)
	return (&effects{}).broadcast(stateDelivery(snap)), nil
}

func (e *DrawGuessEngine) Start(ctx context.Context, snap *RoomSnapshot, userID string) (*effects, error) {
	if snap.Status != StatusWaiting {
		return nil, fmt.Errorf("%w: room already started", ErrBadPhase)
	}
	if userID != snap.CreatorID {
		return nil, fmt.Errorf("%w: only the creator can start", ErrValidation)
	}
	if len(snap.Participants) < e.cfg.MinPlayers {
		return nil, fmt.Errorf("%w: need at least %d players", ErrValidation, e.cfg.MinPlayers)
	}

	snap.Status = StatusPlaying
	snap.StartedAt = e.now()
	snap.Draw.Rotation = append([]string(nil), snap.Participants...)
	snap.Draw.Round = 1
	if snap.Draw.CreatorOnly {
		snap.Draw.DrawerID = snap.CreatorID
	} else {
		snap.Draw.DrawerID = snap.Draw.Rotation[0]
	}

	eff := &effects{}
	if err := e.dealWord(ctx, snap, eff); err != nil {
		return nil, err
	}
	eff.broadcast(stateDelivery(snap))
	return eff, nil
}

func (e *DrawGuessEngine) Guess(ctx context.Context, snap *RoomSnapshot, userID, text string) (*effects, error) {
	if snap.Status != StatusPlaying {
		return nil, fmt.Errorf("%w: room is not playing", ErrBadPhase)
	}
	if !snap.HasParticipant(userID) {
		return nil, ErrNotInRoom
	}
	d := snap.Draw
	if userID == d.DrawerID {
		return nil, fmt.Errorf("%w: the drawer cannot guess", ErrBadPhase)
	}
	if indexOf(d.CorrectGuessers, userID) >= 0 {
		return nil, fmt.Errorf("%w: already guessed correctly", ErrBadPhase)
	}

	remaining := d.RoundEndAt.Sub(e.now())
	correct, points := ScoreGuess(text, d.Word, remaining, e.cfg.RoundDuration, len(d.CorrectGuessers), e.cfg.Scoring)

	eff := &effects{}
	if !correct {
		eff.noop = true
		eff.sendTo(userID, Outbound{Type: MsgGuessResult, RoomID: snap.ID, Data: GuessResult{UserID: userID, Correct: false}})
		return eff, nil
	}

	d.CorrectGuessers = append(d.CorrectGuessers, userID)
	d.Scores[userID] += points
	d.Scores[d.DrawerID] += e.cfg.Scoring.DrawerShare
	eff.broadcast(Outbound{Type: MsgGuessResult, RoomID: snap.ID, Data: GuessResult{UserID: userID, Correct: true, Points: points}})

	// Everyone but the drawer got it: no reason to wait for the clock.
	if len(d.CorrectGuessers) >= len(snap.Participants)-1 {
		if err := e.advanceRound(ctx, snap, eff); err != nil {
			return nil, err
		}
		return eff, nil
	}

	eff.broadcast(stateDelivery(snap))
	return eff, nil
}

// Timeout handles a fired deadline. A stale token means the room already
// moved on; that is a no-op, not an error.
func (e *DrawGuessEngine) Timeout(ctx context.Context, snap *RoomSnapshot, token int64) (*effects, error) {
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
	if err := e.advanceRound(ctx, snap, eff); err != nil {
		return nil, err
	}
	return eff, nil
}

func (e *DrawGuessEngine) advanceRound(ctx context.Context, snap *RoomSnapshot, eff *effects) error {
	d := snap.Draw
	if d.Round >= d.TotalRounds {
		e.endGame(snap, eff)
		return nil
	}

	d.Round++
	d.CorrectGuessers = nil
	eff.clearCanvas = true
	if d.CreatorOnly {
		d.DrawerID = snap.CreatorID
	} else {
		d.DrawerID = e.nextDrawer(snap)
	}

	if err := e.dealWord(ctx, snap, eff); err != nil {
		return err
	}
	eff.broadcast(stateDelivery(snap))
	return nil
}

func (e *DrawGuessEngine) dropFromRotation(snap *RoomSnapshot, userID string) {
	if i := indexOf(snap.Draw.Rotation, userID); i >= 0 {
		snap.Draw.Rotation = append(snap.Draw.Rotation[:i], snap.Draw.Rotation[i+1:]...)
	}
}

// nextDrawer walks the join-order rotation from the current drawer,
// skipping anyone who has left.
func (e *DrawGuessEngine) nextDrawer(snap *RoomSnapshot) string {
	d := snap.Draw
	start := indexOf(d.Rotation, d.DrawerID)
	n := len(d.Rotation)
	for i := 1; i <= n; i++ {
		candidate := d.Rotation[(start+i+n)%n]
		if snap.HasParticipant(candidate) {
			return candidate
		}
	}
	return snap.CreatorID
}

func (e *DrawGuessEngine) dealWord(ctx context.Context, snap *RoomSnapshot, eff *effects) error {
	w, err := e.words.NextSingle(ctx, snap.Draw.Category)
	if err != nil {
		return err
	}
	d := snap.Draw
	d.Word = w.Text
	d.Hint = w.Hint
	d.RoundEndAt = e.now().Add(e.cfg.RoundDuration)
	// Consumed on the ledger only after this transition commits.
	eff.claimWord = w.Text

	token := snap.bumpPhase()
	eff.schedule = &deadline{at: d.RoundEndAt, token: token}
	eff.sendTo(d.DrawerID, Outbound{
		Type:   MsgSecretWord,
		RoomID: snap.ID,
		Data:   map[string]string{"word": d.Word, "hint": d.Hint},
	})
	return nil
}

func (e *DrawGuessEngine) endGame(snap *RoomSnapshot, eff *effects) {
	snap.Status = StatusEnded
	token := snap.bumpPhase()
	eff.schedule = &deadline{at: e.now().Add(e.cfg.EndedGrace), token: token}
	eff.broadcast(Outbound{Type: MsgGameOver, RoomID: snap.ID, Data: snap.View()})

	best := 0
	for _, pts := range snap.Draw.Scores {
		if pts > best {
			best = pts
		}
	}
	if best == 0 {
		return
	}
	for uid, pts := range snap.Draw.Scores {
		if pts == best {
			eff.awards = append(eff.awards, award{userID: uid, points: e.cfg.WinnerPoints, reason: "draw-guess-win"})
		}
	}
}

func indexOf(list []string, v string) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}
