package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lhccong/fish-island-backend-sub001/domain"
)

// Broadcaster delivers outbound messages to connected participants.
// Deliveries run after a transition commits; a failed delivery never rolls
// the room back.
type Broadcaster interface {
	Broadcast(roomID string, userIDs []string, msg Outbound)
	Send(userID string, msg Outbound)
}

// PointsLedger is the platform's points/credit service. The engine only
// reports wins; balances live elsewhere.
type PointsLedger interface {
	AwardPoints(ctx context.Context, userID string, points int, reason, roomID string) error
}

// Coordinator is the public façade of the engine. It routes inbound events
// to the right engine by room id, enforces one active room per user, runs
// the optimistic-concurrency loop, and emits broadcasts once transitions
// commit. Within one room events are serialized by CAS; across rooms
// everything runs in parallel.
type Coordinator struct {
	store  RoomStore
	sched  RoundScheduler
	cast   Broadcaster
	ledger PointsLedger
	words  *WordSource
	cfg    Settings
	log    zerolog.Logger

	draw  *DrawGuessEngine
	cover *UndercoverEngine
}

func NewCoordinator(store RoomStore, sched RoundScheduler, cast Broadcaster, ledger PointsLedger, words *WordSource, cfg Settings, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		sched:  sched,
		cast:   cast,
		ledger: ledger,
		words:  words,
		cfg:    cfg,
		log:    log,
		draw:   NewDrawGuessEngine(cfg, words),
		cover:  NewUndercoverEngine(cfg, words),
	}
}

// Dispatch routes one inbound envelope. The transport layer is responsible
// for setting UserID from the authenticated session, and for never passing
// the synthetic timeout type through.
func (c *Coordinator) Dispatch(ctx context.Context, env Envelope) error {
	if env.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrValidation)
	}

	switch env.Type {
	case EventDrawCreate:
		var req CreateDrawRoomRequest
		if err := json.Unmarshal([]byte(env.Data), &req); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		_, err := c.CreateDrawRoom(ctx, env.UserID, req)
		return err

	case EventCoverCreate:
		var req CreateUndercoverRoomRequest
		if err := json.Unmarshal([]byte(env.Data), &req); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		_, err := c.CreateUndercoverRoom(ctx, env.UserID, req)
		return err

	case EventDrawJoin, EventCoverJoin:
		req, err := parseRoomRequest(env.Data)
		if err != nil {
			return err
		}
		return c.JoinRoom(ctx, env.UserID, req.RoomID)

	case EventDrawQuit, EventCoverQuit:
		req, err := parseRoomRequest(env.Data)
		if err != nil {
			return err
		}
		return c.LeaveRoom(ctx, env.UserID, req.RoomID)

	case EventDrawStart, EventCoverStart:
		req, err := parseRoomRequest(env.Data)
		if err != nil {
			return err
		}
		return c.StartRoom(ctx, env.UserID, req.RoomID)

	case EventDrawSubmit:
		var req DrawingRequest
		if err := json.Unmarshal([]byte(env.Data), &req); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return c.SubmitDrawing(ctx, env.UserID, req)

	case EventDrawGuess:
		var req GuessRequest
		if err := json.Unmarshal([]byte(env.Data), &req); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return c.SubmitGuess(ctx, env.UserID, req.RoomID, req.GuessWord)

	case EventCoverVote:
		var req VoteRequest
		if err := json.Unmarshal([]byte(env.Data), &req); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return c.SubmitVote(ctx, env.UserID, req.RoomID, req.TargetID)

	case EventCoverGuess:
		var req GuessRequest
		if err := json.Unmarshal([]byte(env.Data), &req); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return c.SubmitUndercoverGuess(ctx, env.UserID, req.RoomID, req.GuessWord)

	default:
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, env.Type)
	}
}

func parseRoomRequest(data string) (RoomRequest, error) {
	var req RoomRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return RoomRequest{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.RoomID == "" {
		return RoomRequest{}, fmt.Errorf("%w: missing room id", ErrValidation)
	}
	return req, nil
}

func (c *Coordinator) CreateDrawRoom(ctx context.Context, creatorID string, req CreateDrawRoomRequest) (string, error) {
	if err := c.ensureNoActiveRoom(ctx, creatorID); err != nil {
		return "", err
	}

	snap, err := c.draw.Create(creatorID, req)
	if err != nil {
		return "", err
	}
	if err := c.store.Create(ctx, snap); err != nil {
		return "", err
	}

	c.deliver(&snap, []delivery{{msg: stateDelivery(&snap)}})
	c.log.Info().Str("room_id", snap.ID).Str("creator_id", creatorID).Msg("draw-guess room created")
	return snap.ID, nil
}

func (c *Coordinator) CreateUndercoverRoom(ctx context.Context, creatorID string, req CreateUndercoverRoomRequest) (string, error) {
	if err := c.ensureNoActiveRoom(ctx, creatorID); err != nil {
		return "", err
	}

	// Word exhaustion aborts creation here; the room never reaches the store.
	snap, err := c.cover.Create(ctx, creatorID, req)
	if err != nil {
		return "", err
	}
	if err := c.store.Create(ctx, snap); err != nil {
		return "", err
	}

	// The pair is consumed only once the room exists: a failed create must
	// not shrink the day's pool.
	pair := domain.WordPair{Civilian: snap.Undercover.CivilianWord, Undercover: snap.Undercover.UndercoverWord}
	if err := c.words.RegisterPair(ctx, pair); err != nil {
		c.log.Warn().Err(err).Str("room_id", snap.ID).Msg("pair ledger mark failed")
	}

	c.deliver(&snap, []delivery{{msg: stateDelivery(&snap)}})
	c.log.Info().Str("room_id", snap.ID).Str("creator_id", creatorID).Msg("undercover room created")
	return snap.ID, nil
}

func (c *Coordinator) JoinRoom(ctx context.Context, userID, roomID string) error {
	current, err := c.store.RoomOf(ctx, userID)
	if err != nil {
		return err
	}
	if current != "" && current != roomID {
		return fmt.Errorf("%w: user %s is in room %s", ErrAlreadyInRoom, userID, current)
	}

	return c.mutate(ctx, roomID, func(snap *RoomSnapshot) (*effects, error) {
		if snap.Mode == ModeDrawGuess {
			return c.draw.Join(snap, userID)
		}
		return c.cover.Join(snap, userID)
	})
}

func (c *Coordinator) LeaveRoom(ctx context.Context, userID, roomID string) error {
	return c.mutate(ctx, roomID, func(snap *RoomSnapshot) (*effects, error) {
		if snap.Mode == ModeDrawGuess {
			return c.draw.Leave(ctx, snap, userID)
		}
		return c.cover.Leave(snap, userID)
	})
}

func (c *Coordinator) StartRoom(ctx context.Context, userID, roomID string) error {
	return c.mutate(ctx, roomID, func(snap *RoomSnapshot) (*effects, error) {
		if snap.Mode == ModeDrawGuess {
			return c.draw.Start(ctx, snap, userID)
		}
		return c.cover.Start(snap, userID)
	})
}

func (c *Coordinator) SubmitGuess(ctx context.Context, userID, roomID, text string) error {
	return c.mutate(ctx, roomID, func(snap *RoomSnapshot) (*effects, error) {
		if snap.Mode != ModeDrawGuess {
			return nil, fmt.Errorf("%w: not a draw-guess room", ErrValidation)
		}
		return c.draw.Guess(ctx, snap, userID, text)
	})
}

func (c *Coordinator) SubmitVote(ctx context.Context, userID, roomID, targetID string) error {
	return c.mutate(ctx, roomID, func(snap *RoomSnapshot) (*effects, error) {
		if snap.Mode != ModeUndercover {
			return nil, fmt.Errorf("%w: not an undercover room", ErrValidation)
		}
		return c.cover.Vote(snap, userID, targetID)
	})
}

func (c *Coordinator) SubmitUndercoverGuess(ctx context.Context, userID, roomID, word string) error {
	return c.mutate(ctx, roomID, func(snap *RoomSnapshot) (*effects, error) {
		if snap.Mode != ModeUndercover {
			return nil, fmt.Errorf("%w: not an undercover room", ErrValidation)
		}
		return c.cover.UndercoverGuess(snap, userID, word)
	})
}

// SubmitDrawing relays canvas frames without a state transition: the
// snapshot only validates the sender, the frame itself goes to the keyed
// drawing buffer and out to the other participants.
func (c *Coordinator) SubmitDrawing(ctx context.Context, userID string, req DrawingRequest) error {
	snap, _, err := c.store.Get(ctx, req.RoomID)
	if err != nil {
		return err
	}
	if snap.Mode != ModeDrawGuess {
		return fmt.Errorf("%w: not a draw-guess room", ErrValidation)
	}
	if snap.Status != StatusPlaying {
		return fmt.Errorf("%w: room is not playing", ErrBadPhase)
	}
	if snap.Draw.DrawerID != userID {
		return fmt.Errorf("%w: only the drawer can draw", ErrBadPhase)
	}

	if err := c.store.AppendDrawing(ctx, req.RoomID, []byte(req.CanvasData)); err != nil {
		return err
	}

	others := make([]string, 0, len(snap.Participants))
	for _, id := range snap.Participants {
		if id != userID {
			others = append(others, id)
		}
	}
	c.cast.Broadcast(snap.ID, others, Outbound{
		Type:   MsgDrawing,
		RoomID: snap.ID,
		Data:   map[string]string{"canvasData": req.CanvasData},
	})
	return nil
}

// HandleTimeout is the scheduler sink. It re-enters through the same CAS
// path as user events; a token from a phase the room already left commits
// nothing.
func (c *Coordinator) HandleTimeout(roomID string, token int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := c.mutate(ctx, roomID, func(snap *RoomSnapshot) (*effects, error) {
		if snap.Mode == ModeDrawGuess {
			return c.draw.Timeout(ctx, snap, token)
		}
		return c.cover.Timeout(snap, token)
	})
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		c.log.Error().Err(err).Str("room_id", roomID).Int64("token", token).Msg("timeout handling failed")
	}
}

// HandleDisconnect removes a dropped user from whatever room they were in.
func (c *Coordinator) HandleDisconnect(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	roomID, err := c.store.RoomOf(ctx, userID)
	if err != nil || roomID == "" {
		return
	}
	if err := c.LeaveRoom(ctx, userID, roomID); err != nil && !errors.Is(err, ErrRoomNotFound) {
		c.log.Warn().Err(err).Str("user_id", userID).Str("room_id", roomID).Msg("disconnect leave failed")
	}
}

// RoomView returns the public projection of a room.
func (c *Coordinator) RoomView(ctx context.Context, roomID string) (RoomView, error) {
	snap, _, err := c.store.Get(ctx, roomID)
	if err != nil {
		return RoomView{}, err
	}
	return snap.View(), nil
}

// RoomOf exposes the reverse index.
func (c *Coordinator) RoomOf(ctx context.Context, userID string) (string, error) {
	return c.store.RoomOf(ctx, userID)
}

func (c *Coordinator) ensureNoActiveRoom(ctx context.Context, userID string) error {
	current, err := c.store.RoomOf(ctx, userID)
	if err != nil {
		return err
	}
	if current != "" {
		return fmt.Errorf("%w: user %s is in room %s", ErrAlreadyInRoom, userID, current)
	}
	return nil
}

// mutate is the optimistic-concurrency loop: load, compute purely, CAS,
// retry on conflict. Effects run only after the commit. A noop result skips
// the write but still delivers any direct replies.
func (c *Coordinator) mutate(ctx context.Context, roomID string, fn func(snap *RoomSnapshot) (*effects, error)) error {
	for attempt := 0; attempt < c.cfg.MaxCASRetries; attempt++ {
		snap, version, err := c.store.Get(ctx, roomID)
		if err != nil {
			return err
		}

		eff, err := fn(&snap)
		if err != nil {
			return err
		}
		if eff == nil {
			eff = &effects{}
		}

		if eff.noop {
			c.deliver(&snap, eff.deliveries)
			return nil
		}

		if err := c.store.CASUpdate(ctx, version, snap); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			return err
		}

		c.commit(ctx, &snap, eff)
		return nil
	}
	return ErrTooManyConflicts
}

func (c *Coordinator) commit(ctx context.Context, snap *RoomSnapshot, eff *effects) {
	if eff.destroy {
		c.sched.Cancel(snap.ID)
		if err := c.store.Delete(ctx, snap.ID); err != nil && !errors.Is(err, ErrRoomNotFound) {
			c.log.Error().Err(err).Str("room_id", snap.ID).Msg("room delete failed")
		}
	} else if eff.schedule != nil {
		c.sched.Schedule(snap.ID, eff.schedule.at, eff.schedule.token)
	}

	if eff.clearCanvas && !eff.destroy {
		if err := c.store.ClearDrawings(ctx, snap.ID); err != nil {
			c.log.Error().Err(err).Str("room_id", snap.ID).Msg("clear drawings failed")
		}
	}

	if eff.claimWord != "" {
		if err := c.words.MarkWordUsed(ctx, eff.claimWord); err != nil {
			c.log.Warn().Err(err).Str("word", eff.claimWord).Msg("word ledger mark failed")
		}
	}

	c.deliver(snap, eff.deliveries)

	if len(eff.awards) > 0 {
		awards := eff.awards
		roomID := snap.ID
		go func() {
			actx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			for _, a := range awards {
				if err := c.ledger.AwardPoints(actx, a.userID, a.points, a.reason, roomID); err != nil {
					c.log.Error().Err(err).Str("user_id", a.userID).Str("room_id", roomID).Msg("point award failed")
				}
			}
		}()
	}
}

func (c *Coordinator) deliver(snap *RoomSnapshot, deliveries []delivery) {
	for _, d := range deliveries {
		if d.to == nil {
			c.cast.Broadcast(snap.ID, snap.Participants, d.msg)
		} else {
			for _, uid := range d.to {
				c.cast.Send(uid, d.msg)
			}
		}
	}
}
