package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createCoverRoom builds a room with a fixed pair. With the identity shuffle
// installed by newTestRig the creator always draws the undercover role and
// the display order is join order.
func createCoverRoom(t *testing.T, rig *testRig, creator string, players ...string) string {
	t.Helper()
	ctx := context.Background()

	roomID, err := rig.coord.CreateUndercoverRoom(ctx, creator, CreateUndercoverRoomRequest{
		CivilianWord:    "apple",
		UndercoverWord:  "pear",
		DurationSeconds: 120,
	})
	require.NoError(t, err)
	for _, p := range players {
		require.NoError(t, rig.coord.JoinRoom(ctx, p, roomID))
	}
	return roomID
}

func TestUndercover_CreateValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	testCases := []struct {
		name string
		req  CreateUndercoverRoomRequest
	}{
		{"only civilian word", CreateUndercoverRoomRequest{CivilianWord: "apple"}},
		{"only undercover word", CreateUndercoverRoomRequest{UndercoverWord: "pear"}},
		{"identical words", CreateUndercoverRoomRequest{CivilianWord: "apple", UndercoverWord: "apple"}},
		{"duration too short", CreateUndercoverRoomRequest{CivilianWord: "apple", UndercoverWord: "pear", DurationSeconds: 5}},
		{"duration too long", CreateUndercoverRoomRequest{CivilianWord: "apple", UndercoverWord: "pear", DurationSeconds: 3600}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rig := newTestRig(testSettings(), defaultDict())
			_, err := rig.coord.CreateUndercoverRoom(ctx, "alice", tc.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUndercover_CreateDrawsPairWhenNoneSupplied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())

	roomID, err := rig.coord.CreateUndercoverRoom(ctx, "alice", CreateUndercoverRoomRequest{})
	require.NoError(t, err)

	snap, _, err := rig.store.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "猫", snap.Undercover.CivilianWord)
	assert.Equal(t, "老虎", snap.Undercover.UndercoverWord)
	assert.Equal(t, testSettings().DefaultVoteDuration, snap.Undercover.VoteDuration)
}

func TestUndercover_CreateDrawsPairFromCategory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())

	roomID, err := rig.coord.CreateUndercoverRoom(ctx, "alice", CreateUndercoverRoomRequest{Category: "drinks"})
	require.NoError(t, err)

	snap, _, err := rig.store.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "coffee", snap.Undercover.CivilianWord)
	assert.Equal(t, "tea", snap.Undercover.UndercoverWord)
}

func TestUndercover_StartPartitionsRoles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())
	roomID := createCoverRoom(t, rig, "alice", "bob", "carol", "dave")

	require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

	snap, _, err := rig.store.Get(ctx, roomID)
	require.NoError(t, err)
	u := snap.Undercover
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.Equal(t, []string{"alice"}, u.UndercoverIDs)
	assert.ElementsMatch(t, []string{"bob", "carol", "dave"}, u.CivilianIDs)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, u.Ordered)
	assert.Equal(t, 1, u.VoteRound)

	// Each side only ever sees its own word.
	aliceMsgs := rig.cast.sendsTo("alice")
	require.NotEmpty(t, aliceMsgs)
	assert.Equal(t, map[string]string{"word": "pear"}, aliceMsgs[len(aliceMsgs)-1].Data)
	bobMsgs := rig.cast.sendsTo("bob")
	require.NotEmpty(t, bobMsgs)
	assert.Equal(t, map[string]string{"word": "apple"}, bobMsgs[len(bobMsgs)-1].Data)

	scheduled := rig.sched.last()
	assert.Equal(t, roomID, scheduled.roomID)
	assert.Equal(t, snap.PhaseToken, scheduled.token)
}

func TestUndercover_StartRequiresThreePlayers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())
	roomID := createCoverRoom(t, rig, "alice", "bob")

	assert.ErrorIs(t, rig.coord.StartRoom(ctx, "alice", roomID), ErrValidation)
}

func TestUndercover_VoteValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())
	roomID := createCoverRoom(t, rig, "alice", "bob", "carol")
	require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

	assert.ErrorIs(t, rig.coord.SubmitVote(ctx, "bob", roomID, "bob"), ErrValidation, "self-vote")
	assert.ErrorIs(t, rig.coord.SubmitVote(ctx, "bob", roomID, "mallory"), ErrValidation, "unknown target")
	assert.ErrorIs(t, rig.coord.SubmitVote(ctx, "mallory", roomID, "bob"), ErrNotInRoom)
}

func TestUndercover_RevoteOverwritesEarlierVote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())
	roomID := createCoverRoom(t, rig, "alice", "bob", "carol")
	require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

	require.NoError(t, rig.coord.SubmitVote(ctx, "bob", roomID, "alice"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "bob", roomID, "carol"))

	snap, _, err := rig.store.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "carol", snap.Undercover.Votes["bob"])
	assert.Len(t, snap.Undercover.Votes, 1)
}

func TestUndercover_LastVoteTriggersTallyAndCivilianWin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())
	roomID := createCoverRoom(t, rig, "alice", "bob", "carol")
	require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

	require.NoError(t, rig.coord.SubmitVote(ctx, "bob", roomID, "alice"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "carol", roomID, "alice"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "alice", roomID, "bob"))

	snap, _, err := rig.store.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, snap.Status)
	assert.Equal(t, ResultCivilianWin, snap.Undercover.Result)
	assert.Equal(t, []string{"alice"}, snap.Undercover.EliminatedIDs)

	results := rig.cast.messagesOfType(MsgVoteResult)
	require.Len(t, results, 1)
	vr := results[0].Data.(VoteResult)
	assert.Equal(t, "alice", vr.EliminatedID)
	assert.False(t, vr.Tie)
	assert.Equal(t, 2, vr.Counts["alice"])

	require.Len(t, rig.cast.messagesOfType(MsgGameOver), 1)

	// Terminal: nobody votes after the game ended.
	assert.ErrorIs(t, rig.coord.SubmitVote(ctx, "bob", roomID, "carol"), ErrBadPhase)
}

func TestUndercover_TieEliminatesNobody(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())
	roomID := createCoverRoom(t, rig, "alice", "bob", "carol", "dave")
	require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

	require.NoError(t, rig.coord.SubmitVote(ctx, "alice", roomID, "bob"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "bob", roomID, "alice"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "carol", roomID, "alice"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "dave", roomID, "bob"))

	snap, _, err := rig.store.Get(ctx, roomID)
	require.NoError(t, err)
	u := snap.Undercover
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.Empty(t, u.EliminatedIDs)
	assert.Empty(t, u.Votes, "votes reset for the next round")
	assert.Equal(t, 2, u.VoteRound)

	results := rig.cast.messagesOfType(MsgVoteResult)
	require.Len(t, results, 1)
	vr := results[0].Data.(VoteResult)
	assert.True(t, vr.Tie)
	assert.Empty(t, vr.EliminatedID)
}

func TestUndercover_VoteTimeoutWithNoVotesAdvancesRound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())
	roomID := createCoverRoom(t, rig, "alice", "bob", "carol")
	require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

	rig.coord.HandleTimeout(roomID, rig.sched.last().token)

	snap, _, err := rig.store.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.Empty(t, snap.Undercover.EliminatedIDs)
	assert.Equal(t, 2, snap.Undercover.VoteRound)
	assert.Equal(t, snap.PhaseToken, rig.sched.last().token, "a fresh deadline covers the new round")
}

func TestUndercover_ParityEndsInUndercoverWin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())
	roomID := createCoverRoom(t, rig, "alice", "bob", "carol", "dave")
	require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

	// Round 1: bob goes out. One undercover against two civilians, game on.
	require.NoError(t, rig.coord.SubmitVote(ctx, "alice", roomID, "bob"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "bob", roomID, "alice"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "carol", roomID, "bob"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "dave", roomID, "bob"))

	snap, _, err := rig.store.Get(ctx, roomID)
	require.NoError(t, err)
	require.Equal(t, StatusPlaying, snap.Status)
	require.Equal(t, []string{"bob"}, snap.Undercover.EliminatedIDs)

	// Eliminated players are out of the vote entirely.
	assert.ErrorIs(t, rig.coord.SubmitVote(ctx, "bob", roomID, "alice"), ErrBadPhase)
	assert.ErrorIs(t, rig.coord.SubmitVote(ctx, "carol", roomID, "bob"), ErrValidation)

	// Round 2: carol goes out, leaving one against one.
	require.NoError(t, rig.coord.SubmitVote(ctx, "alice", roomID, "carol"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "carol", roomID, "alice"))
	require.NoError(t, rig.coord.SubmitVote(ctx, "dave", roomID, "carol"))

	snap, _, err = rig.store.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, snap.Status)
	assert.Equal(t, ResultUndercoverWin, snap.Undercover.Result)
}

func TestUndercover_Guessing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("civilians cannot guess", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(testSettings(), defaultDict())
		roomID := createCoverRoom(t, rig, "alice", "bob", "carol")
		require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

		assert.ErrorIs(t, rig.coord.SubmitUndercoverGuess(ctx, "bob", roomID, "apple"), ErrValidation)
	})

	t.Run("misses burn attempts up to the cap", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(testSettings(), defaultDict())
		roomID := createCoverRoom(t, rig, "alice", "bob", "carol")
		require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

		for i := 0; i < testSettings().MaxUndercoverGuesses; i++ {
			require.NoError(t, rig.coord.SubmitUndercoverGuess(ctx, "alice", roomID, "banana"))
		}
		assert.ErrorIs(t, rig.coord.SubmitUndercoverGuess(ctx, "alice", roomID, "apple"), ErrBadPhase)

		msgs := rig.cast.sendsTo("alice")
		last := msgs[len(msgs)-1]
		require.Equal(t, MsgGuessResult, last.Type)
		assert.Equal(t, 0, last.Data.(GuessResult).AttemptsLeft)

		snap, _, err := rig.store.Get(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, StatusPlaying, snap.Status, "misses never end the game")
	})

	t.Run("naming the civilian word wins outright", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(testSettings(), defaultDict())
		roomID := createCoverRoom(t, rig, "alice", "bob", "carol")
		require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

		require.NoError(t, rig.coord.SubmitUndercoverGuess(ctx, "alice", roomID, " APPLE "))

		snap, _, err := rig.store.Get(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, StatusEnded, snap.Status)
		assert.Equal(t, ResultUndercoverGuessed, snap.Undercover.Result)
	})
}

func TestUndercover_LeavingUndercoverHandsCiviliansTheWin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())
	roomID := createCoverRoom(t, rig, "alice", "bob", "carol")
	require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

	require.NoError(t, rig.coord.LeaveRoom(ctx, "alice", roomID))

	snap, _, err := rig.store.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, snap.Status)
	assert.Equal(t, ResultCivilianWin, snap.Undercover.Result)

	// Leaving also frees the user for a new room.
	left, err := rig.store.RoomOf(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestUndercover_EndedGraceDestroysRoom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rig := newTestRig(testSettings(), defaultDict())
	roomID := createCoverRoom(t, rig, "alice", "bob", "carol")
	require.NoError(t, rig.coord.StartRoom(ctx, "alice", roomID))

	require.NoError(t, rig.coord.SubmitUndercoverGuess(ctx, "alice", roomID, "apple"))
	rig.coord.HandleTimeout(roomID, rig.sched.last().token)

	_, _, err := rig.store.Get(ctx, roomID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	for _, uid := range []string{"alice", "bob", "carol"} {
		room, err := rig.store.RoomOf(ctx, uid)
		require.NoError(t, err)
		assert.Empty(t, room)
	}
}
