package game

import "context"

// RoomStore is the keyed room state store. Every snapshot carries a
// monotonically incrementing version; mutations go through CASUpdate and
// callers retry on ErrVersionConflict. The per-user reverse index, the
// drawing buffer, and the used-words day ledger share the room namespace so
// one store implementation owns all of a room's keys.
type RoomStore interface {
	// Get returns the snapshot and its current version.
	Get(ctx context.Context, roomID string) (RoomSnapshot, uint64, error)

	// Create stores a new room at version 1 and indexes its participants.
	// Fails with ErrRoomExists or, when a participant is already indexed to
	// another room, ErrAlreadyInRoom.
	Create(ctx context.Context, snap RoomSnapshot) error

	// CASUpdate commits snap iff the stored version still equals expected.
	// The reverse index follows the participant diff in the same commit.
	CASUpdate(ctx context.Context, expected uint64, snap RoomSnapshot) error

	// Delete removes the room and every key in its namespace.
	Delete(ctx context.Context, roomID string) error

	// RoomOf returns the room a user is currently in, or "".
	RoomOf(ctx context.Context, userID string) (string, error)

	AppendDrawing(ctx context.Context, roomID string, frame []byte) error
	Drawings(ctx context.Context, roomID string) ([][]byte, error)
	// ClearDrawings empties the buffer; a new round starts on a fresh canvas.
	ClearDrawings(ctx context.Context, roomID string) error

	// MarkUsed appends entries to a named exclusion ledger ("words:<day>" or
	// "pairs:<day>"); ledgers are append-only within a day and expire after.
	MarkUsed(ctx context.Context, ledger string, entries ...string) error
	UsedToday(ctx context.Context, ledger string) ([]string, error)
}
