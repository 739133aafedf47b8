package game

import "errors"

var (
	ErrValidation       = errors.New("invalid-request")
	ErrRoomNotFound     = errors.New("room-not-found")
	ErrRoomFull         = errors.New("room-full")
	ErrAlreadyInRoom    = errors.New("already-in-room")
	ErrNotInRoom        = errors.New("not-in-room")
	ErrBadPhase         = errors.New("bad-phase")
	ErrVersionConflict  = errors.New("version-conflict")
	ErrTooManyConflicts = errors.New("too-many-conflicts")
	ErrRoomExists       = errors.New("room-exists")
)
