package game

import (
	"context"
	"fmt"
	"sync"
)

type storedRoom struct {
	version uint64
	snap    RoomSnapshot
}

// MemStore is the in-process RoomStore. Single-node deployments run on it;
// it is also what every engine test drives. Semantics mirror RedisStore.
type MemStore struct {
	mu       sync.RWMutex
	rooms    map[string]storedRoom
	userRoom map[string]string
	drawings map[string][][]byte
	used     map[string]map[string]struct{}
}

func NewMemStore() *MemStore {
	return &MemStore{
		rooms:    make(map[string]storedRoom),
		userRoom: make(map[string]string),
		drawings: make(map[string][][]byte),
		used:     make(map[string]map[string]struct{}),
	}
}

func (m *MemStore) Get(ctx context.Context, roomID string) (RoomSnapshot, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.rooms[roomID]
	if !ok {
		return RoomSnapshot{}, 0, ErrRoomNotFound
	}
	return cloneSnapshot(stored.snap), stored.version, nil
}

func (m *MemStore) Create(ctx context.Context, snap RoomSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[snap.ID]; ok {
		return ErrRoomExists
	}
	for _, uid := range snap.Participants {
		if other, ok := m.userRoom[uid]; ok && other != snap.ID {
			return fmt.Errorf("%w: user %s is in room %s", ErrAlreadyInRoom, uid, other)
		}
	}

	m.rooms[snap.ID] = storedRoom{version: 1, snap: cloneSnapshot(snap)}
	for _, uid := range snap.Participants {
		m.userRoom[uid] = snap.ID
	}
	return nil
}

func (m *MemStore) CASUpdate(ctx context.Context, expected uint64, snap RoomSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.rooms[snap.ID]
	if !ok {
		return ErrRoomNotFound
	}
	if stored.version != expected {
		return ErrVersionConflict
	}
	for _, uid := range snap.Participants {
		if other, ok := m.userRoom[uid]; ok && other != snap.ID {
			return fmt.Errorf("%w: user %s is in room %s", ErrAlreadyInRoom, uid, other)
		}
	}

	// Reverse index follows the participant diff in the same commit.
	for _, uid := range stored.snap.Participants {
		if !snap.HasParticipant(uid) {
			delete(m.userRoom, uid)
		}
	}
	for _, uid := range snap.Participants {
		m.userRoom[uid] = snap.ID
	}

	m.rooms[snap.ID] = storedRoom{version: expected + 1, snap: cloneSnapshot(snap)}
	return nil
}

func (m *MemStore) Delete(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	for _, uid := range stored.snap.Participants {
		if m.userRoom[uid] == roomID {
			delete(m.userRoom, uid)
		}
	}
	delete(m.rooms, roomID)
	delete(m.drawings, roomID)
	return nil
}

func (m *MemStore) RoomOf(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userRoom[userID], nil
}

func (m *MemStore) AppendDrawing(ctx context.Context, roomID string, frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		return ErrRoomNotFound
	}
	m.drawings[roomID] = append(m.drawings[roomID], append([]byte(nil), frame...))
	return nil
}

func (m *MemStore) Drawings(ctx context.Context, roomID string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	frames := m.drawings[roomID]
	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[i] = append([]byte(nil), f...)
	}
	return out, nil
}

func (m *MemStore) ClearDrawings(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drawings, roomID)
	return nil
}

func (m *MemStore) MarkUsed(ctx context.Context, ledger string, entries ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.used[ledger]
	if !ok {
		set = make(map[string]struct{})
		m.used[ledger] = set
	}
	for _, e := range entries {
		set[e] = struct{}{}
	}
	return nil
}

func (m *MemStore) UsedToday(ctx context.Context, ledger string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.used[ledger]
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out, nil
}

// cloneSnapshot keeps callers from aliasing stored state across the CAS
// boundary.
func cloneSnapshot(s RoomSnapshot) RoomSnapshot {
	out := s
	out.Participants = append([]string(nil), s.Participants...)
	if s.Draw != nil {
		d := *s.Draw
		d.Rotation = append([]string(nil), s.Draw.Rotation...)
		d.CorrectGuessers = append([]string(nil), s.Draw.CorrectGuessers...)
		d.Scores = copyScores(s.Draw.Scores)
		out.Draw = &d
	}
	if s.Undercover != nil {
		u := *s.Undercover
		u.UndercoverIDs = append([]string(nil), s.Undercover.UndercoverIDs...)
		u.CivilianIDs = append([]string(nil), s.Undercover.CivilianIDs...)
		u.EliminatedIDs = append([]string(nil), s.Undercover.EliminatedIDs...)
		u.Ordered = append([]string(nil), s.Undercover.Ordered...)
		u.Votes = make(map[string]string, len(s.Undercover.Votes))
		for k, v := range s.Undercover.Votes {
			u.Votes[k] = v
		}
		u.GuessAttempts = make(map[string]int, len(s.Undercover.GuessAttempts))
		for k, v := range s.Undercover.GuessAttempts {
			u.GuessAttempts[k] = v
		}
		out.Undercover = &u
	}
	return out
}
