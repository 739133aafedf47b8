package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ledgerTTL keeps day ledgers around long enough to straddle the midnight
// rollover but no longer.
const ledgerTTL = 48 * time.Hour

// RedisStore is the RoomStore used when the engine runs on more than one
// node. Snapshots are stored as JSON values paired with their version; CAS
// rides on WATCH/MULTI so a concurrent commit surfaces as ErrVersionConflict
// instead of a lost update.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "game:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

type redisRoom struct {
	Version  uint64       `json:"version"`
	Snapshot RoomSnapshot `json:"snapshot"`
}

func (r *RedisStore) roomKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s", r.keyPrefix, roomID)
}

func (r *RedisStore) userRoomKey(userID string) string {
	return fmt.Sprintf("%suser:%s:room", r.keyPrefix, userID)
}

func (r *RedisStore) drawingsKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:drawings", r.keyPrefix, roomID)
}

func (r *RedisStore) ledgerKey(ledger string) string {
	return fmt.Sprintf("%sused:%s", r.keyPrefix, ledger)
}

func (r *RedisStore) Get(ctx context.Context, roomID string) (RoomSnapshot, uint64, error) {
	raw, err := r.client.Get(ctx, r.roomKey(roomID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RoomSnapshot{}, 0, ErrRoomNotFound
		}
		return RoomSnapshot{}, 0, fmt.Errorf("redis: get room %s: %w", roomID, err)
	}

	var stored redisRoom
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return RoomSnapshot{}, 0, fmt.Errorf("redis: unmarshal room %s: %w", roomID, err)
	}
	return stored.Snapshot, stored.Version, nil
}

func (r *RedisStore) Create(ctx context.Context, snap RoomSnapshot) error {
	key := r.roomKey(snap.ID)

	txn := func(tx *redis.Tx) error {
		if _, err := tx.Get(ctx, key).Result(); err == nil {
			return ErrRoomExists
		} else if !errors.Is(err, redis.Nil) {
			return err
		}

		for _, uid := range snap.Participants {
			other, err := tx.Get(ctx, r.userRoomKey(uid)).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if err == nil && other != snap.ID {
				return fmt.Errorf("%w: user %s is in room %s", ErrAlreadyInRoom, uid, other)
			}
		}

		payload, err := json.Marshal(redisRoom{Version: 1, Snapshot: snap})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			for _, uid := range snap.Participants {
				pipe.Set(ctx, r.userRoomKey(uid), snap.ID, 0)
			}
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

func (r *RedisStore) CASUpdate(ctx context.Context, expected uint64, snap RoomSnapshot) error {
	key := r.roomKey(snap.ID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrRoomNotFound
			}
			return err
		}
		var stored redisRoom
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return fmt.Errorf("redis: unmarshal room %s: %w", snap.ID, err)
		}
		if stored.Version != expected {
			return ErrVersionConflict
		}

		payload, err := json.Marshal(redisRoom{Version: expected + 1, Snapshot: snap})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			for _, uid := range stored.Snapshot.Participants {
				if !snap.HasParticipant(uid) {
					pipe.Del(ctx, r.userRoomKey(uid))
				}
			}
			for _, uid := range snap.Participants {
				pipe.Set(ctx, r.userRoomKey(uid), snap.ID, 0)
			}
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

func (r *RedisStore) Delete(ctx context.Context, roomID string) error {
	key := r.roomKey(roomID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrRoomNotFound
			}
			return err
		}
		var stored redisRoom
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return fmt.Errorf("redis: unmarshal room %s: %w", roomID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key, r.drawingsKey(roomID))
			for _, uid := range stored.Snapshot.Participants {
				pipe.Del(ctx, r.userRoomKey(uid))
			}
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

func (r *RedisStore) RoomOf(ctx context.Context, userID string) (string, error) {
	roomID, err := r.client.Get(ctx, r.userRoomKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis: room of %s: %w", userID, err)
	}
	return roomID, nil
}

func (r *RedisStore) AppendDrawing(ctx context.Context, roomID string, frame []byte) error {
	err := r.client.RPush(ctx, r.drawingsKey(roomID), frame).Err()
	if err != nil {
		return fmt.Errorf("redis: append drawing for room %s: %w", roomID, err)
	}
	return nil
}

func (r *RedisStore) Drawings(ctx context.Context, roomID string) ([][]byte, error) {
	frames, err := r.client.LRange(ctx, r.drawingsKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: drawings for room %s: %w", roomID, err)
	}
	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[i] = []byte(f)
	}
	return out, nil
}

func (r *RedisStore) ClearDrawings(ctx context.Context, roomID string) error {
	if err := r.client.Del(ctx, r.drawingsKey(roomID)).Err(); err != nil {
		return fmt.Errorf("redis: clear drawings for room %s: %w", roomID, err)
	}
	return nil
}

func (r *RedisStore) MarkUsed(ctx context.Context, ledger string, entries ...string) error {
	if len(entries) == 0 {
		return nil
	}
	key := r.ledgerKey(ledger)
	members := make([]interface{}, len(entries))
	for i, e := range entries {
		members[i] = e
	}
	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, ledgerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mark used on %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) UsedToday(ctx context.Context, ledger string) ([]string, error) {
	out, err := r.client.SMembers(ctx, r.ledgerKey(ledger)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: used ledger %s: %w", ledger, err)
	}
	return out, nil
}
