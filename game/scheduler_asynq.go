package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TypeRoomDeadline is the asynq task type for a room deadline firing.
const TypeRoomDeadline = "game:room_deadline"

const deadlineQueue = "game"

type roomDeadlinePayload struct {
	RoomID string `json:"roomId"`
	Token  int64  `json:"token"`
}

// AsynqScheduler is the Redis-backed RoundScheduler for multi-node
// deployments: any node's worker may process the deadline, and the phase
// token still makes stale firings harmless. One task per room, keyed by
// room id.
type AsynqScheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	log       zerolog.Logger
}

func NewAsynqScheduler(redisOpt asynq.RedisClientOpt, log zerolog.Logger) *AsynqScheduler {
	return &AsynqScheduler{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		log:       log,
	}
}

func deadlineTaskID(roomID string) string {
	return "deadline:" + roomID
}

func (s *AsynqScheduler) Schedule(roomID string, at time.Time, token int64) {
	payload, err := json.Marshal(roomDeadlinePayload{RoomID: roomID, Token: token})
	if err != nil {
		s.log.Error().Err(err).Str("room_id", roomID).Msg("marshal deadline payload")
		return
	}

	// Replace any previous deadline for this room.
	s.Cancel(roomID)

	_, err = s.client.Enqueue(
		asynq.NewTask(TypeRoomDeadline, payload),
		asynq.ProcessAt(at),
		asynq.Queue(deadlineQueue),
		asynq.TaskID(deadlineTaskID(roomID)),
		asynq.MaxRetry(0),
	)
	if err != nil {
		s.log.Error().Err(err).Str("room_id", roomID).Msg("enqueue deadline task")
	}
}

func (s *AsynqScheduler) Cancel(roomID string) {
	err := s.inspector.DeleteTask(deadlineQueue, deadlineTaskID(roomID))
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		s.log.Warn().Err(err).Str("room_id", roomID).Msg("delete deadline task")
	}
}

func (s *AsynqScheduler) Close() error {
	return s.client.Close()
}

// DeadlineWorker consumes fired deadlines and feeds them into the sink.
type DeadlineWorker struct {
	server *asynq.Server
	sink   TimerSink
	log    zerolog.Logger
}

func NewDeadlineWorker(redisOpt asynq.RedisClientOpt, sink TimerSink, log zerolog.Logger) *DeadlineWorker {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{deadlineQueue: 1},
	})
	return &DeadlineWorker{server: server, sink: sink, log: log}
}

// Run blocks until Shutdown.
func (w *DeadlineWorker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRoomDeadline, w.processDeadline)

	if err := w.server.Run(mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		return fmt.Errorf("deadline worker: %w", err)
	}
	return nil
}

func (w *DeadlineWorker) Shutdown() {
	w.server.Shutdown()
}

func (w *DeadlineWorker) processDeadline(ctx context.Context, t *asynq.Task) error {
	var payload roomDeadlinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.log.Error().Err(err).Msg("unmarshal deadline payload")
		return fmt.Errorf("unmarshal deadline payload: %v: %w", err, asynq.SkipRetry)
	}

	w.sink(payload.RoomID, payload.Token)
	return nil
}
