package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	sessionOutboxSize = 256
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = 30 * time.Second
)

// Hub tracks connected sessions by user id and fans outbound messages out to
// them. Sends are non-blocking: a session that cannot keep up loses
// messages rather than stalling a room.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{sessions: make(map[string]*Session), log: log}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	if prev, ok := h.sessions[s.userID]; ok {
		prev.close()
	}
	h.sessions[s.userID] = s
	h.mu.Unlock()
}

// Unregister removes the session and reports whether it was still the
// registered one. A session superseded by a reconnect returns false; its
// teardown must not count as the user going away.
func (h *Hub) Unregister(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[s.userID] == s {
		delete(h.sessions, s.userID)
		return true
	}
	return false
}

func (h *Hub) Broadcast(roomID string, userIDs []string, msg Outbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("marshal outbound")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, uid := range userIDs {
		if s, ok := h.sessions[uid]; ok {
			s.enqueue(payload)
		}
	}
}

func (h *Hub) Send(userID string, msg Outbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("marshal outbound")
		return
	}

	h.mu.RLock()
	s, ok := h.sessions[userID]
	h.mu.RUnlock()
	if ok {
		s.enqueue(payload)
	}
}

// Session is one user's websocket connection, with the usual split read and
// write pumps.
type Session struct {
	userID  string
	conn    *websocket.Conn
	outbox  chan []byte
	limiter *rate.Limiter
	log     zerolog.Logger

	closeOnce sync.Once
}

func NewSession(userID string, conn *websocket.Conn, log zerolog.Logger) *Session {
	return &Session{
		userID:  userID,
		conn:    conn,
		outbox:  make(chan []byte, sessionOutboxSize),
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		log:     log.With().Str("user_id", userID).Logger(),
	}
}

func (s *Session) enqueue(payload []byte) {
	select {
	case s.outbox <- payload:
	default:
		s.log.Warn().Msg("session outbox full, dropping message")
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.outbox)
	})
}

// ReadPump pulls inbound envelopes off the socket and dispatches them. The
// envelope's userId is always overwritten with the authenticated session
// owner, and the synthetic timeout type is rejected outright.
func (s *Session) ReadPump(hub *Hub, coord *Coordinator) {
	defer func() {
		wasCurrent := hub.Unregister(s)
		s.close()
		s.conn.Close()
		if wasCurrent {
			coord.HandleDisconnect(s.userID)
		}
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if !s.limiter.Allow() {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.sendError(hub, "invalid-envelope")
			continue
		}
		env.UserID = s.userID
		if env.Type == EventTimeout {
			s.sendError(hub, "invalid-event-type")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = coord.Dispatch(ctx, env)
		cancel()
		if err != nil {
			s.log.Debug().Err(err).Str("event", env.Type).Msg("event rejected")
			s.sendError(hub, err.Error())
		}
	}
}

func (s *Session) sendError(hub *Hub, message string) {
	hub.Send(s.userID, Outbound{Type: MsgError, Data: map[string]string{"message": message}})
}

// WritePump drains the outbox and keeps the connection alive with pings.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.outbox:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
