package game

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lhccong/fish-island-backend-sub001/domain"
)

// TokenVerifier resolves a session token to a user id. The platform's auth
// service issues the tokens; crypto.JWTManager satisfies this.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserGetter is the identity lookup collaborator.
type UserGetter interface {
	GetUserById(ctx context.Context, id string) (domain.User, error)
}

type GameHandler struct {
	coord    *Coordinator
	hub      *Hub
	verifier TokenVerifier
	users    UserGetter
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewGameHandler(coord *Coordinator, hub *Hub, verifier TokenVerifier, users UserGetter, log zerolog.Logger) *GameHandler {
	return &GameHandler{
		coord:    coord,
		hub:      hub,
		verifier: verifier,
		users:    users,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced by the server's allow-list middleware.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// RequireAuth resolves the session token from the Authorization header or
// the "session" cookie and stores the user id on the context.
func (h *GameHandler) RequireAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			token, _ = ctx.Cookie("session")
		}
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		id, err := h.verifier.Verify(token)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		ctx.Set("id", id)
		ctx.Next()
	}
}

// ConnectHandler upgrades to a websocket and runs the session pumps. All
// game events flow over this connection as envelopes.
func (h *GameHandler) ConnectHandler(ctx *gin.Context) {
	id := ctx.GetString("id")
	if id == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	// A valid token for a deleted account still must not get a session.
	if _, err := h.users.GetUserById(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Str("ip", ctx.ClientIP()).Msg("ws upgrade failed")
		return
	}

	session := NewSession(id, conn, h.log)
	h.hub.Register(session)
	go session.WritePump()
	go session.ReadPump(h.hub, h.coord)
}

// RoomHandler returns the public projection of a room.
func (h *GameHandler) RoomHandler(ctx *gin.Context) {
	view, err := h.coord.RoomView(ctx.Request.Context(), ctx.Param("roomid"))
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrRoomNotFound.Error()})
			return
		}
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// MyRoomHandler returns the caller's current room, if any.
func (h *GameHandler) MyRoomHandler(ctx *gin.Context) {
	id := ctx.GetString("id")
	if id == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	roomID, err := h.coord.RoomOf(ctx.Request.Context(), id)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"roomId": roomID})
}
