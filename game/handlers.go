package game

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"skillduels/domain"
	"skillduels/match"
	"skillduels/protocol"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultPongWait    = time.Minute
	defaultJoinTimeout = time.Second * 5
)

type GameHandler struct {
	lobby       RoomRegistry
	userGetter  UserGetter
	upgrader    websocket.Upgrader
	pongWait    time.Duration
	joinTimeout time.Duration
}

func NewGameHandler(lobby RoomRegistry, userGetter UserGetter) *GameHandler {
	return &GameHandler{
		lobby:      lobby,
		userGetter: userGetter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origins are checked by the server middleware before we get here
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pongWait:    defaultPongWait,
		joinTimeout: defaultJoinTimeout,
	}
}

// WebsocketHandler upgrades an authenticated request and runs the player's
// session until the socket closes. The first frame must be join-room.
func (h *GameHandler) WebsocketHandler(ctx *gin.Context) {
	id := ctx.GetString("id")
	if id == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	user, err := h.userGetter.GetUserById(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user-not-found"})
			return
		}
		slog.Error("failed to get user", "id", id, "error", err)
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed-to-get-user"})
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "ip", ctx.ClientIP(), "error", err)
		return
	}

	h.serve(NewWebsocketConnection(conn, h.pongWait), user)
}

func (h *GameHandler) serve(socket WebsocketConnection, user domain.User) {
	data, err := socket.Read()
	if err != nil {
		socket.Close("")
		return
	}

	packet, err := protocol.DecodeClientPacket(data)
	join, ok := packet.Payload.(protocol.JoinRoom)
	if err != nil || !ok {
		socket.Close(CloseExpectedJoin)
		return
	}

	code, err := NormalizeCode(join.RoomCode)
	if err != nil {
		rejectJoin(socket, ErrInvalidRoomCode.Error())
		return
	}

	p := NewPlayer(uuid.NewString(), user.Id, user.Username)

	joinCtx, cancel := context.WithTimeout(context.Background(), h.joinTimeout)
	err = h.lobby.Join(joinCtx, code, p, join)
	cancel()
	if err != nil {
		slog.Info("join rejected", "room", code, "user", user.Id, "error", err)
		rejectJoin(socket, joinErrorReason(err))
		return
	}

	go p.WritePump(socket)
	p.ReadPump(socket)
}

func rejectJoin(socket WebsocketConnection, reason string) {
	if data, err := protocol.MakePacketJoinError(reason).Marshal(); err == nil {
		socket.Write(data)
	}
	socket.Close(reason)
}

func joinErrorReason(err error) string {
	switch {
	case errors.Is(err, match.ErrRoomFull),
		errors.Is(err, match.ErrRoomClosed),
		errors.Is(err, match.ErrAlreadyJoined),
		errors.Is(err, ErrLobbyClosed):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "server-timeout"
	default:
		return "unknown-error"
	}
}

// NewCodeHandler hands out a room code no live room is using.
func (h *GameHandler) NewCodeHandler(ctx *gin.Context) {
	code, err := h.lobby.FreshCode(ctx.Request.Context())
	if err != nil {
		slog.Error("failed to generate room code", "error", err)
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"roomCode": code})
}

func (h *GameHandler) RoomStatusHandler(ctx *gin.Context) {
	code, err := NormalizeCode(ctx.Param("code"))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.lobby.RoomStatus(ctx.Request.Context(), code)
	if err != nil {
		slog.Error("failed to get room status", "room", code, "error", err)
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "unknown-error"})
		return
	}
	ctx.JSON(http.StatusOK, status)
}
