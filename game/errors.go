package game

import "errors"

var (
	ErrInvalidRoomCode = errors.New("invalid-room-code")
	ErrRoomNotFound    = errors.New("room-not-found")
	ErrExpectedJoin    = errors.New("expected-join")
	ErrLobbyClosed     = errors.New("lobby-closed")
)

var ErrSendBufferFull = errors.New("send-buffer-full")

// errRoomReleased is returned to a joiner that raced with the room's teardown.
// The lobby retries with a fresh room.
var errRoomReleased = errors.New("room-released")

// Close reasons sent in the websocket close frame.
const (
	CloseExpectedJoin   = "expected-join"
	CloseOpponentLeft   = "opponent-left"
	CloseRoomExpired    = "room-expired"
	CloseServerShutdown = "server-shutdown"
	CloseSendBufferFull = "send-buffer-full"
)
