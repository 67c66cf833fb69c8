package match

import "errors"

// Join errors, the only ones surfaced to clients.
var (
	ErrRoomFull      = errors.New("room-full")
	ErrRoomClosed    = errors.New("room-closed")
	ErrAlreadyJoined = errors.New("already-joined")
)

// Protocol errors. Events rejected with these leave the room untouched.
var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidPhaseTransition = errors.New("invalid-phase-transition")
	ErrDuplicateRoundResult   = errors.New("duplicate-round-result")
	ErrNotHost                = errors.New("not-host")
	ErrUnknownGameMode        = errors.New("unknown-game-mode")
	ErrNotEnoughReady         = errors.New("not-enough-ready")
	ErrUnknownWinner          = errors.New("unknown-winner")
)
