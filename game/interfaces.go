package game

import (
	"context"
	"skillduels/domain"
	"skillduels/match"
	"skillduels/protocol"
	"time"
)

type WebsocketConnection interface {
	Close(reason string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

type Player interface {
	Id() string
	UserId() string
	Username() string
	Send(data []byte) error
	Ping() error
	SetRoom(r Room)
	CancelAndRelease(reason string)
}

type Room interface {
	Code() string
	Send(ctx context.Context, e ClientPacketEnvelope)
	RemoveMe(ctx context.Context, p Player)
	RequestJoin(ctx context.Context, jreq roomJoinRequest) error
	Status(ctx context.Context) (RoomStatus, error)
	Tick(now time.Time)
	PingPlayers()
	Shutdown()
	GameLoop()
	SetParentLobby(l Lobby)
}

type Lobby interface {
	RemoveRoom(code string, r Room)
}

// RoomRegistry is what the HTTP layer needs from the lobby.
type RoomRegistry interface {
	Join(ctx context.Context, code string, p Player, join protocol.JoinRoom) error
	FreshCode(ctx context.Context) (string, error)
	RoomStatus(ctx context.Context, code string) (RoomStatus, error)
}

type UserGetter interface {
	GetUserById(ctx context.Context, id string) (domain.User, error)
}

type OutcomeNotifier interface {
	Notify(outcome match.Outcome)
}

type CodeGenerator interface {
	Generate() string
}

type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) <-chan time.Time
}
