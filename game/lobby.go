package game

import (
	"context"
	"errors"
	"log/slog"
	"skillduels/match"
	"skillduels/protocol"
	"sync"
	"time"
)

// joinAttempts bounds how often a join is retried after racing a room teardown.
const joinAttempts = 3

type LobbyConfig struct {
	Match        match.Config
	RoomTick     time.Duration
	PingInterval time.Duration
}

type roomLookup struct {
	code   string
	create bool
	resp   chan Room
}

type roomRemoval struct {
	code string
	room Room
}

type lobby struct {
	cfg           LobbyConfig
	rooms         map[string]Room
	newRoom       func(code string) Room
	codeGen       CodeGenerator
	tickerCreator PeriodicTickerChannelCreator
	wg            *sync.WaitGroup

	lookups        chan roomLookup
	removeRoomChan chan roomRemoval
	codeReqs       chan chan string
	done           chan struct{}
}

func NewLobby(cfg LobbyConfig, codeGen CodeGenerator, tickerCreator PeriodicTickerChannelCreator, seeds match.SeedSource, notifier OutcomeNotifier, wg *sync.WaitGroup) *lobby {
	if wg == nil {
		wg = &sync.WaitGroup{}
	}
	return &lobby{
		cfg:   cfg,
		rooms: map[string]Room{},
		newRoom: func(code string) Room {
			return NewRoom(code, cfg.Match, seeds, notifier, nil)
		},
		codeGen:        codeGen,
		tickerCreator:  tickerCreator,
		wg:             wg,
		lookups:        make(chan roomLookup, 64),
		removeRoomChan: make(chan roomRemoval, 32),
		codeReqs:       make(chan chan string, 16),
		done:           make(chan struct{}),
	}
}

// GetOrCreate returns the live room for code, creating and starting one if
// none exists. Concurrent callers with the same code get the same room.
func (l *lobby) GetOrCreate(ctx context.Context, code string) (Room, error) {
	return l.lookup(ctx, code, true)
}

func (l *lobby) lookup(ctx context.Context, code string, create bool) (Room, error) {
	req := roomLookup{code: code, create: create, resp: make(chan Room, 1)}
	select {
	case l.lookups <- req:
	case <-l.done:
		return nil, ErrLobbyClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-req.resp:
		if r == nil {
			return nil, ErrRoomNotFound
		}
		return r, nil
	case <-l.done:
		return nil, ErrLobbyClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Join places p in the room named code. A join that lands on a room being torn
// down is retried against a fresh room.
func (l *lobby) Join(ctx context.Context, code string, p Player, join protocol.JoinRoom) error {
	var err error
	for range joinAttempts {
		var r Room
		r, err = l.GetOrCreate(ctx, code)
		if err != nil {
			return err
		}
		err = r.RequestJoin(ctx, newRoomJoinRequest(p, join))
		if !errors.Is(err, errRoomReleased) {
			return err
		}
		slog.Debug("join raced room teardown, retrying", "room", code, "conn", p.Id())
	}
	return err
}

// RoomStatus reports on a room without creating it.
func (l *lobby) RoomStatus(ctx context.Context, code string) (RoomStatus, error) {
	r, err := l.lookup(ctx, code, false)
	if errors.Is(err, ErrRoomNotFound) {
		return RoomStatus{Exists: false, Phase: match.PhaseWaiting.String()}, nil
	}
	if err != nil {
		return RoomStatus{}, err
	}

	status, err := r.Status(ctx)
	if errors.Is(err, errRoomReleased) {
		return RoomStatus{Exists: false, Phase: match.PhaseWaiting.String()}, nil
	}
	return status, err
}

// FreshCode returns a code no live room is using.
func (l *lobby) FreshCode(ctx context.Context) (string, error) {
	resp := make(chan string, 1)
	select {
	case l.codeReqs <- resp:
	case <-l.done:
		return "", ErrLobbyClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case code := <-resp:
		return code, nil
	case <-l.done:
		return "", ErrLobbyClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RemoveRoom is called by a room when it releases itself. The entry is only
// dropped if it still points at r, so a newer room under the same code survives.
func (l *lobby) RemoveRoom(code string, r Room) {
	select {
	case l.removeRoomChan <- roomRemoval{code: code, room: r}:
	case <-l.done:
	}
}

func (l *lobby) LobbyActor(ctx context.Context, started chan struct{}) {
	ticker := l.tickerCreator.Create(l.cfg.RoomTick)
	pingTicker := l.tickerCreator.Create(l.cfg.PingInterval)

	close(started)

	for {
		select {
		case now := <-ticker:
			for _, r := range l.rooms {
				r.Tick(now)
			}
		case <-pingTicker:
			for _, r := range l.rooms {
				r.PingPlayers()
			}

		case req := <-l.lookups:
			l.handleLookup(req)

		case rem := <-l.removeRoomChan:
			l.handleRemoveRoom(rem)

		case resp := <-l.codeReqs:
			resp <- l.freshCode()

		case <-ctx.Done():
			l.shutdown()
			return
		}
	}
}

func (l *lobby) handleRemoveRoom(rem roomRemoval) {
	if cur, ok := l.rooms[rem.code]; ok && cur == rem.room {
		delete(l.rooms, rem.code)
		slog.Debug("room removed from lobby", "room", rem.code, "rooms", len(l.rooms))
	}
}

// A released room queues its removal before failing pending joins, so draining
// here keeps a retrying joiner from being handed the same dead room.
func (l *lobby) drainRemovals() {
	for {
		select {
		case rem := <-l.removeRoomChan:
			l.handleRemoveRoom(rem)
		default:
			return
		}
	}
}

func (l *lobby) handleLookup(req roomLookup) {
	l.drainRemovals()
	if r, ok := l.rooms[req.code]; ok {
		req.resp <- r
		return
	}
	if !req.create {
		req.resp <- nil
		return
	}

	r := l.newRoom(req.code)
	r.SetParentLobby(l)
	l.rooms[req.code] = r

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		r.GameLoop()
	}()

	slog.Info("room created", "room", req.code, "rooms", len(l.rooms))
	req.resp <- r
}

func (l *lobby) freshCode() string {
	for {
		code := l.codeGen.Generate()
		if _, taken := l.rooms[code]; !taken {
			return code
		}
	}
}

func (l *lobby) shutdown() {
	close(l.done)
	slog.Info("lobby shutting down", "rooms", len(l.rooms))
	for code, r := range l.rooms {
		r.Shutdown()
		delete(l.rooms, code)
	}
}
