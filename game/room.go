package game

import (
	"context"
	"errors"
	"log/slog"
	"skillduels/match"
	"skillduels/protocol"
	"time"
)

type roomJoinRequest struct {
	player  Player
	join    protocol.JoinRoom
	errChan chan error
}

func newRoomJoinRequest(p Player, join protocol.JoinRoom) roomJoinRequest {
	return roomJoinRequest{player: p, join: join, errChan: make(chan error, 1)}
}

// RoomStatus is the public summary served to the lobby page.
type RoomStatus struct {
	Exists   bool   `json:"exists"`
	Players  int    `json:"players"`
	Phase    string `json:"phase"`
	GameMode string `json:"gameMode"`
}

type room struct {
	code        string
	state       *match.Room
	players     map[string]Player
	parentLobby Lobby
	notifier    OutcomeNotifier
	now         func() time.Time
	released    bool

	inbox       chan ClientPacketEnvelope
	ticks       chan time.Time
	pingPlayers chan struct{}
	removals    chan Player
	joinReqs    chan roomJoinRequest
	statusReqs  chan chan RoomStatus
	shutdown    chan struct{}
	done        chan struct{}
}

func NewRoom(code string, cfg match.Config, seeds match.SeedSource, notifier OutcomeNotifier, now func() time.Time) *room {
	if now == nil {
		now = time.Now
	}
	return &room{
		code:        code,
		state:       match.NewRoom(code, cfg, seeds, now()),
		players:     make(map[string]Player, match.MaxPlayers),
		notifier:    notifier,
		now:         now,
		inbox:       make(chan ClientPacketEnvelope, 256),
		ticks:       make(chan time.Time, 8),
		pingPlayers: make(chan struct{}, 1),
		removals:    make(chan Player, 8),
		joinReqs:    make(chan roomJoinRequest),
		statusReqs:  make(chan chan RoomStatus),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (r *room) Code() string {
	return r.code
}

func (r *room) SetParentLobby(l Lobby) {
	r.parentLobby = l
}

func (r *room) Send(ctx context.Context, e ClientPacketEnvelope) {
	select {
	case r.inbox <- e:
	case <-ctx.Done():
	case <-r.done:
	}
}

func (r *room) RemoveMe(ctx context.Context, p Player) {
	select {
	case r.removals <- p:
	case <-ctx.Done():
	case <-r.done:
	}
}

// RequestJoin hands the join to the room actor and waits for its verdict.
// It returns errRoomReleased when the room went away in the meantime.
// ctx only bounds the hand-over: once the actor holds the request the verdict
// is always awaited, or an accepted player would be seated without its pumps.
func (r *room) RequestJoin(ctx context.Context, jreq roomJoinRequest) error {
	select {
	case r.joinReqs <- jreq:
	case <-r.done:
		return errRoomReleased
	case <-ctx.Done():
		return ctx.Err()
	}
	// handleJoinRequest answers before the actor takes its next event
	return <-jreq.errChan
}

func (r *room) Status(ctx context.Context) (RoomStatus, error) {
	resp := make(chan RoomStatus, 1)
	select {
	case r.statusReqs <- resp:
	case <-r.done:
		return RoomStatus{}, errRoomReleased
	case <-ctx.Done():
		return RoomStatus{}, ctx.Err()
	}
	select {
	case status := <-resp:
		return status, nil
	case <-ctx.Done():
		return RoomStatus{}, ctx.Err()
	}
}

func (r *room) Tick(now time.Time) {
	select {
	case r.ticks <- now:
	default:
	}
}

func (r *room) PingPlayers() {
	select {
	case r.pingPlayers <- struct{}{}:
	default:
	}
}

// Shutdown releases the room and its players. It returns once the room is gone.
func (r *room) Shutdown() {
	select {
	case r.shutdown <- struct{}{}:
		<-r.done
	case <-r.done:
	}
}

func (r *room) GameLoop() {
	for !r.released {
		select {
		case env := <-r.inbox:
			r.handleEnvelope(env)
		case now := <-r.ticks:
			r.apply(now, match.Tick{}, "tick")
		case <-r.pingPlayers:
			for _, p := range r.players {
				p.Ping()
			}
		case p := <-r.removals:
			r.handleRemovePlayer(p, "")
		case jreq := <-r.joinReqs:
			r.handleJoinRequest(jreq)
		case resp := <-r.statusReqs:
			resp <- r.status()
		case <-r.shutdown:
			// a match cut short by the server is settled as cancelled
			if r.state.Abort(r.now()) {
				r.notifyOutcome()
			}
			r.release(CloseServerShutdown)
		}
	}
}

func (r *room) status() RoomStatus {
	return RoomStatus{
		Exists:   true,
		Players:  r.state.Len(),
		Phase:    r.state.Phase().String(),
		GameMode: r.state.GameMode(),
	}
}

func (r *room) handleJoinRequest(jreq roomJoinRequest) {
	p := jreq.player
	deliveries, err := r.state.Apply(r.now(), match.Join{
		ConnectionID: p.Id(),
		UserID:       p.UserId(),
		Username:     p.Username(),
		WantsHost:    jreq.join.IsHost,
		Wager:        jreq.join.Wager,
	})
	if err != nil {
		jreq.errChan <- err
		return
	}

	r.players[p.Id()] = p
	p.SetRoom(r)
	jreq.errChan <- nil

	slog.Info("player joined room", "room", r.code, "conn", p.Id(), "user", p.UserId(), "players", r.state.Len())
	r.dispatch(deliveries)
	r.afterApply()
}

func (r *room) handleRemovePlayer(p Player, reason string) {
	if _, ok := r.players[p.Id()]; !ok {
		return
	}
	deliveries, err := r.state.Apply(r.now(), match.Leave{ConnectionID: p.Id()})
	delete(r.players, p.Id())
	p.CancelAndRelease(reason)

	slog.Info("player left room", "room", r.code, "conn", p.Id(), "phase", r.state.Phase().String())
	if err == nil {
		r.dispatch(deliveries)
	}
	r.afterApply()
}

func (r *room) handleEnvelope(env ClientPacketEnvelope) {
	from := env.from
	if _, ok := r.players[from.Id()]; !ok || env.packet.RoomCode != r.code {
		slog.Debug("dropped event from non occupant", "room", r.code, "conn", from.Id(), "event", env.packet.Event, "target", env.packet.RoomCode)
		return
	}

	ev, ok := toMatchEvent(from.Id(), env.packet)
	if !ok {
		slog.Debug("dropped event", "room", r.code, "conn", from.Id(), "event", env.packet.Event)
		return
	}
	r.apply(r.now(), ev, env.packet.Event)
}

func toMatchEvent(conn string, packet protocol.ClientPacket) (match.Event, bool) {
	switch pl := packet.Payload.(type) {
	case protocol.PlayerReady:
		return match.Ready{ConnectionID: conn}, true
	case protocol.SelectGameMode:
		return match.SelectMode{ConnectionID: conn, Mode: pl.GameMode}, true
	case protocol.ShowRules:
		return match.StartMatch{ConnectionID: conn, Mode: pl.GameMode}, true
	case protocol.RulesAccepted:
		return match.AcceptRules{ConnectionID: conn}, true
	case protocol.StartCountdown:
		return match.StartCountdown{ConnectionID: conn}, true
	case protocol.StartGame:
		return match.ClientSeed{ConnectionID: conn, TargetItem: pl.TargetItem}, true
	case protocol.RoundWinner:
		return match.RoundResult{ConnectionID: conn, WinnerID: pl.WinnerId, Round: pl.Round, Times: pl.Times}, true
	case protocol.GameEnd:
		return match.GameEnd{ConnectionID: conn}, true
	case protocol.Relay:
		return match.Relay{ConnectionID: conn, Event: pl.Event, Data: pl.Data}, true
	}
	// join-room from an occupant
	return nil, false
}

func (r *room) apply(now time.Time, ev match.Event, event string) {
	deliveries, err := r.state.Apply(now, ev)
	if err != nil {
		logRejected(r.code, event, err)
		return
	}
	r.dispatch(deliveries)
	r.afterApply()
}

func logRejected(code, event string, err error) {
	switch {
	case errors.Is(err, match.ErrUnauthorized), errors.Is(err, match.ErrDuplicateRoundResult):
		slog.Debug("dropped event", "room", code, "event", event, "error", err)
	default:
		slog.Warn("rejected event", "room", code, "event", event, "error", err)
	}
}

// dispatch marshals each delivery once and queues it for its recipients.
// Players whose buffer is full are removed afterwards.
func (r *room) dispatch(deliveries []match.Delivery) {
	if len(deliveries) == 0 {
		return
	}
	occupants := r.state.Occupants()
	var slow []Player

	for _, d := range deliveries {
		data, err := d.Packet.Marshal()
		if err != nil {
			slog.Error("failed to marshal packet", "room", r.code, "event", d.Packet.Event, "error", err)
			continue
		}
		for _, conn := range d.Recipients(occupants) {
			p, ok := r.players[conn]
			if !ok {
				continue
			}
			if err := p.Send(data); err != nil {
				slog.Warn("dropping slow player", "room", r.code, "conn", conn, "error", err)
				slow = append(slow, p)
			}
		}
	}

	for _, p := range slow {
		if r.released {
			return
		}
		r.handleRemovePlayer(p, CloseSendBufferFull)
	}
}

func (r *room) afterApply() {
	if r.released {
		return
	}
	r.notifyOutcome()

	switch {
	case r.state.Empty():
		r.release("")
	case r.state.Expired():
		r.release(CloseRoomExpired)
	case r.state.Phase() == match.PhaseAbandoned:
		r.release(CloseOpponentLeft)
	}
}

func (r *room) notifyOutcome() {
	outcome, ok := r.state.TakeOutcome()
	if !ok {
		return
	}
	slog.Info("match over", "room", r.code, "match", outcome.MatchID, "winner", outcome.WinnerUserID, "aborted", outcome.Aborted, "scores", outcome.FinalScores)
	if r.notifier != nil {
		r.notifier.Notify(outcome)
	}
}

// release tears the room down: players are let go, the lobby forgets the code
// and pending requests fail with errRoomReleased.
func (r *room) release(reason string) {
	if r.released {
		return
	}
	r.released = true
	for id, p := range r.players {
		p.CancelAndRelease(reason)
		delete(r.players, id)
	}
	if r.parentLobby != nil {
		r.parentLobby.RemoveRoom(r.code, r)
	}
	close(r.done)
	slog.Info("room released", "room", r.code, "reason", reason)
}
