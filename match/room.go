package match

import (
	"encoding/json"
	"fmt"
	"maps"
	"skillduels/protocol"
	"slices"
	"time"

	"github.com/google/uuid"
)

const MaxPlayers = 2

type slot struct {
	connectionID string
	userID       string
	username     string
	isHost       bool
}

// Room is the coordination state of one match. It is not safe for concurrent
// use: a single owner feeds it events one at a time through Apply.
type Room struct {
	// matchID tells apart matches played in different instances of the same code
	matchID string
	code    string
	cfg     Config
	seeds   SeedSource

	phase   Phase
	players []slot
	mode    string
	wager   float64

	// readySet tracks the ready gate in ReadyRoom and rule acceptance in RulesPreview.
	readySet map[string]bool
	scores   map[string]int
	round    int

	targetItem string
	lastTimes  json.RawMessage

	countdownRan       bool
	countdownRemaining int
	// deadline of the next countdown tick or of the settle delay
	nextTick time.Time
	// start of the current idle stretch (Waiting or terminal), used for expiry
	idleSince time.Time
	expired   bool

	outcome      *Outcome
	outcomeTaken bool
}

func NewRoom(code string, cfg Config, seeds SeedSource, now time.Time) *Room {
	mode := cfg.DefaultGameMode
	if _, ok := LookupMode(mode); !ok {
		mode = ModeObjectHunt
	}
	if seeds == nil {
		seeds = NewItemPool(nil, nil)
	}
	return &Room{
		matchID:   uuid.NewString(),
		code:      code,
		cfg:       cfg,
		seeds:     seeds,
		phase:     PhaseWaiting,
		players:   make([]slot, 0, MaxPlayers),
		mode:      mode,
		readySet:  make(map[string]bool, MaxPlayers),
		scores:    make(map[string]int, MaxPlayers),
		round:     1,
		idleSince: now,
	}
}

func (r *Room) MatchID() string    { return r.matchID }
func (r *Room) Code() string       { return r.code }
func (r *Room) Phase() Phase       { return r.phase }
func (r *Room) Round() int         { return r.round }
func (r *Room) GameMode() string   { return r.mode }
func (r *Room) Wager() float64     { return r.wager }
func (r *Room) Len() int           { return len(r.players) }
func (r *Room) Empty() bool        { return len(r.players) == 0 }
func (r *Room) TargetItem() string { return r.targetItem }

// Closed reports whether the room accepts no more joins.
func (r *Room) Closed() bool {
	return r.expired || r.phase.terminal()
}

// Expired reports whether the room outlived its idle TTL and must be torn down.
func (r *Room) Expired() bool {
	return r.expired
}

func (r *Room) Has(conn string) bool {
	return r.indexOf(conn) >= 0
}

// Occupants returns connection ids in seat order.
func (r *Room) Occupants() []string {
	res := make([]string, len(r.players))
	for i, p := range r.players {
		res[i] = p.connectionID
	}
	return res
}

func (r *Room) Players() []protocol.PlayerInfo {
	res := make([]protocol.PlayerInfo, len(r.players))
	for i, p := range r.players {
		res[i] = p.info()
	}
	return res
}

func (r *Room) Scores() map[string]int {
	return maps.Clone(r.scores)
}

// TakeOutcome returns the match outcome once it exists. It reports true at most
// once per room.
func (r *Room) TakeOutcome() (Outcome, bool) {
	if r.outcome == nil || r.outcomeTaken {
		return Outcome{}, false
	}
	r.outcomeTaken = true
	return *r.outcome, true
}

func (p slot) info() protocol.PlayerInfo {
	return protocol.PlayerInfo{Id: p.connectionID, Username: p.username, IsHost: p.isHost}
}

func (r *Room) indexOf(conn string) int {
	return slices.IndexFunc(r.players, func(p slot) bool { return p.connectionID == conn })
}

func (r *Room) slotOf(conn string) (slot, bool) {
	i := r.indexOf(conn)
	if i < 0 {
		return slot{}, false
	}
	return r.players[i], true
}

// Apply feeds one event to the room and returns what must be sent out, in order.
// A non-nil error means the event was rejected and the room is unchanged.
func (r *Room) Apply(now time.Time, ev Event) ([]Delivery, error) {
	switch e := ev.(type) {
	case Join:
		return r.join(now, e)
	case Tick:
		return r.tick(now), nil
	}

	conn := connectionOf(ev)
	if !r.Has(conn) {
		return nil, ErrUnauthorized
	}

	switch e := ev.(type) {
	case Leave:
		return r.leave(now, e), nil
	case Ready:
		return r.ready(e)
	case SelectMode:
		return r.selectMode(e)
	case StartMatch:
		return r.startMatch(e)
	case AcceptRules:
		return r.acceptRules(now, e)
	case StartCountdown:
		return r.requestCountdown(now)
	case ClientSeed:
		return nil, fmt.Errorf("%w: round seeds are picked by the server", ErrInvalidPhaseTransition)
	case RoundResult:
		return r.roundResult(now, e)
	case Relay:
		return r.relay(e)
	case GameEnd:
		return r.gameEnd(e)
	}
	return nil, fmt.Errorf("%w: unsupported event %T", ErrInvalidPhaseTransition, ev)
}

func connectionOf(ev Event) string {
	switch e := ev.(type) {
	case Leave:
		return e.ConnectionID
	case Ready:
		return e.ConnectionID
	case SelectMode:
		return e.ConnectionID
	case StartMatch:
		return e.ConnectionID
	case AcceptRules:
		return e.ConnectionID
	case StartCountdown:
		return e.ConnectionID
	case ClientSeed:
		return e.ConnectionID
	case RoundResult:
		return e.ConnectionID
	case Relay:
		return e.ConnectionID
	case GameEnd:
		return e.ConnectionID
	}
	return ""
}

func (r *Room) join(now time.Time, e Join) ([]Delivery, error) {
	if r.Closed() {
		return nil, ErrRoomClosed
	}
	if len(r.players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	for _, p := range r.players {
		if p.connectionID == e.ConnectionID || (e.UserID != "" && p.userID == e.UserID) {
			return nil, ErrAlreadyJoined
		}
	}

	// only the creator sets the stake
	newcomer := slot{connectionID: e.ConnectionID, userID: e.UserID, username: e.Username, isHost: len(r.players) == 0}
	if newcomer.isHost {
		r.wager = max(e.Wager, 0)
		r.idleSince = now
	}
	r.players = append(r.players, newcomer)
	r.scores[e.ConnectionID] = 0
	full := len(r.players) == MaxPlayers
	if full {
		r.phase = PhaseReadyRoom
		clear(r.readySet)
	}

	players := r.Players()
	deliveries := []Delivery{
		toOne(e.ConnectionID, protocol.MakePacketRoomJoined(protocol.RoomJoined{
			ConnectionId: e.ConnectionID,
			RoomCode:     r.code,
			IsHost:       newcomer.isHost,
			Phase:        r.phase.String(),
			Round:        r.round,
			GameMode:     r.mode,
			Players:      players,
			Wager:        r.wager,
		})),
		toAll(protocol.MakePacketPlayerJoined(newcomer.info(), players)),
	}

	if full {
		deliveries = append(deliveries, toAll(protocol.MakePacketRoomReady(players)))
	}
	return deliveries, nil
}

// Abort ends a running match with no winner. It reports false when no match
// was underway, in which case the room is unchanged.
func (r *Room) Abort(now time.Time) bool {
	if !r.matchStarted() {
		return false
	}
	r.setOutcome("", true)
	r.phase = PhaseAbandoned
	r.idleSince = now
	r.countdownRemaining = 0
	r.nextTick = time.Time{}
	return true
}

func (r *Room) leave(now time.Time, e Leave) []Delivery {
	// snapshot scores before the leaver's seat disappears
	abandoned := r.Abort(now)

	i := r.indexOf(e.ConnectionID)
	wasHost := r.players[i].isHost
	r.players = slices.Delete(r.players, i, i+1)
	delete(r.scores, e.ConnectionID)
	delete(r.readySet, e.ConnectionID)

	if !abandoned && (r.phase == PhaseReadyRoom || r.phase == PhaseWaiting) {
		r.phase = PhaseWaiting
		clear(r.readySet)
		r.idleSince = now
	}
	if wasHost && len(r.players) > 0 {
		r.players[0].isHost = true
	}

	if len(r.players) == 0 {
		return nil
	}
	return []Delivery{toAll(protocol.MakePacketPlayerLeft(e.ConnectionID, r.Players(), abandoned))}
}

// matchStarted reports whether leaving now abandons a match. The ready room
// between two rounds still belongs to the running match.
func (r *Room) matchStarted() bool {
	return r.phase.inMatch() || (r.phase == PhaseReadyRoom && r.round > 1)
}

func (r *Room) ready(e Ready) ([]Delivery, error) {
	if r.phase != PhaseReadyRoom {
		return nil, fmt.Errorf("%w: ready while %s", ErrInvalidPhaseTransition, r.phase)
	}
	if r.readySet[e.ConnectionID] {
		return nil, nil
	}
	r.readySet[e.ConnectionID] = true

	p, _ := r.slotOf(e.ConnectionID)
	deliveries := []Delivery{toAll(protocol.MakePacketPlayerReady(p.username, p.connectionID))}
	if len(r.readySet) == MaxPlayers {
		deliveries = append(deliveries, toAll(protocol.MakePacketBothReady(r.Players())))
	}
	return deliveries, nil
}

func (r *Room) requireHost(conn string) error {
	p, _ := r.slotOf(conn)
	if !p.isHost {
		return ErrNotHost
	}
	return nil
}

func (r *Room) selectMode(e SelectMode) ([]Delivery, error) {
	if r.phase != PhaseReadyRoom {
		return nil, fmt.Errorf("%w: select mode while %s", ErrInvalidPhaseTransition, r.phase)
	}
	if err := r.requireHost(e.ConnectionID); err != nil {
		return nil, err
	}
	// the mode is fixed once the first round has been played
	if r.round > 1 {
		return nil, fmt.Errorf("%w: mode is locked after round 1", ErrInvalidPhaseTransition)
	}
	if _, ok := LookupMode(e.Mode); !ok {
		return nil, ErrUnknownGameMode
	}
	r.mode = e.Mode
	return []Delivery{toAll(protocol.MakePacketGameModeSelected(e.Mode))}, nil
}

func (r *Room) startMatch(e StartMatch) ([]Delivery, error) {
	if r.phase != PhaseReadyRoom {
		return nil, fmt.Errorf("%w: start while %s", ErrInvalidPhaseTransition, r.phase)
	}
	if err := r.requireHost(e.ConnectionID); err != nil {
		return nil, err
	}
	if len(r.players) != MaxPlayers || len(r.readySet) != MaxPlayers {
		return nil, ErrNotEnoughReady
	}
	if e.Mode != "" && e.Mode != r.mode {
		if r.round > 1 {
			return nil, fmt.Errorf("%w: mode is locked after round 1", ErrInvalidPhaseTransition)
		}
		if _, ok := LookupMode(e.Mode); !ok {
			return nil, ErrUnknownGameMode
		}
		r.mode = e.Mode
	}

	r.phase = PhaseRulesPreview
	clear(r.readySet)
	r.countdownRan = false
	return []Delivery{toAll(protocol.MakePacketShowRulesScreen(r.mode))}, nil
}

func (r *Room) acceptRules(now time.Time, e AcceptRules) ([]Delivery, error) {
	if r.phase != PhaseRulesPreview {
		return nil, fmt.Errorf("%w: accept rules while %s", ErrInvalidPhaseTransition, r.phase)
	}
	if r.readySet[e.ConnectionID] {
		return nil, nil
	}
	r.readySet[e.ConnectionID] = true

	p, _ := r.slotOf(e.ConnectionID)
	deliveries := []Delivery{toOthers(e.ConnectionID, protocol.MakePacketOpponentRulesAccepted(p.username))}
	if len(r.readySet) == MaxPlayers {
		deliveries = append(deliveries, r.startCountdown(now)...)
	}
	return deliveries, nil
}

// requestCountdown handles an explicit start-countdown. Acceptance of both
// players already starts it, so this only matters if that did not happen.
func (r *Room) requestCountdown(now time.Time) ([]Delivery, error) {
	if r.phase != PhaseRulesPreview {
		return nil, fmt.Errorf("%w: countdown while %s", ErrInvalidPhaseTransition, r.phase)
	}
	if len(r.readySet) != MaxPlayers {
		return nil, ErrNotEnoughReady
	}
	if r.countdownRan {
		return nil, fmt.Errorf("%w: countdown already running", ErrInvalidPhaseTransition)
	}
	return r.startCountdown(now), nil
}

func (r *Room) startCountdown(now time.Time) []Delivery {
	r.countdownRan = true
	r.countdownRemaining = r.cfg.CountdownTicks
	if r.countdownRemaining <= 0 {
		return []Delivery{
			toAll(protocol.MakePacketCountdownStarted(0)),
			r.beginRound(),
		}
	}
	r.nextTick = now.Add(r.cfg.CountdownTick)
	return []Delivery{
		toAll(protocol.MakePacketCountdownStarted(r.countdownRemaining)),
		toAll(protocol.MakePacketCountdownTick(r.countdownRemaining)),
	}
}

func (r *Room) beginRound() Delivery {
	r.phase = PhasePlaying
	r.countdownRemaining = 0
	r.nextTick = time.Time{}
	r.lastTimes = nil
	r.targetItem = ""
	if m, ok := LookupMode(r.mode); ok && m.NeedsTarget {
		r.targetItem = r.seeds.Pick()
	}
	return toAll(protocol.MakePacketGameStarted(r.targetItem, r.mode, r.round))
}

func (r *Room) tick(now time.Time) []Delivery {
	var deliveries []Delivery

	switch r.phase {
	case PhaseWaiting, PhaseFinished, PhaseAbandoned:
		if r.expired || r.cfg.WaitingTTL <= 0 || len(r.players) == 0 {
			return nil
		}
		if now.Sub(r.idleSince) >= r.cfg.WaitingTTL {
			r.expired = true
			deliveries = append(deliveries, toAll(protocol.MakePacketRoomExpired()))
		}

	case PhaseRulesPreview:
		if r.countdownRemaining <= 0 {
			return nil
		}
		for r.countdownRemaining > 0 && !now.Before(r.nextTick) {
			r.countdownRemaining--
			if r.countdownRemaining == 0 {
				deliveries = append(deliveries, r.beginRound())
				break
			}
			deliveries = append(deliveries, toAll(protocol.MakePacketCountdownTick(r.countdownRemaining)))
			r.nextTick = r.nextTick.Add(r.cfg.CountdownTick)
		}

	case PhaseRoundSettled:
		if now.Before(r.nextTick) {
			return nil
		}
		r.round++
		r.phase = PhaseReadyRoom
		clear(r.readySet)
		r.nextTick = time.Time{}
		r.targetItem = ""
		deliveries = append(deliveries, toAll(protocol.MakePacketNextRound(r.round)))
	}
	return deliveries
}

func (r *Room) roundResult(now time.Time, e RoundResult) ([]Delivery, error) {
	switch r.phase {
	case PhasePlaying:
	case PhaseRoundSettled, PhaseFinished:
		return nil, ErrDuplicateRoundResult
	default:
		if e.Round != nil && *e.Round < r.round {
			return nil, ErrDuplicateRoundResult
		}
		return nil, fmt.Errorf("%w: round result while %s", ErrInvalidPhaseTransition, r.phase)
	}
	if e.Round != nil && *e.Round != r.round {
		return nil, ErrDuplicateRoundResult
	}

	winner := e.WinnerID
	if winner == "" {
		winner = e.ConnectionID
	}
	if !r.Has(winner) {
		return nil, ErrUnknownWinner
	}

	r.scores[winner]++
	r.lastTimes = e.Times
	r.phase = PhaseRoundSettled

	deliveries := []Delivery{toAll(protocol.MakePacketScoreUpdate(r.Scores(), winner, r.round, e.Times))}

	if r.scores[winner] >= r.cfg.threshold(r.mode) {
		r.phase = PhaseFinished
		r.idleSince = now
		r.setOutcome(winner, false)
		deliveries = append(deliveries,
			toAll(protocol.MakePacketRoundComplete(r.Scores(), 0, true)),
			toAll(r.gameFinishedPacket()),
		)
		return deliveries, nil
	}

	r.nextTick = now.Add(r.cfg.SettleDelay)
	deliveries = append(deliveries, toAll(protocol.MakePacketRoundComplete(r.Scores(), r.round+1, false)))
	return deliveries, nil
}

func (r *Room) relay(e Relay) ([]Delivery, error) {
	gameplay := e.Event != protocol.EventChatMessage && e.Event != protocol.EventSendEmoji
	if gameplay && !r.phase.inMatch() {
		return nil, fmt.Errorf("%w: %s while %s", ErrInvalidPhaseTransition, e.Event, r.phase)
	}
	return []Delivery{toOthers(e.ConnectionID, protocol.MakePacketRelay(e.Event, e.Data))}, nil
}

func (r *Room) gameEnd(e GameEnd) ([]Delivery, error) {
	if r.phase != PhaseFinished {
		return nil, fmt.Errorf("%w: game end while %s", ErrInvalidPhaseTransition, r.phase)
	}
	return []Delivery{toOne(e.ConnectionID, r.gameFinishedPacket())}, nil
}

func (r *Room) gameFinishedPacket() *protocol.ServerPacket {
	var winner *protocol.PlayerInfo
	if r.outcome != nil && r.outcome.WinnerConnectionID != "" {
		if p, ok := r.slotOf(r.outcome.WinnerConnectionID); ok {
			info := p.info()
			winner = &info
		}
	}
	scores := r.Scores()
	if r.outcome != nil {
		scores = maps.Clone(r.outcome.FinalScores)
	}
	return protocol.MakePacketGameFinished(winner, scores)
}

func (r *Room) setOutcome(winnerConn string, aborted bool) {
	if r.outcome != nil {
		return
	}
	out := Outcome{
		MatchID:            r.matchID,
		RoomCode:           r.code,
		WinnerConnectionID: winnerConn,
		FinalScores:        r.Scores(),
		GameMode:           r.mode,
		Wager:              r.wager,
		Rounds:             r.round,
		Players:            make([]Participant, 0, len(r.players)),
		Aborted:            aborted,
	}
	for _, p := range r.players {
		out.Players = append(out.Players, Participant{
			ConnectionID: p.connectionID,
			UserID:       p.userID,
			Username:     p.username,
			Score:        r.scores[p.connectionID],
		})
		if p.connectionID == winnerConn {
			out.WinnerUserID = p.userID
		}
	}
	r.outcome = &out
}
