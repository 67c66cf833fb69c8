package protocol

import (
	"encoding/json"
)

// ServerPacket is an outbound frame.
type ServerPacket struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func (sp *ServerPacket) Marshal() ([]byte, error) {
	return json.Marshal(sp)
}

// PlayerInfo is the public view of an occupant. Id is the connection id.
type PlayerInfo struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

// --- Join & membership ---

type RoomJoined struct {
	ConnectionId string       `json:"connectionId"`
	RoomCode     string       `json:"roomCode"`
	IsHost       bool         `json:"isHost"`
	Phase        string       `json:"phase"`
	Round        int          `json:"round"`
	GameMode     string       `json:"gameMode"`
	Players      []PlayerInfo `json:"players"`
	Wager        float64      `json:"wager"`
}

func MakePacketRoomJoined(data RoomJoined) *ServerPacket {
	return &ServerPacket{Event: EventRoomJoined, Data: data}
}

type JoinError struct {
	Reason string `json:"reason"`
}

func MakePacketJoinError(reason string) *ServerPacket {
	return &ServerPacket{Event: EventJoinError, Data: JoinError{Reason: reason}}
}

type PlayerJoined struct {
	Player       PlayerInfo   `json:"player"`
	Players      []PlayerInfo `json:"players"`
	TotalPlayers int          `json:"totalPlayers"`
}

func MakePacketPlayerJoined(player PlayerInfo, players []PlayerInfo) *ServerPacket {
	return &ServerPacket{Event: EventPlayerJoined, Data: PlayerJoined{Player: player, Players: players, TotalPlayers: len(players)}}
}

type PlayersList struct {
	Players []PlayerInfo `json:"players"`
}

func MakePacketRoomReady(players []PlayerInfo) *ServerPacket {
	return &ServerPacket{Event: EventRoomReady, Data: PlayersList{Players: players}}
}

type PlayerLeft struct {
	PlayerId  string       `json:"playerId"`
	Players   []PlayerInfo `json:"players"`
	Abandoned bool         `json:"abandoned"`
}

func MakePacketPlayerLeft(playerId string, players []PlayerInfo, abandoned bool) *ServerPacket {
	return &ServerPacket{Event: EventPlayerLeft, Data: PlayerLeft{PlayerId: playerId, Players: players, Abandoned: abandoned}}
}

func MakePacketRoomExpired() *ServerPacket {
	return &ServerPacket{Event: EventRoomExpired}
}

// --- Ready room ---

type PlayerReadyAck struct {
	Username string `json:"username"`
	SocketId string `json:"socketId"`
}

func MakePacketPlayerReady(username, connectionId string) *ServerPacket {
	return &ServerPacket{Event: EventPlayerReady, Data: PlayerReadyAck{Username: username, SocketId: connectionId}}
}

func MakePacketBothReady(players []PlayerInfo) *ServerPacket {
	return &ServerPacket{Event: EventBothReady, Data: PlayersList{Players: players}}
}

type GameModeData struct {
	GameMode string `json:"gameMode"`
}

func MakePacketGameModeSelected(gameMode string) *ServerPacket {
	return &ServerPacket{Event: EventGameModeSelected, Data: GameModeData{GameMode: gameMode}}
}

func MakePacketShowRulesScreen(gameMode string) *ServerPacket {
	return &ServerPacket{Event: EventShowRulesScreen, Data: GameModeData{GameMode: gameMode}}
}

type UsernameData struct {
	Username string `json:"username"`
}

func MakePacketOpponentRulesAccepted(username string) *ServerPacket {
	return &ServerPacket{Event: EventOpponentRulesAccepted, Data: UsernameData{Username: username}}
}

// --- Countdown & play ---

type CountdownStarted struct {
	Ticks int `json:"ticks"`
}

func MakePacketCountdownStarted(ticks int) *ServerPacket {
	return &ServerPacket{Event: EventCountdownStarted, Data: CountdownStarted{Ticks: ticks}}
}

type CountdownTick struct {
	Remaining int `json:"remaining"`
}

func MakePacketCountdownTick(remaining int) *ServerPacket {
	return &ServerPacket{Event: EventCountdownTick, Data: CountdownTick{Remaining: remaining}}
}

type GameStarted struct {
	TargetItem string `json:"targetItem,omitempty"`
	GameMode   string `json:"gameMode"`
	Round      int    `json:"round"`
}

func MakePacketGameStarted(targetItem, gameMode string, round int) *ServerPacket {
	return &ServerPacket{Event: EventGameStarted, Data: GameStarted{TargetItem: targetItem, GameMode: gameMode, Round: round}}
}

type ScoreUpdate struct {
	Scores   map[string]int  `json:"scores"`
	WinnerId string          `json:"winnerId"`
	Round    int             `json:"round"`
	Times    json.RawMessage `json:"times,omitempty"`
}

func MakePacketScoreUpdate(scores map[string]int, winnerId string, round int, times json.RawMessage) *ServerPacket {
	return &ServerPacket{Event: EventScoreUpdate, Data: ScoreUpdate{Scores: scores, WinnerId: winnerId, Round: round, Times: times}}
}

type RoundComplete struct {
	Scores        map[string]int `json:"scores"`
	NextRound     int            `json:"nextRound,omitempty"`
	MatchComplete bool           `json:"matchComplete"`
}

func MakePacketRoundComplete(scores map[string]int, nextRound int, matchComplete bool) *ServerPacket {
	return &ServerPacket{Event: EventRoundComplete, Data: RoundComplete{Scores: scores, NextRound: nextRound, MatchComplete: matchComplete}}
}

type NextRound struct {
	Round int `json:"round"`
}

func MakePacketNextRound(round int) *ServerPacket {
	return &ServerPacket{Event: EventNextRound, Data: NextRound{Round: round}}
}

type GameFinished struct {
	Winner *PlayerInfo    `json:"winner"`
	Scores map[string]int `json:"scores"`
}

func MakePacketGameFinished(winner *PlayerInfo, scores map[string]int) *ServerPacket {
	return &ServerPacket{Event: EventGameFinished, Data: GameFinished{Winner: winner, Scores: scores}}
}

// --- Relays ---

// MakePacketRelay forwards an opaque gameplay payload under its opponent-side name.
func MakePacketRelay(event string, data json.RawMessage) *ServerPacket {
	switch event {
	case EventChatMessage:
		return &ServerPacket{Event: EventChatMessage, Data: data}
	case EventSendEmoji:
		return &ServerPacket{Event: EventEmojiReceived, Data: data}
	}
	return &ServerPacket{Event: RelayName(event), Data: data}
}
