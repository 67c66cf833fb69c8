package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedPacket = errors.New("malformed-packet")
	ErrUnknownEvent    = errors.New("unknown-event")
)

// Envelope is the frame shape shared by both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type JoinRoom struct {
	RoomCode string  `json:"roomCode"`
	Username string  `json:"username"`
	IsHost   bool    `json:"isHost"`
	Wager    float64 `json:"wager"`
}

type PlayerReady struct {
	Username string `json:"username"`
}

type SelectGameMode struct {
	GameMode string `json:"gameMode"`
}

type ShowRules struct {
	GameMode string `json:"gameMode"`
}

type RulesAccepted struct {
	Username string `json:"username"`
}

type StartCountdown struct{}

type StartGame struct {
	TargetItem string `json:"targetItem"`
	GameMode   string `json:"gameMode"`
}

// RoundWinner is the privileged round result report. WinnerId defaults to the
// sender when empty; Round pins the report to a specific round when present.
type RoundWinner struct {
	WinnerId string          `json:"winnerId"`
	Round    *int            `json:"round"`
	Times    json.RawMessage `json:"times"`
}

type GameEnd struct {
	WinnerId string `json:"winnerId"`
}

// Relay carries an opaque payload that is forwarded to the opponent untouched.
// Chat messages and emojis travel the same way.
type Relay struct {
	Event string
	Data  json.RawMessage
}

// ClientPacket is a decoded inbound frame. Payload holds one of the message
// structs of this package.
type ClientPacket struct {
	Event    string
	RoomCode string
	Payload  any
}

// DecodeClientPacket parses an inbound frame. Room codes are uppercased.
func DecodeClientPacket(frame []byte) (ClientPacket, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return ClientPacket{}, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}
	if env.Event == "" {
		return ClientPacket{}, fmt.Errorf("%w: missing event", ErrMalformedPacket)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		env.Data = json.RawMessage("{}")
	}

	var scope struct {
		RoomCode string `json:"roomCode"`
	}
	if err := json.Unmarshal(env.Data, &scope); err != nil {
		return ClientPacket{}, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}

	packet := ClientPacket{Event: env.Event, RoomCode: strings.ToUpper(strings.TrimSpace(scope.RoomCode))}

	var target any
	switch env.Event {
	case EventJoinRoom:
		target = &JoinRoom{}
	case EventPlayerReady:
		target = &PlayerReady{}
	case EventSelectGameMode:
		target = &SelectGameMode{}
	case EventShowRules:
		target = &ShowRules{}
	case EventRulesAccepted:
		target = &RulesAccepted{}
	case EventStartCountdown:
		target = &StartCountdown{}
	case EventStartGame:
		target = &StartGame{}
	case EventRoundWinner:
		target = &RoundWinner{}
	case EventGameEnd:
		target = &GameEnd{}
	case EventChatMessage, EventSendEmoji:
		packet.Payload = Relay{Event: env.Event, Data: env.Data}
		return packet, nil
	default:
		if !IsRelay(env.Event) {
			return ClientPacket{}, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
		}
		packet.Payload = Relay{Event: env.Event, Data: env.Data}
		return packet, nil
	}

	if err := json.Unmarshal(env.Data, target); err != nil {
		return ClientPacket{}, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}

	// hand back values rather than pointers so callers can type switch on them
	switch t := target.(type) {
	case *JoinRoom:
		t.RoomCode = packet.RoomCode
		packet.Payload = *t
	case *PlayerReady:
		packet.Payload = *t
	case *SelectGameMode:
		packet.Payload = *t
	case *ShowRules:
		packet.Payload = *t
	case *RulesAccepted:
		packet.Payload = *t
	case *StartCountdown:
		packet.Payload = *t
	case *StartGame:
		packet.Payload = *t
	case *RoundWinner:
		packet.Payload = *t
	case *GameEnd:
		packet.Payload = *t
	}
	return packet, nil
}
