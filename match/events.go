package match

import "encoding/json"

// Event is anything that can happen to a room. The set is closed: only types
// declared in this file implement it.
type Event interface {
	isEvent()
}

// Join asks for a seat. The first occupant becomes host whatever WantsHost says.
type Join struct {
	ConnectionID string
	UserID       string
	Username     string
	WantsHost    bool
	Wager        float64
}

type Leave struct {
	ConnectionID string
}

type Ready struct {
	ConnectionID string
}

type SelectMode struct {
	ConnectionID string
	Mode         string
}

// StartMatch is the host moving the room to the rules preview. Mode is optional.
type StartMatch struct {
	ConnectionID string
	Mode         string
}

type AcceptRules struct {
	ConnectionID string
}

type StartCountdown struct {
	ConnectionID string
}

// ClientSeed is a client trying to pick the round seed itself. Always rejected.
type ClientSeed struct {
	ConnectionID string
	TargetItem   string
}

type RoundResult struct {
	ConnectionID string
	// WinnerID defaults to ConnectionID.
	WinnerID string
	// Round pins the report to a round. Nil means the current one.
	Round *int
	Times json.RawMessage
}

// Relay is an opaque payload for the opponent: gameplay, chat or emoji.
type Relay struct {
	ConnectionID string
	Event        string
	Data         json.RawMessage
}

type GameEnd struct {
	ConnectionID string
}

// Tick drives countdowns, settle delays and expiry.
type Tick struct{}

func (Join) isEvent()           {}
func (Leave) isEvent()          {}
func (Ready) isEvent()          {}
func (SelectMode) isEvent()     {}
func (StartMatch) isEvent()     {}
func (AcceptRules) isEvent()    {}
func (StartCountdown) isEvent() {}
func (ClientSeed) isEvent()     {}
func (RoundResult) isEvent()    {}
func (Relay) isEvent()          {}
func (GameEnd) isEvent()        {}
func (Tick) isEvent()           {}
