package protocol

// Inbound events.
const (
	EventJoinRoom       = "join-room"
	EventPlayerReady    = "player-ready"
	EventSelectGameMode = "select-game-mode"
	EventShowRules      = "show-rules"
	EventRulesAccepted  = "rules-accepted"
	EventStartCountdown = "start-countdown"
	EventStartGame      = "start-game"
	EventRoundWinner    = "round-winner"
	EventChatMessage    = "chat-message"
	EventSendEmoji      = "send-emoji"
	EventGameEnd        = "game-end"
)

// Outbound events.
const (
	EventRoomJoined            = "room-joined"
	EventJoinError             = "join-error"
	EventPlayerJoined          = "player-joined"
	EventRoomReady             = "room-ready"
	EventBothReady             = "both-ready"
	EventGameModeSelected      = "game-mode-selected"
	EventShowRulesScreen       = "show-rules-screen"
	EventOpponentRulesAccepted = "opponent-rules-accepted"
	EventCountdownStarted      = "countdown-started"
	EventCountdownTick         = "countdown-tick"
	EventGameStarted           = "game-started"
	EventScoreUpdate           = "score-update"
	EventRoundComplete         = "round-complete"
	EventNextRound             = "next-round"
	EventGameFinished          = "game-finished"
	EventPlayerLeft            = "player-left"
	EventRoomExpired           = "room-expired"
	EventEmojiReceived         = "emoji-received"
)

// relays maps every opaque gameplay event to the name the opponent receives it under.
// The browser clients listen on these exact names, which is why a few of them
// don't follow the opponent- prefix.
var relays = map[string]string{
	"rps-choice":             "rps-opponent-choice",
	"reflex-time":            "reflex-opponent-time",
	"pushup-number-selected": "opponent-pushup-number",
	"pushup-count":           "opponent-pushup-count",
	"paddle-move":            "opponent-paddle-move",
	"tennis-hand-move":       "opponent-tennis-hand-move",
	"tennis-scored":          "opponent-tennis-scored",
	"found-object":           "opponent-found-object",
	"hand-raised":            "opponent-hand-raised",
	"game-update":            "opponent-update",
}

// IsRelay reports whether event is an opaque gameplay payload.
func IsRelay(event string) bool {
	_, ok := relays[event]
	return ok
}

// RelayName returns the outbound name of a relayed gameplay event.
func RelayName(event string) string {
	if name, ok := relays[event]; ok {
		return name
	}
	return "opponent-" + event
}
