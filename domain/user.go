package domain

import "time"

type User struct {
	Id            string
	Username      string
	PasswordHash  string
	WalletAddress string
	TotalMatches  int
	Wins          int
	Losses        int
	TotalEarned   float64
	CreatedAt     time.Time
}

type MatchStatus string

const (
	MatchCompleted MatchStatus = "completed"
	MatchCancelled MatchStatus = "cancelled"
)

// MatchParticipant is one side of a finished match as it gets persisted.
type MatchParticipant struct {
	UserId string
	Score  int
}

// MatchRecord is the durable form of a match outcome. WinnerId is empty for
// cancelled matches.
type MatchRecord struct {
	RoomCode    string
	GameMode    string
	Wager       float64
	Status      MatchStatus
	WinnerId    string
	Players     []MatchParticipant
	CompletedAt time.Time
}
