package settlement

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"skillduels/domain"
	"skillduels/match"
	"strings"
	"time"
)

type PlayerResult struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// MatchCompleted is what leaves the process once a match is over: it is the
// escrow request body and the published event.
type MatchCompleted struct {
	MatchId      string             `json:"matchId"`
	RoomCode     string             `json:"roomCode"`
	GameMode     string             `json:"gameMode"`
	Wager        float64            `json:"wager"`
	Status       domain.MatchStatus `json:"status"`
	WinnerUserId string             `json:"winnerUserId,omitempty"`
	Players      []PlayerResult     `json:"players"`
	Rounds       int                `json:"rounds"`
	ResultHash   string             `json:"resultHash"`
	CompletedAt  time.Time          `json:"completedAt"`
}

func NewMatchCompleted(o match.Outcome, at time.Time) MatchCompleted {
	ev := MatchCompleted{
		MatchId:      o.MatchID,
		RoomCode:     o.RoomCode,
		GameMode:     o.GameMode,
		Wager:        o.Wager,
		Status:       domain.MatchCompleted,
		WinnerUserId: o.WinnerUserID,
		Players:      make([]PlayerResult, 0, len(o.Players)),
		Rounds:       o.Rounds,
		CompletedAt:  at.UTC(),
	}
	if o.Aborted {
		ev.Status = domain.MatchCancelled
		ev.WinnerUserId = ""
	}
	for _, p := range o.Players {
		ev.Players = append(ev.Players, PlayerResult{UserId: p.UserID, Username: p.Username, Score: p.Score})
	}
	ev.ResultHash = resultHash(ev)
	return ev
}

// resultHash fingerprints one match and its result. Room codes get reused, so
// the match id is what keeps two identical results in the same room apart.
func resultHash(ev MatchCompleted) string {
	parts := []string{ev.MatchId, ev.RoomCode, ev.WinnerUserId}
	for _, p := range ev.Players {
		parts = append(parts, fmt.Sprintf("%s:%d", p.UserId, p.Score))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(sum[:])
}

// Record is the form persisted by the match store.
func (ev MatchCompleted) Record() domain.MatchRecord {
	rec := domain.MatchRecord{
		RoomCode:    ev.RoomCode,
		GameMode:    ev.GameMode,
		Wager:       ev.Wager,
		Status:      ev.Status,
		WinnerId:    ev.WinnerUserId,
		Players:     make([]domain.MatchParticipant, 0, len(ev.Players)),
		CompletedAt: ev.CompletedAt,
	}
	for _, p := range ev.Players {
		rec.Players = append(rec.Players, domain.MatchParticipant{UserId: p.UserId, Score: p.Score})
	}
	return rec
}
