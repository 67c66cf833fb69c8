package match

// Participant is one occupant as it stood when the match ended.
type Participant struct {
	ConnectionID string
	UserID       string
	Username     string
	Score        int
}

// Outcome is emitted once per match, when it finishes or is abandoned.
type Outcome struct {
	MatchID  string
	RoomCode string
	// WinnerConnectionID and WinnerUserID are empty for aborted matches.
	WinnerConnectionID string
	WinnerUserID       string
	FinalScores        map[string]int
	GameMode           string
	Wager              float64
	Rounds             int
	Players            []Participant
	Aborted            bool
}
