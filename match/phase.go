package match

type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseReadyRoom
	PhaseRulesPreview
	PhasePlaying
	PhaseRoundSettled
	PhaseFinished
	PhaseAbandoned
)

var phaseNames = [...]string{
	PhaseWaiting:      "waiting",
	PhaseReadyRoom:    "ready-room",
	PhaseRulesPreview: "rules-preview",
	PhasePlaying:      "playing",
	PhaseRoundSettled: "round-settled",
	PhaseFinished:     "finished",
	PhaseAbandoned:    "abandoned",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// inMatch reports whether a match is underway, i.e. leaving now abandons it.
func (p Phase) inMatch() bool {
	return p == PhaseRulesPreview || p == PhasePlaying || p == PhaseRoundSettled
}

func (p Phase) terminal() bool {
	return p == PhaseFinished || p == PhaseAbandoned
}
