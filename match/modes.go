package match

import "slices"

const (
	ModeObjectHunt        = "object-hunt"
	ModeReflexChallenge   = "reflex-challenge"
	ModeRockPaperScissors = "rock-paper-scissors"
	ModePushupBattle      = "pushup-battle"
	ModeTableTennis       = "table-tennis"
	ModeTennis            = "tennis"
	ModeHandRaise         = "hand-raise"
)

// Mode describes a mini-game as far as coordination cares.
type Mode struct {
	Name string
	// WinThreshold overrides Config.WinThreshold when positive.
	WinThreshold int
	// NeedsTarget modes get a server-picked target item when a round starts.
	NeedsTarget bool
}

var modes = map[string]Mode{
	ModeObjectHunt:        {Name: ModeObjectHunt, NeedsTarget: true},
	ModeReflexChallenge:   {Name: ModeReflexChallenge},
	ModeRockPaperScissors: {Name: ModeRockPaperScissors, WinThreshold: 3},
	ModePushupBattle:      {Name: ModePushupBattle},
	ModeTableTennis:       {Name: ModeTableTennis},
	ModeTennis:            {Name: ModeTennis},
	ModeHandRaise:         {Name: ModeHandRaise},
}

func LookupMode(name string) (Mode, bool) {
	m, ok := modes[name]
	return m, ok
}

// ModeNames lists every known mode, sorted.
func ModeNames() []string {
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
