package match

import "time"

type Config struct {
	// WinThreshold is the number of round wins that ends a match, unless the
	// selected mode overrides it.
	WinThreshold    int
	CountdownTicks  int
	CountdownTick   time.Duration
	SettleDelay     time.Duration
	WaitingTTL      time.Duration
	DefaultGameMode string
}

func DefaultConfig() Config {
	return Config{
		WinThreshold:    2,
		CountdownTicks:  5,
		CountdownTick:   time.Second,
		SettleDelay:     3 * time.Second,
		WaitingTTL:      10 * time.Minute,
		DefaultGameMode: ModeObjectHunt,
	}
}

func (c Config) threshold(mode string) int {
	if m, ok := LookupMode(mode); ok && m.WinThreshold > 0 {
		return m.WinThreshold
	}
	if c.WinThreshold < 1 {
		return 1
	}
	return c.WinThreshold
}
