package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingEnv = errors.New("missing-env")
	ErrInvalidEnv = errors.New("invalid-env")
)

type Config struct {
	Port           string
	Debug          bool
	AllowedOrigins []string
	PostgresURL    string
	JWTKey         string
	TokenMaxAge    time.Duration

	RoomTick        time.Duration
	PingInterval    time.Duration
	WinThreshold    int
	CountdownTicks  int
	CountdownTick   time.Duration
	SettleDelay     time.Duration
	WaitingTTL      time.Duration
	DefaultGameMode string

	EscrowURL    string
	KafkaBrokers []string
	KafkaTopic   string
}

type LookupFunc func(key string) (string, bool)

func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds a Config from lookup. Every missing required variable is
// reported in the returned error, not only the first one.
func LoadFrom(lookup LookupFunc) (Config, error) {
	cfg := Config{
		Port:            "5000",
		TokenMaxAge:     time.Hour * 24 * 7,
		RoomTick:        time.Millisecond * 200,
		PingInterval:    time.Second * 30,
		WinThreshold:    2,
		CountdownTicks:  5,
		CountdownTick:   time.Second,
		SettleDelay:     time.Second * 3,
		WaitingTTL:      time.Minute * 10,
		DefaultGameMode: "object-hunt",
		KafkaTopic:      "match-completed",
	}

	var errs []error

	required := func(key string) string {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingEnv, key))
		}
		return v
	}

	if origins := required("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	cfg.PostgresURL = required("POSTGRES_URL")
	cfg.JWTKey = required("JWT_KEY")

	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.Port = v
	}
	if v, ok := lookup("DEBUG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: DEBUG: %w", ErrInvalidEnv, err))
		}
		cfg.Debug = b
	}
	if v, ok := lookup("DEFAULT_GAME_MODE"); ok && v != "" {
		cfg.DefaultGameMode = v
	}
	if v, ok := lookup("ESCROW_URL"); ok {
		cfg.EscrowURL = v
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v, ok := lookup("KAFKA_TOPIC"); ok && v != "" {
		cfg.KafkaTopic = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"TOKEN_MAX_AGE", &cfg.TokenMaxAge},
		{"ROOM_TICK", &cfg.RoomTick},
		{"PING_INTERVAL", &cfg.PingInterval},
		{"COUNTDOWN_TICK", &cfg.CountdownTick},
		{"SETTLE_DELAY", &cfg.SettleDelay},
		{"WAITING_TTL", &cfg.WaitingTTL},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidEnv, d.key, v))
			continue
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"WIN_THRESHOLD", &cfg.WinThreshold},
		{"COUNTDOWN_TICKS", &cfg.CountdownTicks},
	}
	for _, i := range ints {
		v, ok := lookup(i.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidEnv, i.key, v))
			continue
		}
		*i.dst = parsed
	}

	return cfg, errors.Join(errs...)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
