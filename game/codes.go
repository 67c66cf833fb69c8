package game

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
)

const (
	CodeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// NormalizeCode uppercases a client supplied room code and validates it.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !codePattern.MatchString(code) {
		return "", ErrInvalidRoomCode
	}
	return code, nil
}

type codeGen struct {
	rng    *rand.Rand
	locker sync.Mutex
}

func NewCodeGen() *codeGen {
	return &codeGen{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (cg *codeGen) Generate() string {
	cg.locker.Lock()
	defer cg.locker.Unlock()

	var sb strings.Builder
	sb.Grow(CodeLength)
	for range CodeLength {
		sb.WriteByte(codeAlphabet[cg.rng.IntN(len(codeAlphabet))])
	}
	return sb.String()
}
