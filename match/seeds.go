package match

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// SeedSource hands out round seeds. Pick must not block: it runs inside the
// room's event loop.
type SeedSource interface {
	Pick() string
}

// DefaultTargetItems are household objects a webcam object detector recognizes.
var DefaultTargetItems = []string{
	"cell phone", "cup", "bottle", "book", "laptop",
	"keyboard", "mouse", "remote", "scissors", "clock",
	"vase", "teddy bear", "toothbrush", "spoon", "fork",
	"knife", "bowl", "banana", "apple", "orange",
	"backpack", "umbrella", "handbag", "tie", "chair",
}

type ItemPool struct {
	items  []string
	locker sync.Mutex
	rng    *rand.Rand
}

// NewItemPool picks uniformly from items, falling back to DefaultTargetItems
// when items is empty.
func NewItemPool(items []string, rng *rand.Rand) *ItemPool {
	if len(items) == 0 {
		items = DefaultTargetItems
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &ItemPool{items: slices.Clone(items), rng: rng}
}

func (ip *ItemPool) Pick() string {
	ip.locker.Lock()
	defer ip.locker.Unlock()
	return ip.items[ip.rng.IntN(len(ip.items))]
}
